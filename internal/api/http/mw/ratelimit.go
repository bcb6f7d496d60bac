package mw

import (
	"ammindex/internal/config"
	"ammindex/internal/security"
	"ammindex/internal/stores/redis"
	"ammindex/pkg/httputil"
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Two token buckets per request: by client IP and, when a valid bearer is present, by JWT subject.
// Redis failures let the request through.
type RateLimitMiddleware struct {
	Cfg      *config.RateLimitConfig
	Rdb      *redis.Client
	Verifier *security.RS256Verifier // optional
}

func NewRateLimit(cfg *config.RateLimitConfig, rdb *redis.Client, verifier *security.RS256Verifier) *RateLimitMiddleware {
	if cfg == nil {
		panic("rate limit config cannot be nil")
	}
	if rdb == nil {
		panic("redis client cannot be nil")
	}

	// sane defaults
	if cfg.ByJWT.TTL == 0 {
		cfg.ByJWT.TTL = 2 * time.Minute
	}
	if cfg.ByIP.TTL == 0 {
		cfg.ByIP.TTL = 2 * time.Minute
	}

	return &RateLimitMiddleware{Cfg: cfg, Rdb: rdb, Verifier: verifier}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now()

		ip := extractClientIP(r, m.Cfg.TrustedProxies)
		okIP, leftIP := m.allow(ctx, m.Rdb.Key("rl:ip:", ip), now, m.Cfg.ByIP)
		w.Header().Set("X-RateLimit-Limit-IP", strconv.Itoa(m.Cfg.ByIP.Burst))
		w.Header().Set("X-RateLimit-Remaining-IP", strconv.FormatInt(leftIP, 10))

		okJWT := true
		sub := SubjectFromContext(ctx)
		if sub == "" && m.Verifier != nil {
			if claims, err := m.Verifier.VerifyBearer(r.Header.Get("Authorization")); err == nil {
				sub = claims.Subject
			}
		}
		if sub != "" {
			var leftJWT int64
			okJWT, leftJWT = m.allow(ctx, m.Rdb.Key("rl:jwt:", sub), now, m.Cfg.ByJWT)
			w.Header().Set("X-RateLimit-Limit-JWT", strconv.Itoa(m.Cfg.ByJWT.Burst))
			w.Header().Set("X-RateLimit-Remaining-JWT", strconv.FormatInt(leftJWT, 10))
		}

		if !(okIP && okJWT) {
			w.Header().Set("Retry-After", strconv.Itoa(m.calculateRetryAfter(okIP, okJWT)))
			_ = httputil.Fail(w, r, httputil.CodeRateLimited, "rate limit exceeded", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Seconds until the slowest exhausted bucket refills one token
func (m *RateLimitMiddleware) calculateRetryAfter(okIP, okJWT bool) int {
	wait := 0.0
	if !okIP && m.Cfg.ByIP.RefillPerSec > 0 {
		wait = math.Max(wait, 1/float64(m.Cfg.ByIP.RefillPerSec))
	}
	if !okJWT && m.Cfg.ByJWT.RefillPerSec > 0 {
		wait = math.Max(wait, 1/float64(m.Cfg.ByJWT.RefillPerSec))
	}

	secs := int(math.Ceil(wait))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// --- redis token-bucket (Lua) for atomic and one query ---
var luaTokenBucket = goredis.NewScript(`
-- KEYS[1] = key
-- ARGV[1] = now_ms
-- ARGV[2] = refill_per_sec (integer)
-- ARGV[3] = burst (integer)
-- ARGV[4] = ttl_seconds
local key   = KEYS[1]
local now   = tonumber(ARGV[1])
local rate  = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local ttl   = tonumber(ARGV[4])

local last_ms = tonumber(redis.call('HGET', key, 'ts') or now)
local tokens  = tonumber(redis.call('HGET', key, 'tok') or burst)

if now > last_ms then
  local delta = (now - last_ms) / 1000.0
  tokens = math.min(burst, tokens + (delta * rate))
end

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HSET', key, 'tok', tokens, 'ts', now)
redis.call('EXPIRE', key, ttl)

return {allowed, math.floor(tokens)}
`)

func (m *RateLimitMiddleware) allow(ctx context.Context, key string, now time.Time, b config.RateBucket) (bool, int64) {
	ttl := int(b.TTL.Seconds())
	if ttl <= 0 {
		ttl = 120
	}

	res, err := luaTokenBucket.Run(ctx, m.Rdb, []string{key},
		now.UnixMilli(),
		b.RefillPerSec,
		b.Burst,
		ttl,
	).Int64Slice()
	if err != nil || len(res) < 2 { // fail-open
		return true, int64(b.Burst)
	}

	return res[0] == 1, res[1]
}

// Client address. With trusted proxies configured, forwarding headers are honored only
// when the peer is trusted and the chain is walked right to left past trusted hops.
// Without them, the leftmost public forwarded address wins.
func extractClientIP(r *http.Request, trusted []string) string {
	remote := remoteAddrIP(r.RemoteAddr)

	if len(trusted) > 0 {
		if !isTrusted(remote, trusted) {
			return remote
		}
		hops := parseXFF(r.Header.Get("X-Forwarded-For"))
		for i := len(hops) - 1; i >= 0; i-- {
			if !isTrusted(hops[i], trusted) {
				return hops[i]
			}
		}
		if xrip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); xrip != nil {
			return xrip.String()
		}
		return remote
	}

	if hops := parseXFF(r.Header.Get("X-Forwarded-For")); len(hops) > 0 {
		for _, h := range hops {
			if isPublicIP(h) {
				return h
			}
		}
		return hops[0]
	}

	if xrip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); xrip != nil {
		return xrip.String()
	}

	return remote
}

func parseXFF(xff string) []string {
	out := make([]string, 0, 4)
	for _, part := range strings.Split(xff, ",") {
		if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
			out = append(out, ip.String())
		}
	}
	return out
}

func remoteAddrIP(addr string) string {
	addr = strings.TrimSpace(addr)

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return "unknown"
}

func isTrusted(ip string, trusted []string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}

	for _, t := range trusted {
		if strings.Contains(t, "/") {
			if _, cidr, err := net.ParseCIDR(t); err == nil && cidr.Contains(parsed) {
				return true
			}
			continue
		}
		if tip := net.ParseIP(t); tip != nil && tip.Equal(parsed) {
			return true
		}
	}
	return false
}

func isPublicIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return !(parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsLinkLocalUnicast() ||
		parsed.IsLinkLocalMulticast() || parsed.IsUnspecified())
}
