package mw

import (
	"ammindex/internal/config"
	"ammindex/internal/security"
	"ammindex/internal/stores/redis"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

// ========== Test Helpers ==========

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := &redis.Client{
		Client: goredis.NewClient(&goredis.Options{
			Addr: mr.Addr(),
		}),
		Prefix: "ammindex:",
	}

	return mr, client
}

func bucketConfig(ipBurst, jwtBurst int) *config.RateLimitConfig {
	return &config.RateLimitConfig{
		Enabled: true,
		ByIP:    config.RateBucket{RefillPerSec: 1, Burst: ipBurst, TTL: time.Minute},
		ByJWT:   config.RateBucket{RefillPerSec: 1, Burst: jwtBurst, TTL: time.Minute},
	}
}

func serve(h http.Handler, remote, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/overview", nil)
	req.RemoteAddr = remote
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ========== Constructor ==========

func TestNewRateLimit(t *testing.T) {
	_, rdb := setupTestRedis(t)

	assert.Panics(t, func() { NewRateLimit(nil, rdb, nil) })
	assert.Panics(t, func() { NewRateLimit(bucketConfig(1, 1), nil, nil) })

	cfg := &config.RateLimitConfig{}
	m := NewRateLimit(cfg, rdb, nil)
	assert.Equal(t, 2*time.Minute, m.Cfg.ByIP.TTL)
	assert.Equal(t, 2*time.Minute, m.Cfg.ByJWT.TTL)
	assert.Nil(t, m.Verifier)
}

// ========== Handler ==========

func TestRateLimit_IPBucket(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	called := false
	h := NewRateLimit(bucketConfig(3, 100), rdb, nil).Handler(okHandler(&called))

	for i := 0; i < 3; i++ {
		rec := serve(h, "192.168.1.100:12345", "")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit-IP"))
	}

	rec := serve(h, "192.168.1.100:12345", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining-IP"))
	assert.Contains(t, rec.Body.String(), `"code":"rate_limited"`)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit-JWT"))

	// another client has its own bucket
	assert.Equal(t, http.StatusOK, serve(h, "192.168.1.101:12345", "").Code)

	assert.True(t, mr.Exists("ammindex:rl:ip:192.168.1.100"))
}

func TestRateLimit_JWTBucket(t *testing.T) {
	_, rdb := setupTestRedis(t)
	privKey, pubKey := generateTestKeys(t)
	verifier := &security.RS256Verifier{PubKey: pubKey, Aud: "test-aud", Iss: "test-iss"}

	called := false
	h := NewRateLimit(bucketConfig(100, 2), rdb, verifier).Handler(okHandler(&called))

	alice := "Bearer " + createTestToken(t, privKey, "alice", "test-aud", "test-iss", time.Hour)
	bob := "Bearer " + createTestToken(t, privKey, "bob", "test-aud", "test-iss", time.Hour)

	// the subject bucket follows the user across addresses
	rec := serve(h, "10.0.0.1:1", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit-JWT"))
	require.Equal(t, http.StatusOK, serve(h, "10.0.0.2:1", alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "10.0.0.3:1", alice).Code)

	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.3:1", bob).Code)
}

func TestRateLimit_BothLimitsApply(t *testing.T) {
	_, rdb := setupTestRedis(t)
	privKey, pubKey := generateTestKeys(t)
	verifier := &security.RS256Verifier{PubKey: pubKey, Aud: "test-aud", Iss: "test-iss"}

	called := false
	h := NewRateLimit(bucketConfig(1, 100), rdb, verifier).Handler(okHandler(&called))
	token := "Bearer " + createTestToken(t, privKey, "user123", "test-aud", "test-iss", time.Hour)

	assert.Equal(t, http.StatusOK, serve(h, "192.168.1.100:12345", token).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "192.168.1.100:12345", token).Code)
}

func TestRateLimit_RedisFailureFailsOpen(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	called := false
	h := NewRateLimit(bucketConfig(1, 1), rdb, nil).Handler(okHandler(&called))

	mr.Close()

	rec := serve(h, "192.168.1.100:12345", "")
	assert.True(t, called, "should allow request when Redis fails")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCalculateRetryAfter(t *testing.T) {
	_, rdb := setupTestRedis(t)

	cfg := &config.RateLimitConfig{
		ByIP:  config.RateBucket{RefillPerSec: 10, Burst: 10},
		ByJWT: config.RateBucket{RefillPerSec: 0, Burst: 10},
	}
	m := NewRateLimit(cfg, rdb, nil)

	assert.Equal(t, 1, m.calculateRetryAfter(false, true))
	assert.Equal(t, 1, m.calculateRetryAfter(true, false))

	m.Cfg.ByIP.RefillPerSec = 0
	m.Cfg.ByJWT.RefillPerSec = 1
	assert.Equal(t, 1, m.calculateRetryAfter(false, false))
}

// ========== Client IP ==========

func TestExtractClientIP(t *testing.T) {
	testCases := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trusted    []string
		expectedIP string
	}{
		{"remote_addr", "192.168.1.100:12345", nil, nil, "192.168.1.100"},
		{"xff_leftmost_public", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "10.1.1.1, 203.0.113.1, 203.0.113.2"}, nil, "203.0.113.1"},
		{"xff_all_private", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "192.168.1.1, 10.0.0.2"}, nil, "192.168.1.1"},
		{"x_real_ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "203.0.113.50"}, nil, "203.0.113.50"},
		{"invalid_remote", "invalid", nil, nil, "unknown"},
		{"untrusted_peer_ignores_headers", "198.51.100.7:1", map[string]string{"X-Forwarded-For": "203.0.113.1"}, []string{"10.0.0.0/8"}, "198.51.100.7"},
		{"trusted_chain_walked_from_right", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.9, 10.0.0.5"}, []string{"10.0.0.0/8"}, "203.0.113.9"},
		{"all_hops_trusted", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "10.0.0.5"}, []string{"10.0.0.0/8"}, "10.0.0.1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tc.expectedIP, extractClientIP(req, tc.trusted))
		})
	}
}

func TestIPHelpers(t *testing.T) {
	assert.True(t, isTrusted("192.168.1.50", []string{"192.168.1.0/24"}))
	assert.True(t, isTrusted("10.0.0.1", []string{"10.0.0.1"}))
	assert.False(t, isTrusted("192.168.2.50", []string{"192.168.1.0/24"}))
	assert.False(t, isTrusted("invalid", []string{"192.168.1.0/24"}))

	assert.True(t, isPublicIP("8.8.8.8"))
	assert.False(t, isPublicIP("172.16.0.1"))
	assert.False(t, isPublicIP("127.0.0.1"))
	assert.False(t, isPublicIP("169.254.1.1"))
	assert.False(t, isPublicIP("invalid"))

	assert.Equal(t, []string{"192.168.1.1", "10.0.0.1"}, parseXFF("  192.168.1.1 , invalid,  10.0.0.1 "))
	assert.Equal(t, []string{}, parseXFF(""))

	assert.Equal(t, "2001:db8::1", remoteAddrIP("[2001:db8::1]:8080"))
	assert.Equal(t, "192.168.1.1", remoteAddrIP("  192.168.1.1:12345  "))
	assert.Equal(t, "192.168.1.1", remoteAddrIP("192.168.1.1"))
}
