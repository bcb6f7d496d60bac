package redis

import (
	"ammindex/internal/config"
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gitlab.com/nevasik7/alerting/logger"
)

// Shared by the deduper, the snapshot store and the API rate limiter
type Client struct {
	*goredis.Client
	Prefix string
}

func New(ctx context.Context, log logger.Logger, cfg *config.RedisConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required to the redis client")
	}
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed ping redis %s: %w", cfg.Addr, err)
	}
	log.Debugf("Redis connected, addr=%s db=%d", cfg.Addr, cfg.DB)

	return &Client{Client: rdb, Prefix: cfg.Prefix}, nil
}

// Namespaced key
func (c *Client) Key(parts ...string) string {
	k := c.Prefix
	for _, p := range parts {
		k += p
	}
	return k
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
