package redis

import (
	"ammindex/internal/config"
	"ammindex/internal/dedupe"
	rdb "ammindex/internal/stores/redis"
	"context"
	"errors"
	"fmt"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

var _ dedupe.Deduper = (*RedisDedupe)(nil)

// Cluster-wide block dedupe: one key per committed block with TTL
type RedisDedupe struct {
	log    logger.Logger
	rdb    *rdb.Client
	ttl    time.Duration
	prefix string
	bloom  *Bloom // optional
}

func NewRedisDeduper(log logger.Logger, cfg *config.DedupeConfig, rdb *rdb.Client, bloom *Bloom) (*RedisDedupe, error) {
	if cfg == nil {
		return nil, errors.New("config is required to the redis deduper")
	}
	if rdb == nil {
		return nil, errors.New("redis client is required to the redis deduper")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = rdb.Key("dedupe:block:")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &RedisDedupe{
		log:    log,
		rdb:    rdb,
		ttl:    ttl,
		prefix: prefix,
		bloom:  bloom,
	}, nil
}

func (d *RedisDedupe) Seen(ctx context.Context, id string) (bool, error) {
	if d.bloom != nil {
		maybe, err := d.bloom.Exists(ctx, id)
		if err == nil && !maybe {
			return false, nil
		}
		if err != nil {
			d.log.Debugf("Bloom check failed for %s, falling back to key: %v", id, err)
		}
	}

	n, err := d.rdb.Exists(ctx, d.prefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("redis EXISTS %s: %w", id, err)
	}
	return n > 0, nil
}

func (d *RedisDedupe) MarkSeen(ctx context.Context, id string) error {
	if err := d.rdb.Set(ctx, d.prefix+id, 1, d.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", id, err)
	}

	if d.bloom != nil {
		if err := d.bloom.Add(ctx, id); err != nil {
			d.log.Warnf("Failed to add block %s to bloom: %v", id, err)
		}
	}
	return nil
}

func (d *RedisDedupe) Health(ctx context.Context) error {
	return d.rdb.Health(ctx)
}
