package redis

import (
	"ammindex/internal/config"
	rdb "ammindex/internal/stores/redis"
	"context"
	"errors"
	"fmt"
)

/*
	RedisBloom prefilter in front of the per-block keys.
	Most deliveries are new blocks, and "definitely not seen" from the filter
	answers them without touching the key space. "Probably seen" is always
	confirmed with the exact key: a false positive must never drop a block.
*/

type Bloom struct {
	rdb      *rdb.Client
	Key      string
	Capacity int64
	ErrRate  float64
}

func NewBloom(cfg *config.BloomConfig, rdb *rdb.Client) (*Bloom, error) {
	if cfg == nil {
		return nil, errors.New("bloom config is required to the bloom")
	}
	if rdb == nil {
		return nil, errors.New("redis client is required to the bloom")
	}

	key := cfg.Key
	if key == "" {
		key = rdb.Key("dedupe:bf:blocks")
	}

	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 10_000_000
	}

	errRate := cfg.ErrRate
	if errRate <= 0 {
		errRate = 0.001
	}

	return &Bloom{
		rdb:      rdb,
		Key:      key,
		Capacity: capacity,
		ErrRate:  errRate,
	}, nil
}

// Creates the filter if missing; safe to call repeatedly
func (b *Bloom) Ensure(ctx context.Context) error {
	exists, err := b.rdb.Exists(ctx, b.Key).Result()
	if err != nil {
		return fmt.Errorf("failed to check bloom key: %w", err)
	}
	if exists > 0 {
		return nil
	}

	if err = b.rdb.Do(ctx, "BF.RESERVE", b.Key, b.ErrRate, b.Capacity).Err(); err != nil {
		return fmt.Errorf("BF.RESERVE failed: %w", err)
	}
	return nil
}

func (b *Bloom) Add(ctx context.Context, item string) error {
	if err := b.rdb.Do(ctx, "BF.ADD", b.Key, item).Err(); err != nil {
		return fmt.Errorf("failed to add item to bloom: %w", err)
	}
	return nil
}

// true means "probably seen"
func (b *Bloom) Exists(ctx context.Context, item string) (bool, error) {
	v, err := b.rdb.Do(ctx, "BF.EXISTS", b.Key, item).Int()
	if err != nil {
		return false, fmt.Errorf("failed to check item in bloom: %w", err)
	}
	return v == 1, nil
}
