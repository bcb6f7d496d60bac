package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
	"gitlab.com/nevasik7/alerting/logger"
)

var ErrNoSnapshot = errors.New("snapshot not found")

const (
	snapshotDataField  = "data"
	snapshotBlockField = "block"
)

// Keeps the latest encoded store snapshot in one hash, so data and block number move together
type SnapshotStore struct {
	log logger.Logger
	rdb *Client
	key string
}

func NewSnapshotStore(log logger.Logger, rdb *Client, instanceID string) (*SnapshotStore, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required to the snapshot store")
	}
	if instanceID == "" {
		instanceID = "default"
	}

	return &SnapshotStore{
		log: log,
		rdb: rdb,
		key: rdb.Key("snapshot:", instanceID),
	}, nil
}

func (s *SnapshotStore) Save(ctx context.Context, block uint64, data []byte) error {
	err := s.rdb.HSet(ctx, s.key,
		snapshotDataField, data,
		snapshotBlockField, strconv.FormatUint(block, 10),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to save snapshot at block %d: %w", block, err)
	}

	s.log.Debugf("Snapshot saved, key=%s block=%d size=%d", s.key, block, len(data))
	return nil
}

func (s *SnapshotStore) Load(ctx context.Context) (uint64, []byte, error) {
	vals, err := s.rdb.HMGet(ctx, s.key, snapshotDataField, snapshotBlockField).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil, ErrNoSnapshot
		}
		return 0, nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	data, ok1 := vals[0].(string)
	blockStr, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return 0, nil, ErrNoSnapshot
	}

	block, err := strconv.ParseUint(blockStr, 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("corrupt snapshot block %q: %w", blockStr, err)
	}

	return block, []byte(data), nil
}
