package store

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"time"
)

// 2 added LastTime
const snapshotVersion = 2

// Last block folded into the stores
type Cursor struct {
	Block     uint64
	Timestamp int64
}

// Serializable image of a set of stores between blocks, used for a warm start
type Snapshot struct {
	Version   int
	TakenAt   time.Time
	LastBlock uint64
	LastTime  int64
	Stores    map[string]snapshotStore
}

type snapshotStore struct {
	Strategy MergeStrategy
	KV       map[string]Value
}

// Builders must be flushed; pending in-block deltas are not snapshotted
func MarshalSnapshot(last Cursor, builders ...*Builder) ([]byte, error) {
	snap := Snapshot{
		Version:   snapshotVersion,
		TakenAt:   time.Now().UTC(),
		LastBlock: last.Block,
		LastTime:  last.Timestamp,
		Stores:    make(map[string]snapshotStore, len(builders)),
	}

	for _, b := range builders {
		if b == nil {
			continue
		}
		if len(b.deltas) > 0 {
			return nil, fmt.Errorf("%w: %s has %d deltas", ErrPendingDeltas, b.name, len(b.deltas))
		}

		kv := make(map[string]Value, len(b.kv))
		for key, v := range b.kv {
			kv[key] = v
		}
		snap.Stores[b.name] = snapshotStore{Strategy: b.strategy, KV: kv}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return buf.Bytes(), nil
}

// Replaces the state of every named builder found in the snapshot; returns the last block folded in
func UnmarshalSnapshot(data []byte, builders ...*Builder) (Cursor, error) {
	if len(data) == 0 {
		return Cursor{}, errors.New("empty snapshot data")
	}

	var snap Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return Cursor{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return Cursor{}, fmt.Errorf("unsupported snapshot version: %d", snap.Version)
	}

	for _, b := range builders {
		s, ok := snap.Stores[b.name]
		if !ok {
			continue
		}
		if s.Strategy != b.strategy {
			return Cursor{}, fmt.Errorf("%w: snapshot %s is %s, store is %s", ErrIncompatibleMerge, b.name, s.Strategy, b.strategy)
		}

		b.kv = make(map[string]Value, len(s.KV))
		for key, v := range s.KV {
			b.kv[key] = v
		}
		b.Flush()
	}

	return Cursor{Block: snap.LastBlock, Timestamp: snap.LastTime}, nil
}
