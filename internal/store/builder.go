package store

import (
	"ammindex/internal/domain"
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
)

/*
	Versioned key-value store for one block stream.
	Every mutation is tagged with an ordinal and recorded as a delta, so reads
	can be answered as of any ordinal inside the current block.
	Builder is not safe for concurrent use; the processor serialises access.
*/

const (
	KeyTypeLast     = "kl"
	KeyTypeIntSum   = "is"
	KeyTypeFloatSum = "fs"
)

var (
	ErrOrdinalRegression = errors.New("store: ordinal lower than last write")
	ErrKeyTypeMismatch   = errors.New("store: key aggregation type cannot change")
	ErrPendingDeltas     = errors.New("store: block not flushed")
)

type Value struct {
	KeyType string
	Value   []byte
}

// Decode failure of a value the store wrote itself
type CorruptValueError struct {
	Store string
	Key   string
	Value []byte
	Err   error
}

func (e *CorruptValueError) Error() string {
	return fmt.Sprintf("store %s: corrupt value at %q (%q): %v", e.Store, e.Key, e.Value, e.Err)
}

func (e *CorruptValueError) Unwrap() error { return e.Err }

type Builder struct {
	name     string
	strategy MergeStrategy

	kv          map[string]Value
	deltas      domain.StoreDeltas
	deltaTypes  []string // key type before each delta, used by Rollback
	lastOrdinal uint64
	err         error
}

func NewBuilder(name string, strategy MergeStrategy) *Builder {
	return &Builder{
		name:     name,
		strategy: strategy,
		kv:       make(map[string]Value, 1024),
	}
}

func (b *Builder) Name() string { return b.name }

func (b *Builder) Strategy() MergeStrategy { return b.strategy }

func (b *Builder) Len() int { return len(b.kv) }

// First error seen by any write or typed read since the last Flush/Rollback
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Deltas recorded since the last Flush, in write order
func (b *Builder) Deltas() domain.StoreDeltas {
	out := make(domain.StoreDeltas, len(b.deltas))
	copy(out, b.deltas)
	return out
}

func (b *Builder) bumpOrdinal(ord uint64) bool {
	if b.err != nil {
		return false
	}
	if ord < b.lastOrdinal {
		b.fail(fmt.Errorf("%w: store=%s ordinal=%d last=%d", ErrOrdinalRegression, b.name, ord, b.lastOrdinal))
		return false
	}

	b.lastOrdinal = ord
	return true
}

func (b *Builder) GetLast(key string) ([]byte, bool) {
	v, ok := b.kv[key]
	if !ok {
		return nil, false
	}

	return v.Value, true
}

// Value of key as of the latest write with ordinal <= ord
func (b *Builder) GetAt(ord uint64, key string) ([]byte, bool) {
	v, found := b.kv[key]
	val := v.Value

	for i := len(b.deltas) - 1; i >= 0; i-- {
		d := b.deltas[i]
		if d.Ordinal <= ord {
			break
		}
		if d.Key != key {
			continue
		}

		switch d.Operation {
		case domain.DeltaCreate:
			val, found = nil, false
		case domain.DeltaUpdate, domain.DeltaDelete:
			val, found = d.OldValue, true
		}
	}

	return val, found
}

// Value of key as it was when the current block started
func (b *Builder) GetFirst(key string) ([]byte, bool) {
	for _, d := range b.deltas {
		if d.Key != key {
			continue
		}
		if d.Operation == domain.DeltaCreate {
			return nil, false
		}
		return d.OldValue, true
	}

	return b.GetLast(key)
}

func (b *Builder) Has(key string) bool {
	_, ok := b.kv[key]
	return ok
}

func (b *Builder) Set(ord uint64, key string, value []byte) {
	if !b.bumpOrdinal(ord) {
		return
	}
	b.set(ord, key, KeyTypeLast, value)
}

func (b *Builder) SetIfNotExists(ord uint64, key string, value []byte) {
	if !b.bumpOrdinal(ord) {
		return
	}
	if _, ok := b.kv[key]; ok {
		return
	}
	b.set(ord, key, KeyTypeLast, value)
}

func (b *Builder) set(ord uint64, key, keyType string, value []byte) {
	prev, ok := b.kv[key]
	if ok && prev.KeyType != keyType {
		b.fail(fmt.Errorf("%w: store=%s key=%s %s -> %s", ErrKeyTypeMismatch, b.name, key, prev.KeyType, keyType))
		return
	}
	if ok && bytes.Equal(prev.Value, value) {
		return
	}

	stored := append([]byte(nil), value...)
	delta := &domain.StoreDelta{
		Operation: domain.DeltaCreate,
		Ordinal:   ord,
		Key:       key,
		NewValue:  stored,
	}
	if ok {
		delta.Operation = domain.DeltaUpdate
		delta.OldValue = prev.Value
	}

	b.kv[key] = Value{KeyType: keyType, Value: stored}
	b.deltas = append(b.deltas, delta)
	b.deltaTypes = append(b.deltaTypes, prev.KeyType)
}

func (b *Builder) Del(ord uint64, key string) {
	if !b.bumpOrdinal(ord) {
		return
	}
	b.del(ord, key)
}

func (b *Builder) del(ord uint64, key string) {
	prev, ok := b.kv[key]
	if !ok {
		return
	}

	delete(b.kv, key)
	b.deltas = append(b.deltas, &domain.StoreDelta{
		Operation: domain.DeltaDelete,
		Ordinal:   ord,
		Key:       key,
		OldValue:  prev.Value,
	})
	b.deltaTypes = append(b.deltaTypes, prev.KeyType)
}

// Removes every key starting with prefix; keys are deleted in lexical order
func (b *Builder) DeletePrefix(ord uint64, prefix string) {
	if !b.bumpOrdinal(ord) {
		return
	}

	keys := make([]string, 0, 16)
	for key := range b.kv {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		b.del(ord, key)
	}
}

// Ends the block: deltas are dropped and the ordinal guard restarts at zero
func (b *Builder) Flush() {
	b.deltas = nil
	b.deltaTypes = nil
	b.lastOrdinal = 0
	b.err = nil
}

// Undoes every mutation since the last Flush
func (b *Builder) Rollback() {
	for i := len(b.deltas) - 1; i >= 0; i-- {
		d := b.deltas[i]
		switch d.Operation {
		case domain.DeltaCreate:
			delete(b.kv, d.Key)
		case domain.DeltaUpdate, domain.DeltaDelete:
			b.kv[d.Key] = Value{KeyType: b.deltaTypes[i], Value: d.OldValue}
		}
	}

	b.Flush()
}

// Sorted key listing, used by snapshots and tests
func (b *Builder) Keys(prefix string) []string {
	keys := make([]string, 0, len(b.kv))
	for key := range b.kv {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	return keys
}
