package store

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

type MergeStrategy string

const (
	MergeLastKey   MergeStrategy = "LAST_KEY"
	MergeSumInts   MergeStrategy = "SUM_INTS"
	MergeSumFloats MergeStrategy = "SUM_FLOATS"
	MergeMinInt    MergeStrategy = "MIN_INT"
	MergeMinFloat  MergeStrategy = "MIN_FLOAT"
)

var ErrIncompatibleMerge = errors.New("store: incompatible merge strategies")

// Folds a store built over a later segment into b
func (b *Builder) Merge(next *Builder) error {
	if next == nil {
		return nil
	}
	if b.strategy != next.strategy {
		return fmt.Errorf("%w: %s <- %s", ErrIncompatibleMerge, b.strategy, next.strategy)
	}

	for key, nv := range next.kv {
		pv, ok := b.kv[key]
		if !ok || b.strategy == MergeLastKey {
			b.kv[key] = Value{KeyType: nv.KeyType, Value: append([]byte(nil), nv.Value...)}
			continue
		}

		merged, err := mergeValues(b.strategy, pv.Value, nv.Value)
		if err != nil {
			return &CorruptValueError{Store: b.name, Key: key, Value: nv.Value, Err: err}
		}
		b.kv[key] = Value{KeyType: pv.KeyType, Value: merged}
	}

	return nil
}

func mergeValues(strategy MergeStrategy, prev, next []byte) ([]byte, error) {
	switch strategy {
	case MergeSumInts, MergeMinInt:
		a, err := strconv.ParseInt(string(prev), 10, 64)
		if err != nil {
			return nil, err
		}
		c, err := strconv.ParseInt(string(next), 10, 64)
		if err != nil {
			return nil, err
		}

		out := a + c
		if strategy == MergeMinInt {
			out = min(a, c)
		}
		return []byte(strconv.FormatInt(out, 10)), nil

	case MergeSumFloats, MergeMinFloat:
		a, err := decimal.NewFromString(string(prev))
		if err != nil {
			return nil, err
		}
		c, err := decimal.NewFromString(string(next))
		if err != nil {
			return nil, err
		}

		out := a.Add(c)
		if strategy == MergeMinFloat {
			out = decimal.Min(a, c)
		}
		return []byte(out.String()), nil
	}

	return nil, fmt.Errorf("unknown merge strategy %q", strategy)
}
