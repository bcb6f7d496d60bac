package pipeline

import (
	"ammindex/internal/domain"
	"ammindex/internal/store"
)

const (
	StorePairs    = "pairs"
	StoreTokens   = "tokens"
	StoreReserves = "reserves"
	StorePrices   = "prices"
	StoreTotals   = "totals"
	StoreVolumes  = "volumes"
)

// The only state that survives a block
type Stores struct {
	Pairs    *store.Builder
	Tokens   *store.Builder
	Reserves *store.Builder
	Prices   *store.Builder
	Totals   *store.Builder
	Volumes  *store.Builder
}

func NewStores() *Stores {
	return &Stores{
		Pairs:    store.NewBuilder(StorePairs, store.MergeLastKey),
		Tokens:   store.NewBuilder(StoreTokens, store.MergeLastKey),
		Reserves: store.NewBuilder(StoreReserves, store.MergeLastKey),
		Prices:   store.NewBuilder(StorePrices, store.MergeLastKey),
		Totals:   store.NewBuilder(StoreTotals, store.MergeSumInts),
		Volumes:  store.NewBuilder(StoreVolumes, store.MergeSumFloats),
	}
}

// Dependency order
func (s *Stores) All() []*store.Builder {
	return []*store.Builder{s.Pairs, s.Tokens, s.Reserves, s.Prices, s.Totals, s.Volumes}
}

func (s *Stores) Err() error {
	for _, b := range s.All() {
		if err := b.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stores) Deltas() map[string]domain.StoreDeltas {
	out := make(map[string]domain.StoreDeltas, 6)
	for _, b := range s.All() {
		out[b.Name()] = b.Deltas()
	}
	return out
}

func (s *Stores) Flush() {
	for _, b := range s.All() {
		b.Flush()
	}
}

func (s *Stores) Rollback() {
	for _, b := range s.All() {
		b.Rollback()
	}
}
