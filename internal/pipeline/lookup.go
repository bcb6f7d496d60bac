package pipeline

import (
	"ammindex/internal/domain"
	"ammindex/internal/store"
	"encoding/json"
)

// Point-in-time pair/token reads decoding the JSON the processor stored.
// A decode failure is sticky and aborts the block.
type storeLookup struct {
	pairs  *store.Builder
	tokens *store.Builder
	err    error
}

func (l *storeLookup) PairAt(ord uint64, address string) (*domain.Pair, bool) {
	var p domain.Pair
	if !l.decode(l.pairs, ord, domain.PairKey(address), &p) {
		return nil, false
	}
	return &p, true
}

func (l *storeLookup) TokenAt(ord uint64, address string) (*domain.Token, bool) {
	var t domain.Token
	if !l.decode(l.tokens, ord, domain.TokenKey(address), &t) {
		return nil, false
	}
	return &t, true
}

func (l *storeLookup) PairFor(ord uint64, tokenA, tokenB string) (string, bool) {
	raw, ok := l.pairs.GetAt(ord, domain.TokensKey(tokenA, tokenB))
	if !ok {
		return "", false
	}
	return string(raw), true
}

func (l *storeLookup) decode(b *store.Builder, ord uint64, key string, v any) bool {
	raw, ok := b.GetAt(ord, key)
	if !ok {
		return false
	}

	if err := json.Unmarshal(raw, v); err != nil {
		if l.err == nil {
			l.err = &store.CorruptValueError{Store: b.Name(), Key: key, Value: raw, Err: err}
		}
		return false
	}
	return true
}
