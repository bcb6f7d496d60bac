package chaintest

import "ammindex/internal/domain"

// In-memory pairs/tokens view that ignores ordinals
type Lookup struct {
	Pairs  map[string]*domain.Pair
	Tokens map[string]*domain.Token
}

func NewLookup() *Lookup {
	return &Lookup{
		Pairs:  make(map[string]*domain.Pair),
		Tokens: make(map[string]*domain.Token),
	}
}

func (l *Lookup) AddPair(p *domain.Pair) *Lookup {
	l.Pairs[p.Address] = p
	return l
}

func (l *Lookup) AddToken(address string, symbol string, decimals uint32) *Lookup {
	l.Tokens[address] = &domain.Token{Address: address, Name: symbol, Symbol: symbol, Decimals: decimals}
	return l
}

func (l *Lookup) PairAt(_ uint64, address string) (*domain.Pair, bool) {
	p, ok := l.Pairs[address]
	return p, ok
}

func (l *Lookup) TokenAt(_ uint64, address string) (*domain.Token, bool) {
	t, ok := l.Tokens[address]
	return t, ok
}

func (l *Lookup) PairFor(_ uint64, tokenA, tokenB string) (string, bool) {
	for addr, p := range l.Pairs {
		if (p.Token0Address == tokenA && p.Token1Address == tokenB) ||
			(p.Token0Address == tokenB && p.Token1Address == tokenA) {
			return addr, true
		}
	}
	return "", false
}
