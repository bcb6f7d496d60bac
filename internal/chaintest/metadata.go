package chaintest

import (
	"ammindex/internal/domain"
	"context"
	"errors"
	"sync"
)

var ErrNotAToken = errors.New("not a token")

// Static token metadata source; unknown addresses fail like a contract without ERC20 methods
type Metadata struct {
	mu         sync.Mutex
	tokens     map[string]*domain.Token
	prefetched [][]string
}

func NewMetadata(tokens ...*domain.Token) *Metadata {
	m := &Metadata{tokens: make(map[string]*domain.Token, len(tokens))}
	for _, t := range tokens {
		m.tokens[t.Address] = t
	}
	return m
}

func (m *Metadata) PrefetchCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefetched
}

func (m *Metadata) Prefetch(_ context.Context, addresses []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefetched = append(m.prefetched, addresses)
	return nil
}

func (m *Metadata) TokenMetadata(_ context.Context, address string) (*domain.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[address]
	if !ok {
		return nil, ErrNotAToken
	}
	return t, nil
}
