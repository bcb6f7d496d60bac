package dedupe

import (
	"context"
	"sync"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

var _ Deduper = (*MemoryDedupe)(nil)

type MemoryDedupe struct {
	log     logger.Logger
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	items   map[string]time.Time // id -> expiry
	stopCh  chan struct{}
	stopped bool
}

// Single-instance deduper for dev and tests;
// janitorEvery=0 disables the background sweep of expired ids
func NewInMemoryDedupe(log logger.Logger, ttl, janitorEvery time.Duration) *MemoryDedupe {
	m := &MemoryDedupe{
		log:    log,
		ttl:    ttl,
		now:    time.Now,
		items:  make(map[string]time.Time, 1024),
		stopCh: make(chan struct{}),
	}

	if janitorEvery > 0 {
		go m.janitor(janitorEvery)
	}

	return m
}

func (m *MemoryDedupe) Seen(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.items[id]
	return ok && (m.ttl <= 0 || exp.After(m.now())), nil
}

func (m *MemoryDedupe) MarkSeen(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[id] = m.now().Add(m.ttl)
	m.log.Debugf("Marked block %s as seen", id)
	return nil
}

func (m *MemoryDedupe) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *MemoryDedupe) sweep() {
	if m.ttl <= 0 {
		return
	}

	now := m.now()
	m.mu.Lock()
	for k, exp := range m.items {
		if !exp.After(now) {
			delete(m.items, k)
		}
	}
	m.mu.Unlock()
}

func (m *MemoryDedupe) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			m.sweep()
		}
	}
}

// Stops the janitor, if running
func (m *MemoryDedupe) Close() {
	m.mu.Lock()
	if !m.stopped {
		close(m.stopCh)
		m.stopped = true
	}
	m.mu.Unlock()
}
