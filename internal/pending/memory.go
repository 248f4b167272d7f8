package pending

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store for tests and single-node development.
// Expiry is enforced on claim; there is no background sweeper.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

type memoryEntry struct {
	params    Params
	expiresAt time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Memory{ttl: ttl, entries: map[string]memoryEntry{}, clock: time.Now}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Put(ctx context.Context, key string, p Params) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{params: p, expiresAt: m.clock().Add(m.ttl)}
	return nil
}

func (m *Memory) Claim(ctx context.Context, key string) (Params, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Params{}, false, nil
	}
	delete(m.entries, key)
	if m.clock().After(e.expiresAt) {
		return Params{}, false, nil
	}
	return e.params, true, nil
}
