package memtier

import (
	"sync"

	"github.com/jrsteele09/go-attendance-console/session"
)

var _ session.Tier = (*InMemoryTier)(nil)

// InMemoryTier is the session-scoped tier: it lives as long as the console process
type InMemoryTier struct {
	mu     sync.RWMutex
	values map[string]string
}

// New creates an empty in-memory tier
func New() *InMemoryTier {
	return &InMemoryTier{
		values: make(map[string]string),
	}
}

// Get returns the stored values for keys
func (t *InMemoryTier) Get(keys ...string) (map[string]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	found := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := t.values[k]; ok {
			found[k] = v
		}
	}
	return found, nil
}

// Put stores all values under one lock
func (t *InMemoryTier) Put(values map[string]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for k, v := range values {
		t.values[k] = v
	}
	return nil
}

// Delete removes the keys
func (t *InMemoryTier) Delete(keys ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, k := range keys {
		delete(t.values, k)
	}
	return nil
}
