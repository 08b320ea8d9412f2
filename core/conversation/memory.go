package conversation

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu       sync.Mutex
	contexts map[ID]*Context
}

// NewMemoryStore constructs an in-memory Store implementation for tests
// and development.
func NewMemoryStore() Store {
	return &memoryStore{contexts: make(map[ID]*Context)}
}

// Update runs fn with exclusive access to the context for id, creating
// it on first use. Mutations performed by fn are retained even when fn
// returns an error, matching best-effort scratch semantics.
func (m *memoryStore) Update(_ context.Context, id ID, fn func(*Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contexts[id]
	if !ok {
		c = &Context{ID: id}
		m.contexts[id] = c
	}
	return fn(c)
}

// View runs fn against a snapshot of the stored context.
func (m *memoryStore) View(_ context.Context, id ID, fn func(*Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contexts[id]
	if !ok {
		return fn(&Context{ID: id})
	}
	snapshot := &Context{ID: c.ID, Active: c.Active}
	if c.Data != nil {
		snapshot.Data = make(map[string]any, len(c.Data))
		for k, v := range c.Data {
			snapshot.Data[k] = v
		}
	}
	return fn(snapshot)
}
