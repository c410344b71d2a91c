package storage

import (
	"context"
	"sync"
)

// MemoryCheckpoint is an in-process Checkpoint, used by tests and dry runs.
type MemoryCheckpoint struct {
	mu     sync.Mutex
	value  string
	writes int
}

// NewMemoryCheckpoint returns a checkpoint seeded with initial (empty means absent).
func NewMemoryCheckpoint(initial string) *MemoryCheckpoint {
	return &MemoryCheckpoint{value: initial}
}

func (m *MemoryCheckpoint) Read(context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, m.value != "", nil
}

func (m *MemoryCheckpoint) Write(_ context.Context, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
	m.writes++
	return nil
}

// Writes reports how many times Write was called.
func (m *MemoryCheckpoint) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MemoryCheckpoint) Close() error { return nil }
