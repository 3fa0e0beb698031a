package store

import (
	"context"
	"sync"

	"attesta/internal/serial"
)

// Error Contract:
// - Increment never fails in memory; the mutex stands in for the row lock

// InMemoryStore is a mutex-guarded counter for tests. It provides the same
// serialization guarantee as the database row lock: strictly increasing,
// never-reused values.
type InMemoryStore struct {
	mu           sync.Mutex
	lastSequence int64
}

// NewMemory constructs an in-memory counter starting at zero.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{}
}

// NewMemoryAt constructs an in-memory counter with a preset last value.
func NewMemoryAt(last int64) *InMemoryStore {
	return &InMemoryStore{lastSequence: last}
}

func (s *InMemoryStore) Increment(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSequence++
	return s.lastSequence, nil
}

// MemoryTx satisfies serial.CounterTx without real transaction semantics;
// rollback of an increment is not simulated.
type MemoryTx struct {
	Store *InMemoryStore
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context, counters serial.CounterStore) error) error {
	return fn(ctx, t.Store)
}
