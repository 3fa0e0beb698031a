package notify

import (
	"context"
	"sync"
	"time"
)

// InMemoryOutbox stores notifications in memory for tests.
type InMemoryOutbox struct {
	mu      sync.Mutex
	entries []*Notification
}

// NewInMemoryOutbox constructs an empty in-memory outbox.
func NewInMemoryOutbox() *InMemoryOutbox {
	return &InMemoryOutbox{}
}

func (s *InMemoryOutbox) Enqueue(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyN := *n
	s.entries = append(s.entries, &copyN)
	return nil
}

func (s *InMemoryOutbox) FetchUnprocessed(_ context.Context, limit int) ([]*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Notification
	for _, n := range s.entries {
		if n.ProcessedAt != nil {
			continue
		}
		copyN := *n
		out = append(out, &copyN)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryOutbox) MarkProcessed(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	marked := make(map[string]bool, len(ids))
	for _, notifID := range ids {
		marked[notifID] = true
	}
	for _, n := range s.entries {
		if marked[n.ID.String()] && n.ProcessedAt == nil {
			at := now
			n.ProcessedAt = &at
		}
	}
	return nil
}

// All returns every stored notification, for test assertions.
func (s *InMemoryOutbox) All() []*Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Notification, 0, len(s.entries))
	for _, n := range s.entries {
		copyN := *n
		out = append(out, &copyN)
	}
	return out
}
