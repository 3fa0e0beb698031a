package store

import (
	"context"
	"sync"

	"attesta/internal/verification/models"
	id "attesta/pkg/domain"
)

// InMemoryStore stores verification events in memory for tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []*models.Event
}

// NewMemory constructs an empty in-memory verification event store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyEvent := *event
	s.events = append(s.events, &copyEvent)
	return nil
}

func (s *InMemoryStore) ListByCredential(_ context.Context, credID id.CredentialID) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].CredentialID == credID {
			copyEvent := *s.events[i]
			out = append(out, &copyEvent)
		}
	}
	return out, nil
}

// All returns every recorded event, for test assertions.
func (s *InMemoryStore) All() []*models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Event, 0, len(s.events))
	for _, event := range s.events {
		copyEvent := *event
		out = append(out, &copyEvent)
	}
	return out
}
