package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"attesta/internal/credential/models"
	"attesta/internal/sentinel"
	id "attesta/pkg/domain"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrNotFound when the requested entity does not exist
// - Return sentinel.ErrConflict on serial uniqueness violations
// - Return nil for successful operations

// InMemoryStore stores credentials in memory for tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	byID     map[id.CredentialID]*models.Credential
	bySerial map[string]id.CredentialID
}

// NewMemory constructs an empty in-memory credential store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:     make(map[id.CredentialID]*models.Credential),
		bySerial: make(map[string]id.CredentialID),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, cred *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bySerial[cred.Serial]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byID[cred.ID]; exists {
		return sentinel.ErrConflict
	}
	copyCred := *cred
	s.byID[cred.ID] = &copyCred
	s.bySerial[cred.Serial] = cred.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, credID id.CredentialID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.byID[credID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyCred := *cred
	return &copyCred, nil
}

func (s *InMemoryStore) FindBySerial(_ context.Context, serialStr string) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credID, ok := s.bySerial[serialStr]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyCred := *s.byID[credID]
	return &copyCred, nil
}

func (s *InMemoryStore) ListByHolder(_ context.Context, holderID id.HolderID) ([]*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var creds []*models.Credential
	for _, cred := range s.byID {
		if cred.HolderID == holderID {
			copyCred := *cred
			creds = append(creds, &copyCred)
		}
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].IssueDate.After(creds[j].IssueDate) })
	return creds, nil
}

func (s *InMemoryStore) SetShareable(_ context.Context, credID id.CredentialID, shareable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.byID[credID]
	if !ok || cred.RevokedAt != nil {
		return sentinel.ErrNotFound
	}
	cred.Shareable = shareable
	return nil
}

func (s *InMemoryStore) Revoke(_ context.Context, credID id.CredentialID, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.byID[credID]
	if !ok || cred.RevokedAt != nil {
		return sentinel.ErrNotFound
	}
	at := revokedAt
	cred.RevokedAt = &at
	return nil
}
