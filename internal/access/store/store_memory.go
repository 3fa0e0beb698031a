package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"attesta/internal/access/models"
	"attesta/internal/sentinel"
	id "attesta/pkg/domain"
)

// InMemoryStore stores access requests and grants in memory for tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.RequestID]*models.Request
	grants   map[id.GrantID]*models.Grant
}

// NewMemory constructs an empty in-memory access store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		requests: make(map[id.RequestID]*models.Request),
		grants:   make(map[id.GrantID]*models.Grant),
	}
}

func (s *InMemoryStore) InsertRequest(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyReq := cloneRequest(req)
	s.requests[req.ID] = copyReq
	return nil
}

func (s *InMemoryStore) FindRequest(_ context.Context, reqID id.RequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[reqID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRequest(req), nil
}

func (s *InMemoryStore) FindRequestForUpdate(ctx context.Context, reqID id.RequestID) (*models.Request, error) {
	return s.FindRequest(ctx, reqID)
}

func (s *InMemoryStore) FindPendingByKey(_ context.Context, key models.DedupKey, now time.Time) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.requests {
		if req.DedupKey() == key && req.Decision == nil && !req.ExpiresAt.Before(now) {
			return cloneRequest(req), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) CountRequestsBetween(_ context.Context, requesterID id.RequesterID, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, req := range s.requests {
		if req.RequesterID == requesterID && !req.CreatedAt.Before(from) && req.CreatedAt.Before(to) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) ListRequestsByRequester(_ context.Context, requesterID id.RequesterID) ([]*models.Request, error) {
	return s.listRequests(func(req *models.Request) bool { return req.RequesterID == requesterID })
}

func (s *InMemoryStore) ListRequestsByHolder(_ context.Context, holderID id.HolderID) ([]*models.Request, error) {
	return s.listRequests(func(req *models.Request) bool { return req.HolderID == holderID })
}

func (s *InMemoryStore) listRequests(match func(*models.Request) bool) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var reqs []*models.Request
	for _, req := range s.requests {
		if match(req) {
			reqs = append(reqs, cloneRequest(req))
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.After(reqs[j].CreatedAt) })
	return reqs, nil
}

func (s *InMemoryStore) RecordDecision(_ context.Context, reqID id.RequestID, decision models.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[reqID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if req.Decision != nil {
		return sentinel.ErrConflict
	}
	copyDecision := decision
	req.Decision = &copyDecision
	return nil
}

func (s *InMemoryStore) InsertGrant(_ context.Context, grant *models.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grant.ID] = cloneGrant(grant)
	return nil
}

func (s *InMemoryStore) FindGrant(_ context.Context, grantID id.GrantID) (*models.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grant, ok := s.grants[grantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneGrant(grant), nil
}

func (s *InMemoryStore) RevokeGrant(_ context.Context, grantID id.GrantID, at time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[grantID]
	if !ok || grant.RevokedAt != nil || !at.Before(grant.ExpiresAt) {
		return sentinel.ErrNotFound
	}
	copyAt := at
	grant.RevokedAt = &copyAt
	grant.RevokedReason = reason
	return nil
}

func (s *InMemoryStore) ListGrantsByHolder(_ context.Context, holderID id.HolderID) ([]*models.Grant, error) {
	return s.listGrants(func(grant *models.Grant) bool { return grant.HolderID == holderID })
}

func (s *InMemoryStore) ListGrantsByRequester(_ context.Context, requesterID id.RequesterID) ([]*models.Grant, error) {
	return s.listGrants(func(grant *models.Grant) bool { return grant.RequesterID == requesterID })
}

func (s *InMemoryStore) listGrants(match func(*models.Grant) bool) ([]*models.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var grants []*models.Grant
	for _, grant := range s.grants {
		if match(grant) {
			grants = append(grants, cloneGrant(grant))
		}
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].GrantedAt.After(grants[j].GrantedAt) })
	return grants, nil
}

func (s *InMemoryStore) FindActiveGrant(_ context.Context, requesterID id.RequesterID, holderID id.HolderID, credentialID id.CredentialID, now time.Time) (*models.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *models.Grant
	for _, grant := range s.grants {
		if grant.RequesterID != requesterID || grant.HolderID != holderID {
			continue
		}
		if !grant.ActiveAt(now) || !grant.Covers(credentialID) {
			continue
		}
		if best == nil || grant.GrantedAt.After(best.GrantedAt) {
			best = grant
		}
	}
	if best == nil {
		return nil, sentinel.ErrNotFound
	}
	return cloneGrant(best), nil
}

func cloneRequest(req *models.Request) *models.Request {
	copyReq := *req
	if req.CredentialID != nil {
		cid := *req.CredentialID
		copyReq.CredentialID = &cid
	}
	if req.Decision != nil {
		decision := *req.Decision
		copyReq.Decision = &decision
	}
	return &copyReq
}

func cloneGrant(grant *models.Grant) *models.Grant {
	copyGrant := *grant
	if grant.CredentialID != nil {
		cid := *grant.CredentialID
		copyGrant.CredentialID = &cid
	}
	if grant.RevokedAt != nil {
		at := *grant.RevokedAt
		copyGrant.RevokedAt = &at
	}
	return &copyGrant
}
