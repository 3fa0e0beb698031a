package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"attesta/internal/access/models"
	"attesta/internal/audit"
	"attesta/internal/notify"
	"attesta/internal/platform/metrics"
	"attesta/internal/sentinel"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
)

//go:generate mockgen -destination=mocks/store_mock.go -package=mocks attesta/internal/access/service Store

// Store defines the persistence interface for access requests and grants.
// Error Contract:
// - Find* methods return sentinel.ErrNotFound when no record matches
// - RecordDecision returns sentinel.ErrConflict when the request is already
//   decided
// - RevokeGrant returns sentinel.ErrNotFound when the grant is missing or no
//   longer active
type Store interface {
	InsertRequest(ctx context.Context, req *models.Request) error
	FindRequest(ctx context.Context, reqID id.RequestID) (*models.Request, error)
	FindRequestForUpdate(ctx context.Context, reqID id.RequestID) (*models.Request, error)
	FindPendingByKey(ctx context.Context, key models.DedupKey, now time.Time) (*models.Request, error)
	CountRequestsBetween(ctx context.Context, requesterID id.RequesterID, from, to time.Time) (int, error)
	ListRequestsByRequester(ctx context.Context, requesterID id.RequesterID) ([]*models.Request, error)
	ListRequestsByHolder(ctx context.Context, holderID id.HolderID) ([]*models.Request, error)
	RecordDecision(ctx context.Context, reqID id.RequestID, decision models.Decision) error
	InsertGrant(ctx context.Context, grant *models.Grant) error
	FindGrant(ctx context.Context, grantID id.GrantID) (*models.Grant, error)
	RevokeGrant(ctx context.Context, grantID id.GrantID, at time.Time, reason string) error
	ListGrantsByHolder(ctx context.Context, holderID id.HolderID) ([]*models.Grant, error)
	ListGrantsByRequester(ctx context.Context, requesterID id.RequesterID) ([]*models.Grant, error)
	FindActiveGrant(ctx context.Context, requesterID id.RequesterID, holderID id.HolderID, credentialID id.CredentialID, now time.Time) (*models.Grant, error)
}

// TxStores bundles the stores participating in one access transaction. A
// decision and its outbox notification commit or roll back together.
type TxStores struct {
	Access Store
	Outbox notify.OutboxStore
}

// StoreTx provides the transactional boundary for request and grant writes.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error
}

// Policy carries the consent-lifecycle knobs.
type Policy struct {
	// RequestTTL is how long a request stays decidable.
	RequestTTL time.Duration
	// GrantTTLAll / GrantTTLSingle set the visibility window by scope,
	// measured from the decision.
	GrantTTLAll    time.Duration
	GrantTTLSingle time.Duration
	// DailyCap bounds requests per requester per calendar day (UTC). It is
	// advisory: concurrent submissions may briefly overshoot.
	DailyCap int
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		RequestTTL:     7 * 24 * time.Hour,
		GrantTTLAll:    30 * 24 * time.Hour,
		GrantTTLSingle: 7 * 24 * time.Hour,
		DailyCap:       10,
	}
}

// Service runs the consent lifecycle: verifiers petition, holders decide,
// grants open and close visibility windows.
type Service struct {
	tx      StoreTx
	store   Store
	auditor *audit.Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
	policy  Policy
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithPolicy overrides the lifecycle policy.
func WithPolicy(p Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func NewService(tx StoreTx, store Store, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		tx:      tx,
		store:   store,
		auditor: auditor,
		logger:  logger,
		clock:   time.Now,
		policy:  DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateInput carries the verifier's petition.
type CreateInput struct {
	HolderID     id.HolderID
	Scope        models.Scope
	CredentialID *id.CredentialID
	Purpose      models.Purpose
	Reason       string
}

// Create submits an access request. Duplicate pending requests and requests
// over the daily cap are refused.
func (s *Service) Create(ctx context.Context, requesterID id.RequesterID, in CreateInput) (*models.Request, error) {
	now := s.clock()
	req, err := models.NewRequest(id.NewRequestID(), requesterID, in.HolderID, in.Scope, in.CredentialID, in.Purpose, in.Reason, now, s.policy.RequestTTL)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores TxStores) error {
		dayStart := now.UTC().Truncate(24 * time.Hour)
		count, err := stores.Access.CountRequestsBetween(ctx, requesterID, dayStart, dayStart.Add(24*time.Hour))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count requests")
		}
		if count >= s.policy.DailyCap {
			if s.metrics != nil {
				s.metrics.RateLimitRejections.Inc()
			}
			return dErrors.New(dErrors.CodeRateLimited, "daily request limit reached")
		}

		if _, err := stores.Access.FindPendingByKey(ctx, req.DedupKey(), now); err == nil {
			return dErrors.New(dErrors.CodeConflict, "an identical request is already pending")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check pending requests")
		}

		if err := stores.Access.InsertRequest(ctx, req); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist request")
		}
		return s.enqueue(ctx, stores.Outbox, notify.EventRequestCreated, req.HolderID.String(), requestPayload(req), now)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AccessRequestsCreated.WithLabelValues(string(req.Scope)).Inc()
	}
	s.emitAudit(ctx, audit.Event{
		ActorID:   requesterID.String(),
		Action:    audit.ActionRequestCreated,
		SubjectID: req.HolderID.String(),
	})
	return req, nil
}

// Decide records the holder's verdict. Approval atomically opens a grant
// whose window starts at the decision, not at submission.
func (s *Service) Decide(ctx context.Context, reqID id.RequestID, holderID id.HolderID, approve bool, reason string) (*models.Request, *models.Grant, error) {
	if holderID.IsNil() {
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "missing holder context")
	}

	now := s.clock()
	var req *models.Request
	var grant *models.Grant
	err := s.tx.RunInTx(ctx, func(ctx context.Context, stores TxStores) error {
		var err error
		req, err = stores.Access.FindRequestForUpdate(ctx, reqID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "access request not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read request")
		}
		if req.HolderID != holderID {
			return dErrors.New(dErrors.CodeForbidden, "request addresses another holder")
		}
		switch req.StatusAt(now) {
		case models.StatusPending:
		case models.StatusExpired:
			return dErrors.New(dErrors.CodeConflict, "request has expired")
		default:
			return dErrors.New(dErrors.CodeConflict, "request already decided")
		}

		decision := models.Decision{Approved: approve, At: now, Reason: reason}
		if err := stores.Access.RecordDecision(ctx, reqID, decision); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "request already decided")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record decision")
		}
		req.Decision = &decision

		if !approve {
			return s.enqueue(ctx, stores.Outbox, notify.EventRequestRejected, req.RequesterID.String(), requestPayload(req), now)
		}

		grant = &models.Grant{
			ID:           id.NewGrantID(),
			RequestID:    req.ID,
			RequesterID:  req.RequesterID,
			HolderID:     req.HolderID,
			Scope:        req.Scope,
			CredentialID: req.CredentialID,
			GrantedAt:    now,
			ExpiresAt:    now.Add(s.grantTTL(req.Scope)),
		}
		if err := stores.Access.InsertGrant(ctx, grant); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist grant")
		}
		return s.enqueue(ctx, stores.Outbox, notify.EventRequestApproved, req.RequesterID.String(), grantPayload(grant), now)
	})
	if err != nil {
		return nil, nil, err
	}

	decisionLabel := audit.DecisionRejected
	action := audit.ActionRequestRejected
	if approve {
		decisionLabel = audit.DecisionApproved
		action = audit.ActionRequestApproved
	}
	if s.metrics != nil {
		s.metrics.RequestsDecided.WithLabelValues(decisionLabel).Inc()
	}
	s.emitAudit(ctx, audit.Event{
		ActorID:   holderID.String(),
		Action:    action,
		SubjectID: req.RequesterID.String(),
		Decision:  decisionLabel,
		Reason:    reason,
	})
	return req, grant, nil
}

// RevokeGrant closes an active grant early. Only the granting holder may
// revoke; revoked and expired grants are final.
func (s *Service) RevokeGrant(ctx context.Context, grantID id.GrantID, holderID id.HolderID, reason string) (*models.Grant, error) {
	if holderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing holder context")
	}

	grant, err := s.store.FindGrant(ctx, grantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "grant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read grant")
	}
	if grant.HolderID != holderID {
		return nil, dErrors.New(dErrors.CodeForbidden, "grant belongs to another holder")
	}

	now := s.clock()
	if !grant.ActiveAt(now) {
		return nil, dErrors.New(dErrors.CodeConflict, "grant is no longer active")
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores TxStores) error {
		if err := stores.Access.RevokeGrant(ctx, grantID, now, reason); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeConflict, "grant is no longer active")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke grant")
		}
		grant.RevokedAt = &now
		grant.RevokedReason = reason
		return s.enqueue(ctx, stores.Outbox, notify.EventGrantRevoked, grant.RequesterID.String(), grantPayload(grant), now)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.GrantsRevoked.Inc()
	}
	s.emitAudit(ctx, audit.Event{
		ActorID:   holderID.String(),
		Action:    audit.ActionGrantRevoked,
		SubjectID: grant.RequesterID.String(),
		Reason:    reason,
	})
	return grant, nil
}

// ListRequestsByHolder returns requests addressed to the holder, newest first.
func (s *Service) ListRequestsByHolder(ctx context.Context, holderID id.HolderID) ([]*models.Request, error) {
	if holderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing holder context")
	}
	reqs, err := s.store.ListRequestsByHolder(ctx, holderID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
	}
	return reqs, nil
}

// ListRequestsByRequester returns the requester's own petitions, newest first.
func (s *Service) ListRequestsByRequester(ctx context.Context, requesterID id.RequesterID) ([]*models.Request, error) {
	if requesterID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing requester context")
	}
	reqs, err := s.store.ListRequestsByRequester(ctx, requesterID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
	}
	return reqs, nil
}

// ListGrantsByHolder returns grants the holder has issued, newest first.
func (s *Service) ListGrantsByHolder(ctx context.Context, holderID id.HolderID) ([]*models.Grant, error) {
	if holderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing holder context")
	}
	grants, err := s.store.ListGrantsByHolder(ctx, holderID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list grants")
	}
	return grants, nil
}

// ListGrantsByRequester returns grants opened for the requester, newest first.
func (s *Service) ListGrantsByRequester(ctx context.Context, requesterID id.RequesterID) ([]*models.Grant, error) {
	if requesterID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing requester context")
	}
	grants, err := s.store.ListGrantsByRequester(ctx, requesterID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list grants")
	}
	return grants, nil
}

// ActiveGrantFor returns a live grant covering the credential, or nil when
// the requester has no current visibility.
func (s *Service) ActiveGrantFor(ctx context.Context, requesterID id.RequesterID, holderID id.HolderID, credentialID id.CredentialID) (*models.Grant, error) {
	grant, err := s.store.FindActiveGrant(ctx, requesterID, holderID, credentialID, s.clock())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up grant")
	}
	return grant, nil
}

func (s *Service) grantTTL(scope models.Scope) time.Duration {
	if scope == models.ScopeSingle {
		return s.policy.GrantTTLSingle
	}
	return s.policy.GrantTTLAll
}

func (s *Service) enqueue(ctx context.Context, outbox notify.OutboxStore, event, recipientID string, payload any, now time.Time) error {
	n, err := notify.New(event, recipientID, payload, now)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build notification")
	}
	if err := outbox.Enqueue(ctx, n); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to enqueue notification")
	}
	return nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}

type requestNotice struct {
	RequestID   string `json:"request_id"`
	RequesterID string `json:"requester_id"`
	HolderID    string `json:"holder_id"`
	Scope       string `json:"scope"`
	Purpose     string `json:"purpose"`
	Status      string `json:"status"`
}

func requestPayload(req *models.Request) requestNotice {
	notice := requestNotice{
		RequestID:   req.ID.String(),
		RequesterID: req.RequesterID.String(),
		HolderID:    req.HolderID.String(),
		Scope:       string(req.Scope),
		Purpose:     string(req.Purpose),
		Status:      string(models.StatusPending),
	}
	if req.Decision != nil {
		notice.Status = string(req.StatusAt(req.Decision.At))
	}
	return notice
}

type grantNotice struct {
	GrantID     string `json:"grant_id"`
	RequestID   string `json:"request_id"`
	RequesterID string `json:"requester_id"`
	HolderID    string `json:"holder_id"`
	Scope       string `json:"scope"`
	Status      string `json:"status"`
	ExpiresAt   string `json:"expires_at"`
}

func grantPayload(grant *models.Grant) grantNotice {
	status := models.GrantActive
	if grant.RevokedAt != nil {
		status = models.GrantRevoked
	}
	return grantNotice{
		GrantID:     grant.ID.String(),
		RequestID:   grant.RequestID.String(),
		RequesterID: grant.RequesterID.String(),
		HolderID:    grant.HolderID.String(),
		Scope:       string(grant.Scope),
		Status:      string(status),
		ExpiresAt:   grant.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
