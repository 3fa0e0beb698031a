package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"attesta/internal/audit"
	"attesta/internal/credential/models"
	"attesta/internal/platform/metrics"
	"attesta/internal/sentinel"
	"attesta/internal/serial"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
)

// Store defines the persistence interface for credentials.
// Error Contract:
// - FindByID / FindBySerial return sentinel.ErrNotFound when no record exists
// - Insert returns sentinel.ErrConflict on serial uniqueness violations
// - SetShareable / Revoke return sentinel.ErrNotFound for missing or
//   already-revoked credentials
type Store interface {
	Insert(ctx context.Context, cred *models.Credential) error
	FindByID(ctx context.Context, credID id.CredentialID) (*models.Credential, error)
	FindBySerial(ctx context.Context, serialStr string) (*models.Credential, error)
	ListByHolder(ctx context.Context, holderID id.HolderID) ([]*models.Credential, error)
	SetShareable(ctx context.Context, credID id.CredentialID, shareable bool) error
	Revoke(ctx context.Context, credID id.CredentialID, revokedAt time.Time) error
}

// TxStores bundles the stores participating in one issuance transaction.
// The counter increment and the credential insert must commit or roll back
// together: an observer never sees a serial allocated without a credential
// eventually referencing it, except for the accepted crash gap.
type TxStores struct {
	Counters    serial.CounterStore
	Credentials Store
}

// StoreTx provides the transactional boundary for issuance.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error
}

const defaultIssueRetries = 3

// Service issues credentials and manages the holder- and admin-controlled
// mutations that remain legal after issuance.
type Service struct {
	tx        StoreTx
	store     Store
	allocator *serial.Allocator
	auditor   *audit.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	clock     func() time.Time
	retries   int
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

// WithIssueRetries bounds whole-transaction retries after allocator lock
// timeouts.
func WithIssueRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.retries = n
		}
	}
}

func NewService(tx StoreTx, store Store, allocator *serial.Allocator, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		tx:        tx,
		store:     store,
		allocator: allocator,
		auditor:   auditor,
		logger:    logger,
		clock:     time.Now,
		retries:   defaultIssueRetries,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Issue allocates the next serial and persists the credential in one atomic
// transaction. Lock timeouts from the counter row retry the whole
// transaction; any other failure aborts with no value consumed.
func (s *Service) Issue(ctx context.Context, issuerID id.IssuerID, holderID id.HolderID, level serial.Level, birthDate time.Time) (*models.Credential, error) {
	if issuerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing issuer context")
	}
	if holderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "holder ID required")
	}
	if !level.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown credential level: "+string(level))
	}
	if birthDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "holder birth date required")
	}

	var cred *models.Credential
	var err error
	for attempt := 0; ; attempt++ {
		cred, err = s.issueOnce(ctx, issuerID, holderID, level, birthDate)
		if err == nil {
			break
		}
		if !dErrors.HasCode(err, dErrors.CodeLockTimeout) || attempt >= s.retries {
			return nil, err
		}
		s.logger.WarnContext(ctx, "credential issuance retrying after lock timeout",
			"attempt", attempt+1,
			"holder_id", holderID.String(),
		)
	}

	s.emitAudit(ctx, audit.Event{
		ActorID:   issuerID.String(),
		Action:    audit.ActionCredentialIssued,
		Serial:    cred.Serial,
		SubjectID: holderID.String(),
	})
	return cred, nil
}

func (s *Service) issueOnce(ctx context.Context, issuerID id.IssuerID, holderID id.HolderID, level serial.Level, birthDate time.Time) (*models.Credential, error) {
	var cred *models.Credential
	err := s.tx.RunInTx(ctx, func(ctx context.Context, stores TxStores) error {
		alloc, err := s.allocator.AllocateIn(ctx, stores.Counters, level)
		if err != nil {
			return err
		}

		cred, err = models.New(id.NewCredentialID(), alloc, level, holderID, issuerID, s.clock(), birthDate)
		if err != nil {
			return err
		}

		if err := stores.Credentials.Insert(ctx, cred); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				// The counter guarantees unique sequences, so a duplicate
				// serial means the counter and the credentials table disagree.
				return dErrors.Wrap(err, dErrors.CodeIntegrity, "allocated serial already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist credential")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// SetShareable flips the public-verification flag. Only the credential's
// holder may change it; revoked credentials are frozen.
func (s *Service) SetShareable(ctx context.Context, credID id.CredentialID, holderID id.HolderID, shareable bool) (*models.Credential, error) {
	if holderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing holder context")
	}

	cred, err := s.findByID(ctx, credID)
	if err != nil {
		return nil, err
	}
	if cred.HolderID != holderID {
		return nil, dErrors.New(dErrors.CodeForbidden, "credential belongs to another holder")
	}
	if cred.Revoked() {
		return nil, dErrors.New(dErrors.CodeConflict, "credential has been revoked")
	}

	if err := s.store.SetShareable(ctx, credID, shareable); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeConflict, "credential has been revoked")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update credential")
	}
	cred.Shareable = shareable

	s.emitAudit(ctx, audit.Event{
		ActorID: holderID.String(),
		Action:  audit.ActionShareabilityChanged,
		Serial:  cred.Serial,
	})
	return cred, nil
}

// Revoke soft-deletes a credential. Admin-only (enforced at the transport
// boundary); terminal, the flag is never cleared.
func (s *Service) Revoke(ctx context.Context, credID id.CredentialID, actorID string) error {
	cred, err := s.findByID(ctx, credID)
	if err != nil {
		return err
	}
	if cred.Revoked() {
		return dErrors.New(dErrors.CodeConflict, "credential already revoked")
	}

	if err := s.store.Revoke(ctx, credID, s.clock()); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeConflict, "credential already revoked")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke credential")
	}

	s.emitAudit(ctx, audit.Event{
		ActorID:   actorID,
		Action:    audit.ActionCredentialRevoked,
		Serial:    cred.Serial,
		SubjectID: cred.HolderID.String(),
	})
	return nil
}

// ListByHolder returns the holder's credentials, newest first.
func (s *Service) ListByHolder(ctx context.Context, holderID id.HolderID) ([]*models.Credential, error) {
	if holderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing holder context")
	}
	creds, err := s.store.ListByHolder(ctx, holderID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	return creds, nil
}

func (s *Service) findByID(ctx context.Context, credID id.CredentialID) (*models.Credential, error) {
	cred, err := s.store.FindByID(ctx, credID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read credential")
	}
	return cred, nil
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
