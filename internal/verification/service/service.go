package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	accessmodels "attesta/internal/access/models"
	"attesta/internal/audit"
	credmodels "attesta/internal/credential/models"
	"attesta/internal/platform/metrics"
	"attesta/internal/platform/privacy"
	"attesta/internal/sentinel"
	"attesta/internal/serial"
	"attesta/internal/verification/models"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/requestcontext"
)

// CredentialFinder resolves serials and IDs to credentials.
// Error Contract:
// - Find methods return sentinel.ErrNotFound when no credential matches
type CredentialFinder interface {
	FindBySerial(ctx context.Context, serialStr string) (*credmodels.Credential, error)
	FindByID(ctx context.Context, credID id.CredentialID) (*credmodels.Credential, error)
}

// GrantChecker answers whether a verifier currently holds visibility into a
// credential. A nil grant with a nil error means no visibility.
type GrantChecker interface {
	ActiveGrantFor(ctx context.Context, requesterID id.RequesterID, holderID id.HolderID, credentialID id.CredentialID) (*accessmodels.Grant, error)
}

// EventStore records verification attempts against known credentials.
type EventStore interface {
	Append(ctx context.Context, event *models.Event) error
	ListByCredential(ctx context.Context, credID id.CredentialID) ([]*models.Event, error)
}

// GeoResolver maps a client IP to a country code. Implementations may be
// absent; the service treats a nil resolver as "country unknown".
type GeoResolver interface {
	Country(ctx context.Context, ip string) (string, error)
}

// Service answers verification queries. A denial discloses at most that a
// credential exists behind the serial, never which check failed, and every
// attempt against a known credential leaves an event the holder can review.
type Service struct {
	creds   CredentialFinder
	grants  GrantChecker
	events  EventStore
	geo     GeoResolver
	auditor *audit.Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
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

// WithGeoResolver attaches a country lookup for recorded events.
func WithGeoResolver(geo GeoResolver) Option {
	return func(s *Service) {
		s.geo = geo
	}
}

func NewService(creds CredentialFinder, grants GrantChecker, events EventStore, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		creds:   creds,
		grants:  grants,
		events:  events,
		auditor: auditor,
		logger:  logger,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Verify runs the verification gate for one serial and claimed birth date.
// requesterID is the authenticated verifier, or zero for anonymous callers.
// Denials are results, not errors; errors mean the question could not be
// answered.
func (s *Service) Verify(ctx context.Context, serialStr string, birthDate time.Time, requesterID id.RequesterID) (*models.Result, error) {
	if serialStr == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "serial required")
	}
	if birthDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "birth date required")
	}

	start := s.clock()
	defer func() {
		if s.metrics != nil {
			s.metrics.VerificationLatency.Observe(time.Since(start).Seconds())
		}
	}()

	if !serial.Validate(serialStr) {
		return s.denyUnknown(ctx, serialStr, models.ReasonInvalidSerial), nil
	}

	cred, err := s.creds.FindBySerial(ctx, serialStr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return s.denyUnknown(ctx, serialStr, models.ReasonUnknownSerial), nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up credential")
	}

	// A revoked credential answers exactly like an unknown serial.
	if cred.Revoked() {
		return s.deny(ctx, cred, models.ReasonRevoked, models.Result{}), nil
	}
	if !cred.BirthDateMatches(birthDate) {
		return s.deny(ctx, cred, models.ReasonBirthDateMismatch, models.Result{Exists: true}), nil
	}

	if !cred.Shareable {
		redacted := models.Result{Exists: true, Redacted: true}
		if requesterID.IsNil() {
			return s.deny(ctx, cred, models.ReasonNoGrant, redacted), nil
		}
		grant, err := s.grants.ActiveGrantFor(ctx, requesterID, cred.HolderID, cred.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check grants")
		}
		if grant == nil {
			return s.deny(ctx, cred, models.ReasonNoGrant, redacted), nil
		}
	}

	s.record(ctx, cred, models.OutcomeGranted, "")
	s.observe(ctx, models.OutcomeGranted, "", cred.Serial)
	return &models.Result{
		Verified: true,
		Exists:   true,
		Record: &models.Record{
			Serial:    cred.Serial,
			Level:     string(cred.Level),
			HolderID:  cred.HolderID.String(),
			IssuerID:  cred.IssuerID.String(),
			IssueDate: cred.IssueDate,
			IssueYear: cred.IssueDate.Year(),
		},
	}, nil
}

// History lists the verification events recorded against a credential. Only
// the credential's holder may read them.
func (s *Service) History(ctx context.Context, credID id.CredentialID, holderID id.HolderID) ([]*models.Event, error) {
	if holderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing holder context")
	}
	cred, err := s.creds.FindByID(ctx, credID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read credential")
	}
	if cred.HolderID != holderID {
		return nil, dErrors.New(dErrors.CodeForbidden, "credential belongs to another holder")
	}

	events, err := s.events.ListByCredential(ctx, credID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verification events")
	}
	return events, nil
}

// deny records the attempt against the known credential and returns the
// denial the policy allows for this branch.
func (s *Service) deny(ctx context.Context, cred *credmodels.Credential, reason string, res models.Result) *models.Result {
	s.record(ctx, cred, models.OutcomeDenied, reason)
	s.observe(ctx, models.OutcomeDenied, reason, cred.Serial)
	return &res
}

// denyUnknown covers serials with no credential behind them: there is
// nothing to attach an event to, so only metrics and audit see the attempt.
func (s *Service) denyUnknown(ctx context.Context, serialStr, reason string) *models.Result {
	s.observe(ctx, models.OutcomeDenied, reason, serialStr)
	return &models.Result{}
}

func (s *Service) record(ctx context.Context, cred *credmodels.Credential, outcome models.Outcome, reason string) {
	event := &models.Event{
		ID:            uuid.New(),
		CredentialID:  cred.ID,
		SourceAddress: privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
		Country:       s.country(ctx),
		UserAgent:     agentFamily(requestcontext.UserAgent(ctx)),
		Outcome:       outcome,
		Reason:        reason,
		VerifiedAt:    s.clock(),
	}
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to record verification event",
			"credential_id", cred.ID.String(),
			"error", err,
		)
	}
}

func (s *Service) observe(ctx context.Context, outcome models.Outcome, reason, serialStr string) {
	if s.metrics != nil {
		label := string(outcome)
		if reason != "" {
			label = reason
		}
		s.metrics.VerificationAttempts.WithLabelValues(label).Inc()
	}

	action := audit.ActionVerifyGranted
	decision := audit.DecisionGranted
	if outcome == models.OutcomeDenied {
		action = audit.ActionVerifyDenied
		decision = audit.DecisionDenied
	}
	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Event{
			Action:   action,
			Serial:   serialStr,
			Decision: decision,
			Reason:   reason,
		}); err != nil {
			s.logger.ErrorContext(ctx, "failed to emit audit event", "action", action, "error", err)
		}
	}
}

func (s *Service) country(ctx context.Context) string {
	if s.geo == nil {
		return ""
	}
	country, err := s.geo.Country(ctx, requestcontext.ClientIP(ctx))
	if err != nil {
		s.logger.WarnContext(ctx, "geo lookup failed", "error", err)
		return ""
	}
	return country
}

// agentFamily reduces a raw User-Agent header to a browser family name so
// the stored event cannot fingerprint the caller.
func agentFamily(raw string) string {
	if raw == "" {
		return ""
	}
	parsed := useragent.New(raw)
	if parsed.Bot() {
		return "bot"
	}
	name, _ := parsed.Browser()
	if name == "" {
		return "other"
	}
	return name
}
