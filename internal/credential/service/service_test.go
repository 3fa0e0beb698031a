package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"attesta/internal/audit"
	"attesta/internal/credential/models"
	credstore "attesta/internal/credential/store"
	"attesta/internal/sentinel"
	"attesta/internal/serial"
	serialstore "attesta/internal/serial/store"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
)

// flakyCounter fails its first n increments with a lock timeout, then
// delegates to the real counter.
type flakyCounter struct {
	inner    serial.CounterStore
	failures int
}

func (c *flakyCounter) Increment(ctx context.Context) (int64, error) {
	if c.failures > 0 {
		c.failures--
		return 0, sentinel.ErrLockTimeout
	}
	return c.inner.Increment(ctx)
}

type ServiceSuite struct {
	suite.Suite
	store      *credstore.InMemoryStore
	counter    *serialstore.InMemoryStore
	auditStore *audit.InMemoryStore
	allocator  *serial.Allocator
	service    *Service
	now        time.Time

	issuerID  id.IssuerID
	holderID  id.HolderID
	birthDate time.Time
}

func (s *ServiceSuite) SetupTest() {
	s.store = credstore.NewMemory()
	s.counter = serialstore.NewMemory()
	s.auditStore = audit.NewInMemoryStore()
	s.now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	s.issuerID = id.IssuerID(mustUUID("33333333-3333-3333-3333-333333333333"))
	s.holderID = id.HolderID(mustUUID("11111111-1111-1111-1111-111111111111"))
	s.birthDate = time.Date(1999, 4, 12, 0, 0, 0, 0, time.UTC)

	s.service = s.newService(s.counter)
}

// newService wires a Service over the suite's stores with the given counter,
// so individual tests can substitute a failing one.
func (s *ServiceSuite) newService(counter serial.CounterStore, opts ...Option) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.allocator = serial.NewAllocator(
		&serialstore.MemoryTx{Store: s.counter},
		logger,
		serial.WithClock(func() time.Time { return s.now }),
	)
	tx := &MemoryTx{Stores: TxStores{Counters: counter, Credentials: s.store}}
	base := []Option{WithClock(func() time.Time { return s.now })}
	return NewService(tx, s.store, s.allocator, audit.NewPublisher(s.auditStore), logger, append(base, opts...)...)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) TestIssue_ValidationErrors() {
	ctx := context.Background()

	s.T().Run("missing issuer returns CodeUnauthorized", func(t *testing.T) {
		_, err := s.service.Issue(ctx, id.IssuerID{}, s.holderID, serial.LevelBachelor, s.birthDate)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.T().Run("missing holder returns CodeValidation", func(t *testing.T) {
		_, err := s.service.Issue(ctx, s.issuerID, id.HolderID{}, serial.LevelBachelor, s.birthDate)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.T().Run("unknown level returns CodeValidation", func(t *testing.T) {
		_, err := s.service.Issue(ctx, s.issuerID, s.holderID, serial.Level("DIPLOMA"), s.birthDate)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.T().Run("zero birth date returns CodeValidation", func(t *testing.T) {
		_, err := s.service.Issue(ctx, s.issuerID, s.holderID, serial.LevelBachelor, time.Time{})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestIssue_SequentialSerials() {
	ctx := context.Background()

	first, err := s.service.Issue(ctx, s.issuerID, s.holderID, serial.LevelBachelor, s.birthDate)
	s.Require().NoError(err)
	second, err := s.service.Issue(ctx, s.issuerID, s.holderID, serial.LevelMaster, s.birthDate)
	s.Require().NoError(err)

	s.Equal(int64(1), first.SequenceNumber)
	s.Equal(int64(2), second.SequenceNumber)
	s.NotEqual(first.Serial, second.Serial)
	s.True(serial.Validate(first.Serial))
	s.True(serial.Validate(second.Serial))
	s.Equal("BCH-26-", first.Serial[:7])
	s.Equal("MST-26-", second.Serial[:7])

	s.Equal(s.holderID, first.HolderID)
	s.Equal(s.issuerID, first.IssuerID)
	s.Equal(s.now, first.IssueDate)
	s.False(first.Shareable)
	s.Nil(first.RevokedAt)

	stored, err := s.store.FindBySerial(ctx, first.Serial)
	s.Require().NoError(err)
	s.Equal(first.ID, stored.ID)

	events := s.auditStore.All()
	s.Require().Len(events, 2)
	s.Equal(audit.ActionCredentialIssued, events[0].Action)
	s.Equal(s.issuerID.String(), events[0].ActorID)
}

func (s *ServiceSuite) TestIssue_RetriesAfterLockTimeout() {
	svc := s.newService(&flakyCounter{inner: s.counter, failures: 2})

	cred, err := svc.Issue(context.Background(), s.issuerID, s.holderID, serial.LevelDoctorate, s.birthDate)
	s.Require().NoError(err)
	s.Equal(int64(1), cred.SequenceNumber)
}

func (s *ServiceSuite) TestIssue_LockTimeoutExhaustsRetries() {
	svc := s.newService(&flakyCounter{inner: s.counter, failures: 10}, WithIssueRetries(2))

	_, err := svc.Issue(context.Background(), s.issuerID, s.holderID, serial.LevelBachelor, s.birthDate)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeLockTimeout))
	s.Empty(s.auditStore.All())
}

func (s *ServiceSuite) TestIssue_DuplicateSerialIsIntegrityFailure() {
	ctx := context.Background()

	// Occupy the serial the counter will hand out next.
	encoded, err := serial.Encode(serial.LevelBachelor, 2026, 1)
	s.Require().NoError(err)
	squatter, err := models.New(
		id.NewCredentialID(),
		serial.Allocation{Serial: encoded, SequenceNumber: 1},
		serial.LevelBachelor,
		id.HolderID(mustUUID("99999999-9999-9999-9999-999999999999")),
		s.issuerID,
		s.now,
		s.birthDate,
	)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Insert(ctx, squatter))

	_, err = s.service.Issue(ctx, s.issuerID, s.holderID, serial.LevelBachelor, s.birthDate)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIntegrity))
}

func (s *ServiceSuite) TestSetShareable() {
	ctx := context.Background()
	cred, err := s.service.Issue(ctx, s.issuerID, s.holderID, serial.LevelBachelor, s.birthDate)
	s.Require().NoError(err)

	updated, err := s.service.SetShareable(ctx, cred.ID, s.holderID, true)
	s.Require().NoError(err)
	s.True(updated.Shareable)

	stored, err := s.store.FindByID(ctx, cred.ID)
	s.Require().NoError(err)
	s.True(stored.Shareable)

	updated, err = s.service.SetShareable(ctx, cred.ID, s.holderID, false)
	s.Require().NoError(err)
	s.False(updated.Shareable)

	var actions []audit.Action
	for _, e := range s.auditStore.All() {
		actions = append(actions, e.Action)
	}
	s.Contains(actions, audit.ActionShareabilityChanged)
}

func (s *ServiceSuite) TestSetShareable_Errors() {
	ctx := context.Background()
	cred, err := s.service.Issue(ctx, s.issuerID, s.holderID, serial.LevelBachelor, s.birthDate)
	s.Require().NoError(err)

	s.T().Run("missing holder returns CodeUnauthorized", func(t *testing.T) {
		_, err := s.service.SetShareable(ctx, cred.ID, id.HolderID{}, true)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.T().Run("unknown credential returns CodeNotFound", func(t *testing.T) {
		_, err := s.service.SetShareable(ctx, id.NewCredentialID(), s.holderID, true)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.T().Run("another holder returns CodeForbidden", func(t *testing.T) {
		other := id.HolderID(mustUUID("99999999-9999-9999-9999-999999999999"))
		_, err := s.service.SetShareable(ctx, cred.ID, other, true)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.T().Run("revoked credential returns CodeConflict", func(t *testing.T) {
		require.NoError(t, s.service.Revoke(ctx, cred.ID, "admin-1"))
		_, err := s.service.SetShareable(ctx, cred.ID, s.holderID, true)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestRevoke() {
	ctx := context.Background()
	cred, err := s.service.Issue(ctx, s.issuerID, s.holderID, serial.LevelBachelor, s.birthDate)
	s.Require().NoError(err)

	s.Require().NoError(s.service.Revoke(ctx, cred.ID, "admin-1"))

	stored, err := s.store.FindByID(ctx, cred.ID)
	s.Require().NoError(err)
	s.True(stored.Revoked())
	s.Require().NotNil(stored.RevokedAt)
	s.Equal(s.now, *stored.RevokedAt)

	err = s.service.Revoke(ctx, cred.ID, "admin-1")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	err = s.service.Revoke(ctx, id.NewCredentialID(), "admin-1")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestListByHolder() {
	ctx := context.Background()

	first, err := s.service.Issue(ctx, s.issuerID, s.holderID, serial.LevelBachelor, s.birthDate)
	s.Require().NoError(err)
	s.now = s.now.Add(time.Hour)
	second, err := s.service.Issue(ctx, s.issuerID, s.holderID, serial.LevelMaster, s.birthDate)
	s.Require().NoError(err)

	creds, err := s.service.ListByHolder(ctx, s.holderID)
	s.Require().NoError(err)
	s.Require().Len(creds, 2)
	s.Equal(second.ID, creds[0].ID)
	s.Equal(first.ID, creds[1].ID)

	other := id.HolderID(mustUUID("99999999-9999-9999-9999-999999999999"))
	creds, err = s.service.ListByHolder(ctx, other)
	s.Require().NoError(err)
	s.Empty(creds)

	_, err = s.service.ListByHolder(ctx, id.HolderID{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func mustUUID(s string) uuid.UUID {
	return uuid.MustParse(s)
}
