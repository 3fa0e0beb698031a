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

	accessmodels "attesta/internal/access/models"
	credmodels "attesta/internal/credential/models"
	credstore "attesta/internal/credential/store"
	"attesta/internal/serial"
	"attesta/internal/verification/models"
	"attesta/internal/verification/store"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/requestcontext"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// stubGrants serves a fixed grant to every lookup.
type stubGrants struct {
	grant *accessmodels.Grant
}

func (s *stubGrants) ActiveGrantFor(context.Context, id.RequesterID, id.HolderID, id.CredentialID) (*accessmodels.Grant, error) {
	return s.grant, nil
}

type VerifySuite struct {
	suite.Suite
	creds   *credstore.InMemoryStore
	events  *store.InMemoryStore
	grants  *stubGrants
	service *Service
	now     time.Time

	holderID  id.HolderID
	birthDate time.Time
	cred      *credmodels.Credential
}

func (s *VerifySuite) SetupTest() {
	s.creds = credstore.NewMemory()
	s.events = store.NewMemory()
	s.grants = &stubGrants{}
	s.now = time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)

	s.service = NewService(
		s.creds,
		s.grants,
		s.events,
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithClock(func() time.Time { return s.now }),
	)

	s.holderID = id.HolderID(uuid.New())
	s.birthDate = time.Date(1999, 4, 12, 0, 0, 0, 0, time.UTC)
	s.cred = s.issue(serial.LevelBachelor, 7)
}

func (s *VerifySuite) issue(level serial.Level, sequence int64) *credmodels.Credential {
	encoded, err := serial.Encode(level, 2026, sequence)
	s.Require().NoError(err)
	cred, err := credmodels.New(
		id.NewCredentialID(),
		serial.Allocation{Serial: encoded, SequenceNumber: sequence},
		level,
		s.holderID,
		id.IssuerID(uuid.New()),
		s.now,
		s.birthDate,
	)
	s.Require().NoError(err)
	s.Require().NoError(s.creds.Insert(context.Background(), cred))
	return cred
}

func (s *VerifySuite) setShareable(cred *credmodels.Credential) {
	s.Require().NoError(s.creds.SetShareable(context.Background(), cred.ID, true))
}

func TestVerifySuite(t *testing.T) {
	suite.Run(t, new(VerifySuite))
}

func (s *VerifySuite) TestVerify_InputValidation() {
	ctx := context.Background()

	_, err := s.service.Verify(ctx, "", s.birthDate, id.RequesterID{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.Verify(ctx, s.cred.Serial, time.Time{}, id.RequesterID{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *VerifySuite) TestVerify_MalformedSerialDenied() {
	ctx := context.Background()
	for _, probe := range []string{
		"BCH-26-000000",          // missing check character
		"bch-26-0000077",         // lowercase prefix
		"XYZ-26-0000077",         // unknown prefix
		s.cred.Serial[:13] + "Z", // corrupted check character
	} {
		result, err := s.service.Verify(ctx, probe, s.birthDate, id.RequesterID{})
		s.Require().NoError(err, probe)
		s.False(result.Verified, probe)
		s.False(result.Exists, probe)
		s.Nil(result.Record, probe)
	}
	s.Empty(s.events.All(), "malformed serials have no credential to record against")
}

func (s *VerifySuite) TestVerify_UnknownSerialDenied() {
	encoded, err := serial.Encode(serial.LevelMaster, 2026, 999)
	s.Require().NoError(err)

	result, err := s.service.Verify(context.Background(), encoded, s.birthDate, id.RequesterID{})
	s.Require().NoError(err)
	s.False(result.Verified)
	s.False(result.Exists)
	s.Empty(s.events.All())
}

func (s *VerifySuite) TestVerify_ShareableGranted() {
	s.setShareable(s.cred)

	result, err := s.service.Verify(context.Background(), s.cred.Serial, s.birthDate, id.RequesterID{})
	s.Require().NoError(err)
	s.True(result.Verified)
	s.True(result.Exists)
	s.Require().NotNil(result.Record)
	s.Equal(s.cred.Serial, result.Record.Serial)
	s.Equal(string(serial.LevelBachelor), result.Record.Level)
	s.Equal(2026, result.Record.IssueYear)

	events := s.events.All()
	s.Require().Len(events, 1)
	s.Equal(models.OutcomeGranted, events[0].Outcome)
	s.Equal(s.cred.ID, events[0].CredentialID)
}

func (s *VerifySuite) TestVerify_BirthDateMismatchDenied() {
	s.setShareable(s.cred)

	wrong := s.birthDate.AddDate(0, 0, 1)
	result, err := s.service.Verify(context.Background(), s.cred.Serial, wrong, id.RequesterID{})
	s.Require().NoError(err)
	s.False(result.Verified)
	s.True(result.Exists)
	s.Nil(result.Record)

	events := s.events.All()
	s.Require().Len(events, 1)
	s.Equal(models.OutcomeDenied, events[0].Outcome)
	s.Equal(models.ReasonBirthDateMismatch, events[0].Reason)
}

func (s *VerifySuite) TestVerify_BirthDateIgnoresTimeOfDay() {
	s.setShareable(s.cred)

	probe := time.Date(1999, 4, 12, 23, 30, 0, 0, time.UTC)
	result, err := s.service.Verify(context.Background(), s.cred.Serial, probe, id.RequesterID{})
	s.Require().NoError(err)
	s.True(result.Verified)
}

func (s *VerifySuite) TestVerify_RevokedDenied() {
	s.setShareable(s.cred)
	s.Require().NoError(s.creds.Revoke(context.Background(), s.cred.ID, s.now))

	result, err := s.service.Verify(context.Background(), s.cred.Serial, s.birthDate, id.RequesterID{})
	s.Require().NoError(err)
	s.False(result.Verified)
	s.False(result.Exists, "a revoked credential answers like an unknown serial")

	events := s.events.All()
	s.Require().Len(events, 1)
	s.Equal(models.ReasonRevoked, events[0].Reason)
}

func (s *VerifySuite) TestVerify_PrivateRequiresGrant() {
	ctx := context.Background()
	requesterID := id.RequesterID(uuid.New())

	s.T().Run("anonymous caller gets the redacted denial", func(t *testing.T) {
		result, err := s.service.Verify(ctx, s.cred.Serial, s.birthDate, id.RequesterID{})
		require.NoError(t, err)
		assert.False(t, result.Verified)
		assert.True(t, result.Exists)
		assert.True(t, result.Redacted)
		assert.Nil(t, result.Record)
	})

	s.T().Run("authenticated caller without grant denied", func(t *testing.T) {
		result, err := s.service.Verify(ctx, s.cred.Serial, s.birthDate, requesterID)
		require.NoError(t, err)
		assert.False(t, result.Verified)
		assert.True(t, result.Redacted)
	})

	s.T().Run("active grant admits", func(t *testing.T) {
		s.grants.grant = &accessmodels.Grant{
			ID:          id.NewGrantID(),
			RequesterID: requesterID,
			HolderID:    s.holderID,
			Scope:       accessmodels.ScopeAll,
			GrantedAt:   s.now,
			ExpiresAt:   s.now.Add(30 * 24 * time.Hour),
		}
		result, err := s.service.Verify(ctx, s.cred.Serial, s.birthDate, requesterID)
		require.NoError(t, err)
		assert.True(t, result.Verified)
		assert.NotNil(t, result.Record)
	})

	denied := 0
	for _, event := range s.events.All() {
		if event.Outcome == models.OutcomeDenied {
			denied++
			s.Equal(models.ReasonNoGrant, event.Reason)
		}
	}
	s.Equal(2, denied)
}

func (s *VerifySuite) TestVerify_EventHoldsNoPII() {
	s.setShareable(s.cred)
	ctx := requestcontext.WithClientMetadata(context.Background(), "203.0.113.47", chromeUA)

	_, err := s.service.Verify(ctx, s.cred.Serial, s.birthDate, id.RequesterID{})
	s.Require().NoError(err)

	events := s.events.All()
	s.Require().Len(events, 1)
	s.Equal("203.0.113.0", events[0].SourceAddress, "last octet must be zeroed")
	s.Equal("Chrome", events[0].UserAgent, "raw header must be reduced to a family")
	s.Equal(s.now, events[0].VerifiedAt)
}

func (s *VerifySuite) TestVerify_DisclosureAsymmetry() {
	ctx := context.Background()

	s.T().Run("granted result carries the full record, birth date excluded", func(t *testing.T) {
		s.setShareable(s.cred)
		result, err := s.service.Verify(ctx, s.cred.Serial, s.birthDate, id.RequesterID{})
		require.NoError(t, err)
		assert.Equal(t, &models.Result{
			Verified: true,
			Exists:   true,
			Record: &models.Record{
				Serial:    s.cred.Serial,
				Level:     string(serial.LevelBachelor),
				HolderID:  s.holderID.String(),
				IssuerID:  s.cred.IssuerID.String(),
				IssueDate: s.now,
				IssueYear: 2026,
			},
		}, result, "the disclosed record has no birth date field to leak")
	})

	s.T().Run("redacted denial discloses nothing beyond existence", func(t *testing.T) {
		private := s.issue(serial.LevelMaster, 8)
		result, err := s.service.Verify(ctx, private.Serial, s.birthDate, id.RequesterID{})
		require.NoError(t, err)
		assert.Equal(t, &models.Result{Exists: true, Redacted: true}, result)
	})
}

func (s *VerifySuite) TestHistory() {
	s.setShareable(s.cred)
	ctx := context.Background()

	_, err := s.service.Verify(ctx, s.cred.Serial, s.birthDate, id.RequesterID{})
	s.Require().NoError(err)
	_, err = s.service.Verify(ctx, s.cred.Serial, s.birthDate.AddDate(1, 0, 0), id.RequesterID{})
	s.Require().NoError(err)

	events, err := s.service.History(ctx, s.cred.ID, s.holderID)
	s.Require().NoError(err)
	s.Len(events, 2)

	s.T().Run("other holder returns CodeForbidden", func(t *testing.T) {
		_, err := s.service.History(ctx, s.cred.ID, id.HolderID(uuid.New()))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.T().Run("unknown credential returns CodeNotFound", func(t *testing.T) {
		_, err := s.service.History(ctx, id.NewCredentialID(), s.holderID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
