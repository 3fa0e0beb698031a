package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"attesta/internal/platform/middleware"
	"attesta/internal/verification/handler/mocks"
	"attesta/internal/verification/models"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/verification-mocks.go -package=mocks Service
type VerificationHandlerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *VerificationHandlerSuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestVerificationHandlerSuite(t *testing.T) {
	suite.Run(t, new(VerificationHandlerSuite))
}

func newTestHandler(t *testing.T) (*Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := New(mockService, logger, nil)
	return handler, mockService
}

// newRequestWithBody creates an HTTP request with the given method, endpoint,
// and JSON body. A non-empty principal is attached to the request context.
func newRequestWithBody(method, endpoint string, body any, principal middleware.Principal) (*http.Request, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req := httptest.NewRequest(method, endpoint, bytes.NewReader(bodyBytes))
	if principal.ID != "" {
		req = req.WithContext(middleware.WithPrincipal(req.Context(), principal))
	}
	return req, nil
}

// assertErrorResponse unmarshals the response body and asserts the error code.
func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedCode string) {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, expectedCode, resp["error"])
}

func (s *VerificationHandlerSuite) TestHandleVerify() {
	birthDate := time.Date(1999, 4, 12, 0, 0, 0, 0, time.UTC)

	s.T().Run("200 - anonymous check of a shareable credential", func(t *testing.T) {
		handler, mockService := newTestHandler(t)
		holderID := uuid.NewString()
		issuerID := uuid.NewString()
		mockService.EXPECT().Verify(
			gomock.Any(), "BCH-26-0000017", birthDate, id.RequesterID{},
		).Return(&models.Result{
			Verified: true,
			Exists:   true,
			Record: &models.Record{
				Serial:    "BCH-26-0000017",
				Level:     "BACHELOR",
				HolderID:  holderID,
				IssuerID:  issuerID,
				IssueDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
				IssueYear: 2026,
			},
		}, nil)

		req, err := newRequestWithBody(http.MethodPost, "/verify",
			VerifyRequest{Serial: "BCH-26-0000017", BirthDate: "1999-04-12"},
			middleware.Principal{})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		handler.handleVerify(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["verified"])
		assert.Equal(t, true, resp["exists"])
		record := resp["record"].(map[string]any)
		assert.Equal(t, "BCH-26-0000017", record["serial"])
		assert.Equal(t, "BACHELOR", record["level"])
		assert.Equal(t, holderID, record["holder_id"])
		assert.Equal(t, issuerID, record["issuer_id"])
		assert.Equal(t, float64(2026), record["issue_year"])
	})

	s.T().Run("200 - redacted denial carries no credential detail", func(t *testing.T) {
		handler, mockService := newTestHandler(t)
		mockService.EXPECT().Verify(
			gomock.Any(), "BCH-26-0000017", birthDate, id.RequesterID{},
		).Return(&models.Result{Exists: true, Redacted: true}, nil)

		req, err := newRequestWithBody(http.MethodPost, "/verify",
			VerifyRequest{Serial: "BCH-26-0000017", BirthDate: "1999-04-12"},
			middleware.Principal{})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		handler.handleVerify(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, false, resp["verified"])
		assert.Equal(t, true, resp["exists"])
		assert.Equal(t, true, resp["redacted"])
		assert.NotContains(t, resp, "record")
	})

	s.T().Run("authenticated verifier is passed through as requester", func(t *testing.T) {
		handler, mockService := newTestHandler(t)
		verifierID := uuid.New()
		mockService.EXPECT().Verify(
			gomock.Any(), "BCH-26-0000017", birthDate, id.RequesterID(verifierID),
		).Return(&models.Result{
			Verified: true,
			Exists:   true,
			Record:   &models.Record{Serial: "BCH-26-0000017", Level: "BACHELOR", IssueYear: 2026},
		}, nil)

		req, err := newRequestWithBody(http.MethodPost, "/verify",
			VerifyRequest{Serial: "BCH-26-0000017", BirthDate: "1999-04-12"},
			middleware.Principal{ID: verifierID.String(), Role: middleware.RoleVerifier})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		handler.handleVerify(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	s.T().Run("holder token does not become a requester", func(t *testing.T) {
		handler, mockService := newTestHandler(t)
		mockService.EXPECT().Verify(
			gomock.Any(), "BCH-26-0000017", birthDate, id.RequesterID{},
		).Return(&models.Result{}, nil)

		req, err := newRequestWithBody(http.MethodPost, "/verify",
			VerifyRequest{Serial: "BCH-26-0000017", BirthDate: "1999-04-12"},
			middleware.Principal{ID: uuid.NewString(), Role: middleware.RoleHolder})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		handler.handleVerify(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	s.T().Run("400 bad request - malformed body", func(t *testing.T) {
		handler, _ := newTestHandler(t)
		req := httptest.NewRequest(http.MethodPost, "/verify", bytes.NewReader([]byte("{not json")))

		w := httptest.NewRecorder()
		handler.handleVerify(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assertErrorResponse(t, w, "bad_request")
	})

	s.T().Run("400 validation - missing serial", func(t *testing.T) {
		handler, _ := newTestHandler(t)
		req, err := newRequestWithBody(http.MethodPost, "/verify",
			VerifyRequest{BirthDate: "1999-04-12"},
			middleware.Principal{})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		handler.handleVerify(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assertErrorResponse(t, w, "validation_failed")
	})

	s.T().Run("400 validation - birth date not a calendar date", func(t *testing.T) {
		handler, _ := newTestHandler(t)
		req, err := newRequestWithBody(http.MethodPost, "/verify",
			VerifyRequest{Serial: "BCH-26-0000017", BirthDate: "12.04.1999"},
			middleware.Principal{})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		handler.handleVerify(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assertErrorResponse(t, w, "validation_failed")
	})

	s.T().Run("500 internal server error - service failure", func(t *testing.T) {
		handler, mockService := newTestHandler(t)
		mockService.EXPECT().Verify(
			gomock.Any(), "BCH-26-0000017", birthDate, id.RequesterID{},
		).Return(nil, dErrors.New(dErrors.CodeInternal, "event store unavailable"))

		req, err := newRequestWithBody(http.MethodPost, "/verify",
			VerifyRequest{Serial: "BCH-26-0000017", BirthDate: "1999-04-12"},
			middleware.Principal{})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		handler.handleVerify(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assertErrorResponse(t, w, "internal_error")
	})
}

func (s *VerificationHandlerSuite) TestHandleHistory() {
	holderID := id.HolderID(uuid.New())
	credID := id.NewCredentialID()
	historyPath := "/credentials/" + credID.String() + "/verifications"

	serveHistory := func(t *testing.T, handler *Handler, req *http.Request) *httptest.ResponseRecorder {
		t.Helper()
		r := chi.NewRouter()
		handler.RegisterProtected(r)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	s.T().Run("200 - holder reads history for own credential", func(t *testing.T) {
		handler, mockService := newTestHandler(t)
		verifiedAt := time.Date(2026, 5, 20, 9, 30, 0, 0, time.UTC)
		mockService.EXPECT().History(gomock.Any(), credID, holderID).Return([]*models.Event{{
			ID:            uuid.New(),
			CredentialID:  credID,
			SourceAddress: "203.0.113.0",
			Country:       "NL",
			UserAgent:     "Chrome",
			Outcome:       models.OutcomeDenied,
			Reason:        models.ReasonBirthDateMismatch,
			VerifiedAt:    verifiedAt,
		}}, nil)

		req, err := newRequestWithBody(http.MethodGet, historyPath, nil,
			middleware.Principal{ID: uuid.UUID(holderID).String(), Role: middleware.RoleHolder})
		require.NoError(t, err)

		w := serveHistory(t, handler, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		events := resp["events"].([]any)
		require.Len(t, events, 1)
		event := events[0].(map[string]any)
		assert.Equal(t, "203.0.113.0", event["source_address"])
		assert.Equal(t, "denied", event["outcome"])
		// Denial reasons stay internal.
		assert.NotContains(t, event, "reason")
	})

	s.T().Run("403 forbidden - verifier token", func(t *testing.T) {
		handler, _ := newTestHandler(t)
		req, err := newRequestWithBody(http.MethodGet, historyPath, nil,
			middleware.Principal{ID: uuid.NewString(), Role: middleware.RoleVerifier})
		require.NoError(t, err)

		w := serveHistory(t, handler, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assertErrorResponse(t, w, "forbidden")
	})

	s.T().Run("403 forbidden - anonymous", func(t *testing.T) {
		handler, _ := newTestHandler(t)
		req, err := newRequestWithBody(http.MethodGet, historyPath, nil, middleware.Principal{})
		require.NoError(t, err)

		w := serveHistory(t, handler, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	s.T().Run("404 not found - credential of another holder", func(t *testing.T) {
		handler, mockService := newTestHandler(t)
		mockService.EXPECT().History(gomock.Any(), credID, holderID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "credential not found"))

		req, err := newRequestWithBody(http.MethodGet, historyPath, nil,
			middleware.Principal{ID: uuid.UUID(holderID).String(), Role: middleware.RoleHolder})
		require.NoError(t, err)

		w := serveHistory(t, handler, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assertErrorResponse(t, w, "not_found")
	})
}
