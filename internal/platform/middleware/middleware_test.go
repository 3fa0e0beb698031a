package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok")) //nolint:errcheck
	})
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	Recovery(logger)(panicking).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, internalErrorBody, w.Body.String())
}

func TestRequestID(t *testing.T) {
	var fromCtx string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = GetRequestID(r.Context())
	}))

	t.Run("generates an id when the client sends none", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NotEmpty(t, fromCtx)
		assert.Equal(t, fromCtx, w.Header().Get("X-Request-ID"))
	})

	t.Run("echoes a client-supplied id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "trace-4711")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, "trace-4711", fromCtx)
		assert.Equal(t, "trace-4711", w.Header().Get("X-Request-ID"))
	})
}

func TestLogger(t *testing.T) {
	run := func(t *testing.T, path string) string {
		t.Helper()
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		w := httptest.NewRecorder()
		Logger(logger)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return buf.String()
	}

	t.Run("logs api requests with size and status", func(t *testing.T) {
		line := run(t, "/v1/credentials")
		assert.Contains(t, line, `"path":"/v1/credentials"`)
		assert.Contains(t, line, `"status":200`)
		assert.Contains(t, line, `"bytes":2`)
	})

	t.Run("health and metrics probes stay out of the log", func(t *testing.T) {
		for _, path := range []string{"/health", "/health/ready", "/metrics"} {
			assert.Empty(t, run(t, path), path)
		}
	})
}

func TestContentTypeJSON(t *testing.T) {
	handler := ContentTypeJSON(okHandler())

	post := func(contentType string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, post("application/json").Code)
	assert.Equal(t, http.StatusOK, post("application/json; charset=utf-8").Code)
	assert.Equal(t, http.StatusOK, post("").Code)
	assert.Equal(t, http.StatusUnsupportedMediaType, post("text/plain").Code)

	t.Run("GET requests are never rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Content-Type", "text/plain")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
