package adapthttp

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"sugar/internal/app"
	"sugar/internal/domain"
)

func observedServer() (*Server, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	return &Server{log: zap.New(core)}, logs
}

func TestLoggingMiddleware(t *testing.T) {
	s, logs := observedServer()
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("OK"))
	})

	handler := requestIDMiddleware(s.loggingMiddleware(nextHandler))

	req := httptest.NewRequest("GET", "/test-path", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status %d, got %d", http.StatusTeapot, w.Code)
	}

	entries := logs.FilterMessage("http request").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["method"] != "GET" || fields["path"] != "/test-path" || fields["status"] != int64(418) || fields["request_id"] != "req-123" {
		t.Errorf("Log entry missing expected fields. Got: %v", fields)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	s, logs := observedServer()
	handler := s.recoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/explode", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Error("expected the panic to be logged")
	}
}

func TestFailHidesInternalErrors(t *testing.T) {
	s, logs := observedServer()

	w := httptest.NewRecorder()
	s.fail(w, httptest.NewRequest("GET", "/x", nil), errors.New("pq: password authentication failed"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if body := w.Body.String(); body != "{\"error\":\"internal error\"}\n" {
		t.Errorf("internal error leaked: %s", body)
	}
	if logs.FilterMessage("request failed").Len() != 1 {
		t.Error("expected the internal error to be logged")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidDate, http.StatusBadRequest},
		{domain.ErrInvalidTime, http.StatusBadRequest},
		{domain.ErrInvalidTimezone, http.StatusBadRequest},
		{domain.ErrValidation, http.StatusBadRequest},
		{app.ErrNoDetails, http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{app.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.ErrNotFound, http.StatusNotFound},
		{app.ErrUsersExist, http.StatusConflict},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]struct {
		header string
		token  string
		ok     bool
	}{
		"bearer":       {"Bearer abc", "abc", true},
		"lowercase":    {"bearer abc", "abc", true},
		"basic":        {"Basic abc", "", false},
		"empty":        {"", "", false},
		"missing part": {"Bearer", "", false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.Header.Set("Authorization", tc.header)
			token, ok := bearerToken(r)
			if token != tc.token || ok != tc.ok {
				t.Errorf("bearerToken(%q) = %q, %v", tc.header, token, ok)
			}
		})
	}
}
