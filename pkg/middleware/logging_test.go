package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"workhub-backend/pkg/models"
)

func TestStructuredLoggerRedactsEmail(t *testing.T) {
	var buf bytes.Buffer
	old := logOutput
	logOutput = &buf
	defer func() { logOutput = old }()

	h := structuredLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)
	req = req.WithContext(WithUser(req.Context(), &models.User{Email: "carol@acme.test"}))
	h.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	if strings.Contains(line, "carol@acme.test") {
		t.Fatalf("log line carries the full email: %s", line)
	}
	if !strings.Contains(line, models.RedactEmail("carol@acme.test")) {
		t.Errorf("log line missing the redacted actor: %s", line)
	}
}

func TestStructuredLoggerAnonymous(t *testing.T) {
	var buf bytes.Buffer
	old := logOutput
	logOutput = &buf
	defer func() { logOutput = old }()

	h := structuredLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	if !strings.Contains(buf.String(), `"user":"anonymous"`) {
		t.Errorf("log line = %s, want anonymous user", buf.String())
	}
}
