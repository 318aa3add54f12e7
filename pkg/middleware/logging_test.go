package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/weathermate/server/pkg/logger"
)

func TestRequestLogging_SetsCorrelationIDHeader(t *testing.T) {
	var buf bytes.Buffer
	base := newTestLogger(&buf)

	handler := RequestLogging(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))

	if got := rr.Header().Get("X-Correlation-ID"); got == "" {
		t.Error("expected a generated X-Correlation-ID response header")
	}
}

func TestRequestLogging_PropagatesIncomingCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	base := newTestLogger(&buf)

	var ctxCorrelationID string
	handler := RequestLogging(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxCorrelationID = logger.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Correlation-ID", "corr-incoming-42")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if ctxCorrelationID != "corr-incoming-42" {
		t.Errorf("context correlation_id = %q, want %q", ctxCorrelationID, "corr-incoming-42")
	}
	if got := rr.Header().Get("X-Correlation-ID"); got != "corr-incoming-42" {
		t.Errorf("response X-Correlation-ID = %q, want %q", got, "corr-incoming-42")
	}
}

func TestRequestLogging_LogsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	base := newTestLogger(&buf)

	handler := RequestLogging(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var out map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := out["method"]; got != "POST" {
		t.Errorf("method = %v, want POST", got)
	}
	if got := out["path"]; got != "/api/auth/register" {
		t.Errorf("path = %v, want /api/auth/register", got)
	}
	if got := out["status"]; got != float64(http.StatusCreated) {
		t.Errorf("status = %v, want %d", got, http.StatusCreated)
	}
}

func TestCacheControl_SetsHeaderOnGet(t *testing.T) {
	handler := CacheControl(120)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/weather/public/default", nil))

	if got := rr.Header().Get("Cache-Control"); got != "public, max-age=120" {
		t.Errorf("Cache-Control = %q, want %q", got, "public, max-age=120")
	}
}

func TestCacheControl_SkipsNonGet(t *testing.T) {
	handler := CacheControl(120)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))

	if got := rr.Header().Get("Cache-Control"); got != "" {
		t.Errorf("Cache-Control = %q, want empty for POST", got)
	}
}
