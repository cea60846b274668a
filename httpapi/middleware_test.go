package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elimusphere/sphereauth"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestClientIPIgnoresForwardedUnlessTrusted(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:4321"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := clientIP(r, false); got != "10.0.0.5" {
		t.Fatalf("expected remote addr host, got %q", got)
	}
	if got := clientIP(r, true); got != "203.0.113.9" {
		t.Fatalf("expected first forwarded address, got %q", got)
	}

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", "198.51.100.7")
	if got := clientIP(r, true); got != "198.51.100.7" {
		t.Fatalf("expected real ip, got %q", got)
	}
}

func TestRequestIDReplacesOversizedHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = sphereauth.RequestIDFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, strings.Repeat("x", requestIDMaxLen+1))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if seen == "" || len(seen) > requestIDMaxLen {
		t.Fatalf("expected generated id, got %q", seen)
	}
	if w.Header().Get(RequestIDHeader) != seen {
		t.Fatal("response header must match context id")
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusInternalServerError} {
		h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	}

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []zapcore.Level{zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Fatalf("entry %d: expected %v, got %v", i, want[i], e.Level)
		}
		if e.ContextMap()["path"] != "/x" {
			t.Fatalf("entry %d: missing path field", i)
		}
	}
}
