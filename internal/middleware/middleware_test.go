package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/capitalize-ai/agent-configurator/pkg/logger"
)

func TestValidateMessageContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"ok", "olá", false},
		{"blank", "  \n", true},
		{"too long", strings.Repeat("a", maxContentLength+1), true},
		{"bad utf8", string([]byte{0xff, 0xfe}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateMessageContent(tt.content); (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateID(t *testing.T) {
	for _, id := range []string{"greeting-1", "nome-mandatory", "0190b3c4-7d7e-7a4b-9c1f-2f3e4d5c6b7a"} {
		if err := ValidateID(id); err != nil {
			t.Errorf("%q: %v", id, err)
		}
	}
	for _, id := range []string{"", "../etc", "a b", strings.Repeat("x", 129)} {
		if err := ValidateID(id); err == nil {
			t.Errorf("%q should be rejected", id)
		}
	}
}

func TestMaxBodySize(t *testing.T) {
	h := MaxBodySize(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123")))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestLogging_SetsCorrelationID(t *testing.T) {
	var seen string
	h := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "abc")
	h.ServeHTTP(rec, req)

	if seen != "abc" || rec.Header().Get("X-Correlation-ID") != "abc" {
		t.Errorf("correlation id not propagated: ctx=%q header=%q", seen, rec.Header().Get("X-Correlation-ID"))
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	var last int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/text", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d", last)
	}
}

func TestLimiter_AllowSharesCounter(t *testing.T) {
	l := NewLimiter(2, time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/ws", nil)
	req.RemoteAddr = "10.0.0.2:1234"

	if !l.Allow(req) {
		t.Fatal("first command should be allowed")
	}

	rec := httptest.NewRecorder()
	post := httptest.NewRequest(http.MethodPost, "/api/v1/chat/text", nil)
	post.RemoteAddr = "10.0.0.2:5678"
	l.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, post)
	if rec.Code != http.StatusOK {
		t.Fatalf("second request status = %d", rec.Code)
	}

	if l.Allow(req) {
		t.Error("third request from the same client should be limited")
	}

	var nilLimiter *Limiter
	if !nilLimiter.Allow(req) {
		t.Error("nil limiter should allow")
	}
}
