// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_EnforcesLimit(t *testing.T) {
	limited := RateLimit(RateLimitConfig{RequestLimit: 3, WindowSize: time.Second})(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		limited.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("Request %d: expected status 200, got %d", i+1, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	w := httptest.NewRecorder()
	limited.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("4th request: expected status 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("expected Retry-After 1, got %q", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
}

func TestClipRateLimit_KeysByUser(t *testing.T) {
	limited := ClipRateLimit(1, time.Minute)(okHandler())

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/clips", nil)
		req.RemoteAddr = "10.0.0.1:1000"
		if user != "" {
			req.Header.Set(HeaderUserID, user)
		}
		w := httptest.NewRecorder()
		limited.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("1"); code != http.StatusOK {
		t.Fatalf("user 1 first request: got %d", code)
	}
	if code := send("1"); code != http.StatusTooManyRequests {
		t.Fatalf("user 1 second request: got %d", code)
	}
	// Same IP, different user.
	if code := send("2"); code != http.StatusOK {
		t.Fatalf("user 2 first request: got %d", code)
	}
}

func TestClipRateLimit_DisabledPassesThrough(t *testing.T) {
	limited := ClipRateLimit(0, time.Minute)(okHandler())
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		limited.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/clips", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, w.Code)
		}
	}
}
