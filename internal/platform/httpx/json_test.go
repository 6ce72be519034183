// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ManuGH/vidlingo/internal/log"
	"github.com/ManuGH/vidlingo/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON(t *testing.T) {
	var gotCorrelation string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCorrelation = r.Header.Get("X-Correlation-ID")
		var in map[string]int
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]int{"double": in["n"] * 2})
	}))
	defer srv.Close()

	ctx := log.ContextWithCorrelationID(context.Background(), "corr-1")
	var out struct{ Double int }
	require.NoError(t, PostJSON(ctx, NewClient("t", time.Second), srv.URL, map[string]int{"n": 21}, &out))
	assert.Equal(t, 42, out.Double)
	assert.Equal(t, "corr-1", gotCorrelation)
}

func TestPostJSONClassifiesStatus(t *testing.T) {
	code := http.StatusBadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", code)
	}))
	defer srv.Close()
	c := NewClient("t", time.Second)

	err := PostJSON(context.Background(), c, srv.URL, struct{}{}, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "nope", se.Body)
	assert.True(t, resilience.IsPermanent(err))

	code = http.StatusServiceUnavailable
	err = PostJSON(context.Background(), c, srv.URL, struct{}{}, nil)
	require.ErrorAs(t, err, &se)
	assert.False(t, resilience.IsPermanent(err))

	code = http.StatusTooManyRequests
	assert.False(t, resilience.IsPermanent(PostJSON(context.Background(), c, srv.URL, struct{}{}, nil)))
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "http://stt:8000/transcribe", JoinURL("http://stt:8000/", "/transcribe"))
	assert.Equal(t, "http://stt/a", JoinURL("http://stt", "a"))
}
