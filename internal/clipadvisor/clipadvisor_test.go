// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package clipadvisor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ManuGH/vidlingo/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sentences = []model.Sentence{
	{Index: 0, Text: "Welcome to the STRASSE lesson.", Start: 1, End: 4},
	{Index: 1, Text: "Let's order a coffee.", Start: 5, End: 8},
	{Index: 2, Text: "Coffee is great.", Start: 9, End: 11},
}

type advisorFunc func(ctx context.Context, req Request) (Bounds, error)

func (f advisorFunc) Determine(ctx context.Context, req Request) (Bounds, error) { return f(ctx, req) }

func TestMatchSentencesCaseInsensitive(t *testing.T) {
	assert.Equal(t, []int{1, 2}, MatchSentences(sentences, "COFFEE"))
	assert.Equal(t, []int{0}, MatchSentences(sentences, "straße"), "full case folding")
	assert.Nil(t, MatchSentences(sentences, "xyz123"))
	assert.Nil(t, MatchSentences(sentences, "  "))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, Bounds{Start: 10, End: 13}, Clamp(Bounds{Start: 10, End: 11}))
	assert.Equal(t, Bounds{Start: 0, End: 60}, Clamp(Bounds{Start: 0, End: 120}))
	assert.Equal(t, Bounds{Start: 4, End: 20}, Clamp(Bounds{Start: 4, End: 20}))
	assert.Equal(t, Bounds{Start: 0, End: 5}, Clamp(Bounds{Start: -1, End: 5}))
	assert.Equal(t, Bounds{Start: 7, End: 10}, Clamp(Bounds{Start: 7, End: 2}))
}

func TestFallback(t *testing.T) {
	assert.Equal(t, Bounds{Start: 0, End: 6}, Fallback(sentences, []int{0}))
	assert.Equal(t, Bounds{Start: 3, End: 10}, Fallback(sentences, []int{1, 2}))
	assert.Equal(t, Bounds{Start: 0, End: 10}, Fallback(sentences, nil))
}

func TestResolveNoMatchAdvisorUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	b, src := Resolve(context.Background(), NewClient(url, time.Second, nil), sentences, "xyz123")
	assert.Equal(t, Bounds{Start: 0, End: 10}, b)
	assert.Equal(t, SourceFallback, src)
}

func TestResolveClampsAdvisorAnswer(t *testing.T) {
	var got Request
	adv := advisorFunc(func(_ context.Context, req Request) (Bounds, error) {
		got = req
		return Bounds{Start: 10, End: 11}, nil
	})
	b, src := Resolve(context.Background(), adv, sentences, "coffee")
	assert.Equal(t, SourceAdvisor, src)
	assert.Equal(t, Bounds{Start: 10, End: 13}, b)
	assert.Equal(t, []int{1, 2}, got.Matching)

	failing := advisorFunc(func(context.Context, Request) (Bounds, error) { return Bounds{}, errors.New("boom") })
	b, src = Resolve(context.Background(), failing, sentences, "coffee")
	assert.Equal(t, SourceFallback, src)
	assert.Equal(t, Bounds{Start: 3, End: 10}, b)

	_, src = Resolve(context.Background(), nil, sentences, "coffee")
	assert.Equal(t, SourceFallback, src)
}

func TestValidateExplicit(t *testing.T) {
	assert.NoError(t, ValidateExplicit(1, 5, 0))
	assert.NoError(t, ValidateExplicit(1, 5, 5))
	assert.ErrorIs(t, ValidateExplicit(5, 5, 0), ErrInvalidBounds)
	assert.ErrorIs(t, ValidateExplicit(-1, 5, 0), ErrInvalidBounds)
	assert.ErrorIs(t, ValidateExplicit(1, 6, 5), ErrInvalidBounds)
}

func TestClientDetermine(t *testing.T) {
	var got wireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/determine_boundaries", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"start_time": 4.5, "end_time": 12.0}`))
	}))
	defer srv.Close()

	b, err := NewClient(srv.URL, time.Second, nil).Determine(context.Background(), Request{Sentences: sentences, Phrase: "coffee"})
	require.NoError(t, err)
	assert.Equal(t, Bounds{Start: 4.5, End: 12}, b)
	assert.Len(t, got.Sentences, 3)
	assert.Equal(t, "coffee", got.SearchPhrase)
	assert.NotNil(t, got.MatchingIndices)
}

func TestClientRejectsIncompleteAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"start_time": 4.5}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, nil).Determine(context.Background(), Request{Sentences: sentences})
	assert.Error(t, err)
}
