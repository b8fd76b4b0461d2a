package drafting

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarerlabs/tripweaver/internal/model"
)

func testDraftPlan() *model.Plan {
	return &model.Plan{
		PlanID: "plan-1",
		Title:  "Harbor weekend",
		Query:  "two days by the water",
		Draft: model.ItineraryDraft{Days: []model.PlanDay{
			{DayIndex: 0, Items: []model.PlanItem{{
				Activity: model.Activity{ActivityID: "a1", Title: "Harbor Walk"},
			}}},
		}},
	}
}

func TestDraftRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"summary":"Third time lucky"}`))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, time.Second, 3, zerolog.Nop())
	got, err := c.Draft(context.Background(), testDraftPlan())
	require.NoError(t, err)
	assert.Equal(t, "Third time lucky", got.Summary)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDraftGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, time.Second, 2, zerolog.Nop())
	_, err := c.Draft(context.Background(), testDraftPlan())
	assert.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDraftDoesNotRetryMalformedBody(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("total nonsense with no recoverable structure"))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, time.Second, 3, zerolog.Nop())
	_, err := c.Draft(context.Background(), testDraftPlan())
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, int32(1), calls.Load(), "malformed output is deterministic; retrying wastes calls")
}

func TestDraftRecoversFencedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("```json\n{\"summary\":\"Fenced draft\"}\n```"))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, time.Second, 1, zerolog.Nop())
	got, err := c.Draft(context.Background(), testDraftPlan())
	require.NoError(t, err)
	assert.Equal(t, "Fenced draft", got.Summary)
}

func TestDraftOrEmpty(t *testing.T) {
	got := DraftOrEmpty(context.Background(), nil, testDraftPlan(), zerolog.Nop())
	assert.Empty(t, got.Summary)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()
	c := NewHTTPClient(ts.URL, time.Second, 1, zerolog.Nop())
	got = DraftOrEmpty(context.Background(), c, testDraftPlan(), zerolog.Nop())
	assert.Empty(t, got.Summary)
}
