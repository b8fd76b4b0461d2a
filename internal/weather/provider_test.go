package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarerlabs/tripweaver/internal/model"
)

func TestCurrentDecodesResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/current", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("lat"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"condition":"rain","tempC":14.5}`))
	}))
	defer ts.Close()

	p := NewHTTPProvider(ts.URL, time.Second)
	got, err := p.Current(context.Background(), 41.4, 2.2)
	require.NoError(t, err)
	assert.Equal(t, "rain", got.Condition)
	assert.InDelta(t, 14.5, got.TempC, 1e-9)
	assert.False(t, got.CapturedAt.IsZero())
}

func TestCurrentErrorsOnBadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	p := NewHTTPProvider(ts.URL, time.Second)
	_, err := p.Current(context.Background(), 41.4, 2.2)
	assert.Error(t, err)
}

func TestCurrentOrDefaultFallsBackToLast(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	p := NewHTTPProvider(ts.URL, time.Second)
	last := &model.WeatherSnapshot{Condition: "clouds", TempC: 17}
	got, ok := CurrentOrDefault(context.Background(), p, 41.4, 2.2, last, zerolog.Nop())
	assert.False(t, ok)
	assert.Equal(t, "clouds", got.Condition)
}

func TestCurrentOrDefaultMildDefault(t *testing.T) {
	got, ok := CurrentOrDefault(context.Background(), nil, 41.4, 2.2, nil, zerolog.Nop())
	assert.False(t, ok)
	assert.Equal(t, "clear", got.Condition)
	assert.InDelta(t, 20, got.TempC, 1e-9)
}
