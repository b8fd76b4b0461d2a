// Package weather fetches current conditions from the weather collaborator.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/wayfarerlabs/tripweaver/internal/model"
)

// Provider returns current conditions for a coordinate pair.
type Provider interface {
	Current(ctx context.Context, lat, lon float64) (model.WeatherSnapshot, error)
}

type httpProvider struct {
	client *resty.Client
}

// NewHTTPProvider builds a Provider against baseURL with the given timeout.
func NewHTTPProvider(baseURL string, timeout time.Duration) Provider {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &httpProvider{client: c}
}

type currentResponse struct {
	Condition string  `json:"condition"`
	TempC     float64 `json:"tempC"`
}

func (p *httpProvider) Current(ctx context.Context, lat, lon float64) (model.WeatherSnapshot, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("lat", fmt.Sprintf("%.6f", lat)).
		SetQueryParam("lon", fmt.Sprintf("%.6f", lon)).
		Get("/v1/current")
	if err != nil {
		return model.WeatherSnapshot{}, fmt.Errorf("weather request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return model.WeatherSnapshot{}, fmt.Errorf("weather status %d", resp.StatusCode())
	}
	var cr currentResponse
	if err := json.Unmarshal(resp.Body(), &cr); err != nil {
		return model.WeatherSnapshot{}, fmt.Errorf("decode weather response: %w", err)
	}
	return model.WeatherSnapshot{
		Condition:  cr.Condition,
		TempC:      cr.TempC,
		CapturedAt: time.Now().UTC(),
	}, nil
}

// CurrentOrDefault wraps a Provider call with the benign fallback: on failure
// it returns last (when present) or a mild clear-sky default, flagged so the
// refresh service can lower its confidence.
func CurrentOrDefault(ctx context.Context, p Provider, lat, lon float64, last *model.WeatherSnapshot, log zerolog.Logger) (model.WeatherSnapshot, bool) {
	if p != nil {
		snap, err := p.Current(ctx, lat, lon)
		if err == nil {
			return snap, true
		}
		log.Warn().Err(err).Str("reason", model.ReasonWeatherUnavailable).Msg("weather fetch failed; using fallback")
	}
	if last != nil {
		return *last, false
	}
	return model.WeatherSnapshot{Condition: "clear", TempC: 20, CapturedAt: time.Now().UTC()}, false
}
