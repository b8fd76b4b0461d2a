// Package traffic integrates the live road-traffic collaborator and applies
// the fail-closed admission policy over ranked candidates.
package traffic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wayfarerlabs/tripweaver/internal/model"
)

// Provider returns a live congestion reading for a coordinate pair.
type Provider interface {
	Lookup(ctx context.Context, lat, lon float64) (model.TrafficSample, error)
}

type httpProvider struct {
	client *resty.Client
}

// NewHTTPProvider builds a Provider against baseURL with the per-call timeout.
func NewHTTPProvider(baseURL string, timeout time.Duration) Provider {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &httpProvider{client: c}
}

type lookupResponse struct {
	CongestionScore float64 `json:"congestionScore"`
	Level           string  `json:"level"`
	CrowdLevel      string  `json:"crowdLevel"`
	Recommendation  string  `json:"recommendation"`
	Incidents       []struct {
		Kind           string `json:"kind"`
		Description    string `json:"description"`
		DelayMagnitude int    `json:"delayMagnitude"`
	} `json:"incidents"`
}

func (p *httpProvider) Lookup(ctx context.Context, lat, lon float64) (model.TrafficSample, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("lat", fmt.Sprintf("%.6f", lat)).
		SetQueryParam("lon", fmt.Sprintf("%.6f", lon)).
		Get("/v1/congestion")
	if err != nil {
		return model.TrafficSample{}, fmt.Errorf("traffic request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return model.TrafficSample{}, fmt.Errorf("traffic status %d", resp.StatusCode())
	}

	var lr lookupResponse
	if err := json.Unmarshal(resp.Body(), &lr); err != nil {
		return model.TrafficSample{}, fmt.Errorf("decode traffic response: %w", err)
	}

	s := model.TrafficSample{
		Latitude:        lat,
		Longitude:       lon,
		CongestionScore: lr.CongestionScore,
		Level:           model.ParseTrafficLevel(lr.Level),
		CrowdLevel:      lr.CrowdLevel,
		Recommendation:  lr.Recommendation,
	}
	for _, in := range lr.Incidents {
		s.Incidents = append(s.Incidents, model.Incident{
			Kind:           in.Kind,
			Description:    in.Description,
			DelayMagnitude: in.DelayMagnitude,
		})
	}
	return s, nil
}

// HealthPing probes the provider's status endpoint.
func (p *httpProvider) HealthPing(ctx context.Context) error {
	resp, err := p.client.R().SetContext(ctx).Get("/v1/status")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("traffic status %d", resp.StatusCode())
	}
	return nil
}
