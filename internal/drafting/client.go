// Package drafting calls the narrative-drafting collaborator and hardens its
// loosely structured JSON output. The collaborator is best-effort: a plan is
// complete without a narrative, so every failure degrades to an empty
// suggestion instead of failing the request.
package drafting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/wayfarerlabs/tripweaver/internal/model"
)

// Suggestion is the recovered narrative for a plan.
type Suggestion struct {
	Summary string    `json:"summary"`
	Days    []DayNote `json:"days,omitempty"`
}

// DayNote is the narrative for one trip day.
type DayNote struct {
	DayIndex   int      `json:"dayIndex"`
	Narrative  string   `json:"narrative"`
	Highlights []string `json:"highlights,omitempty"`
}

// Client drafts narratives for scheduled plans.
type Client interface {
	Draft(ctx context.Context, plan *model.Plan) (Suggestion, error)
}

type httpClient struct {
	client      *resty.Client
	maxAttempts int
	log         zerolog.Logger
}

// NewHTTPClient builds a Client against baseURL. maxAttempts bounds the total
// tries per draft, including the first.
func NewHTTPClient(baseURL string, timeout time.Duration, maxAttempts int, log zerolog.Logger) Client {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &httpClient{client: c, maxAttempts: maxAttempts, log: log}
}

type draftRequest struct {
	Title     string   `json:"title"`
	Query     string   `json:"query"`
	Interests []string `json:"interests,omitempty"`
	Days      []struct {
		DayIndex int      `json:"dayIndex"`
		Titles   []string `json:"titles"`
	} `json:"days"`
}

// Draft requests a narrative and retries transient failures with exponential
// backoff and jitter. A malformed body that survives every recovery layer is
// not retried: the collaborator would return the same text again.
func (c *httpClient) Draft(ctx context.Context, plan *model.Plan) (Suggestion, error) {
	req := buildRequest(plan)

	var out Suggestion
	operation := func() error {
		body, err := c.post(ctx, req)
		if err != nil {
			return err
		}
		s, err := Decode(body)
		if err != nil {
			c.log.Warn().Err(err).
				Str("plan_id", plan.PlanID).
				Str("reason", model.ReasonDraftingMalformed).
				Msg("drafting response unrecoverable")
			return backoff.Permanent(err)
		}
		out = s
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(c.maxAttempts-1)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return Suggestion{}, err
	}
	return out, nil
}

func (c *httpClient) post(ctx context.Context, req draftRequest) ([]byte, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/v1/draft")
	if err != nil {
		return nil, fmt.Errorf("drafting request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("drafting status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

func buildRequest(plan *model.Plan) draftRequest {
	req := draftRequest{
		Title:     plan.Title,
		Query:     plan.Query,
		Interests: plan.Interests,
	}
	for _, day := range plan.Draft.Days {
		entry := struct {
			DayIndex int      `json:"dayIndex"`
			Titles   []string `json:"titles"`
		}{DayIndex: day.DayIndex}
		for _, item := range day.Items {
			entry.Titles = append(entry.Titles, item.Activity.Title)
		}
		req.Days = append(req.Days, entry)
	}
	return req
}

// DraftOrEmpty wraps Draft with the benign fallback: on any error the plan
// proceeds without a narrative.
func DraftOrEmpty(ctx context.Context, c Client, plan *model.Plan, log zerolog.Logger) Suggestion {
	if c == nil {
		return Suggestion{}
	}
	s, err := c.Draft(ctx, plan)
	if err != nil {
		log.Warn().Err(err).Str("plan_id", plan.PlanID).Msg("drafting skipped")
		return Suggestion{}
	}
	return s
}
