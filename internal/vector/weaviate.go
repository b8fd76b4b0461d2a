// Package vector wraps the Weaviate similarity-search collaborator.
package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	weaviate "github.com/weaviate/weaviate-go-client/v5/weaviate"
	gql "github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// Hit is a single similarity match for an activity.
type Hit struct {
	ActivityID string  `json:"activityId"`
	Title      string  `json:"title"`
	Type       string  `json:"type"`
	Similarity float64 `json:"similarity"`
}

// Searcher abstracts Weaviate interactions for retrieval and index upserts.
type Searcher interface {
	// Query runs a hybrid similarity query over the Activity class.
	Query(ctx context.Context, query string, vec []float32, topK int) ([]Hit, error)
	// UpsertActivity pushes one catalog activity into the class (best-effort).
	UpsertActivity(ctx context.Context, activityID string, vec []float32, payload map[string]interface{}) error
}

const activityClass = "Activity"

type weavSearcher struct {
	client  *weaviate.Client
	baseURL string // host:port without scheme
	alpha   float32
}

// NewWeaviateSearcher constructs a Searcher for baseURL host (host:port, no scheme).
func NewWeaviateSearcher(baseURL string, alpha float32) (Searcher, error) {
	cfg := weaviate.Config{Scheme: "http", Host: baseURL}
	cl, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &weavSearcher{client: cl, baseURL: baseURL, alpha: alpha}, nil
}

func (w *weavSearcher) Query(ctx context.Context, query string, vec []float32, topK int) ([]Hit, error) {
	if w == nil || w.client == nil {
		return nil, fmt.Errorf("weaviate client not initialised")
	}

	hy := (&gql.HybridArgumentBuilder{}).
		WithQuery(query).
		WithAlpha(w.alpha).
		WithProperties([]string{"title", "description", "tags"})
	if len(vec) > 0 {
		hy = hy.WithVector(vec)
	}

	req := w.client.GraphQL().Get().
		WithClassName(activityClass).
		WithHybrid(hy).
		WithLimit(topK).
		WithFields(
			gql.Field{Name: "activityId"},
			gql.Field{Name: "title"},
			gql.Field{Name: "type"},
			gql.Field{Name: "_additional", Fields: []gql.Field{{Name: "score"}}},
		)

	resp, err := req.Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate graphql: %s", formatGraphQLErrors(resp.Errors))
	}

	// Guard every level of the response shape; a malformed reply must never panic.
	getData, ok := resp.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	val := getData[activityClass]
	if val == nil {
		return []Hit{}, nil
	}
	raw, ok := val.([]interface{})
	if !ok {
		return nil, nil
	}

	out := make([]Hit, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		var score float64
		if add, ok := m["_additional"].(map[string]interface{}); ok {
			switch v := add["score"].(type) {
			case float64:
				score = v
			case string:
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					score = f
				}
			}
		}
		id, _ := m["activityId"].(string)
		if id == "" {
			continue
		}
		title, _ := m["title"].(string)
		typ, _ := m["type"].(string)
		out = append(out, Hit{ActivityID: id, Title: title, Type: typ, Similarity: score})
	}
	return out, nil
}

// UpsertActivity inserts or updates a single Activity object.
func (w *weavSearcher) UpsertActivity(ctx context.Context, activityID string, vec []float32, payload map[string]interface{}) error {
	if w == nil || w.client == nil {
		return fmt.Errorf("weaviate client not initialised")
	}
	_, err := w.client.Data().Creator().
		WithClassName(activityClass).
		WithProperties(payload).
		WithVector(vec).
		Do(ctx)
	return err
}

// HealthPing calls GET http://<baseURL>/v1/meta and expects 200 OK.
func (w *weavSearcher) HealthPing(ctx context.Context) error {
	if w == nil || w.baseURL == "" {
		return fmt.Errorf("weaviate baseURL missing")
	}
	url := w.baseURL
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/v1/meta", nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weaviate status %d", resp.StatusCode)
	}
	return nil
}

// formatGraphQLErrors returns a compact string with messages extracted for logging.
func formatGraphQLErrors(errs interface{}) string {
	if b, err := json.Marshal(errs); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%v", errs)
}
