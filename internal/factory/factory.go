// Package factory builds the concrete dependencies selected by configuration.
package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wayfarerlabs/tripweaver/internal/config"
	"github.com/wayfarerlabs/tripweaver/internal/drafting"
	"github.com/wayfarerlabs/tripweaver/internal/embeddings/ollama"
	"github.com/wayfarerlabs/tripweaver/internal/model"
	"github.com/wayfarerlabs/tripweaver/internal/searchindex"
	"github.com/wayfarerlabs/tripweaver/internal/store"
	"github.com/wayfarerlabs/tripweaver/internal/traffic"
	"github.com/wayfarerlabs/tripweaver/internal/vector"
	"github.com/wayfarerlabs/tripweaver/internal/weather"
)

// NewStore selects the persistence adapter from the resolved driver.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.PostgresDSN, log)
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = "tripweaver.db"
		}
		return store.NewSQLite(ctx, path, log)
	}
	return nil, fmt.Errorf("unsupported db driver: %s", cfg.DBDriver)
}

// NewEmbedder builds the embedding provider, or nil when disabled. Queries
// then run keyword-only against the similarity index.
func NewEmbedder(cfg *config.Config) searchindex.Embedder {
	switch cfg.EmbedProvider {
	case "ollama":
		return ollama.New(cfg.EmbedModel)
	default:
		return nil
	}
}

// NewSearcher connects the similarity-search collaborator.
func NewSearcher(cfg *config.Config) (vector.Searcher, error) {
	return vector.NewWeaviateSearcher(cfg.SearchIndexURL, 0.6)
}

// NewTrafficProvider builds the live traffic client. Without a configured
// base URL it returns a provider whose every lookup errors, which the filter
// converts to the fail-closed SEVERE sample.
func NewTrafficProvider(cfg *config.Config) traffic.Provider {
	if cfg.TrafficBaseURL == "" {
		return unconfiguredTraffic{}
	}
	return traffic.NewHTTPProvider(cfg.TrafficBaseURL, cfg.TrafficTimeout())
}

type unconfiguredTraffic struct{}

func (unconfiguredTraffic) Lookup(context.Context, float64, float64) (model.TrafficSample, error) {
	return model.TrafficSample{}, fmt.Errorf("traffic provider not configured")
}

// NewWeatherProvider builds the weather client, or nil when unconfigured.
func NewWeatherProvider(cfg *config.Config) weather.Provider {
	if cfg.WeatherBaseURL == "" {
		return nil
	}
	return weather.NewHTTPProvider(cfg.WeatherBaseURL, time.Duration(cfg.WeatherTimeoutSeconds)*time.Second)
}

// NewDrafter builds the narrative-drafting client, or nil when unconfigured.
func NewDrafter(cfg *config.Config, log zerolog.Logger) drafting.Client {
	if cfg.DraftingBaseURL == "" {
		return nil
	}
	return drafting.NewHTTPClient(cfg.DraftingBaseURL, 30*time.Second, cfg.DraftingMaxAttempts, log)
}
