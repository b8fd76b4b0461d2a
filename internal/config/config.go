package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the planner service.
// Environment variables are parsed from the PLANNER_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Persistence. DBDriver selects postgres or sqlite; "auto" derives from DSN presence.
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`

	// Embedding / similarity search
	EmbedProvider  string `envconfig:"EMBED_PROVIDER" default:"ollama"`
	EmbedModel     string `envconfig:"EMBED_MODEL" default:"mxbai-embed-large"`
	SearchIndexURL string `envconfig:"SEARCH_INDEX_URL" default:"weaviate:8080"`
	SearchTopK     int    `envconfig:"SEARCH_TOP_K" default:"30"`

	// External collaborators
	TrafficBaseURL        string `envconfig:"TRAFFIC_BASE_URL" default:""`
	TrafficTimeoutSeconds int    `envconfig:"TRAFFIC_TIMEOUT_SECONDS" default:"5"`
	WeatherBaseURL        string `envconfig:"WEATHER_BASE_URL" default:""`
	WeatherTimeoutSeconds int    `envconfig:"WEATHER_TIMEOUT_SECONDS" default:"5"`
	DraftingBaseURL       string `envconfig:"DRAFTING_BASE_URL" default:""`
	DraftingMaxAttempts   int    `envconfig:"DRAFTING_MAX_ATTEMPTS" default:"3"`

	// Catalog / index
	CatalogPath          string `envconfig:"CATALOG_PATH" default:""`
	IndexMaxAgeMinutes   int    `envconfig:"INDEX_MAX_AGE_MINUTES" default:"30"`
	IndexSchemaVersion   int    `envconfig:"INDEX_SCHEMA_VERSION" default:"1"`
	CacheTTLSeconds      int    `envconfig:"CACHE_TTL_SECONDS" default:"300"`
	CacheMaxEntries      int    `envconfig:"CACHE_MAX_ENTRIES" default:"512"`
	DayStartHour         int    `envconfig:"DAY_START_HOUR" default:"8"`
	DayEndHour           int    `envconfig:"DAY_END_HOUR" default:"21"`
	MaxActivitiesPerDay  int    `envconfig:"MAX_ACTIVITIES_PER_DAY" default:"8"`
	TravelBufferMinutes  int    `envconfig:"TRAVEL_BUFFER_MINUTES" default:"30"`
	RefreshDailyCap      int    `envconfig:"REFRESH_DAILY_CAP" default:"4"`
	RefreshIntervalMin   int    `envconfig:"REFRESH_INTERVAL_MINUTES" default:"15"`
	RefreshBatchSize     int    `envconfig:"REFRESH_BATCH_SIZE" default:"10"`
	RefreshBatchDelaySec int    `envconfig:"REFRESH_BATCH_DELAY_SECONDS" default:"2"`
	// RefreshTrafficCeiling is the level above which a rebuild triggers.
	RefreshTrafficCeiling string `envconfig:"REFRESH_TRAFFIC_CEILING" default:"MODERATE"`

	// Health checking
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"5"`
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
}

// ResolveDefaults derives DBDriver when set to "auto" and validates the result.
func (c *Config) ResolveDefaults() error {
	if c.DBDriver == "" || c.DBDriver == "auto" {
		if c.PostgresDSN != "" {
			c.DBDriver = "postgres"
		} else {
			c.DBDriver = "sqlite"
		}
	}
	allowed := map[string]bool{"postgres": true, "sqlite": true}
	if !allowed[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.SearchIndexURL == "" {
		return fmt.Errorf("PLANNER_SEARCH_INDEX_URL is required")
	}
	if c.DayStartHour < 0 || c.DayEndHour > 24 || c.DayStartHour >= c.DayEndHour {
		return fmt.Errorf("invalid day window: %d-%d", c.DayStartHour, c.DayEndHour)
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Environment variables should be prefixed with PLANNER_
// Example: PLANNER_HTTP_PORT, PLANNER_SEARCH_INDEX_URL
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("PLANNER", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("port", cfg.HTTPPort).
		Str("embed_provider", cfg.EmbedProvider).
		Str("embed_model", cfg.EmbedModel).
		Str("search_index_url", cfg.SearchIndexURL).
		Int("search_top_k", cfg.SearchTopK).
		Str("refresh_traffic_ceiling", cfg.RefreshTrafficCeiling).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	cfg := &Config{
		Environment:    EnvTesting,
		HTTPPort:       8080,
		DBDriver:       "sqlite",
		SQLitePath:     ":memory:",
		EmbedProvider:  "ollama",
		EmbedModel:     "mxbai-embed-large",
		SearchIndexURL: "localhost:8082",
		SearchTopK:     30,

		TrafficTimeoutSeconds: 1,
		WeatherTimeoutSeconds: 1,
		DraftingMaxAttempts:   1,

		IndexMaxAgeMinutes:  30,
		IndexSchemaVersion:  1,
		CacheTTLSeconds:     60,
		CacheMaxEntries:     64,
		DayStartHour:        8,
		DayEndHour:          21,
		MaxActivitiesPerDay: 8,
		TravelBufferMinutes: 30,

		RefreshDailyCap:       4,
		RefreshIntervalMin:    15,
		RefreshBatchSize:      10,
		RefreshBatchDelaySec:  0,
		RefreshTrafficCeiling: "MODERATE",

		HealthProbeTimeoutSeconds: 1,
		HealthIntervalSeconds:     1,
	}
	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IndexMaxAge returns the staleness window for the search index.
func (c *Config) IndexMaxAge() time.Duration {
	return time.Duration(c.IndexMaxAgeMinutes) * time.Minute
}

// TrafficTimeout returns the per-call timeout for traffic lookups.
func (c *Config) TrafficTimeout() time.Duration {
	return time.Duration(c.TrafficTimeoutSeconds) * time.Second
}
