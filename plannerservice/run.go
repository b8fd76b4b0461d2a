// Package plannerservice wires configuration, dependencies and the HTTP
// server into a runnable planning service.
package plannerservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wayfarerlabs/tripweaver/internal/api"
	"github.com/wayfarerlabs/tripweaver/internal/budget"
	"github.com/wayfarerlabs/tripweaver/internal/cache"
	"github.com/wayfarerlabs/tripweaver/internal/catalog"
	"github.com/wayfarerlabs/tripweaver/internal/config"
	"github.com/wayfarerlabs/tripweaver/internal/factory"
	"github.com/wayfarerlabs/tripweaver/internal/health"
	"github.com/wayfarerlabs/tripweaver/internal/logger"
	"github.com/wayfarerlabs/tripweaver/internal/metrics"
	"github.com/wayfarerlabs/tripweaver/internal/model"
	"github.com/wayfarerlabs/tripweaver/internal/pipeline"
	"github.com/wayfarerlabs/tripweaver/internal/searchindex"
	"github.com/wayfarerlabs/tripweaver/internal/services"
	"github.com/wayfarerlabs/tripweaver/internal/traffic"
	"github.com/wayfarerlabs/tripweaver/internal/vector"
)

// pingable is the optional health probe most collaborator clients implement.
type pingable interface {
	HealthPing(ctx context.Context) error
}

// Run boots the service and blocks until SIGINT/SIGTERM.
func Run() error {
	log := logger.New("tripweaver")

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	emb := factory.NewEmbedder(cfg)
	source := searchindex.Source(func(context.Context) ([]model.Activity, error) {
		return catalog.Load(cfg.CatalogPath)
	})
	indexMgr := searchindex.NewManager(source, emb, cfg.IndexMaxAge(), cfg.IndexSchemaVersion, log)

	searcher, err := factory.NewSearcher(cfg)
	if err != nil {
		return fmt.Errorf("connect similarity search: %w", err)
	}
	if err := vector.Bootstrap(ctx, cfg.SearchIndexURL); err != nil {
		log.Warn().Err(err).Msg("similarity schema bootstrap failed; queries may degrade")
	}

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	respCache := cache.New[[]vector.Hit](cacheTTL, cfg.CacheMaxEntries)
	trafficCache := cache.New[model.TrafficSample](cacheTTL, cfg.CacheMaxEntries)

	pipe := pipeline.New(searcher, emb, indexMgr, respCache, cfg.SearchTopK, log)

	trafficProv := factory.NewTrafficProvider(cfg)
	filter := traffic.NewFilter(trafficProv, trafficCache, cfg.TrafficTimeout(), log)
	weatherProv := factory.NewWeatherProvider(cfg)
	drafter := factory.NewDrafter(cfg, log)
	alloc := budget.NewAllocator(budget.DefaultTuning())

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)

	planner := services.NewPlanner(st, pipe, filter, weatherProv, drafter, alloc, cfg, met, log)
	refresher := services.NewRefresher(st, planner, weatherProv, trafficProv, cfg, met, log)

	checkers := []health.Checker{
		health.CheckerFunc{CheckerName: "index", Fn: func(ctx context.Context) error {
			_, err := indexMgr.Current(ctx)
			return err
		}},
	}
	probeTargets := map[string]any{
		"store":   st,
		"search":  searcher,
		"embed":   emb,
		"traffic": trafficProv,
	}
	for name, target := range probeTargets {
		if p, ok := target.(pingable); ok {
			checkers = append(checkers, health.CheckerFunc{CheckerName: name, Fn: p.HealthPing})
		}
	}
	aggregator := health.NewAggregator(
		time.Duration(cfg.HealthProbeTimeoutSeconds)*time.Second, log, checkers...)

	server := api.NewServer(planner, refresher, aggregator, met, reg, log)
	httpSrv := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go refresher.Run(ctx, time.Duration(cfg.RefreshIntervalMin)*time.Minute)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
