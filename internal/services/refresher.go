package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wayfarerlabs/tripweaver/internal/config"
	"github.com/wayfarerlabs/tripweaver/internal/metrics"
	"github.com/wayfarerlabs/tripweaver/internal/model"
	"github.com/wayfarerlabs/tripweaver/internal/refresh"
	"github.com/wayfarerlabs/tripweaver/internal/store"
	"github.com/wayfarerlabs/tripweaver/internal/traffic"
	"github.com/wayfarerlabs/tripweaver/internal/weather"
)

const refreshCountWindow = 24 * time.Hour

// Refresher periodically re-evaluates auto-refresh plans against live
// conditions and rebuilds the ones whose conditions drifted.
type Refresher struct {
	store    store.Store
	planner  *Planner
	detector refresh.Detector
	weather  weather.Provider
	trafficP traffic.Provider
	cfg      *config.Config
	met      *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time
}

// NewRefresher wires the background evaluation service.
func NewRefresher(st store.Store, planner *Planner, wp weather.Provider, tp traffic.Provider, cfg *config.Config, met *metrics.Metrics, log zerolog.Logger) *Refresher {
	return &Refresher{
		store:    st,
		planner:  planner,
		weather:  wp,
		trafficP: tp,
		cfg:      cfg,
		met:      met,
		log:      log.With().Str("component", "refresher").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce evaluates every auto-refresh plan in batches. One plan failing never
// stops the sweep; a short pause between batches keeps collaborator load flat.
func (r *Refresher) RunOnce(ctx context.Context) error {
	plans, err := r.store.ListAutoRefreshPlans(ctx)
	if err != nil {
		return err
	}

	batchSize := r.cfg.RefreshBatchSize
	if batchSize < 1 {
		batchSize = 10
	}
	delay := time.Duration(r.cfg.RefreshBatchDelaySec) * time.Second

	for start := 0; start < len(plans); start += batchSize {
		end := start + batchSize
		if end > len(plans) {
			end = len(plans)
		}
		for _, plan := range plans[start:end] {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := r.evaluatePlan(ctx, plan); err != nil {
				r.log.Error().Err(err).Str("plan_id", plan.PlanID).Msg("plan evaluation failed")
			}
		}
		if end < len(plans) && delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil
}

// EvaluatePlan runs one on-demand evaluation for a stored plan and returns
// its refreshed state.
func (r *Refresher) EvaluatePlan(ctx context.Context, planID string) (*model.Plan, error) {
	plan, err := r.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := r.evaluatePlan(ctx, plan); err != nil {
		return nil, err
	}
	return r.store.GetPlan(ctx, planID)
}

// evaluatePlan samples live conditions, runs change detection and rebuilds
// when warranted and allowed by the rolling refresh cap.
func (r *Refresher) evaluatePlan(ctx context.Context, plan *model.Plan) error {
	r.met.RefreshEvaluations.Inc()
	now := r.now()

	newWeather, observed := weather.CurrentOrDefault(ctx, r.weather, plan.Latitude, plan.Longitude, plan.Weather, r.log)
	newTraffic := r.sampleTraffic(ctx, plan, now)

	decision := r.detector.Evaluate(refresh.Inputs{
		OldWeather:      plan.Weather,
		NewWeather:      newWeather,
		WeatherObserved: observed,
		OldTraffic:      plan.Traffic,
		NewTraffic:      newTraffic,
		LevelCeiling:    model.ParseTrafficLevel(r.cfg.RefreshTrafficCeiling),
	})

	plan.Refresh.LastEvaluated = &now

	if !decision.ShouldRefresh {
		plan.Refresh.Status = "evaluated"
		return r.store.UpdatePlan(ctx, plan)
	}
	r.met.RefreshTriggered.WithLabelValues(decision.Severity).Inc()

	if !r.allowRefresh(plan, decision, now) {
		r.met.RefreshSkipped.WithLabelValues("daily-cap").Inc()
		plan.Refresh.Status = "deferred"
		plan.Refresh.Reasons = decision.Reasons
		r.log.Info().
			Str("plan_id", plan.PlanID).
			Str("severity", decision.Severity).
			Int("refresh_count", plan.Refresh.RefreshCount).
			Msg("refresh deferred by daily cap")
		return r.store.UpdatePlan(ctx, plan)
	}

	return r.planner.Rebuild(ctx, plan, decision.Reasons)
}

// allowRefresh enforces the rolling 24h cap. The window resets once it ages
// out; a CRITICAL decision bypasses the cap so dangerous conditions always
// reach the plan.
func (r *Refresher) allowRefresh(plan *model.Plan, decision refresh.Decision, now time.Time) bool {
	if now.Sub(plan.Refresh.CountWindowStart) >= refreshCountWindow {
		plan.Refresh.CountWindowStart = now
		plan.Refresh.RefreshCount = 0
	}
	if decision.Severity == refresh.SeverityCritical {
		return true
	}
	limit := r.cfg.RefreshDailyCap
	if limit < 1 {
		limit = 4
	}
	return plan.Refresh.RefreshCount < limit
}

// sampleTraffic takes one live reading per scheduled location. Failures fall
// back to the fail-closed SEVERE sample so degraded telemetry still registers
// as pressure toward a refresh, never away from one.
func (r *Refresher) sampleTraffic(ctx context.Context, plan *model.Plan, now time.Time) model.TrafficSnapshot {
	seen := make(map[string]struct{})
	var samples []model.TrafficSample
	for _, day := range plan.Draft.Days {
		for _, item := range day.Items {
			lat, lon := item.Activity.Latitude, item.Activity.Longitude
			if lat == 0 && lon == 0 {
				continue
			}
			key := item.Activity.ActivityID
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			callCtx, cancel := context.WithTimeout(ctx, r.cfg.TrafficTimeout())
			s, err := r.trafficP.Lookup(callCtx, lat, lon)
			cancel()
			if err != nil {
				r.log.Warn().Err(err).
					Str("activity_id", key).
					Str("reason", model.ReasonTrafficUnknown).
					Msg("refresh traffic lookup failed")
				s = model.TrafficSample{Latitude: lat, Longitude: lon, Level: model.TrafficSevere}
			}
			samples = append(samples, s)
		}
	}
	return traffic.BuildSnapshot(samples, now)
}

// Run loops RunOnce on the configured interval until ctx is canceled.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.log.Error().Err(err).Msg("refresh sweep failed")
			}
		}
	}
}
