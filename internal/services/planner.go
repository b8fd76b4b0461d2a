// Package services orchestrates the planning flow: query processing,
// retrieval, traffic admission, scheduling, snapshots and persistence.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wayfarerlabs/tripweaver/internal/budget"
	"github.com/wayfarerlabs/tripweaver/internal/config"
	"github.com/wayfarerlabs/tripweaver/internal/drafting"
	"github.com/wayfarerlabs/tripweaver/internal/metrics"
	"github.com/wayfarerlabs/tripweaver/internal/model"
	"github.com/wayfarerlabs/tripweaver/internal/pipeline"
	"github.com/wayfarerlabs/tripweaver/internal/query"
	"github.com/wayfarerlabs/tripweaver/internal/scheduler"
	"github.com/wayfarerlabs/tripweaver/internal/store"
	"github.com/wayfarerlabs/tripweaver/internal/traffic"
	"github.com/wayfarerlabs/tripweaver/internal/weather"
)

// CreatePlanRequest carries everything needed to build a plan.
type CreatePlanRequest struct {
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	Query       string    `json:"query"`
	Interests   []string  `json:"interests,omitempty"`
	Days        int       `json:"days"`
	GroupSize   int       `json:"groupSize"`
	StartDate   time.Time `json:"startDate"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	BudgetTier  string    `json:"budgetTier,omitempty"`
	AutoRefresh bool      `json:"autoRefresh"`
}

// PlanResult is a plan plus its optional narrative and any degradation
// reason codes accumulated while building it.
type PlanResult struct {
	Plan      *model.Plan         `json:"plan"`
	Narrative drafting.Suggestion `json:"narrative"`
	Reasons   []string            `json:"reasons,omitempty"`
}

// Planner is the primary orchestration service.
type Planner struct {
	store   store.Store
	pipe    *pipeline.Pipeline
	filter  *traffic.Filter
	weather weather.Provider
	drafter drafting.Client
	alloc   *budget.Allocator
	cfg     *config.Config
	met     *metrics.Metrics
	log     zerolog.Logger
}

// NewPlanner wires the orchestration service. drafter and weather may be nil;
// the corresponding steps then run on fallbacks.
func NewPlanner(st store.Store, pipe *pipeline.Pipeline, filter *traffic.Filter, wp weather.Provider, drafter drafting.Client, alloc *budget.Allocator, cfg *config.Config, met *metrics.Metrics, log zerolog.Logger) *Planner {
	return &Planner{
		store:   st,
		pipe:    pipe,
		filter:  filter,
		weather: wp,
		drafter: drafter,
		alloc:   alloc,
		cfg:     cfg,
		met:     met,
		log:     log.With().Str("component", "planner").Logger(),
	}
}

func (p *Planner) validate(req *CreatePlanRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("%w: query is required", model.ErrValidation)
	}
	if req.Days < 1 {
		req.Days = 1
	}
	if req.Days > 14 {
		return fmt.Errorf("%w: days must be at most 14", model.ErrValidation)
	}
	if req.GroupSize < 1 {
		req.GroupSize = 1
	}
	if req.StartDate.IsZero() {
		req.StartDate = time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	}
	if req.Title == "" {
		req.Title = req.Query
	}
	return nil
}

// CreatePlan builds, snapshots and persists a plan. Collaborator failures
// degrade rather than fail: the returned reasons record each degradation.
func (p *Planner) CreatePlan(ctx context.Context, req CreatePlanRequest) (*PlanResult, error) {
	if err := p.validate(&req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	draft, weatherSnap, trafficSnap, reasons, err := p.assemble(ctx, assembleInput{
		query:     req.Query,
		interests: req.Interests,
		days:      req.Days,
		groupSize: req.GroupSize,
		startDate: req.StartDate,
		lat:       req.Latitude,
		lon:       req.Longitude,
		budget:    req.BudgetTier,
	})
	if err != nil {
		return nil, err
	}

	plan := &model.Plan{
		PlanID:       uuid.NewString(),
		OwnerID:      req.OwnerID,
		Title:        req.Title,
		Query:        req.Query,
		Interests:    req.Interests,
		Days:         req.Days,
		GroupSize:    req.GroupSize,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Draft:        draft,
		Weather:      &weatherSnap,
		Traffic:      &trafficSnap,
		CreationTime: now,
		Refresh: model.RefreshMetadata{
			AutoRefresh:      req.AutoRefresh,
			CountWindowStart: now,
			Status:           "created",
		},
	}

	narrative := drafting.DraftOrEmpty(ctx, p.drafter, plan, p.log)
	if p.drafter != nil && narrative.Summary == "" && len(narrative.Days) == 0 {
		reasons = append(reasons, model.ReasonDraftingMalformed)
		p.met.DraftingFailures.Inc()
	}

	if err := p.store.CreatePlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("persist plan: %w", err)
	}
	p.met.PlansCreated.Inc()
	p.log.Info().
		Str("plan_id", plan.PlanID).
		Int("days", plan.Days).
		Int("scheduled", countItems(draft)).
		Msg("plan created")

	return &PlanResult{Plan: plan, Narrative: narrative, Reasons: reasons}, nil
}

type assembleInput struct {
	query     string
	interests []string
	days      int
	groupSize int
	startDate time.Time
	lat       float64
	lon       float64
	budget    string
	lastW     *model.WeatherSnapshot
}

// assemble runs the retrieval-to-schedule core shared by create and rebuild.
func (p *Planner) assemble(ctx context.Context, in assembleInput) (model.ItineraryDraft, model.WeatherSnapshot, model.TrafficSnapshot, []string, error) {
	var reasons []string

	weatherSnap, observed := weather.CurrentOrDefault(ctx, p.weather, in.lat, in.lon, in.lastW, p.log)
	if !observed {
		reasons = append(reasons, model.ReasonWeatherUnavailable)
	}

	proc := query.Process(in.query)
	pctx := pipeline.Context{
		Interests:  in.interests,
		Weather:    weatherSnap.Condition,
		BudgetTier: in.budget,
		GroupSize:  in.groupSize,
	}

	limit := in.days * p.cfg.MaxActivitiesPerDay
	res, err := p.pipe.BuildCandidates(ctx, proc, pctx, limit)
	if err != nil {
		return model.ItineraryDraft{}, weatherSnap, model.TrafficSnapshot{}, nil, fmt.Errorf("build candidates: %w", err)
	}
	reasons = append(reasons, res.Reasons...)

	admitted, samples := p.filter.Admit(ctx, res.Candidates)
	if excluded := len(res.Candidates) - len(admitted); excluded > 0 {
		p.met.CandidatesExcluded.WithLabelValues("traffic").Add(float64(excluded))
	}
	trafficSnap := traffic.BuildSnapshot(samples, time.Now().UTC())

	schedCfg := scheduler.Config{
		StartDate:    in.startDate,
		DayStartHour: p.cfg.DayStartHour,
		DayEndHour:   p.cfg.DayEndHour,
		MaxPerDay:    p.cfg.MaxActivitiesPerDay,
		TravelBuffer: time.Duration(p.cfg.TravelBufferMinutes) * time.Minute,
	}
	draft := scheduler.Schedule(splitAcrossDays(admitted, in.days), schedCfg)
	if countItems(draft) < len(admitted) {
		reasons = append(reasons, model.ReasonSchedulingPartial)
	}
	return draft, weatherSnap, trafficSnap, reasons, nil
}

// Rebuild re-runs assembly for a persisted plan and updates it in place.
// The caller decides whether a rebuild is warranted.
func (p *Planner) Rebuild(ctx context.Context, plan *model.Plan, triggerReasons []string) error {
	now := time.Now().UTC()
	draft, weatherSnap, trafficSnap, reasons, err := p.assemble(ctx, assembleInput{
		query:     plan.Query,
		interests: plan.Interests,
		days:      plan.Days,
		groupSize: plan.GroupSize,
		startDate: firstDayDate(plan, now),
		lat:       plan.Latitude,
		lon:       plan.Longitude,
		lastW:     plan.Weather,
	})
	if err != nil {
		return err
	}

	plan.Draft = draft
	plan.Weather = &weatherSnap
	plan.Traffic = &trafficSnap
	plan.Refresh.LastRefreshed = &now
	plan.Refresh.Reasons = triggerReasons
	plan.Refresh.Status = "refreshed"
	plan.Refresh.RefreshCount++

	if err := p.store.UpdatePlan(ctx, plan); err != nil {
		return fmt.Errorf("persist rebuilt plan: %w", err)
	}
	p.met.PlansRebuilt.Inc()
	p.log.Info().
		Str("plan_id", plan.PlanID).
		Strs("trigger_reasons", triggerReasons).
		Strs("degradations", reasons).
		Msg("plan rebuilt")
	return nil
}

// GetPlan fetches one plan.
func (p *Planner) GetPlan(ctx context.Context, planID string) (*model.Plan, error) {
	return p.store.GetPlan(ctx, planID)
}

// ListPlans fetches an owner's plans, newest first.
func (p *Planner) ListPlans(ctx context.Context, ownerID string) ([]*model.Plan, error) {
	return p.store.ListPlans(ctx, ownerID)
}

// DeletePlan removes a plan.
func (p *Planner) DeletePlan(ctx context.Context, planID string) error {
	return p.store.DeletePlan(ctx, planID)
}

// AllocateBudget runs a budget selection over the supplied item pool.
func (p *Planner) AllocateBudget(pool []model.MenuItem, budgetAmount float64, groupSize int, cons budget.Constraints) model.BudgetAllocation {
	return p.alloc.Allocate(pool, budgetAmount, groupSize, cons)
}

// splitAcrossDays deals ranked candidates round-robin so every day receives
// a share of the strongest candidates.
func splitAcrossDays(cands []model.RankedCandidate, days int) [][]model.RankedCandidate {
	if days < 1 {
		days = 1
	}
	out := make([][]model.RankedCandidate, days)
	for i, c := range cands {
		d := i % days
		out[d] = append(out[d], c)
	}
	return out
}

func countItems(draft model.ItineraryDraft) int {
	n := 0
	for _, day := range draft.Days {
		n += len(day.Items)
	}
	return n
}

func firstDayDate(plan *model.Plan, now time.Time) time.Time {
	if len(plan.Draft.Days) > 0 && len(plan.Draft.Days[0].Items) > 0 {
		start := plan.Draft.Days[0].Items[0].Start
		return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	}
	return now.Truncate(24 * time.Hour)
}
