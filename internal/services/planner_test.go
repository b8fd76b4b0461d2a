package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarerlabs/tripweaver/internal/budget"
	"github.com/wayfarerlabs/tripweaver/internal/config"
	"github.com/wayfarerlabs/tripweaver/internal/metrics"
	"github.com/wayfarerlabs/tripweaver/internal/model"
	"github.com/wayfarerlabs/tripweaver/internal/pipeline"
	"github.com/wayfarerlabs/tripweaver/internal/searchindex"
	"github.com/wayfarerlabs/tripweaver/internal/traffic"
	"github.com/wayfarerlabs/tripweaver/internal/vector"
)

// memStore is an in-memory Store for orchestration tests.
type memStore struct {
	mu    sync.Mutex
	plans map[string]*model.Plan
}

func newMemStore() *memStore { return &memStore{plans: make(map[string]*model.Plan)} }

func (m *memStore) clone(p *model.Plan) *model.Plan {
	raw, _ := json.Marshal(p)
	var out model.Plan
	_ = json.Unmarshal(raw, &out)
	return &out
}

func (m *memStore) CreatePlan(_ context.Context, plan *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.PlanID] = m.clone(plan)
	return nil
}

func (m *memStore) GetPlan(_ context.Context, planID string) (*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[planID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return m.clone(p), nil
}

func (m *memStore) ListPlans(_ context.Context, ownerID string) ([]*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Plan
	for _, p := range m.plans {
		if p.OwnerID == ownerID {
			out = append(out, m.clone(p))
		}
	}
	return out, nil
}

func (m *memStore) UpdatePlan(_ context.Context, plan *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[plan.PlanID]; !ok {
		return model.ErrNotFound
	}
	m.plans[plan.PlanID] = m.clone(plan)
	return nil
}

func (m *memStore) DeletePlan(_ context.Context, planID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[planID]; !ok {
		return model.ErrNotFound
	}
	delete(m.plans, planID)
	return nil
}

func (m *memStore) ListAutoRefreshPlans(_ context.Context) ([]*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Plan
	for _, p := range m.plans {
		if p.Refresh.AutoRefresh {
			out = append(out, m.clone(p))
		}
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

type stubSearcher struct{ hits []vector.Hit }

func (s *stubSearcher) Query(context.Context, string, []float32, int) ([]vector.Hit, error) {
	return s.hits, nil
}

func (s *stubSearcher) UpsertActivity(context.Context, string, []float32, map[string]interface{}) error {
	return nil
}

type stubTraffic struct {
	mu     sync.Mutex
	sample model.TrafficSample
}

func (s *stubTraffic) set(sample model.TrafficSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sample = sample
}

func (s *stubTraffic) Lookup(_ context.Context, lat, lon float64) (model.TrafficSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sample := s.sample
	sample.Latitude, sample.Longitude = lat, lon
	return sample, nil
}

type stubWeather struct {
	mu   sync.Mutex
	snap model.WeatherSnapshot
}

func (s *stubWeather) set(cond string, temp float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = model.WeatherSnapshot{Condition: cond, TempC: temp, CapturedAt: time.Now().UTC()}
}

func (s *stubWeather) Current(context.Context, float64, float64) (model.WeatherSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, nil
}

func testCatalog() []model.Activity {
	return []model.Activity{
		{ActivityID: "park-1", Title: "Central Park", Description: "Famous free park with nature trails",
			Type: "Nature", Tags: []string{"Outdoor", "Nature"}, OpenHours: "24 hours", Latitude: 41.1, Longitude: 2.1},
		{ActivityID: "museum-1", Title: "Maritime Museum", Description: "History and heritage exhibits",
			Type: "Museum", Tags: []string{"Indoor-Friendly"}, OpenHours: "9:00 AM - 5:00 PM", Latitude: 41.2, Longitude: 2.2},
		{ActivityID: "food-1", Title: "Harbor Bistro", Description: "Local cuisine and seafood dining",
			Type: "Food", Tags: []string{"Indoor-Friendly"}, OpenHours: "12:00 PM - 11:00 PM", Latitude: 41.3, Longitude: 2.3},
		{ActivityID: "shop-1", Title: "Old Town Market", Description: "Boutique shopping arcade",
			Type: "Shopping", Tags: []string{}, OpenHours: "10:00 AM - 8:00 PM", Latitude: 41.4, Longitude: 2.4},
	}
}

type harness struct {
	planner   *Planner
	refresher *Refresher
	store     *memStore
	weather   *stubWeather
	traffic   *stubTraffic
	cfg       *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zerolog.Nop()
	cfg := config.NewForTesting()

	var hits []vector.Hit
	for _, a := range testCatalog() {
		hits = append(hits, vector.Hit{ActivityID: a.ActivityID, Title: a.Title, Type: a.Type, Similarity: 0.9})
	}

	source := searchindex.Source(func(context.Context) ([]model.Activity, error) {
		return testCatalog(), nil
	})
	mgr := searchindex.NewManager(source, nil, time.Hour, 1, log)
	pipe := pipeline.New(&stubSearcher{hits: hits}, nil, mgr, nil, cfg.SearchTopK, log)

	tp := &stubTraffic{}
	tp.set(model.TrafficSample{Level: model.TrafficLow, CongestionScore: 20, CrowdLevel: "LOW"})
	filter := traffic.NewFilter(tp, nil, time.Second, log)

	wp := &stubWeather{}
	wp.set("clear", 22)

	st := newMemStore()
	met := metrics.New(prometheus.NewRegistry())
	alloc := budget.NewAllocator(budget.DefaultTuning())

	planner := NewPlanner(st, pipe, filter, wp, nil, alloc, cfg, met, log)
	refresher := NewRefresher(st, planner, wp, tp, cfg, met, log)
	return &harness{planner: planner, refresher: refresher, store: st, weather: wp, traffic: tp, cfg: cfg}
}

func createRequest() CreatePlanRequest {
	return CreatePlanRequest{
		OwnerID:     "owner-1",
		Query:       "explore nature and local food",
		Interests:   []string{"nature", "food"},
		Days:        2,
		GroupSize:   2,
		StartDate:   time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		Latitude:    41.0,
		Longitude:   2.0,
		AutoRefresh: true,
	}
}

func TestCreatePlanSchedulesAndPersists(t *testing.T) {
	h := newHarness(t)
	res, err := h.planner.CreatePlan(context.Background(), createRequest())
	require.NoError(t, err)

	plan := res.Plan
	assert.NotEmpty(t, plan.PlanID)
	require.Len(t, plan.Draft.Days, 2)

	total := 0
	for _, day := range plan.Draft.Days {
		total += len(day.Items)
	}
	assert.Greater(t, total, 0, "at least one activity must be scheduled")

	require.NotNil(t, plan.Weather)
	assert.Equal(t, "clear", plan.Weather.Condition)
	require.NotNil(t, plan.Traffic)
	assert.LessOrEqual(t, plan.Traffic.AvgLevel, model.TrafficModerate)

	stored, err := h.store.GetPlan(context.Background(), plan.PlanID)
	require.NoError(t, err)
	assert.Equal(t, plan.PlanID, stored.PlanID)
}

func TestCreatePlanValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.planner.CreatePlan(context.Background(), CreatePlanRequest{Query: "   "})
	assert.ErrorIs(t, err, model.ErrValidation)

	req := createRequest()
	req.Days = 30
	_, err = h.planner.CreatePlan(context.Background(), req)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCreatePlanExcludesSevereTraffic(t *testing.T) {
	h := newHarness(t)
	h.traffic.set(model.TrafficSample{Level: model.TrafficSevere, CongestionScore: 95})

	res, err := h.planner.CreatePlan(context.Background(), createRequest())
	require.NoError(t, err)
	for _, day := range res.Plan.Draft.Days {
		assert.Empty(t, day.Items, "no activity may be scheduled under severe traffic")
	}
}

func TestRefreshRebuildsOnStormArrival(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.planner.CreatePlan(ctx, createRequest())
	require.NoError(t, err)
	planID := res.Plan.PlanID

	// Conditions flip from clear/22C to thunderstorm/19C.
	h.weather.set("thunderstorm", 19)
	require.NoError(t, h.refresher.RunOnce(ctx))

	got, err := h.store.GetPlan(ctx, planID)
	require.NoError(t, err)
	require.NotNil(t, got.Refresh.LastRefreshed)
	assert.Equal(t, 1, got.Refresh.RefreshCount)
	assert.Equal(t, "refreshed", got.Refresh.Status)
	assert.Contains(t, got.Refresh.Reasons, "extreme-weather")
	assert.Equal(t, "thunderstorm", got.Weather.Condition)
}

func TestRefreshNoTriggerNoRebuild(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.planner.CreatePlan(ctx, createRequest())
	require.NoError(t, err)

	// Conditions barely move: no rebuild, but the evaluation is recorded.
	h.weather.set("clear", 24)
	require.NoError(t, h.refresher.RunOnce(ctx))

	got, err := h.store.GetPlan(ctx, res.Plan.PlanID)
	require.NoError(t, err)
	assert.Nil(t, got.Refresh.LastRefreshed)
	assert.NotNil(t, got.Refresh.LastEvaluated)
	assert.Equal(t, "evaluated", got.Refresh.Status)
}

func TestRefreshDailyCapDefersLowSeverity(t *testing.T) {
	h := newHarness(t)
	h.cfg.RefreshDailyCap = 1
	ctx := context.Background()

	res, err := h.planner.CreatePlan(ctx, createRequest())
	require.NoError(t, err)
	planID := res.Plan.PlanID

	// First trigger: a modest temperature shift, LOW severity, consumes the cap.
	h.weather.set("clear", 28.5)
	require.NoError(t, h.refresher.RunOnce(ctx))
	got, err := h.store.GetPlan(ctx, planID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Refresh.RefreshCount)

	// Second low-severity trigger is deferred by the cap.
	h.weather.set("clear", 35)
	require.NoError(t, h.refresher.RunOnce(ctx))
	got, err = h.store.GetPlan(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Refresh.RefreshCount)
	assert.Equal(t, "deferred", got.Refresh.Status)

	// A CRITICAL decision bypasses the cap.
	h.weather.set("hurricane", 18)
	require.NoError(t, h.refresher.RunOnce(ctx))
	got, err = h.store.GetPlan(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Refresh.RefreshCount)
}

func TestEvaluatePlanNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.refresher.EvaluatePlan(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAllocateBudgetPassthrough(t *testing.T) {
	h := newHarness(t)
	pool := []model.MenuItem{
		{ItemID: "m1", Category: "Lunch", Price: 15, Popularity: 80},
		{ItemID: "m2", Category: "Drinks", Price: 5, Popularity: 70},
	}
	got := h.planner.AllocateBudget(pool, 50, 2, budget.Constraints{MinPerPerson: 1, MaxPerPerson: 2})
	assert.NotEmpty(t, got.Items)
	assert.LessOrEqual(t, got.TotalCost, 50.0)
}
