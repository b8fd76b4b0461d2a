package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/wayfarerlabs/tripweaver/internal/budget"
	"github.com/wayfarerlabs/tripweaver/internal/health"
	"github.com/wayfarerlabs/tripweaver/internal/metrics"
	"github.com/wayfarerlabs/tripweaver/internal/model"
	"github.com/wayfarerlabs/tripweaver/internal/services"
)

// Server carries the handler dependencies.
type Server struct {
	planner   *services.Planner
	refresher *services.Refresher
	checker   *health.Aggregator
	met       *metrics.Metrics
	gatherer  prometheus.Gatherer
	log       zerolog.Logger
}

// NewServer builds the handler set.
func NewServer(planner *services.Planner, refresher *services.Refresher, checker *health.Aggregator, met *metrics.Metrics, gatherer prometheus.Gatherer, log zerolog.Logger) *Server {
	return &Server{
		planner:   planner,
		refresher: refresher,
		checker:   checker,
		met:       met,
		gatherer:  gatherer,
		log:       log.With().Str("component", "api").Logger(),
	}
}

// Router assembles the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(recoveryMiddleware(s.log))
	r.Use(loggingMiddleware(s.log, s.met))

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/plans", s.handleCreatePlan).Methods(http.MethodPost)
	v1.HandleFunc("/plans", s.handleListPlans).Methods(http.MethodGet)
	v1.HandleFunc("/plans/{planId}", s.handleGetPlan).Methods(http.MethodGet)
	v1.HandleFunc("/plans/{planId}", s.handleDeletePlan).Methods(http.MethodDelete)
	v1.HandleFunc("/plans/{planId}/refresh", s.handleEvaluateRefresh).Methods(http.MethodPost)
	v1.HandleFunc("/budget/allocate", s.handleAllocateBudget).Methods(http.MethodPost)
	v1.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req services.CreatePlanRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err, s.log)
		return
	}
	result, err := s.planner.CreatePlan(r.Context(), req)
	if err != nil {
		writeError(w, err, s.log)
		return
	}
	writeJSON(w, http.StatusCreated, result, s.log)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["planId"]
	plan, err := s.planner.GetPlan(r.Context(), planID)
	if err != nil {
		writeError(w, err, s.log)
		return
	}
	writeJSON(w, http.StatusOK, plan, s.log)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("ownerId")
	if ownerID == "" {
		writeError(w, model.ErrValidation, s.log)
		return
	}
	plans, err := s.planner.ListPlans(r.Context(), ownerID)
	if err != nil {
		writeError(w, err, s.log)
		return
	}
	if plans == nil {
		plans = []*model.Plan{}
	}
	writeJSON(w, http.StatusOK, plans, s.log)
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["planId"]
	if err := s.planner.DeletePlan(r.Context(), planID); err != nil {
		writeError(w, err, s.log)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvaluateRefresh(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["planId"]
	plan, err := s.refresher.EvaluatePlan(r.Context(), planID)
	if err != nil {
		writeError(w, err, s.log)
		return
	}
	writeJSON(w, http.StatusOK, plan, s.log)
}

type allocateRequest struct {
	Items     []model.MenuItem   `json:"items"`
	Budget    float64            `json:"budget"`
	GroupSize int                `json:"groupSize"`
	Cons      budget.Constraints `json:"constraints"`
}

func (s *Server) handleAllocateBudget(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err, s.log)
		return
	}
	if req.Budget < 0 {
		writeError(w, model.ErrValidation, s.log)
		return
	}
	alloc := s.planner.AllocateBudget(req.Items, req.Budget, req.GroupSize, req.Cons)
	writeJSON(w, http.StatusOK, alloc, s.log)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.checker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status, s.log)
}
