// Package store persists plans. Two adapters exist: Postgres for deployments
// and SQLite for single-binary and test setups. Both keep the plan body as a
// JSON document beside a few queryable columns.
package store

import (
	"context"

	"github.com/wayfarerlabs/tripweaver/internal/model"
)

// Store is the persistence boundary for plans.
type Store interface {
	CreatePlan(ctx context.Context, plan *model.Plan) error
	GetPlan(ctx context.Context, planID string) (*model.Plan, error)
	ListPlans(ctx context.Context, ownerID string) ([]*model.Plan, error)
	// UpdatePlan replaces the stored body wholesale. Returns model.ErrNotFound
	// when the plan does not exist.
	UpdatePlan(ctx context.Context, plan *model.Plan) error
	DeletePlan(ctx context.Context, planID string) error
	// ListAutoRefreshPlans returns plans opted in to background re-evaluation.
	ListAutoRefreshPlans(ctx context.Context) ([]*model.Plan, error)
	Close() error
}
