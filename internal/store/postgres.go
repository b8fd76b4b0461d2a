package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/wayfarerlabs/tripweaver/internal/model"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS plans (
    plan_id      TEXT PRIMARY KEY,
    owner_id     TEXT NOT NULL,
    auto_refresh BOOLEAN NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMPTZ NOT NULL,
    body         JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_plans_owner ON plans (owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_plans_auto_refresh ON plans (auto_refresh) WHERE auto_refresh;
`

type postgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgres connects a pool, verifies connectivity, and ensures the schema.
func NewPostgres(ctx context.Context, dsn string, log zerolog.Logger) (Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure plans schema: %w", err)
	}
	log.Info().Msg("postgres plan store ready")
	return &postgresStore{pool: pool, log: log}, nil
}

func (s *postgresStore) CreatePlan(ctx context.Context, plan *model.Plan) error {
	body, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO plans (plan_id, owner_id, auto_refresh, created_at, body)
		 VALUES ($1, $2, $3, $4, $5)`,
		plan.PlanID, plan.OwnerID, plan.Refresh.AutoRefresh, plan.CreationTime, body)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

func (s *postgresStore) GetPlan(ctx context.Context, planID string) (*model.Plan, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM plans WHERE plan_id = $1`, planID).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select plan: %w", err)
	}
	return decodePlan(body)
}

func (s *postgresStore) ListPlans(ctx context.Context, ownerID string) ([]*model.Plan, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT body FROM plans WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()
	return collectPlans(rows)
}

func (s *postgresStore) UpdatePlan(ctx context.Context, plan *model.Plan) error {
	body, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE plans SET auto_refresh = $2, body = $3 WHERE plan_id = $1`,
		plan.PlanID, plan.Refresh.AutoRefresh, body)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *postgresStore) DeletePlan(ctx context.Context, planID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM plans WHERE plan_id = $1`, planID)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *postgresStore) ListAutoRefreshPlans(ctx context.Context) ([]*model.Plan, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT body FROM plans WHERE auto_refresh ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list auto-refresh plans: %w", err)
	}
	defer rows.Close()
	return collectPlans(rows)
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}

// HealthPing verifies pool connectivity for the health endpoint.
func (s *postgresStore) HealthPing(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func collectPlans(rows pgx.Rows) ([]*model.Plan, error) {
	var out []*model.Plan
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		plan, err := decodePlan(body)
		if err != nil {
			return nil, err
		}
		out = append(out, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plan rows: %w", err)
	}
	return out, nil
}

func decodePlan(body []byte) (*model.Plan, error) {
	var plan model.Plan
	if err := json.Unmarshal(body, &plan); err != nil {
		return nil, fmt.Errorf("decode plan body: %w", err)
	}
	return &plan, nil
}
