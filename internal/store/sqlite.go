package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/wayfarerlabs/tripweaver/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS plans (
    plan_id      TEXT PRIMARY KEY,
    owner_id     TEXT NOT NULL,
    auto_refresh INTEGER NOT NULL DEFAULT 0,
    created_at   TIMESTAMP NOT NULL,
    body         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_plans_owner ON plans (owner_id, created_at DESC);
`

type sqliteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSQLite opens (or creates) the database file and ensures the schema.
// Pass ":memory:" for an ephemeral store.
func NewSQLite(ctx context.Context, path string, log zerolog.Logger) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc's driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure plans schema: %w", err)
	}
	log.Info().Str("path", path).Msg("sqlite plan store ready")
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) CreatePlan(ctx context.Context, plan *model.Plan) error {
	body, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plans (plan_id, owner_id, auto_refresh, created_at, body)
		 VALUES (?, ?, ?, ?, ?)`,
		plan.PlanID, plan.OwnerID, plan.Refresh.AutoRefresh, plan.CreationTime, string(body))
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

func (s *sqliteStore) GetPlan(ctx context.Context, planID string) (*model.Plan, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM plans WHERE plan_id = ?`, planID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select plan: %w", err)
	}
	return decodePlan([]byte(body))
}

func (s *sqliteStore) ListPlans(ctx context.Context, ownerID string) ([]*model.Plan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM plans WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()
	return collectSQLPlans(rows)
}

func (s *sqliteStore) UpdatePlan(ctx context.Context, plan *model.Plan) error {
	body, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE plans SET auto_refresh = ?, body = ? WHERE plan_id = ?`,
		plan.Refresh.AutoRefresh, string(body), plan.PlanID)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *sqliteStore) DeletePlan(ctx context.Context, planID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE plan_id = ?`, planID)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *sqliteStore) ListAutoRefreshPlans(ctx context.Context) ([]*model.Plan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM plans WHERE auto_refresh = 1 ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list auto-refresh plans: %w", err)
	}
	defer rows.Close()
	return collectSQLPlans(rows)
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// HealthPing verifies database connectivity for the health endpoint.
func (s *sqliteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func collectSQLPlans(rows *sql.Rows) ([]*model.Plan, error) {
	var out []*model.Plan
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		plan, err := decodePlan([]byte(body))
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
