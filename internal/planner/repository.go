package planner

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StoredPlan is a persisted meal plan row.
type StoredPlan struct {
	ID        string
	RawQuery  string
	PlanData  []byte
	CreatedAt time.Time
}

// Repository is a database-backed store for generated plans.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a Repository over an open database handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Save inserts a generated plan.
func (r *Repository) Save(ctx context.Context, planID string, rawQuery string, planData []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO meal_plans (id, raw_query, plan_data, created_at) VALUES (?, ?, ?, ?)`,
		planID, rawQuery, planData, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert meal plan %s: %w", planID, err)
	}
	return nil
}

// ListRecent retrieves the N most recent plans, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]StoredPlan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, raw_query, plan_data, created_at FROM meal_plans ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal plans: %w", err)
	}
	defer rows.Close()

	var plans []StoredPlan
	for rows.Next() {
		var p StoredPlan
		if err := rows.Scan(&p.ID, &p.RawQuery, &p.PlanData, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meal plan row: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}
