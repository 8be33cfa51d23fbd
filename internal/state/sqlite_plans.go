package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapschema/pkg/dbobject"
)

// ErrPlanNotFound is returned by GetPlan for an unknown ID.
var ErrPlanNotFound = errors.New("plan not found")

// SavePlan records a computed plan and returns it with its new ID.
func (s *SQLiteStore) SavePlan(ctx context.Context, source, document string, ops []dbobject.Operation) (*Plan, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if ops == nil {
		ops = []dbobject.Operation{}
	}

	encoded, err := json.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("failed to encode operations: %w", err)
	}

	plan := &Plan{
		ID:         generateID(),
		CreatedAt:  time.Now().UTC(),
		Source:     source,
		Document:   document,
		Operations: ops,
	}

	s.logger.Debug("saving plan",
		slog.String("id", plan.ID),
		slog.Int("operations", len(ops)))

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plans (id, created_at, source, document, operation_count, operations) VALUES (?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.CreatedAt.Format(time.RFC3339Nano), plan.Source, plan.Document, len(ops), string(encoded),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save plan: %w", err)
	}
	return plan, nil
}

// GetPlan retrieves a plan by ID.
func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (*Plan, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, source, document, operations FROM plans WHERE id = ?`, id)
	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return plan, nil
}

// ListPlans returns up to limit plans, newest first. A limit <= 0 returns all.
func (s *SQLiteStore) ListPlans(ctx context.Context, limit int) ([]*Plan, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, source, document, operations FROM plans ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(row scanner) (*Plan, error) {
	var (
		plan      Plan
		createdAt string
		encoded   string
	)
	if err := row.Scan(&plan.ID, &createdAt, &plan.Source, &plan.Document, &encoded); err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("plan %s: bad created_at %q: %w", plan.ID, createdAt, err)
	}
	plan.CreatedAt = t

	if err := json.Unmarshal([]byte(encoded), &plan.Operations); err != nil {
		return nil, fmt.Errorf("plan %s: bad operations: %w", plan.ID, err)
	}
	return &plan, nil
}
