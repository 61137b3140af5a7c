package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/treespora/planner/planning"
)

const planColumns = `id, goal_id, version, model_name, plan_json, summary, target_date, is_active, created_at, updated_at`

// CurrentPlanPayload returns the payload of the plan the goal points to.
// It returns nil when the goal, its pointer, or the payload is missing.
func (s *Store) CurrentPlanPayload(ctx context.Context, goalID string) (json.RawMessage, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT ap.plan_json
		FROM goals g
		LEFT JOIN ai_plans ap ON g.current_plan_id = ap.id
		WHERE g.id = ?`), goalID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select current plan payload: %w", err)
	}
	return payload, nil
}

// LatestPlan returns the goal's most relevant plan: active first, then the
// highest version, then the newest. ErrNotFound when the goal has no plans.
func (s *Store) LatestPlan(ctx context.Context, goalID string) (*planning.Plan, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT `+planColumns+`
		FROM ai_plans
		WHERE goal_id = ?
		ORDER BY is_active DESC, version DESC, created_at DESC
		LIMIT 1`), goalID)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select latest plan: %w", err)
	}
	return p, nil
}

// ListPlans returns every plan of a goal, newest version first.
func (s *Store) ListPlans(ctx context.Context, goalID string) ([]*planning.Plan, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+planColumns+`
		FROM ai_plans
		WHERE goal_id = ?
		ORDER BY version DESC`), goalID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var out []*planning.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*planning.Plan, error) {
	var (
		p                planning.Plan
		modelName, sum   sql.NullString
		payload          []byte
		target           nullDate
		created, updated nullTime
	)
	if err := row.Scan(&p.ID, &p.GoalID, &p.Version, &modelName, &payload, &sum, &target, &p.IsActive, &created, &updated); err != nil {
		return nil, err
	}
	p.ModelName = modelName.String
	p.Payload = payload
	p.Summary = sum.String
	p.TargetDate = target.Date
	p.CreatedAt = created.Time
	p.UpdatedAt = updated.Time
	return &p, nil
}

// NewPlanVersion describes a plan version to create.
type NewPlanVersion struct {
	GoalID     string
	ModelName  string
	Payload    json.RawMessage
	Summary    string
	TargetDate civil.Date

	// GoalTargetDate, when set, is written to the goal as well.
	GoalTargetDate civil.Date
}

// CreatePlanVersion stores a new active plan version in one transaction: the
// version is max+1, every other plan of the goal is deactivated, and the goal
// points at the new plan.
//
// Concurrent calls for the same goal are not serialized. The unique
// (goal_id, version) index makes the losing transaction fail instead of
// storing a duplicate version.
func (s *Store) CreatePlanVersion(ctx context.Context, in NewPlanVersion) (*planning.Plan, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin plan transaction: %w", err)
	}
	defer rollback(tx)

	now := s.now()

	if !in.GoalTargetDate.IsZero() {
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE goals SET target_date = ?, updated_at = ? WHERE id = ?`),
			s.dateArg(in.GoalTargetDate), s.timeArg(now), in.GoalID); err != nil {
			return nil, fmt.Errorf("update goal target date: %w", err)
		}
	}

	var maxVersion int
	if err := tx.QueryRowContext(ctx, s.q(`SELECT COALESCE(MAX(version), 0) FROM ai_plans WHERE goal_id = ?`), in.GoalID).
		Scan(&maxVersion); err != nil {
		return nil, fmt.Errorf("select max version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.q(`UPDATE ai_plans SET is_active = ?, updated_at = ? WHERE goal_id = ? AND is_active = ?`),
		false, s.timeArg(now), in.GoalID, true); err != nil {
		return nil, fmt.Errorf("deactivate plans: %w", err)
	}

	p := &planning.Plan{
		ID:         uuid.NewString(),
		GoalID:     in.GoalID,
		Version:    maxVersion + 1,
		ModelName:  in.ModelName,
		Payload:    in.Payload,
		Summary:    in.Summary,
		TargetDate: in.TargetDate,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO ai_plans (id, goal_id, version, model_name, plan_json, summary, target_date, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, `+s.jsonParam()+`, ?, ?, ?, ?, ?)`),
		p.ID, p.GoalID, p.Version, nullString(p.ModelName), string(p.Payload), p.Summary,
		s.dateArg(p.TargetDate), true, s.timeArg(now), s.timeArg(now),
	); err != nil {
		return nil, fmt.Errorf("insert plan: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.q(`UPDATE goals SET current_plan_id = ?, updated_at = ? WHERE id = ?`),
		p.ID, s.timeArg(now), in.GoalID); err != nil {
		return nil, fmt.Errorf("point goal at plan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit plan: %w", err)
	}
	return p, nil
}
