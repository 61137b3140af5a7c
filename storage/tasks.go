package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/treespora/planner/planning"
)

// ExtendedTaskColumns must all exist for rows to carry goal linkage and scheduling.
var ExtendedTaskColumns = []string{"goal_id", "planned_date", "task_type", "status", "updated_at"}

// TaskColumns lists the columns of the tasks table.
func (s *Store) TaskColumns(ctx context.Context) ([]string, error) {
	query := `SELECT name FROM pragma_table_info('tasks')`
	if s.dialect == Postgres {
		query = `SELECT column_name FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = 'tasks'`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list task columns: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan task column: %w", err)
		}
		cols = append(cols, strings.ToLower(name))
	}
	return cols, rows.Err()
}

// SupportsExtendedTasks reports whether every extended task column exists.
func (s *Store) SupportsExtendedTasks(ctx context.Context) (bool, error) {
	cols, err := s.TaskColumns(ctx)
	if err != nil {
		return false, err
	}
	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c] = true
	}
	for _, c := range ExtendedTaskColumns {
		if !have[c] {
			return false, nil
		}
	}
	return true, nil
}

// TaskPlanWrite is one full replacement of a plan's tasks.
type TaskPlanWrite struct {
	PlanID     string
	GoalID     string
	Payload    json.RawMessage
	TargetDate civil.Date
	Result     *planning.TaskPlanResult

	// Extended writes goal_id, planned_date, task_type, status and updated_at.
	Extended bool
}

// ReplaceTaskPlan stores a normalized task plan in one transaction: the plan
// payload and target date are updated, every task row of the plan is deleted,
// and one row per task is inserted with a 1-based order_in_day.
// It returns the number of rows inserted.
func (s *Store) ReplaceTaskPlan(ctx context.Context, w TaskPlanWrite) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin task transaction: %w", err)
	}
	defer rollback(tx)

	now := s.timeArg(s.now())

	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE ai_plans
		SET plan_json = `+s.jsonParam()+`, target_date = ?, updated_at = ?
		WHERE id = ?`),
		string(w.Payload), s.dateArg(w.TargetDate), now, w.PlanID)
	if err != nil {
		return 0, fmt.Errorf("update plan payload: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, fmt.Errorf("update plan payload %s: %w", w.PlanID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM tasks WHERE plan_id = ?`), w.PlanID); err != nil {
		return 0, fmt.Errorf("delete tasks: %w", err)
	}

	insert := `INSERT INTO tasks (id, plan_id, day_index, order_in_day, description, estimated_minutes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	if w.Extended {
		insert = `INSERT INTO tasks (id, goal_id, plan_id, day_index, order_in_day, description, estimated_minutes,
			planned_date, task_type, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	}
	stmt, err := tx.PrepareContext(ctx, s.q(insert))
	if err != nil {
		return 0, fmt.Errorf("prepare task insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, day := range w.Result.Days {
		planned := s.dateArg(w.Result.PlannedDate(day.DayIndex))
		for i, task := range day.Tasks {
			args := []any{uuid.NewString(), w.PlanID, day.DayIndex, i + 1, task.Description, task.EstimatedMinutes, now}
			if w.Extended {
				args = []any{
					uuid.NewString(), w.GoalID, w.PlanID, day.DayIndex, i + 1, task.Description, task.EstimatedMinutes,
					planned, planning.TaskTypeCore, planning.TaskStatusPending, now, now,
				}
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return 0, fmt.Errorf("insert task day=%d order=%d: %w", day.DayIndex, i+1, err)
			}
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tasks: %w", err)
	}
	return inserted, nil
}

// TasksForDay returns a plan's tasks for one day ordered by order_in_day.
func (s *Store) TasksForDay(ctx context.Context, planID string, dayIndex int) ([]planning.DailyTask, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, description, estimated_minutes, completed_at
		FROM tasks
		WHERE plan_id = ? AND day_index = ?
		ORDER BY order_in_day ASC`), planID, dayIndex)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	out := make([]planning.DailyTask, 0)
	for rows.Next() {
		var (
			t         planning.DailyTask
			completed nullTime
		)
		if err := rows.Scan(&t.ID, &t.Description, &t.EstimatedMinutes, &completed); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.CompletedAt = completed.ptr()
		out = append(out, t)
	}
	return out, rows.Err()
}

// CompleteTask sets completed_at on a task.
func (s *Store) CompleteTask(ctx context.Context, taskID string) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE tasks SET completed_at = ? WHERE id = ?`), s.nowArg(), taskID)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
