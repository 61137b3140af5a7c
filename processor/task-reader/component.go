// Package taskreader reads the stored tasks of one day of a goal's plan.
package taskreader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/treespora/planner/planning"
	"github.com/treespora/planner/storage"
)

// Store is the persistence the reader needs.
type Store interface {
	LatestPlan(ctx context.Context, goalID string) (*planning.Plan, error)
	TasksForDay(ctx context.Context, planID string, dayIndex int) ([]planning.DailyTask, error)
}

// Component reads day tasks. It never writes.
type Component struct {
	store  Store
	logger *slog.Logger
}

// NewComponent creates a day task reader.
func NewComponent(store Store, logger *slog.Logger) *Component {
	if logger == nil {
		logger = slog.Default()
	}
	return &Component{store: store, logger: logger}
}

// TasksForDay returns the tasks of one day of the goal's latest plan ordered
// by their position in the day. A day without tasks yields an empty list.
func (c *Component) TasksForDay(ctx context.Context, goalID string, dayIndex int) (*planning.DayTasks, error) {
	if dayIndex < 0 {
		return nil, fmt.Errorf("%w: day_index must be >= 0, got %d", planning.ErrValidation, dayIndex)
	}

	plan, err := c.store.LatestPlan(ctx, goalID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: goal %s has no plan", planning.ErrActivePlanNotFound, goalID)
	}
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}

	tasks, err := c.store.TasksForDay(ctx, plan.ID, dayIndex)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	c.logger.Debug("Loaded day tasks",
		"goal_id", goalID,
		"plan_id", plan.ID,
		"day_index", dayIndex,
		"tasks", len(tasks))

	return &planning.DayTasks{
		GoalID:   goalID,
		PlanID:   plan.ID,
		DayIndex: dayIndex,
		Tasks:    tasks,
	}, nil
}
