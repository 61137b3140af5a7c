package taskgenerator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"cloud.google.com/go/civil"

	"github.com/treespora/planner/planning"
)

// Runner runs one task plan generation.
type Runner interface {
	Generate(ctx context.Context, goalID string, startOverride civil.Date) (*planning.TaskPlanResult, error)
}

// Trigger starts best-effort task plan generation for a goal. It never
// reports failure to the caller.
type Trigger interface {
	Trigger(ctx context.Context, goalID string)
}

// NewTrigger returns a Dispatcher when config.Async is set and a SyncTrigger otherwise.
// The Dispatcher must be started with Run.
func NewTrigger(runner Runner, config Config, logger *slog.Logger) Trigger {
	if config.Async {
		return NewDispatcher(runner, config, logger)
	}
	return NewSyncTrigger(runner, logger)
}

// SyncTrigger generates inline on the caller's goroutine and swallows errors.
type SyncTrigger struct {
	runner Runner
	logger *slog.Logger
}

// NewSyncTrigger creates an inline trigger.
func NewSyncTrigger(runner Runner, logger *slog.Logger) *SyncTrigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncTrigger{runner: runner, logger: logger}
}

// Trigger implements Trigger.
func (t *SyncTrigger) Trigger(ctx context.Context, goalID string) {
	if _, err := t.runner.Generate(ctx, goalID, civil.Date{}); err != nil {
		t.logger.Error("Best-effort task plan generation failed",
			"goal_id", goalID,
			"error", err)
	}
}

// Dispatcher queues goal ids for a single background worker.
// A full queue drops the submission.
type Dispatcher struct {
	runner  Runner
	queue   chan string
	timeout time.Duration
	logger  *slog.Logger

	submitted atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
	completed atomic.Int64
}

// NewDispatcher creates a dispatcher with a queue of config.QueueSize.
func NewDispatcher(runner Runner, config Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	size := config.QueueSize
	if size < 1 {
		size = 1
	}
	return &Dispatcher{
		runner:  runner,
		queue:   make(chan string, size),
		timeout: config.Timeout,
		logger:  logger,
	}
}

// Trigger implements Trigger. It never blocks; ctx is not used by the job.
func (d *Dispatcher) Trigger(_ context.Context, goalID string) {
	select {
	case d.queue <- goalID:
		d.submitted.Add(1)
	default:
		d.dropped.Add(1)
		d.logger.Warn("Task plan queue full, dropping generation",
			"goal_id", goalID,
			"queue_size", cap(d.queue))
	}
}

// Run drains the queue until ctx is done. Queued goals left at shutdown are
// abandoned.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("Task plan dispatcher started", "queue_size", cap(d.queue), "timeout", d.timeout)
	for {
		select {
		case <-ctx.Done():
			if n := len(d.queue); n > 0 {
				d.logger.Warn("Task plan dispatcher stopped with pending goals", "pending", n)
			}
			return nil
		case goalID := <-d.queue:
			d.process(ctx, goalID)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, goalID string) {
	jobCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if _, err := d.runner.Generate(jobCtx, goalID, civil.Date{}); err != nil {
		d.failed.Add(1)
		d.logger.Error("Background task plan generation failed",
			"goal_id", goalID,
			"error", err)
		return
	}
	d.completed.Add(1)
}

// DispatcherStats is a snapshot of dispatcher counters.
type DispatcherStats struct {
	Submitted int64
	Dropped   int64
	Failed    int64
	Completed int64
	Pending   int
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Submitted: d.submitted.Load(),
		Dropped:   d.dropped.Load(),
		Failed:    d.failed.Load(),
		Completed: d.completed.Load(),
		Pending:   len(d.queue),
	}
}
