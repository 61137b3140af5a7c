// Package events publishes plan lifecycle events to NATS.
//
// Publishing is optional: without a configured URL every publish is a no-op.
// Callers treat publish errors as warnings; a committed plan is never rolled
// back because an event could not be sent.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/treespora/planner/config"
)

// Event names, appended to the configured subject prefix.
const (
	SummaryCreatedEvent = "plan.summary.created"
	TasksGeneratedEvent = "plan.tasks.generated"
)

// SummaryCreated is published after a new plan version is committed.
type SummaryCreated struct {
	GoalID   string `json:"goal_id"`
	PlanID   string `json:"plan_id"`
	Version  int    `json:"version"`
	Fallback bool   `json:"fallback"`
}

// TasksGenerated is published after a task plan replaced a plan's tasks.
type TasksGenerated struct {
	GoalID string `json:"goal_id"`
	PlanID string `json:"plan_id"`
	Days   int    `json:"days"`
	Tasks  int    `json:"tasks"`
}

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher sends events on <prefix>.<event>.
type Publisher struct {
	conn   Conn
	nc     *nats.Conn // set when the publisher owns the connection
	prefix string
	logger *slog.Logger
}

// Connect dials NATS when cfg.URL is set and returns a no-op publisher otherwise.
func Connect(cfg config.NATSConfig, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		logger.Debug("NATS URL not configured, plan events disabled")
		return &Publisher{logger: logger}, nil
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("treespora-planner"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}
	logger.Info("Connected to NATS", "url", cfg.URL, "subject_prefix", cfg.SubjectPrefix)

	p := New(nc, cfg.SubjectPrefix, logger)
	p.nc = nc
	return p, nil
}

// New wraps an existing connection. The caller keeps ownership of conn.
func New(conn Conn, prefix string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

// Enabled reports whether events are actually sent.
func (p *Publisher) Enabled() bool {
	return p != nil && p.conn != nil
}

// Subject returns the full subject of an event.
func (p *Publisher) Subject(event string) string {
	prefix := strings.Trim(p.prefix, ".")
	if prefix == "" {
		return event
	}
	return prefix + "." + event
}

// SummaryCreated publishes a SummaryCreated event.
func (p *Publisher) SummaryCreated(ctx context.Context, e SummaryCreated) error {
	return p.publish(ctx, SummaryCreatedEvent, e)
}

// TasksGenerated publishes a TasksGenerated event.
func (p *Publisher) TasksGenerated(ctx context.Context, e TasksGenerated) error {
	return p.publish(ctx, TasksGeneratedEvent, e)
}

func (p *Publisher) publish(ctx context.Context, event string, payload any) error {
	if !p.Enabled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	subject := p.Subject(event)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("Published event", "subject", subject)
	return nil
}

// Close drains an owned connection. Wrapped connections are left alone.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn("NATS drain failed", "error", err)
		p.nc.Close()
	}
}
