package storage

import (
	"context"
	"fmt"

	"github.com/treespora/planner/llm"
)

// RecordCall stores LLM call metadata. It implements llm.CallRecorder.
func (s *Store) RecordCall(ctx context.Context, r *llm.CallRecord) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO llm_calls (request_id, capability, endpoint, provider, model, started_at, duration_ms,
			prompt_tokens, completion_tokens, total_tokens, finish_reason, error_kind, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.RequestID, r.Capability, nullString(r.Endpoint), nullString(r.Provider), nullString(r.Model),
		s.timeArg(r.StartedAt), r.Duration.Milliseconds(),
		r.Usage.PromptTokens, r.Usage.CompletionTokens, r.Usage.TotalTokens,
		nullString(r.FinishReason), nullString(r.ErrorKind), nullString(r.Error),
	)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}

// CallStats is an aggregate over recorded LLM calls.
type CallStats struct {
	Capability string
	Calls      int
	Failures   int
	Tokens     int
}

// LLMCallStats aggregates recorded calls per capability.
func (s *Store) LLMCallStats(ctx context.Context) ([]CallStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT capability,
			COUNT(*),
			SUM(CASE WHEN error_kind IS NULL THEN 0 ELSE 1 END),
			COALESCE(SUM(total_tokens), 0)
		FROM llm_calls
		GROUP BY capability
		ORDER BY capability`)
	if err != nil {
		return nil, fmt.Errorf("select llm call stats: %w", err)
	}
	defer rows.Close()

	var out []CallStats
	for rows.Next() {
		var cs CallStats
		if err := rows.Scan(&cs.Capability, &cs.Calls, &cs.Failures, &cs.Tokens); err != nil {
			return nil, fmt.Errorf("scan llm call stats: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}
