package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/treespora/planner/planning"
)

// CreateGoal inserts a goal. An empty ID is filled with a new UUID.
func (s *Store) CreateGoal(ctx context.Context, g *planning.Goal) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := s.now()
	g.CreatedAt, g.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO goals (id, user_id, title, description, category, target_date, start_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		g.ID, nullString(g.UserID), g.Title, nullString(g.Description), nullString(g.Category),
		s.dateArg(g.TargetDate), s.dateArg(g.StartDate), s.timeArg(now), s.timeArg(now),
	)
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

// GetGoal loads a goal by id.
func (s *Store) GetGoal(ctx context.Context, id string) (*planning.Goal, error) {
	var (
		g                                     planning.Goal
		userID, description, category, planID sql.NullString
		target, start                         nullDate
		created, updated                      nullTime
	)
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, user_id, title, description, category, target_date, start_date, current_plan_id, created_at, updated_at
		FROM goals
		WHERE id = ?`), id,
	).Scan(&g.ID, &userID, &g.Title, &description, &category, &target, &start, &planID, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select goal: %w", err)
	}

	g.UserID = userID.String
	g.Description = description.String
	g.Category = category.String
	g.CurrentPlanID = planID.String
	g.TargetDate = target.Date
	g.StartDate = start.Date
	g.CreatedAt = created.Time
	g.UpdatedAt = updated.Time
	return &g, nil
}

// UpsertProfile inserts or replaces a profile.
func (s *Store) UpsertProfile(ctx context.Context, p *planning.Profile) error {
	var age any
	if p.Age != nil {
		age = *p.Age
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO profiles (id, age, language_code)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET age = excluded.age, language_code = excluded.language_code`),
		p.ID, age, nullString(p.LanguageCode),
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// GetProfile loads a profile by user id.
func (s *Store) GetProfile(ctx context.Context, id string) (*planning.Profile, error) {
	var (
		p        planning.Profile
		age      sql.NullInt64
		language sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id, age, language_code FROM profiles WHERE id = ?`), id).
		Scan(&p.ID, &age, &language)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select profile: %w", err)
	}
	if age.Valid {
		n := int(age.Int64)
		p.Age = &n
	}
	p.LanguageCode = language.String
	return &p, nil
}
