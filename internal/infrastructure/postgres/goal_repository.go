package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/domain/goal"
	"ledger/internal/shared/period"
)

// GoalRepository implements goal.Repository for PostgreSQL
type GoalRepository struct {
	db *DB
}

func NewGoalRepository(db *DB) *GoalRepository {
	return &GoalRepository{db: db}
}

const goalColumns = `id, user_id, name, description, target_amount, current_amount, deadline, created_at, updated_at`

func scanGoal(row scanner) (*goal.Goal, error) {
	var g goal.Goal
	var deadline sql.NullTime
	err := row.Scan(
		&g.ID, &g.UserID, &g.Name, &g.Description, &g.TargetAmount, &g.CurrentAmount,
		&deadline, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if deadline.Valid {
		d := period.Day(deadline.Time)
		g.Deadline = &d
	}
	return &g, nil
}

func (r *GoalRepository) Create(ctx context.Context, g *goal.Goal) error {
	query := `INSERT INTO goals (` + goalColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		g.ID, g.UserID, g.Name, g.Description, g.TargetAmount, g.CurrentAmount,
		nullTime(g.Deadline), g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to create goal: %w", err))
	}
	return nil
}

func (r *GoalRepository) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*goal.Goal, error) {
	g, err := scanGoal(r.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goal.ErrGoalNotFound
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to get goal: %w", err))
	}
	return g, nil
}

func (r *GoalRepository) ListByUserID(ctx context.Context, userID int64) ([]*goal.Goal, error) {
	query := `
		SELECT ` + goalColumns + `
		FROM goals
		WHERE user_id = $1
		ORDER BY deadline NULLS LAST, created_at
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to list goals: %w", err))
	}
	defer rows.Close()

	goals := []*goal.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(fmt.Errorf("error iterating goals: %w", err))
	}
	return goals, nil
}

func (r *GoalRepository) Update(ctx context.Context, g *goal.Goal) error {
	query := `
		UPDATE goals
		SET name = $1, description = $2, target_amount = $3, current_amount = $4, deadline = $5, updated_at = $6
		WHERE id = $7 AND user_id = $8
	`

	result, err := r.db.ExecContext(ctx, query,
		g.Name, g.Description, g.TargetAmount, g.CurrentAmount, nullTime(g.Deadline), g.UpdatedAt,
		g.ID, g.UserID,
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to update goal: %w", err))
	}
	return requireAffected(result, goal.ErrGoalNotFound)
}

func (r *GoalRepository) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return mapError(fmt.Errorf("failed to delete goal: %w", err))
	}
	return requireAffected(result, goal.ErrGoalNotFound)
}

// AddContribution increments in SQL so concurrent contributions never lose an update.
func (r *GoalRepository) AddContribution(ctx context.Context, userID int64, id uuid.UUID, amount decimal.Decimal) (*goal.Goal, error) {
	query := `
		UPDATE goals
		SET current_amount = current_amount + $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND user_id = $3
		RETURNING ` + goalColumns

	g, err := scanGoal(r.db.QueryRowContext(ctx, query, amount, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goal.ErrGoalNotFound
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to add goal contribution: %w", err))
	}
	return g, nil
}
