package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ledger/internal/domain/budget"
	"ledger/internal/shared/period"
)

// BudgetRepository implements budget.Repository for PostgreSQL
type BudgetRepository struct {
	db *DB
}

func NewBudgetRepository(db *DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

const budgetColumns = `id, user_id, category_id, month, amount, created_at, updated_at`

func scanBudget(row scanner) (*budget.Budget, error) {
	var b budget.Budget
	if err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Month, &b.Amount, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Month = period.Day(b.Month)
	return &b, nil
}

// Upsert keeps the id and created_at of an existing budget for the same
// (user, category, month) and overwrites its amount.
func (r *BudgetRepository) Upsert(ctx context.Context, b *budget.Budget) error {
	query := `
		INSERT INTO budgets (` + budgetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT ON CONSTRAINT uq_budgets_user_category_month
		DO UPDATE SET
			amount = EXCLUDED.amount,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + budgetColumns

	stored, err := scanBudget(r.db.QueryRowContext(ctx, query,
		b.ID, b.UserID, b.CategoryID, b.Month, b.Amount, b.CreatedAt, b.UpdatedAt,
	))
	if err != nil {
		return mapError(fmt.Errorf("failed to upsert budget: %w", err))
	}
	*b = *stored
	return nil
}

func (r *BudgetRepository) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*budget.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE id = $1 AND user_id = $2`

	b, err := scanBudget(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, budget.ErrBudgetNotFound
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to get budget: %w", err))
	}
	return b, nil
}

func (r *BudgetRepository) ListByMonth(ctx context.Context, userID int64, month time.Time) ([]*budget.Budget, error) {
	query := `
		SELECT ` + budgetColumns + `
		FROM budgets
		WHERE user_id = $1 AND month = $2
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, userID, period.MonthStart(month))
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to list budgets: %w", err))
	}
	defer rows.Close()

	budgets := []*budget.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(fmt.Errorf("error iterating budgets: %w", err))
	}
	return budgets, nil
}

func (r *BudgetRepository) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return mapError(fmt.Errorf("failed to delete budget: %w", err))
	}
	return requireAffected(result, budget.ErrBudgetNotFound)
}
