package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ledger/internal/domain/recurring"
	"ledger/internal/shared/period"
)

// RecurringRepository implements recurring.Repository for PostgreSQL
type RecurringRepository struct {
	db *DB
}

func NewRecurringRepository(db *DB) *RecurringRepository {
	return &RecurringRepository{db: db}
}

const templateColumns = `id, user_id, account_id, category_id, description, amount, tx_type, frequency,
	start_date, end_date, next_due_date, expired, created_at, updated_at`

func scanTemplate(row scanner) (*recurring.Template, error) {
	var t recurring.Template
	var endDate sql.NullTime

	err := row.Scan(
		&t.ID, &t.UserID, &t.AccountID, &t.CategoryID, &t.Description, &t.Amount, &t.Type, &t.Frequency,
		&t.StartDate, &endDate, &t.NextDueDate, &t.Expired, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.StartDate = period.Day(t.StartDate)
	t.NextDueDate = period.Day(t.NextDueDate)
	if endDate.Valid {
		end := period.Day(endDate.Time)
		t.EndDate = &end
	}
	return &t, nil
}

func (r *RecurringRepository) Create(ctx context.Context, t *recurring.Template) error {
	query := `
		INSERT INTO recurring_templates (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.UserID, t.AccountID, t.CategoryID, t.Description, t.Amount, t.Type, t.Frequency,
		t.StartDate, nullTime(t.EndDate), t.NextDueDate, t.Expired, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to create recurring template: %w", err))
	}
	return nil
}

func (r *RecurringRepository) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*recurring.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM recurring_templates WHERE id = $1 AND user_id = $2`

	t, err := scanTemplate(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, recurring.ErrTemplateNotFound
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to get recurring template: %w", err))
	}
	return t, nil
}

func (r *RecurringRepository) ListByUserID(ctx context.Context, userID int64) ([]*recurring.Template, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM recurring_templates
		WHERE user_id = $1
		ORDER BY next_due_date, id
	`
	return r.list(ctx, "list recurring templates", query, userID)
}

func (r *RecurringRepository) ListDue(ctx context.Context, userID int64, today time.Time) ([]*recurring.Template, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM recurring_templates
		WHERE NOT expired AND next_due_date <= $1 AND ($2 = 0 OR user_id = $2)
		ORDER BY next_due_date, id
	`
	return r.list(ctx, "list due recurring templates", query, today, userID)
}

func (r *RecurringRepository) list(ctx context.Context, op, query string, args ...any) ([]*recurring.Template, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to %s: %w", op, err))
	}
	defer rows.Close()

	templates := []*recurring.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurring template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(fmt.Errorf("failed to %s: %w", op, err))
	}
	return templates, nil
}

func (r *RecurringRepository) ListUsersWithDue(ctx context.Context, today time.Time) ([]int64, error) {
	query := `
		SELECT DISTINCT user_id
		FROM recurring_templates
		WHERE NOT expired AND next_due_date <= $1
		ORDER BY user_id
	`

	rows, err := r.db.QueryContext(ctx, query, today)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to list users with due templates: %w", err))
	}
	defer rows.Close()

	var users []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(fmt.Errorf("error iterating users: %w", err))
	}
	return users, nil
}

// Advance is a compare-and-set on next_due_date.
func (r *RecurringRepository) Advance(ctx context.Context, id uuid.UUID, from, next time.Time, expired bool) error {
	query := `
		UPDATE recurring_templates
		SET next_due_date = $1, expired = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND next_due_date = $4 AND NOT expired
	`

	result, err := r.db.ExecContext(ctx, query, next, expired, id, from)
	if err != nil {
		return mapError(fmt.Errorf("failed to advance recurring template: %w", err))
	}
	return requireAffected(result, recurring.ErrStaleSchedule)
}

func (r *RecurringRepository) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM recurring_templates WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return mapError(fmt.Errorf("failed to delete recurring template: %w", err))
	}
	return requireAffected(result, recurring.ErrTemplateNotFound)
}
