package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"ledger/internal/domain/transaction"
	"ledger/internal/shared/period"
)

const uniqueOccurrence = "uq_transactions_occurrence"

// TransactionRepository implements transaction.Repository for PostgreSQL.
// Record writes and balance deltas share one database transaction.
type TransactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, user_id, account_id, category_id, tx_type, amount, description, date,
	recurring_id, due_date, version, created_at, updated_at`

func scanTransaction(row scanner) (*transaction.Transaction, error) {
	var tx transaction.Transaction
	var recurringID uuid.NullUUID
	var dueDate sql.NullTime

	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.AccountID, &tx.CategoryID, &tx.Type, &tx.Amount,
		&tx.Description, &tx.Date, &recurringID, &dueDate,
		&tx.Version, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Date = period.Day(tx.Date)
	if recurringID.Valid {
		tx.RecurringID = &recurringID.UUID
	}
	if dueDate.Valid {
		due := period.Day(dueDate.Time)
		tx.DueDate = &due
	}
	return &tx, nil
}

func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction, deltas []transaction.BalanceDelta) error {
	query := `
		INSERT INTO transactions (
			id, user_id, account_id, category_id, tx_type, amount, description, date,
			recurring_id, due_date, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	return r.db.InTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, query,
			t.ID, t.UserID, t.AccountID, t.CategoryID, t.Type, t.Amount, t.Description, t.Date,
			nullUUID(t.RecurringID), nullTime(t.DueDate), t.Version, t.CreatedAt, t.UpdatedAt,
		)
		if isUniqueViolation(err, uniqueOccurrence) {
			return transaction.ErrDuplicateOccurrence
		}
		if err != nil {
			return mapError(fmt.Errorf("failed to create transaction: %w", err))
		}
		return applyDeltas(ctx, tx, deltas)
	})
}

func (r *TransactionRepository) Update(ctx context.Context, t *transaction.Transaction, expectedVersion int64, deltas []transaction.BalanceDelta) error {
	query := `
		UPDATE transactions
		SET account_id = $1, category_id = $2, tx_type = $3, amount = $4, description = $5,
		    date = $6, version = $7, updated_at = $8
		WHERE id = $9 AND user_id = $10 AND version = $11
	`

	return r.db.InTx(ctx, func(tx *Tx) error {
		result, err := tx.ExecContext(ctx, query,
			t.AccountID, t.CategoryID, t.Type, t.Amount, t.Description,
			t.Date, t.Version, t.UpdatedAt,
			t.ID, t.UserID, expectedVersion,
		)
		if err != nil {
			return mapError(fmt.Errorf("failed to update transaction: %w", err))
		}
		if err := requireAffected(result, transaction.ErrStaleTransaction); err != nil {
			return err
		}
		return applyDeltas(ctx, tx, deltas)
	})
}

func (r *TransactionRepository) Delete(ctx context.Context, userID int64, id uuid.UUID, expectedVersion int64, deltas []transaction.BalanceDelta) error {
	return r.db.InTx(ctx, func(tx *Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM transactions WHERE id = $1 AND user_id = $2 AND version = $3`,
			id, userID, expectedVersion,
		)
		if err != nil {
			return mapError(fmt.Errorf("failed to delete transaction: %w", err))
		}
		if err := requireAffected(result, transaction.ErrStaleTransaction); err != nil {
			return err
		}
		return applyDeltas(ctx, tx, deltas)
	})
}

// applyDeltas runs in the caller's order, which NormalizeDeltas keeps sorted.
func applyDeltas(ctx context.Context, tx *Tx, deltas []transaction.BalanceDelta) error {
	for _, d := range deltas {
		if _, err := applyDelta(ctx, tx, d.AccountID, d.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 AND user_id = $2`

	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, transaction.ErrTransactionNotFound
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to get transaction: %w", err))
	}
	return t, nil
}

// List builds its WHERE clause from the filter's set fields.
func (r *TransactionRepository) List(ctx context.Context, f transaction.ListFilter) ([]*transaction.Transaction, error) {
	var (
		where = []string{"user_id = $1"}
		args  = []any{f.UserID}
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.From != nil {
		where = append(where, "date >= "+arg(*f.From))
	}
	if f.To != nil {
		where = append(where, "date <= "+arg(*f.To))
	}
	if f.AccountID != nil {
		where = append(where, "account_id = "+arg(*f.AccountID))
	}
	if f.Type != nil {
		where = append(where, "tx_type = "+arg(*f.Type))
	}
	if len(f.CategoryIDs) > 0 {
		ids := make([]string, len(f.CategoryIDs))
		for i, id := range f.CategoryIDs {
			ids[i] = id.String()
		}
		where = append(where, "category_id = ANY("+arg(pq.Array(ids))+"::uuid[])")
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY date DESC, id DESC LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to list transactions: %w", err))
	}
	defer rows.Close()

	var out []*transaction.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(fmt.Errorf("error iterating transactions: %w", err))
	}
	return out, nil
}

func (r *TransactionRepository) SumByCategory(ctx context.Context, userID int64, typ transaction.Type, from, to time.Time) ([]transaction.CategoryTotal, error) {
	query := `
		SELECT category_id, SUM(amount), COUNT(*)
		FROM transactions
		WHERE user_id = $1 AND tx_type = $2 AND date BETWEEN $3 AND $4
		GROUP BY category_id
	`

	rows, err := r.db.QueryContext(ctx, query, userID, typ, from, to)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to sum transactions by category: %w", err))
	}
	defer rows.Close()

	totals := []transaction.CategoryTotal{}
	for rows.Next() {
		var ct transaction.CategoryTotal
		if err := rows.Scan(&ct.CategoryID, &ct.Total, &ct.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category total: %w", err)
		}
		totals = append(totals, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(fmt.Errorf("error iterating category totals: %w", err))
	}
	return totals, nil
}

func (r *TransactionRepository) SumByAccount(ctx context.Context, userID int64) (map[uuid.UUID]decimal.Decimal, error) {
	query := `
		SELECT account_id, SUM(amount)
		FROM transactions
		WHERE user_id = $1
		GROUP BY account_id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to sum transactions by account: %w", err))
	}
	defer rows.Close()

	sums := make(map[uuid.UUID]decimal.Decimal)
	for rows.Next() {
		var id uuid.UUID
		var sum decimal.Decimal
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan account sum: %w", err)
		}
		sums[id] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(fmt.Errorf("error iterating account sums: %w", err))
	}
	return sums, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
