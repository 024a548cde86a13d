package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/domain/account"
)

// querier is satisfied by both *DB and *Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *tracedRow
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const uniqueAccountName = "uq_accounts_user_name"

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, user_id, name, account_type, initial_balance, balance, is_primary, version, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*account.Account, error) {
	var acc account.Account
	err := row.Scan(
		&acc.ID, &acc.UserID, &acc.Name, &acc.Type,
		&acc.InitialBalance, &acc.Balance, &acc.IsPrimary, &acc.Version,
		&acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// lockUserAccounts serializes primary-flag changes of one user until the
// surrounding transaction ends.
func lockUserAccounts(ctx context.Context, tx *Tx, userID int64) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, userID); err != nil {
		return mapError(fmt.Errorf("failed to lock user accounts: %w", err))
	}
	return nil
}

// Create creates a new account. A primary account takes the flag from the
// user's current primary in the same transaction.
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, name, account_type, initial_balance, balance, is_primary, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	return r.db.InTx(ctx, func(tx *Tx) error {
		if acc.IsPrimary {
			if err := lockUserAccounts(ctx, tx, acc.UserID); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`UPDATE accounts SET is_primary = FALSE, updated_at = CURRENT_TIMESTAMP WHERE user_id = $1 AND is_primary`,
				acc.UserID)
			if err != nil {
				return mapError(fmt.Errorf("failed to clear primary account: %w", err))
			}
		}

		_, err := tx.ExecContext(ctx, query,
			acc.ID, acc.UserID, acc.Name, acc.Type, acc.InitialBalance, acc.Balance,
			acc.IsPrimary, acc.Version, acc.CreatedAt, acc.UpdatedAt,
		)
		if isUniqueViolation(err, uniqueAccountName) {
			return account.ErrAccountNameTaken
		}
		if err != nil {
			return mapError(fmt.Errorf("failed to create account: %w", err))
		}
		return nil
	})
}

// GetByID retrieves an account owned by userID
func (r *AccountRepository) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 AND user_id = $2`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to get account: %w", err))
	}
	return acc, nil
}

// ListByUserID retrieves all accounts for a specific user
func (r *AccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*account.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = $1
		ORDER BY is_primary DESC, LOWER(name), id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to list accounts: %w", err))
	}
	defer rows.Close()

	accounts := []*account.Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}

	if err = rows.Err(); err != nil {
		return nil, mapError(fmt.Errorf("error iterating accounts: %w", err))
	}

	return accounts, nil
}

func (r *AccountRepository) FindByName(ctx context.Context, userID int64, name string) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 AND LOWER(name) = LOWER($2)`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, userID, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to find account by name: %w", err))
	}
	return acc, nil
}

// Update persists name and type. Balance columns are owned by ApplyDelta.
func (r *AccountRepository) Update(ctx context.Context, acc *account.Account) error {
	query := `
		UPDATE accounts
		SET name = $1, account_type = $2, updated_at = $3
		WHERE id = $4 AND user_id = $5
	`

	result, err := r.db.ExecContext(ctx, query, acc.Name, acc.Type, acc.UpdatedAt, acc.ID, acc.UserID)
	if isUniqueViolation(err, uniqueAccountName) {
		return account.ErrAccountNameTaken
	}
	if err != nil {
		return mapError(fmt.Errorf("failed to update account: %w", err))
	}
	return requireAffected(result, account.ErrAccountNotFound)
}

// SetPrimary clears the current primary and marks id, in that order, so the
// partial unique index on is_primary never sees two primaries.
func (r *AccountRepository) SetPrimary(ctx context.Context, userID int64, id uuid.UUID) error {
	return r.db.InTx(ctx, func(tx *Tx) error {
		if err := lockUserAccounts(ctx, tx, userID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE accounts SET is_primary = FALSE, updated_at = CURRENT_TIMESTAMP
			WHERE user_id = $1 AND is_primary AND id <> $2
		`, userID, id)
		if err != nil {
			return mapError(fmt.Errorf("failed to clear primary account: %w", err))
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE accounts SET is_primary = TRUE, updated_at = CURRENT_TIMESTAMP
			WHERE user_id = $1 AND id = $2
		`, userID, id)
		if err != nil {
			return mapError(fmt.Errorf("failed to set primary account: %w", err))
		}
		return requireAffected(result, account.ErrAccountNotFound)
	})
}

// Delete removes an account
func (r *AccountRepository) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1 AND user_id = $2`, id, userID)
	if isForeignKeyViolation(err) {
		return account.ErrAccountInUse
	}
	if err != nil {
		return mapError(fmt.Errorf("failed to delete account: %w", err))
	}
	return requireAffected(result, account.ErrAccountNotFound)
}

// ApplyDelta adds delta to one account outside of a ledger write.
func (r *AccountRepository) ApplyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (*account.Account, error) {
	var acc *account.Account
	err := r.db.InTx(ctx, func(tx *Tx) error {
		var err error
		acc, err = applyDelta(ctx, tx, id, delta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// applyDelta is a version-conditional balance update. Under READ COMMITTED
// a concurrent writer on the same row makes the update match no row once
// the lock is released, which surfaces as account.ErrConcurrentUpdate and
// aborts the surrounding transaction so the caller can retry it whole.
func applyDelta(ctx context.Context, q querier, id uuid.UUID, delta decimal.Decimal) (*account.Account, error) {
	var version int64
	err := q.QueryRowContext(ctx, `SELECT version FROM accounts WHERE id = $1`, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to read account version: %w", err))
	}

	query := `
		UPDATE accounts
		SET balance = balance + $1, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND version = $3
		RETURNING ` + accountColumns

	acc, err := scanAccount(q.QueryRowContext(ctx, query, delta, id, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrConcurrentUpdate
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to apply balance delta: %w", err))
	}
	return acc, nil
}

func requireAffected(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
