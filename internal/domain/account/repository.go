package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines the interface for account data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// Create persists a new account. Balance starts at the initial balance.
	// A primary account clears the flag on the user's other accounts in
	// the same atomic write.
	Create(ctx context.Context, acc *Account) error

	// GetByID retrieves an account owned by userID
	GetByID(ctx context.Context, userID int64, id uuid.UUID) (*Account, error)

	// ListByUserID retrieves all accounts for a user, primary first, then by name
	ListByUserID(ctx context.Context, userID int64) ([]*Account, error)

	// FindByName finds a user's account by case-insensitive name
	FindByName(ctx context.Context, userID int64, name string) (*Account, error)

	// Update persists name and type changes
	Update(ctx context.Context, acc *Account) error

	// SetPrimary marks one account as primary and clears the flag on the others
	SetPrimary(ctx context.Context, userID int64, id uuid.UUID) error

	// Delete removes an account. Returns ErrAccountInUse while anything references it.
	Delete(ctx context.Context, userID int64, id uuid.UUID) error

	// ApplyDelta atomically adds delta to the account balance
	ApplyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (*Account, error)
}
