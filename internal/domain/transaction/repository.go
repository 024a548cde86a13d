package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines the interface for transaction data access.
//
// Every write receives the balance deltas it implies. Implementations must
// persist the record and apply all deltas as one atomic unit, applying
// deltas in the given order (NormalizeDeltas sorts by account id).
type Repository interface {
	// Create inserts tx and applies deltas. Returns ErrDuplicateOccurrence if
	// tx carries a (recurring id, due date) pair that already exists.
	Create(ctx context.Context, tx *Transaction, deltas []BalanceDelta) error

	// Update overwrites the stored transaction if its version still equals
	// expectedVersion, and bumps the version. Returns ErrStaleTransaction otherwise.
	Update(ctx context.Context, tx *Transaction, expectedVersion int64, deltas []BalanceDelta) error

	// Delete removes the transaction if its version still equals expectedVersion.
	Delete(ctx context.Context, userID int64, id uuid.UUID, expectedVersion int64, deltas []BalanceDelta) error

	GetByID(ctx context.Context, userID int64, id uuid.UUID) (*Transaction, error)

	// List returns matching transactions ordered by date desc, id desc.
	// From/To are inclusive days; Limit and Offset are applied as given.
	List(ctx context.Context, filter ListFilter) ([]*Transaction, error)

	// SumByCategory returns signed sums per category for a type in [from, to]
	SumByCategory(ctx context.Context, userID int64, typ Type, from, to time.Time) ([]CategoryTotal, error)

	// SumByAccount returns the signed sum of all live transactions per account
	SumByAccount(ctx context.Context, userID int64) (map[uuid.UUID]decimal.Decimal, error)
}
