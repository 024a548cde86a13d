package goal

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines the interface for goal data access
type Repository interface {
	Create(ctx context.Context, g *Goal) error
	GetByID(ctx context.Context, userID int64, id uuid.UUID) (*Goal, error)
	ListByUserID(ctx context.Context, userID int64) ([]*Goal, error)
	Update(ctx context.Context, g *Goal) error
	Delete(ctx context.Context, userID int64, id uuid.UUID) error

	// AddContribution atomically increments current_amount and returns the stored goal
	AddContribution(ctx context.Context, userID int64, id uuid.UUID, amount decimal.Decimal) (*Goal, error)
}
