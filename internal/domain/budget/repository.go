package budget

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for budget data access
type Repository interface {
	// Upsert inserts b or overwrites the amount of the existing budget for
	// (user, category, month). The stored row is written back into b.
	Upsert(ctx context.Context, b *Budget) error
	GetByID(ctx context.Context, userID int64, id uuid.UUID) (*Budget, error)
	ListByMonth(ctx context.Context, userID int64, month time.Time) ([]*Budget, error)
	Delete(ctx context.Context, userID int64, id uuid.UUID) error
}
