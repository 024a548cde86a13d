package category

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for category data access
type Repository interface {
	Create(ctx context.Context, c *Category) error
	// GetByID returns a category by id regardless of owner; callers check visibility
	GetByID(ctx context.Context, id uuid.UUID) (*Category, error)
	// List returns system categories plus the user's own, optionally filtered by kind
	List(ctx context.Context, userID int64, kind *Kind) ([]*Category, error)
	// FindByName looks up a category by case-insensitive name among the ones visible to userID
	FindByName(ctx context.Context, userID int64, kind Kind, name string) (*Category, error)
	Delete(ctx context.Context, userID int64, id uuid.UUID) error
	// EnsureSystem inserts a system category if one with the same kind and name is missing
	EnsureSystem(ctx context.Context, kind Kind, name string) error
}
