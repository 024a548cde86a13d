package recurring

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for recurring template data access
type Repository interface {
	Create(ctx context.Context, t *Template) error
	GetByID(ctx context.Context, userID int64, id uuid.UUID) (*Template, error)
	ListByUserID(ctx context.Context, userID int64) ([]*Template, error)

	// ListDue returns non-expired templates with next_due_date <= today.
	// A zero userID lists due templates of every user.
	ListDue(ctx context.Context, userID int64, today time.Time) ([]*Template, error)

	// ListUsersWithDue returns the distinct owners of due templates
	ListUsersWithDue(ctx context.Context, today time.Time) ([]int64, error)

	// Advance moves next_due_date from `from` to `next` and sets the expired
	// flag, only if next_due_date still equals `from`. Returns ErrStaleSchedule otherwise.
	Advance(ctx context.Context, id uuid.UUID, from, next time.Time, expired bool) error

	Delete(ctx context.Context, userID int64, id uuid.UUID) error
}
