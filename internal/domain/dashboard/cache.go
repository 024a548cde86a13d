package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"ledger/internal/domain/transaction"
	"ledger/internal/shared/logging"
)

// View names a cached dashboard computation.
type View string

const (
	ViewBalance    View = "balance"
	ViewSummary    View = "summary"
	ViewExpenses   View = "expenses"
	ViewEvolution  View = "evolution"
	ViewRecent     View = "recent"
	ViewIndicators View = "indicators"
)

// Key identifies one cached view of one user over one period.
type Key struct {
	UserID int64
	View   View
	Period string
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%s:%s", k.UserID, k.View, k.Period)
}

// Cache stores computed views. Implementations expire entries after a TTL.
// Every method may fail; the dashboard treats failures as misses.
//
// Each user has a generation that InvalidateUser advances. A view computed
// under one generation is only stored while that generation is current, so
// a read racing a write cannot cache what it saw before the write.
type Cache interface {
	Get(ctx context.Context, key Key) (any, bool, error)
	Generation(ctx context.Context, userID int64) (uint64, error)
	// Set stores value unless the user's generation moved past gen
	Set(ctx context.Context, key Key, gen uint64, value any) error
	// InvalidateUser drops every cached view of the user
	InvalidateUser(ctx context.Context, userID int64) error
}

// cached returns the cached value for key or computes and stores it.
// Cache errors are logged and never returned.
func cached[T any](ctx context.Context, c Cache, logger *slog.Logger, key Key, compute func(context.Context) (T, error)) (T, error) {
	var (
		gen      uint64
		storable = c != nil
	)
	if c != nil {
		v, ok, err := c.Get(ctx, key)
		switch {
		case err != nil:
			logger.WarnContext(ctx, "cache read failed, recomputing",
				logging.FieldCacheKey, key.String(),
				logging.FieldError, err)
		case ok:
			if hit, ok := v.(T); ok {
				return hit, nil
			}
		}

		if gen, err = c.Generation(ctx, key.UserID); err != nil {
			storable = false
			logger.WarnContext(ctx, "cache generation unavailable, not storing",
				logging.FieldCacheKey, key.String(),
				logging.FieldError, err)
		}
	}

	val, err := compute(ctx)
	if err != nil {
		return val, err
	}

	if storable {
		if err := c.Set(ctx, key, gen, val); err != nil {
			logger.WarnContext(ctx, "cache write failed",
				logging.FieldCacheKey, key.String(),
				logging.FieldError, err)
		}
	}
	return val, nil
}

// Invalidator drops a user's cached views whenever the ledger commits a write.
type Invalidator struct {
	cache Cache
}

func NewInvalidator(c Cache) *Invalidator {
	return &Invalidator{cache: c}
}

// Publish implements transaction.Publisher.
func (i *Invalidator) Publish(ctx context.Context, event transaction.Event) error {
	return i.InvalidateUser(ctx, event.UserID)
}

func (i *Invalidator) InvalidateUser(ctx context.Context, userID int64) error {
	if err := i.cache.InvalidateUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to invalidate dashboard cache for user %d: %w", userID, err)
	}
	return nil
}

// UserChanged adapts the invalidator to account and budget change hooks. The
// failure is logged since hooks cannot return errors.
func (i *Invalidator) UserChanged(ctx context.Context, userID int64) {
	if err := i.InvalidateUser(ctx, userID); err != nil {
		logging.Component(logging.ComponentCache).WarnContext(ctx, "stale dashboard until TTL expiry",
			logging.FieldUserID, userID,
			logging.FieldError, err)
	}
}
