package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"ledger/internal/domain/budget"
	"ledger/internal/shared/period"
)

// BudgetRepository implements budget.Repository
type BudgetRepository struct {
	s *Store
}

func (r *BudgetRepository) Upsert(ctx context.Context, b *budget.Budget) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.budgets {
		if existing.UserID == b.UserID && existing.CategoryID == b.CategoryID && existing.Month.Equal(b.Month) {
			existing.Amount = b.Amount
			existing.UpdatedAt = b.UpdatedAt
			*b = *existing
			return nil
		}
	}
	stored := *b
	r.s.budgets[b.ID] = &stored
	return nil
}

func (r *BudgetRepository) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*budget.Budget, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.budgets[id]
	if !ok || b.UserID != userID {
		return nil, budget.ErrBudgetNotFound
	}
	out := *b
	return &out, nil
}

func (r *BudgetRepository) ListByMonth(ctx context.Context, userID int64, month time.Time) ([]*budget.Budget, error) {
	month = period.MonthStart(month)

	r.s.mu.RLock()
	out := []*budget.Budget{}
	for _, b := range r.s.budgets {
		if b.UserID == userID && b.Month.Equal(month) {
			cp := *b
			out = append(out, &cp)
		}
	}
	r.s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *budget.Budget) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (r *BudgetRepository) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.budgets[id]
	if !ok || b.UserID != userID {
		return budget.ErrBudgetNotFound
	}
	delete(r.s.budgets, id)
	return nil
}
