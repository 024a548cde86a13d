package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/domain/goal"
)

// GoalRepository implements goal.Repository
type GoalRepository struct {
	s *Store
}

func (r *GoalRepository) Create(ctx context.Context, g *goal.Goal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := *g
	r.s.goals[g.ID] = &stored
	return nil
}

func (r *GoalRepository) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*goal.Goal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	g, ok := r.s.goals[id]
	if !ok || g.UserID != userID {
		return nil, goal.ErrGoalNotFound
	}
	out := *g
	return &out, nil
}

func (r *GoalRepository) ListByUserID(ctx context.Context, userID int64) ([]*goal.Goal, error) {
	r.s.mu.RLock()
	out := []*goal.Goal{}
	for _, g := range r.s.goals {
		if g.UserID == userID {
			cp := *g
			out = append(out, &cp)
		}
	}
	r.s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *goal.Goal) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (r *GoalRepository) Update(ctx context.Context, g *goal.Goal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.goals[g.ID]
	if !ok || current.UserID != g.UserID {
		return goal.ErrGoalNotFound
	}
	stored := *g
	r.s.goals[g.ID] = &stored
	return nil
}

func (r *GoalRepository) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g, ok := r.s.goals[id]
	if !ok || g.UserID != userID {
		return goal.ErrGoalNotFound
	}
	delete(r.s.goals, id)
	return nil
}

func (r *GoalRepository) AddContribution(ctx context.Context, userID int64, id uuid.UUID, amount decimal.Decimal) (*goal.Goal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g, ok := r.s.goals[id]
	if !ok || g.UserID != userID {
		return nil, goal.ErrGoalNotFound
	}
	g.CurrentAmount = g.CurrentAmount.Add(amount)
	g.UpdatedAt = time.Now().UTC()
	out := *g
	return &out, nil
}
