package memory

import (
	"bytes"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"ledger/internal/domain/recurring"
)

// RecurringRepository implements recurring.Repository
type RecurringRepository struct {
	s *Store
}

func (r *RecurringRepository) Create(ctx context.Context, t *recurring.Template) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := *t
	r.s.templates[t.ID] = &stored
	return nil
}

func (r *RecurringRepository) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*recurring.Template, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.templates[id]
	if !ok || t.UserID != userID {
		return nil, recurring.ErrTemplateNotFound
	}
	out := *t
	return &out, nil
}

func (r *RecurringRepository) ListByUserID(ctx context.Context, userID int64) ([]*recurring.Template, error) {
	return r.filter(func(t *recurring.Template) bool { return t.UserID == userID }), nil
}

func (r *RecurringRepository) ListDue(ctx context.Context, userID int64, today time.Time) ([]*recurring.Template, error) {
	return r.filter(func(t *recurring.Template) bool {
		return (userID == 0 || t.UserID == userID) && t.StateAt(today) == recurring.StateDue
	}), nil
}

func (r *RecurringRepository) ListUsersWithDue(ctx context.Context, today time.Time) ([]int64, error) {
	var users []int64
	for _, t := range r.filter(func(t *recurring.Template) bool { return t.StateAt(today) == recurring.StateDue }) {
		users = append(users, t.UserID)
	}
	slices.Sort(users)
	return slices.Compact(users), nil
}

// filter returns copies ordered by next due date.
func (r *RecurringRepository) filter(keep func(*recurring.Template) bool) []*recurring.Template {
	r.s.mu.RLock()
	out := []*recurring.Template{}
	for _, t := range r.s.templates {
		if keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	r.s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *recurring.Template) int {
		if c := a.NextDueDate.Compare(b.NextDueDate); c != 0 {
			return c
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return out
}

func (r *RecurringRepository) Advance(ctx context.Context, id uuid.UUID, from, next time.Time, expired bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.templates[id]
	if !ok || t.Expired || !t.NextDueDate.Equal(from) {
		return recurring.ErrStaleSchedule
	}
	t.NextDueDate = next
	t.Expired = expired
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *RecurringRepository) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.templates[id]
	if !ok || t.UserID != userID {
		return recurring.ErrTemplateNotFound
	}
	delete(r.s.templates, id)
	return nil
}
