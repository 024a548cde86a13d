package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"ledger/internal/domain/category"
)

// CategoryRepository implements category.Repository
type CategoryRepository struct {
	s *Store
}

func ownerOf(c *category.Category) int64 {
	if c.UserID == nil {
		return 0
	}
	return *c.UserID
}

// findLocked requires s.mu to be held.
func (r *CategoryRepository) findLocked(owner int64, kind category.Kind, name string) *category.Category {
	for _, c := range r.s.categories {
		if ownerOf(c) == owner && c.Kind == kind && strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

func (r *CategoryRepository) Create(ctx context.Context, c *category.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.findLocked(ownerOf(c), c.Kind, c.Name) != nil {
		return category.ErrCategoryExists
	}
	stored := *c
	r.s.categories[c.ID] = &stored
	return nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*category.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.categories[id]
	if !ok {
		return nil, category.ErrCategoryNotFound
	}
	out := *c
	return &out, nil
}

func (r *CategoryRepository) List(ctx context.Context, userID int64, kind *category.Kind) ([]*category.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*category.Category{}
	for _, c := range r.s.categories {
		if !c.VisibleTo(userID) || (kind != nil && c.Kind != *kind) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *category.Category) int {
		if a.IsSystem() != b.IsSystem() {
			if a.IsSystem() {
				return -1
			}
			return 1
		}
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(string(a.Kind), string(b.Kind))
	})
	return out, nil
}

func (r *CategoryRepository) FindByName(ctx context.Context, userID int64, kind category.Kind, name string) (*category.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, owner := range []int64{0, userID} {
		if c := r.findLocked(owner, kind, name); c != nil {
			out := *c
			return &out, nil
		}
	}
	return nil, category.ErrCategoryNotFound
}

func (r *CategoryRepository) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.categories[id]
	if !ok || c.UserID == nil || *c.UserID != userID {
		return category.ErrCategoryNotFound
	}
	for _, tx := range r.s.transactions {
		if tx.CategoryID == id {
			return category.ErrCategoryInUse
		}
	}
	for _, t := range r.s.templates {
		if t.CategoryID == id {
			return category.ErrCategoryInUse
		}
	}
	for _, b := range r.s.budgets {
		if b.CategoryID == id {
			return category.ErrCategoryInUse
		}
	}
	delete(r.s.categories, id)
	return nil
}

func (r *CategoryRepository) EnsureSystem(ctx context.Context, kind category.Kind, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.findLocked(0, kind, name) != nil {
		return nil
	}
	id := uuid.New()
	r.s.categories[id] = &category.Category{ID: id, Name: name, Kind: kind, CreatedAt: time.Now().UTC()}
	return nil
}
