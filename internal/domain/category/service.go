package category

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SeedDefaults makes sure every system category exists. Safe to run on every start.
func (s *Service) SeedDefaults(ctx context.Context) error {
	for _, kind := range []Kind{KindIncome, KindExpense} {
		for _, name := range Defaults[kind] {
			if err := s.repo.EnsureSystem(ctx, kind, name); err != nil {
				return fmt.Errorf("failed to seed category %q: %w", name, err)
			}
		}
	}
	return nil
}

func (s *Service) CreateCategory(ctx context.Context, params CreateParams) (*Category, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(params.Name)
	_, err := s.repo.FindByName(ctx, params.UserID, params.Kind, name)
	switch {
	case err == nil:
		return nil, ErrCategoryExists
	case !errors.Is(err, ErrCategoryNotFound):
		return nil, err
	}

	userID := params.UserID
	c := &Category{
		ID:        uuid.New(),
		UserID:    &userID,
		Name:      name,
		Kind:      params.Kind,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetCategory returns a category visible to the user. Another user's
// category is reported as not found.
func (s *Service) GetCategory(ctx context.Context, userID int64, id uuid.UUID) (*Category, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.VisibleTo(userID) {
		return nil, ErrCategoryNotFound
	}
	return c, nil
}

func (s *Service) ListCategories(ctx context.Context, userID int64, kind *Kind) ([]*Category, error) {
	if kind != nil && !IsValidKind(*kind) {
		return nil, ErrInvalidKind
	}
	return s.repo.List(ctx, userID, kind)
}

func (s *Service) DeleteCategory(ctx context.Context, userID int64, id uuid.UUID) error {
	c, err := s.GetCategory(ctx, userID, id)
	if err != nil {
		return err
	}
	if c.IsSystem() {
		return ErrSystemCategory
	}
	return s.repo.Delete(ctx, userID, id)
}
