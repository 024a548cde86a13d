package goal

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) CreateGoal(ctx context.Context, params CreateParams) (*Goal, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := validateDeadline(params.Deadline, now); err != nil {
		return nil, err
	}

	g := &Goal{
		ID:            uuid.New(),
		UserID:        params.UserID,
		Name:          strings.TrimSpace(params.Name),
		Description:   strings.TrimSpace(params.Description),
		TargetAmount:  params.TargetAmount,
		CurrentAmount: params.CurrentAmount,
		Deadline:      params.Deadline,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) GetGoal(ctx context.Context, userID int64, id uuid.UUID) (*Goal, error) {
	return s.repo.GetByID(ctx, userID, id)
}

func (s *Service) ListGoals(ctx context.Context, userID int64) ([]*Goal, error) {
	if userID <= 0 {
		return nil, ErrInvalidUser
	}
	return s.repo.ListByUserID(ctx, userID)
}

// UpdateGoal applies an explicit edit. Unlike Contribute it may lower the
// current amount.
func (s *Service) UpdateGoal(ctx context.Context, userID int64, id uuid.UUID, params UpdateParams) (*Goal, error) {
	g, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		g.Name = strings.TrimSpace(*params.Name)
	}
	if params.Description != nil {
		g.Description = strings.TrimSpace(*params.Description)
	}
	if params.TargetAmount != nil {
		g.TargetAmount = *params.TargetAmount
	}
	if params.CurrentAmount != nil {
		g.CurrentAmount = *params.CurrentAmount
	}
	if params.Deadline != nil {
		if err := validateDeadline(params.Deadline, s.now()); err != nil {
			return nil, err
		}
		g.Deadline = params.Deadline
	}
	if err := validateText(g.Name, g.Description); err != nil {
		return nil, err
	}
	if err := validateAmounts(g.TargetAmount, g.CurrentAmount); err != nil {
		return nil, err
	}

	g.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) DeleteGoal(ctx context.Context, userID int64, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}

// Contribute adds a positive amount to the goal. Overshooting the target is allowed.
func (s *Service) Contribute(ctx context.Context, userID int64, id uuid.UUID, amount decimal.Decimal) (*Goal, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidContribution
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, ErrInvalidPrecision
	}
	return s.repo.AddContribution(ctx, userID, id, amount)
}
