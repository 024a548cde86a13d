package budget

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/domain/category"
	"ledger/internal/domain/transaction"
	"ledger/internal/shared/period"
)

// SpendReader sums expense magnitude per category from the ledger.
type SpendReader interface {
	ExpensesByCategory(ctx context.Context, userID int64, from, to time.Time) ([]transaction.CategoryTotal, error)
}

// ChangeHook is called after a user's budgets were set or deleted.
type ChangeHook func(ctx context.Context, userID int64)

type Service struct {
	repo       Repository
	spend      SpendReader
	categories transaction.CategoryReader
	hooks      []ChangeHook
	now        func() time.Time
}

func NewService(repo Repository, spend SpendReader, categories transaction.CategoryReader, hooks ...ChangeHook) *Service {
	return &Service{repo: repo, spend: spend, categories: categories, hooks: hooks, now: time.Now}
}

func (s *Service) changed(ctx context.Context, userID int64) {
	for _, hook := range s.hooks {
		hook(ctx, userID)
	}
}

// SetBudget creates the budget for (user, category, month) or overwrites its amount.
func (s *Service) SetBudget(ctx context.Context, params SetParams) (*Status, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	cat, err := s.categories.GetCategory(ctx, params.UserID, params.CategoryID)
	if err != nil {
		return nil, err
	}
	if cat.Kind != category.KindExpense {
		return nil, ErrIncomeCategory
	}

	now := s.now().UTC()
	b := &Budget{
		ID:         uuid.New(),
		UserID:     params.UserID,
		CategoryID: params.CategoryID,
		Month:      period.MonthStart(params.Month),
		Amount:     params.Amount,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Upsert(ctx, b); err != nil {
		return nil, err
	}
	s.changed(ctx, b.UserID)
	return s.withSpend(ctx, b)
}

func (s *Service) GetBudget(ctx context.Context, userID int64, id uuid.UUID) (*Status, error) {
	b, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.withSpend(ctx, b)
}

// ListBudgets returns the month's budgets with spend summed from the ledger.
// One aggregate query serves every budget of the month.
func (s *Service) ListBudgets(ctx context.Context, userID int64, month time.Time) ([]*Status, error) {
	if userID <= 0 {
		return nil, ErrInvalidUser
	}
	if month.IsZero() {
		month = s.now()
	}
	from, to := period.Month(month)

	budgets, err := s.repo.ListByMonth(ctx, userID, from)
	if err != nil {
		return nil, err
	}
	if len(budgets) == 0 {
		return []*Status{}, nil
	}

	spent, err := s.spendByCategory(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	out := make([]*Status, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, newStatus(b, spent[b.CategoryID]))
	}
	return out, nil
}

func (s *Service) DeleteBudget(ctx context.Context, userID int64, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.changed(ctx, userID)
	return nil
}

func (s *Service) withSpend(ctx context.Context, b *Budget) (*Status, error) {
	from, to := period.Month(b.Month)
	spent, err := s.spendByCategory(ctx, b.UserID, from, to)
	if err != nil {
		return nil, err
	}
	return newStatus(b, spent[b.CategoryID]), nil
}

func (s *Service) spendByCategory(ctx context.Context, userID int64, from, to time.Time) (map[uuid.UUID]decimal.Decimal, error) {
	totals, err := s.spend.ExpensesByCategory(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]decimal.Decimal, len(totals))
	for _, t := range totals {
		out[t.CategoryID] = t.Total
	}
	return out, nil
}
