package budget

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/shared/apperror"
)

// Domain errors
var (
	ErrBudgetNotFound = apperror.NotFound("budget not found")
	ErrInvalidAmount  = apperror.InvalidArgument("budget amount must be positive with at most 2 decimal places")
	ErrInvalidMonth   = apperror.InvalidArgument("month is required")
	ErrIncomeCategory = apperror.InvalidArgument("budgets can only be set on expense categories")
	ErrInvalidUser    = apperror.InvalidArgument("valid user ID is required")
)

// Budget is a monthly spending cap for one category. It is informational:
// exceeding it never blocks a ledger write.
type Budget struct {
	ID         uuid.UUID       `json:"id"`
	UserID     int64           `json:"userId"`
	CategoryID uuid.UUID       `json:"categoryId"`
	Month      time.Time       `json:"month"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Status is a budget together with its spend, computed on read.
type Status struct {
	Budget
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	PercentUsed decimal.Decimal `json:"percentUsed"`
	Exceeded    bool            `json:"exceeded"`
}

func newStatus(b *Budget, spent decimal.Decimal) *Status {
	s := &Status{
		Budget:    *b,
		Spent:     spent,
		Remaining: b.Amount.Sub(spent),
		Exceeded:  spent.GreaterThan(b.Amount),
	}
	if b.Amount.IsPositive() {
		s.PercentUsed = spent.Div(b.Amount).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return s
}

type SetParams struct {
	UserID     int64
	CategoryID uuid.UUID
	Month      time.Time
	Amount     decimal.Decimal
}

func (p SetParams) Validate() error {
	if p.UserID <= 0 {
		return ErrInvalidUser
	}
	if p.Month.IsZero() {
		return ErrInvalidMonth
	}
	if !p.Amount.IsPositive() || !p.Amount.Equal(p.Amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}
