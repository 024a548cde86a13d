package goal

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/shared/apperror"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 500
)

// Domain errors
var (
	ErrGoalNotFound        = apperror.NotFound("goal not found")
	ErrInvalidName         = apperror.InvalidArgument("goal name must have between 1 and 100 characters")
	ErrInvalidDescription  = apperror.InvalidArgument("goal description must have at most 500 characters")
	ErrInvalidTarget       = apperror.InvalidArgument("target amount must be positive")
	ErrInvalidCurrent      = apperror.InvalidArgument("current amount must not be negative")
	ErrInvalidContribution = apperror.InvalidArgument("contribution must be positive")
	ErrInvalidPrecision    = apperror.InvalidArgument("amounts must have at most 2 decimal places")
	ErrDeadlinePassed      = apperror.InvalidArgument("deadline must be in the future")
	ErrInvalidUser         = apperror.InvalidArgument("valid user ID is required")
)

// Goal is a savings target. CurrentAmount only grows through contributions;
// an explicit edit may set it to any non-negative value.
type Goal struct {
	ID            uuid.UUID       `json:"id"`
	UserID        int64           `json:"userId"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	Deadline      *time.Time      `json:"deadline,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Progress returns the percentage reached, which may exceed 100.
func (g *Goal) Progress() decimal.Decimal {
	if !g.TargetAmount.IsPositive() {
		return decimal.Zero
	}
	return g.CurrentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100)).Round(2)
}

// Reached reports whether the target has been met.
func (g *Goal) Reached() bool {
	return g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount)
}

type CreateParams struct {
	UserID        int64
	Name          string
	Description   string
	TargetAmount  decimal.Decimal
	CurrentAmount decimal.Decimal
	Deadline      *time.Time
}

func (p CreateParams) Validate() error {
	if p.UserID <= 0 {
		return ErrInvalidUser
	}
	if err := validateText(p.Name, p.Description); err != nil {
		return err
	}
	return validateAmounts(p.TargetAmount, p.CurrentAmount)
}

// UpdateParams is a patch: nil fields keep their stored value.
type UpdateParams struct {
	Name          *string
	Description   *string
	TargetAmount  *decimal.Decimal
	CurrentAmount *decimal.Decimal
	Deadline      *time.Time
}

// validateDeadline rejects a deadline that is not after now. Stored goals
// whose deadline has since passed stay valid until the deadline is edited.
func validateDeadline(deadline *time.Time, now time.Time) error {
	if deadline != nil && !deadline.After(now) {
		return ErrDeadlinePassed
	}
	return nil
}

func validateText(name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return ErrInvalidName
	}
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return ErrInvalidDescription
	}
	return nil
}

func validateAmounts(target, current decimal.Decimal) error {
	if !target.IsPositive() {
		return ErrInvalidTarget
	}
	if current.IsNegative() {
		return ErrInvalidCurrent
	}
	if !target.Equal(target.Round(2)) || !current.Equal(current.Round(2)) {
		return ErrInvalidPrecision
	}
	return nil
}
