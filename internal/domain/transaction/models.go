package transaction

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/shared/apperror"
)

// Type tells whether a transaction brings money in or takes it out.
type Type string

const (
	TypeIncome  Type = "income"
	TypeExpense Type = "expense"
)

const (
	maxDescriptionLength = 500
	amountPlaces         = 2
	maxFutureDays        = 30

	DefaultPageSize = 50
	MaxPageSize     = 200

	copySuffix = " (copy)"
)

// Domain errors
var (
	ErrTransactionNotFound    = apperror.NotFound("transaction not found")
	ErrInvalidType            = apperror.InvalidArgument("transaction type must be income or expense")
	ErrZeroAmount             = apperror.InvalidArgument("amount must not be zero")
	ErrSignMismatch           = apperror.InvalidArgument("amount sign does not match transaction type")
	ErrKindMismatch           = apperror.InvalidArgument("category kind does not match transaction type")
	ErrAmountPrecision        = apperror.InvalidArgument("amount must have at most 2 decimal places")
	ErrInvalidDescription     = apperror.InvalidArgument("description must have between 1 and 500 characters")
	ErrInvalidDate            = apperror.InvalidArgument("date is required")
	ErrDateTooFarAhead        = apperror.InvalidArgument("date cannot be more than 30 days in the future")
	ErrInvalidRange           = apperror.InvalidArgument("invalid date range")
	ErrInvalidPagination      = apperror.InvalidArgument("offset must not be negative")
	ErrInvalidRecurringRef    = apperror.InvalidArgument("recurring id and due date must be set together")
	ErrInvalidUser            = apperror.InvalidArgument("valid user ID is required")
	ErrDuplicateOccurrence    = apperror.Conflict("occurrence already materialized for this due date")
	ErrStaleTransaction       = apperror.Conflict("transaction was modified concurrently")
	ErrConcurrentModification = apperror.Conflict("too many concurrent modifications, try again")
)

// Transaction is a single money movement against one account.
// Amount is signed: negative for expenses, positive for income.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	UserID      int64           `json:"userId"`
	AccountID   uuid.UUID       `json:"accountId"`
	CategoryID  uuid.UUID       `json:"categoryId"`
	Type        Type            `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	RecurringID *uuid.UUID      `json:"recurringId,omitempty"`
	DueDate     *time.Time      `json:"dueDate,omitempty"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// IsRecurring reports whether the transaction was materialized from a template.
func (t *Transaction) IsRecurring() bool {
	return t.RecurringID != nil
}

// CreateParams contains parameters for creating a transaction.
// RecurringID and DueDate are set only by the recurring engine.
type CreateParams struct {
	UserID      int64
	AccountID   uuid.UUID
	CategoryID  uuid.UUID
	Type        Type
	Amount      decimal.Decimal
	Description string
	Date        time.Time
	RecurringID *uuid.UUID
	DueDate     *time.Time
}

// UpdateParams is a patch: nil fields keep their stored value.
type UpdateParams struct {
	AccountID   *uuid.UUID
	CategoryID  *uuid.UUID
	Type        *Type
	Amount      *decimal.Decimal
	Description *string
	Date        *time.Time
}

// ListFilter selects transactions for List and All.
// Month, when set, takes precedence over From/To.
type ListFilter struct {
	UserID      int64
	Month       *time.Time
	From        *time.Time
	To          *time.Time
	CategoryIDs []uuid.UUID
	AccountID   *uuid.UUID
	Type        *Type
	Limit       int
	Offset      int
}

// Page is one slice of an ordered listing.
type Page struct {
	Items   []*Transaction `json:"items"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"hasMore"`
}

// CategoryTotal is the summed magnitude of one category's transactions.
type CategoryTotal struct {
	CategoryID uuid.UUID       `json:"categoryId"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
}

// AccountDiscrepancy describes an account whose stored balance differs from
// initial balance plus the sum of its transactions.
type AccountDiscrepancy struct {
	AccountID  uuid.UUID       `json:"accountId"`
	Name       string          `json:"name"`
	Stored     decimal.Decimal `json:"stored"`
	Expected   decimal.Decimal `json:"expected"`
	Difference decimal.Decimal `json:"difference"`
}

// ReconcileReport is the result of checking every account of a user.
type ReconcileReport struct {
	UserID        int64                `json:"userId"`
	Checked       int                  `json:"checked"`
	Discrepancies []AccountDiscrepancy `json:"discrepancies"`
}

// Balanced reports whether every checked account matched.
func (r *ReconcileReport) Balanced() bool {
	return len(r.Discrepancies) == 0
}

// IsValidType checks if the provided transaction type is valid.
func IsValidType(t Type) bool {
	return t == TypeIncome || t == TypeExpense
}

// ValidateAmount checks that amount is non-zero, has at most two decimal
// places and carries the sign implied by typ.
func ValidateAmount(typ Type, amount decimal.Decimal) error {
	if !IsValidType(typ) {
		return ErrInvalidType
	}
	if amount.IsZero() {
		return ErrZeroAmount
	}
	if !amount.Equal(amount.Round(amountPlaces)) {
		return ErrAmountPrecision
	}
	if typ == TypeIncome && amount.IsNegative() || typ == TypeExpense && amount.IsPositive() {
		return ErrSignMismatch
	}
	return nil
}

// ValidateDescription checks the trimmed description length.
func ValidateDescription(desc string) error {
	desc = strings.TrimSpace(desc)
	if desc == "" || utf8.RuneCountInString(desc) > maxDescriptionLength {
		return ErrInvalidDescription
	}
	return nil
}

func truncateDescription(desc string) string {
	if utf8.RuneCountInString(desc) <= maxDescriptionLength {
		return desc
	}
	return string([]rune(desc)[:maxDescriptionLength])
}
