package account

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/shared/apperror"
)

// Type is the kind of a financial account.
type Type string

const (
	TypeChecking   Type = "checking"
	TypeSavings    Type = "savings"
	TypeCreditCard Type = "credit_card"
	TypeInvestment Type = "investment"
	TypeOther      Type = "other"
)

var accountTypes = map[Type]struct{}{
	TypeChecking:   {},
	TypeSavings:    {},
	TypeCreditCard: {},
	TypeInvestment: {},
	TypeOther:      {},
}

const maxNameLength = 100

// Domain errors
var (
	ErrAccountNotFound    = apperror.NotFound("account not found")
	ErrInvalidAccountType = apperror.InvalidArgument("invalid account type")
	ErrInvalidName        = apperror.InvalidArgument("account name must have between 1 and 100 characters")
	ErrNegativeBalance    = apperror.InvalidArgument("negative initial balance is only allowed for credit cards")
	ErrInvalidUser        = apperror.InvalidArgument("valid user ID is required")
	ErrAccountNameTaken   = apperror.Conflict("an account with this name already exists")
	ErrAccountInUse       = apperror.Conflict("account is referenced by transactions or recurring templates")
	ErrConcurrentUpdate   = apperror.Conflict("account balance changed concurrently, retry limit reached")
	ErrLastAccount        = apperror.Conflict("cannot delete the last account")
)

// Account represents a financial account domain entity
type Account struct {
	ID             uuid.UUID       `json:"id"`
	UserID         int64           `json:"userId"`
	Name           string          `json:"name"`
	Type           Type            `json:"type"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	Balance        decimal.Decimal `json:"balance"`
	IsPrimary      bool            `json:"isPrimary"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// CanHaveNegativeBalance reports whether the account type allows opening below zero.
func (a *Account) CanHaveNegativeBalance() bool {
	return a.Type == TypeCreditCard
}

// CreateParams contains parameters for creating a new account
type CreateParams struct {
	UserID         int64
	Name           string
	Type           Type
	InitialBalance decimal.Decimal
	IsPrimary      bool
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if p.UserID <= 0 {
		return ErrInvalidUser
	}
	if !validName(p.Name) {
		return ErrInvalidName
	}
	if !IsValidType(p.Type) {
		return ErrInvalidAccountType
	}
	if p.InitialBalance.IsNegative() && p.Type != TypeCreditCard {
		return ErrNegativeBalance
	}
	return nil
}

// UpdateParams contains parameters for updating an account.
// The balance is never edited directly; it only moves through ledger deltas.
type UpdateParams struct {
	Name *string
	Type *Type
}

// Validate validates the update parameters
func (p UpdateParams) Validate() error {
	if p.Name != nil && !validName(*p.Name) {
		return ErrInvalidName
	}
	if p.Type != nil && !IsValidType(*p.Type) {
		return ErrInvalidAccountType
	}
	return nil
}

// IsValidType checks if the provided account type is valid.
func IsValidType(t Type) bool {
	_, ok := accountTypes[t]
	return ok
}

func validName(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && utf8.RuneCountInString(name) <= maxNameLength
}
