package category

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"ledger/internal/shared/apperror"
)

// Kind tells whether a category classifies money coming in or going out.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

const maxNameLength = 50

// Domain errors
var (
	ErrCategoryNotFound = apperror.NotFound("category not found")
	ErrInvalidKind      = apperror.InvalidArgument("category kind must be income or expense")
	ErrInvalidName      = apperror.InvalidArgument("category name must have between 1 and 50 characters")
	ErrCategoryExists   = apperror.Conflict("a category with this name already exists")
	ErrSystemCategory   = apperror.InvalidArgument("system categories cannot be modified")
	ErrCategoryInUse    = apperror.Conflict("category is referenced by transactions, templates or budgets")
)

// Category classifies transactions. System categories have a nil UserID and
// are visible to every user.
type Category struct {
	ID        uuid.UUID `json:"id"`
	UserID    *int64    `json:"userId,omitempty"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsSystem reports whether the category is a shared, immutable one.
func (c *Category) IsSystem() bool {
	return c.UserID == nil
}

// VisibleTo reports whether userID may reference this category.
func (c *Category) VisibleTo(userID int64) bool {
	return c.UserID == nil || *c.UserID == userID
}

type CreateParams struct {
	UserID int64
	Name   string
	Kind   Kind
}

func (p CreateParams) Validate() error {
	if !IsValidKind(p.Kind) {
		return ErrInvalidKind
	}
	name := strings.TrimSpace(p.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return ErrInvalidName
	}
	return nil
}

func IsValidKind(k Kind) bool {
	return k == KindIncome || k == KindExpense
}

// Defaults are the system categories seeded at startup.
var Defaults = map[Kind][]string{
	KindIncome: {
		"Salário", "Freelance", "Investimentos", "Aluguéis", "Vendas", "Bonificação", "Outros",
	},
	KindExpense: {
		"Alimentação", "Transporte", "Moradia", "Saúde", "Educação", "Lazer",
		"Roupas", "Tecnologia", "Serviços", "Impostos", "Outros",
	},
}
