package recurring

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/domain/transaction"
	"ledger/internal/shared/apperror"
)

// Domain errors
var (
	ErrTemplateNotFound = apperror.NotFound("recurring template not found")
	ErrInvalidFrequency = apperror.InvalidArgument("frequency must be weekly, monthly, quarterly or annual")
	ErrInvalidStartDate = apperror.InvalidArgument("start date is required")
	ErrEndBeforeStart   = apperror.InvalidArgument("end date must not be before start date")
	ErrInvalidUser      = apperror.InvalidArgument("valid user ID is required")
	ErrStaleSchedule    = apperror.Conflict("template schedule was advanced concurrently")
)

// State is the lifecycle position of a template relative to a given day.
type State string

const (
	StateScheduled State = "scheduled"
	StateDue       State = "due"
	StateExpired   State = "expired"
)

// Template produces one transaction per due date between StartDate and
// EndDate. NextDueDate is always the earliest occurrence not yet materialized.
type Template struct {
	ID          uuid.UUID        `json:"id"`
	UserID      int64            `json:"userId"`
	AccountID   uuid.UUID        `json:"accountId"`
	CategoryID  uuid.UUID        `json:"categoryId"`
	Description string           `json:"description"`
	Amount      decimal.Decimal  `json:"amount"`
	Type        transaction.Type `json:"type"`
	Frequency   Frequency        `json:"frequency"`
	StartDate   time.Time        `json:"startDate"`
	EndDate     *time.Time       `json:"endDate,omitempty"`
	NextDueDate time.Time        `json:"nextDueDate"`
	Expired     bool             `json:"expired"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// StateAt reports the template state on day.
func (t *Template) StateAt(day time.Time) State {
	switch {
	case t.Expired:
		return StateExpired
	case !t.NextDueDate.After(day):
		return StateDue
	default:
		return StateScheduled
	}
}

// pastEnd reports whether date falls after the template's end date.
func (t *Template) pastEnd(date time.Time) bool {
	return t.EndDate != nil && date.After(*t.EndDate)
}

type CreateParams struct {
	UserID      int64
	AccountID   uuid.UUID
	CategoryID  uuid.UUID
	Description string
	Amount      decimal.Decimal
	Type        transaction.Type
	Frequency   Frequency
	StartDate   time.Time
	EndDate     *time.Time
}

func (p CreateParams) Validate() error {
	if p.UserID <= 0 {
		return ErrInvalidUser
	}
	if err := transaction.ValidateAmount(p.Type, p.Amount); err != nil {
		return err
	}
	if err := transaction.ValidateDescription(p.Description); err != nil {
		return err
	}
	if !p.Frequency.IsValid() {
		return ErrInvalidFrequency
	}
	if p.StartDate.IsZero() {
		return ErrInvalidStartDate
	}
	if p.EndDate != nil && p.EndDate.Before(p.StartDate) {
		return ErrEndBeforeStart
	}
	return nil
}

// Result summarizes a processing pass.
type Result struct {
	Templates    int `json:"templates"`
	Materialized int `json:"materialized"`
	Skipped      int `json:"skipped"`
	Expired      int `json:"expired"`
	Failed       int `json:"failed"`
}

func (r *Result) add(o Result) {
	r.Templates += o.Templates
	r.Materialized += o.Materialized
	r.Skipped += o.Skipped
	r.Expired += o.Expired
	r.Failed += o.Failed
}
