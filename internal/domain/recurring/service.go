package recurring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ledger/internal/domain/transaction"
	"ledger/internal/shared/logging"
	"ledger/internal/shared/period"
)

// Ledger is the write path shared with manual transactions.
type Ledger interface {
	Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error)
}

// Service owns recurring templates and materializes their due occurrences
// through the ledger.
type Service struct {
	repo       Repository
	ledger     Ledger
	accounts   transaction.AccountReader
	categories transaction.CategoryReader
	now        func() time.Time
	logger     *slog.Logger
}

// NewService creates a new recurring service
func NewService(repo Repository, ledger Ledger, accounts transaction.AccountReader, categories transaction.CategoryReader) *Service {
	return &Service{
		repo:       repo,
		ledger:     ledger,
		accounts:   accounts,
		categories: categories,
		now:        time.Now,
		logger:     logging.Component(logging.ComponentRecurring),
	}
}

// CreateTemplate validates and stores a new template. Its first due date is
// the start date; a start date in the past is caught up by the next pass.
func (s *Service) CreateTemplate(ctx context.Context, params CreateParams) (*Template, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.accounts.GetAccount(ctx, params.UserID, params.AccountID); err != nil {
		return nil, err
	}
	cat, err := s.categories.GetCategory(ctx, params.UserID, params.CategoryID)
	if err != nil {
		return nil, err
	}
	if string(cat.Kind) != string(params.Type) {
		return nil, transaction.ErrKindMismatch
	}

	start := period.Day(params.StartDate)
	now := s.now().UTC()
	t := &Template{
		ID:          uuid.New(),
		UserID:      params.UserID,
		AccountID:   params.AccountID,
		CategoryID:  params.CategoryID,
		Description: strings.TrimSpace(params.Description),
		Amount:      params.Amount,
		Type:        params.Type,
		Frequency:   params.Frequency,
		StartDate:   start,
		NextDueDate: start,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if params.EndDate != nil {
		end := period.Day(*params.EndDate)
		t.EndDate = &end
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) GetTemplate(ctx context.Context, userID int64, id uuid.UUID) (*Template, error) {
	return s.repo.GetByID(ctx, userID, id)
}

func (s *Service) ListTemplates(ctx context.Context, userID int64) ([]*Template, error) {
	if userID <= 0 {
		return nil, ErrInvalidUser
	}
	return s.repo.ListByUserID(ctx, userID)
}

// DeleteTemplate removes a template. Transactions it already produced stay.
func (s *Service) DeleteTemplate(ctx context.Context, userID int64, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}

// UsersWithDue lists the owners of templates due on today.
func (s *Service) UsersWithDue(ctx context.Context, today time.Time) ([]int64, error) {
	return s.repo.ListUsersWithDue(ctx, period.Day(today))
}

// ProcessDue runs one pass over every user's due templates.
func (s *Service) ProcessDue(ctx context.Context, today time.Time) (Result, error) {
	return s.process(ctx, 0, today)
}

// ProcessUser runs one pass over a single user's due templates.
func (s *Service) ProcessUser(ctx context.Context, userID int64, today time.Time) (Result, error) {
	if userID <= 0 {
		return Result{}, ErrInvalidUser
	}
	return s.process(ctx, userID, today)
}

func (s *Service) process(ctx context.Context, userID int64, today time.Time) (Result, error) {
	today = period.Day(today)

	templates, err := s.repo.ListDue(ctx, userID, today)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list due templates: %w", err)
	}

	var total Result
	for _, t := range templates {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		res, err := s.processTemplate(ctx, t, today)
		total.add(res)
		if err != nil {
			total.Failed++
			// Retried on the next pass; completed occurrences are protected by the dedup key.
			s.logger.ErrorContext(ctx, "failed to process recurring template",
				logging.FieldTemplateID, t.ID,
				logging.FieldUserID, t.UserID,
				logging.FieldDueDate, t.NextDueDate.Format(time.DateOnly),
				logging.FieldError, err)
		}
	}

	s.logger.InfoContext(ctx, "recurring pass complete",
		logging.FieldUserID, userID,
		"date", today.Format(time.DateOnly),
		"templates", total.Templates,
		logging.FieldMaterialize, total.Materialized,
		"skipped", total.Skipped,
		"expired", total.Expired,
		"failed", total.Failed)

	return total, nil
}

// processTemplate catches a template up to today one period at a time:
// materialize the occurrence, then advance next_due_date conditionally.
// A crash between the two steps is repaired on the next pass, where the
// ledger reports the occurrence as a duplicate and the schedule still advances.
func (s *Service) processTemplate(ctx context.Context, t *Template, today time.Time) (Result, error) {
	res := Result{Templates: 1}

	for !t.Expired && !t.NextDueDate.After(today) {
		due := t.NextDueDate

		if t.pastEnd(due) {
			if err := s.repo.Advance(ctx, t.ID, due, due, true); err != nil {
				return res, s.advanceErr(ctx, t, err)
			}
			res.Expired++
			return res, nil
		}

		_, err := s.ledger.Create(ctx, transaction.CreateParams{
			UserID:      t.UserID,
			AccountID:   t.AccountID,
			CategoryID:  t.CategoryID,
			Type:        t.Type,
			Amount:      t.Amount,
			Description: t.Description,
			Date:        due,
			RecurringID: &t.ID,
			DueDate:     &due,
		})
		switch {
		case err == nil:
			res.Materialized++
		case errors.Is(err, transaction.ErrDuplicateOccurrence):
			res.Skipped++
			s.logger.DebugContext(ctx, "occurrence already materialized",
				logging.FieldTemplateID, t.ID,
				logging.FieldDueDate, due.Format(time.DateOnly))
		default:
			return res, fmt.Errorf("failed to materialize occurrence %s: %w", due.Format(time.DateOnly), err)
		}

		next := t.Frequency.Next(t.StartDate, due)
		expired := t.pastEnd(next)
		if err := s.repo.Advance(ctx, t.ID, due, next, expired); err != nil {
			return res, s.advanceErr(ctx, t, err)
		}
		t.NextDueDate = next
		t.Expired = expired
		if expired {
			res.Expired++
		}
	}

	return res, nil
}

// advanceErr swallows a lost race on the schedule: the pass that won is
// already catching the template up.
func (s *Service) advanceErr(ctx context.Context, t *Template, err error) error {
	if errors.Is(err, ErrStaleSchedule) {
		s.logger.DebugContext(ctx, "schedule advanced by another pass",
			logging.FieldTemplateID, t.ID)
		return nil
	}
	return fmt.Errorf("failed to advance schedule: %w", err)
}
