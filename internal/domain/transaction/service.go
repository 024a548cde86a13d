package transaction

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"ledger/internal/domain/account"
	"ledger/internal/domain/category"
	"ledger/internal/shared/logging"
	"ledger/internal/shared/period"
)

// DefaultMaxRetries bounds the optimistic-concurrency retries of a single write.
const DefaultMaxRetries = 5

// AccountReader is the part of the account store the ledger validates against.
type AccountReader interface {
	GetAccount(ctx context.Context, userID int64, id uuid.UUID) (*account.Account, error)
	ListAccounts(ctx context.Context, userID int64) ([]*account.Account, error)
}

// CategoryReader resolves categories visible to a user.
type CategoryReader interface {
	GetCategory(ctx context.Context, userID int64, id uuid.UUID) (*category.Category, error)
}

// Service is the transactional ledger: every write persists the record and
// its balance deltas atomically through the Repository.
type Service struct {
	repo       Repository
	accounts   AccountReader
	categories CategoryReader
	publisher  Publisher
	maxRetries int
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the sink for committed ledger events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMaxRetries sets how many times a conflicting write is attempted.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new ledger service
func NewService(repo Repository, accounts AccountReader, categories CategoryReader, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		accounts:   accounts,
		categories: categories,
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
		logger:     logging.Component(logging.ComponentLedger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and records a transaction, applying +amount to its account.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Transaction, error) {
	if err := s.validateCreate(ctx, params); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	tx := &Transaction{
		ID:          uuid.New(),
		UserID:      params.UserID,
		AccountID:   params.AccountID,
		CategoryID:  params.CategoryID,
		Type:        params.Type,
		Amount:      params.Amount,
		Description: strings.TrimSpace(params.Description),
		Date:        period.Day(params.Date),
		RecurringID: params.RecurringID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if params.DueDate != nil {
		due := period.Day(*params.DueDate)
		tx.DueDate = &due
	}

	deltas := createDeltas(tx)
	err := s.withRetry(ctx, "create", func() error {
		return s.repo.Create(ctx, tx, deltas)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, newEvent(EventCreated, tx, deltas, now))
	return tx, nil
}

// Update applies a patch. The old effect is reversed and the new one applied
// in the same atomic unit as the record write.
func (s *Service) Update(ctx context.Context, userID int64, id uuid.UUID, params UpdateParams) (*Transaction, error) {
	var (
		old, updated *Transaction
		deltas       []BalanceDelta
	)

	err := s.withRetry(ctx, "update", func() error {
		var err error
		old, err = s.repo.GetByID(ctx, userID, id)
		if err != nil {
			return err
		}
		updated, err = s.applyPatch(ctx, old, params)
		if err != nil {
			return err
		}
		deltas = updateDeltas(old, updated)
		return s.repo.Update(ctx, updated, old.Version, deltas)
	})
	if err != nil {
		return nil, err
	}

	event := newEvent(EventUpdated, updated, deltas, updated.UpdatedAt)
	previous := old.Amount
	event.PreviousAmount = &previous
	s.publish(ctx, event)
	return updated, nil
}

// Delete reverses the transaction's effect and removes it.
func (s *Service) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	var (
		tx     *Transaction
		deltas []BalanceDelta
	)

	err := s.withRetry(ctx, "delete", func() error {
		var err error
		tx, err = s.repo.GetByID(ctx, userID, id)
		if err != nil {
			return err
		}
		deltas = deleteDeltas(tx)
		return s.repo.Delete(ctx, userID, id, tx.Version, deltas)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, newEvent(EventDeleted, tx, deltas, s.now().UTC()))
	return nil
}

// Get retrieves a transaction owned by userID
func (s *Service) Get(ctx context.Context, userID int64, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetByID(ctx, userID, id)
}

// List returns one page of the user's transactions, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) (*Page, error) {
	f, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	// Ask for one extra row to learn whether another page exists.
	query := f
	query.Limit = f.Limit + 1
	items, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, err
	}

	page := &Page{Limit: f.Limit, Offset: f.Offset}
	if len(items) > f.Limit {
		page.HasMore = true
		items = items[:f.Limit]
	}
	if items == nil {
		items = []*Transaction{}
	}
	page.Items = items
	return page, nil
}

// All returns a lazy sequence over every transaction matching filter, in List
// order. Pages are fetched on demand; each range over the sequence starts
// again from filter.Offset. Iteration stops at the first error.
func (s *Service) All(ctx context.Context, filter ListFilter) iter.Seq2[*Transaction, error] {
	return func(yield func(*Transaction, error) bool) {
		f := filter
		if f.Limit <= 0 || f.Limit > MaxPageSize {
			f.Limit = MaxPageSize
		}

		for {
			page, err := s.List(ctx, f)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, tx := range page.Items {
				if !yield(tx, nil) {
					return
				}
			}
			if !page.HasMore {
				return
			}
			f.Offset += len(page.Items)
		}
	}
}

// Duplicate copies a transaction to date (today when nil) with " (copy)"
// appended to its description. The copy is a plain manual transaction.
func (s *Service) Duplicate(ctx context.Context, userID int64, id uuid.UUID, date *time.Time) (*Transaction, error) {
	original, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	when := s.now()
	if date != nil {
		when = *date
	}

	return s.Create(ctx, CreateParams{
		UserID:      userID,
		AccountID:   original.AccountID,
		CategoryID:  original.CategoryID,
		Type:        original.Type,
		Amount:      original.Amount,
		Description: truncateDescription(original.Description + copySuffix),
		Date:        when,
	})
}

// ExpensesByCategory returns the expense magnitude per category in [from, to],
// largest first.
func (s *Service) ExpensesByCategory(ctx context.Context, userID int64, from, to time.Time) ([]CategoryTotal, error) {
	from, to = period.Day(from), period.Day(to)
	if to.Before(from) {
		return nil, ErrInvalidRange
	}

	totals, err := s.repo.SumByCategory(ctx, userID, TypeExpense, from, to)
	if err != nil {
		return nil, err
	}
	for i := range totals {
		totals[i].Total = totals[i].Total.Abs()
	}
	sortTotals(totals)
	return totals, nil
}

// Reconcile recomputes initial balance plus the sum of live transactions for
// every account of the user and reports the accounts that disagree with the
// stored balance.
func (s *Service) Reconcile(ctx context.Context, userID int64) (*ReconcileReport, error) {
	accounts, err := s.accounts.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	sums, err := s.repo.SumByAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{UserID: userID, Checked: len(accounts)}
	for _, acc := range accounts {
		expected := acc.InitialBalance.Add(sums[acc.ID])
		if expected.Equal(acc.Balance) {
			continue
		}
		report.Discrepancies = append(report.Discrepancies, AccountDiscrepancy{
			AccountID:  acc.ID,
			Name:       acc.Name,
			Stored:     acc.Balance,
			Expected:   expected,
			Difference: expected.Sub(acc.Balance),
		})
	}

	if !report.Balanced() {
		s.logger.WarnContext(ctx, "balance drift detected",
			logging.FieldUserID, userID,
			"accounts", len(report.Discrepancies))
	}
	return report, nil
}

func (s *Service) validateCreate(ctx context.Context, p CreateParams) error {
	if p.UserID <= 0 {
		return ErrInvalidUser
	}
	if err := ValidateAmount(p.Type, p.Amount); err != nil {
		return err
	}
	if err := ValidateDescription(p.Description); err != nil {
		return err
	}
	if (p.RecurringID == nil) != (p.DueDate == nil) {
		return ErrInvalidRecurringRef
	}
	if err := s.validateDate(p.Date, p.RecurringID != nil); err != nil {
		return err
	}
	if _, err := s.accounts.GetAccount(ctx, p.UserID, p.AccountID); err != nil {
		return err
	}
	return s.validateCategory(ctx, p.UserID, p.CategoryID, p.Type)
}

func (s *Service) validateDate(date time.Time, recurring bool) error {
	if date.IsZero() {
		return ErrInvalidDate
	}
	if recurring {
		return nil
	}
	limit := period.Day(s.now()).AddDate(0, 0, maxFutureDays)
	if period.Day(date).After(limit) {
		return ErrDateTooFarAhead
	}
	return nil
}

func (s *Service) validateCategory(ctx context.Context, userID int64, id uuid.UUID, typ Type) error {
	cat, err := s.categories.GetCategory(ctx, userID, id)
	if err != nil {
		return err
	}
	if string(cat.Kind) != string(typ) {
		return ErrKindMismatch
	}
	return nil
}

// applyPatch returns a validated copy of old with params applied.
func (s *Service) applyPatch(ctx context.Context, old *Transaction, p UpdateParams) (*Transaction, error) {
	tx := *old

	if p.Type != nil {
		tx.Type = *p.Type
	}
	if p.Amount != nil {
		tx.Amount = *p.Amount
	}
	if p.Description != nil {
		if err := ValidateDescription(*p.Description); err != nil {
			return nil, err
		}
		tx.Description = strings.TrimSpace(*p.Description)
	}
	if p.Date != nil {
		if err := s.validateDate(*p.Date, old.IsRecurring()); err != nil {
			return nil, err
		}
		tx.Date = period.Day(*p.Date)
	}
	if err := ValidateAmount(tx.Type, tx.Amount); err != nil {
		return nil, err
	}

	if p.AccountID != nil && *p.AccountID != old.AccountID {
		if _, err := s.accounts.GetAccount(ctx, old.UserID, *p.AccountID); err != nil {
			return nil, err
		}
		tx.AccountID = *p.AccountID
	}
	if p.CategoryID != nil {
		tx.CategoryID = *p.CategoryID
	}
	if p.CategoryID != nil || p.Type != nil {
		if err := s.validateCategory(ctx, old.UserID, tx.CategoryID, tx.Type); err != nil {
			return nil, err
		}
	}

	tx.Version = old.Version + 1
	tx.UpdatedAt = s.now().UTC()
	return &tx, nil
}

// withRetry runs fn until it succeeds, fails with a non-conflict error, or
// the attempt budget is spent.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.logger.DebugContext(ctx, "write conflict, retrying",
			logging.FieldOperation, op,
			"attempt", attempt,
			logging.FieldError, err)
	}

	s.logger.WarnContext(ctx, "giving up after repeated write conflicts",
		logging.FieldOperation, op,
		"attempts", s.maxRetries,
		logging.FieldError, err)
	return fmt.Errorf("%w: %s", ErrConcurrentModification, err.Error())
}

func isRetryable(err error) bool {
	return errors.Is(err, ErrStaleTransaction) || errors.Is(err, account.ErrConcurrentUpdate)
}

func (s *Service) publish(ctx context.Context, event Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		// The write is committed; subscribers fall back to TTL expiry.
		s.logger.WarnContext(ctx, "failed to publish ledger event",
			logging.FieldEventType, event.Type,
			logging.FieldUserID, event.UserID,
			logging.FieldTxID, event.TransactionID,
			logging.FieldError, err)
	}
}

func normalizeFilter(f ListFilter) (ListFilter, error) {
	if f.UserID <= 0 {
		return f, ErrInvalidUser
	}
	if f.Offset < 0 {
		return f, ErrInvalidPagination
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultPageSize
	case f.Limit > MaxPageSize:
		f.Limit = MaxPageSize
	}
	if f.Type != nil && !IsValidType(*f.Type) {
		return f, ErrInvalidType
	}

	if f.Month != nil {
		from, to := period.Month(*f.Month)
		f.From, f.To = &from, &to
		f.Month = nil
	}
	if f.From != nil {
		from := period.Day(*f.From)
		f.From = &from
	}
	if f.To != nil {
		to := period.Day(*f.To)
		f.To = &to
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, ErrInvalidRange
	}
	return f, nil
}

func sortTotals(totals []CategoryTotal) {
	slices.SortFunc(totals, func(a, b CategoryTotal) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return strings.Compare(a.CategoryID.String(), b.CategoryID.String())
	})
}
