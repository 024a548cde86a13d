package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/shared/logging"
)

// ChangeHook is called after a committed change to any of a user's accounts.
type ChangeHook func(ctx context.Context, userID int64)

// Service contains the business logic for account operations
type Service struct {
	repo  Repository
	hooks []ChangeHook
}

// NewService creates a new account service
func NewService(repo Repository, hooks ...ChangeHook) *Service {
	return &Service{repo: repo, hooks: hooks}
}

func (s *Service) changed(ctx context.Context, userID int64) {
	for _, hook := range s.hooks {
		hook(ctx, userID)
	}
}

// CreateAccount creates a new account with business validation
func (s *Service) CreateAccount(ctx context.Context, params CreateParams) (*Account, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(params.Name)
	if err := s.ensureNameAvailable(ctx, params.UserID, name, uuid.Nil); err != nil {
		return nil, err
	}

	existing, err := s.repo.ListByUserID(ctx, params.UserID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	acc := &Account{
		ID:             uuid.New(),
		UserID:         params.UserID,
		Name:           name,
		Type:           params.Type,
		InitialBalance: params.InitialBalance,
		Balance:        params.InitialBalance,
		// The first account of a user is always primary
		IsPrimary: params.IsPrimary || len(existing) == 0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// A primary account clears the flag on the others in the same write.
	if err := s.repo.Create(ctx, acc); err != nil {
		return nil, err
	}

	s.changed(ctx, acc.UserID)
	return acc, nil
}

// GetAccount retrieves an account by ID and verifies user ownership
func (s *Service) GetAccount(ctx context.Context, userID int64, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, userID, id)
}

// ListAccounts retrieves all accounts for a specific user
func (s *Service) ListAccounts(ctx context.Context, userID int64) ([]*Account, error) {
	if userID <= 0 {
		return nil, ErrInvalidUser
	}

	return s.repo.ListByUserID(ctx, userID)
}

// UpdateAccount applies name/type changes to an account
func (s *Service) UpdateAccount(ctx context.Context, userID int64, id uuid.UUID, params UpdateParams) (*Account, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	acc, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if !strings.EqualFold(name, acc.Name) {
			if err := s.ensureNameAvailable(ctx, userID, name, acc.ID); err != nil {
				return nil, err
			}
		}
		acc.Name = name
	}
	if params.Type != nil {
		if *params.Type != TypeCreditCard && acc.InitialBalance.IsNegative() {
			return nil, ErrNegativeBalance
		}
		acc.Type = *params.Type
	}
	acc.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, acc); err != nil {
		return nil, err
	}

	s.changed(ctx, userID)
	return acc, nil
}

// SetPrimary makes the given account the user's primary account
func (s *Service) SetPrimary(ctx context.Context, userID int64, id uuid.UUID) (*Account, error) {
	if _, err := s.repo.GetByID(ctx, userID, id); err != nil {
		return nil, err
	}

	if err := s.repo.SetPrimary(ctx, userID, id); err != nil {
		return nil, err
	}

	s.changed(ctx, userID)
	return s.repo.GetByID(ctx, userID, id)
}

// DeleteAccount deletes an account after verifying ownership. A user's last
// account cannot be deleted. When the primary account is removed, the first
// remaining account is promoted.
func (s *Service) DeleteAccount(ctx context.Context, userID int64, id uuid.UUID) error {
	acc, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}

	accounts, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return err
	}
	remaining := make([]*Account, 0, len(accounts))
	for _, a := range accounts {
		if a.ID != id {
			remaining = append(remaining, a)
		}
	}
	if len(remaining) == 0 {
		return ErrLastAccount
	}

	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.changed(ctx, userID)

	if !acc.IsPrimary {
		return nil
	}

	if err := s.repo.SetPrimary(ctx, userID, remaining[0].ID); err != nil {
		// The delete already happened; a user without a primary account is recoverable.
		logging.Component(logging.ComponentAccount).WarnContext(ctx, "failed to promote new primary account",
			logging.FieldUserID, userID,
			logging.FieldAccountID, remaining[0].ID,
			logging.FieldError, err)
	}

	return nil
}

// ApplyDelta adds a signed amount to an account balance outside of a ledger
// write. Used by balance repair; regular transactions go through the ledger.
func (s *Service) ApplyDelta(ctx context.Context, userID int64, id uuid.UUID, delta decimal.Decimal) (*Account, error) {
	if _, err := s.repo.GetByID(ctx, userID, id); err != nil {
		return nil, err
	}
	if delta.IsZero() {
		return s.repo.GetByID(ctx, userID, id)
	}

	acc, err := s.repo.ApplyDelta(ctx, id, delta)
	if err != nil {
		return nil, err
	}

	s.changed(ctx, userID)
	return acc, nil
}

func (s *Service) ensureNameAvailable(ctx context.Context, userID int64, name string, self uuid.UUID) error {
	existing, err := s.repo.FindByName(ctx, userID, name)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != self {
		return ErrAccountNameTaken
	}
	return nil
}
