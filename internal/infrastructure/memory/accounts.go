package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/domain/account"
)

// AccountRepository implements account.Repository
type AccountRepository struct {
	s *Store
}

func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	if acc.IsPrimary {
		r.s.primaryMu.Lock()
		defer r.s.primaryMu.Unlock()
	}

	if err := r.insert(acc); err != nil {
		return err
	}
	if !acc.IsPrimary {
		return nil
	}

	now := time.Now().UTC()
	for _, e := range r.s.userEntries(acc.UserID) {
		if e.acc.ID == acc.ID {
			continue
		}
		e.mu.Lock()
		if !e.deleted && e.acc.IsPrimary {
			e.acc.IsPrimary = false
			e.acc.UpdatedAt = now
		}
		e.mu.Unlock()
	}
	return nil
}

func (r *AccountRepository) insert(acc *account.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := accountNameKey(acc.UserID, acc.Name)
	if _, taken := r.s.accountNames[key]; taken {
		return account.ErrAccountNameTaken
	}
	r.s.accounts[acc.ID] = &accountEntry{acc: *acc}
	r.s.accountNames[key] = acc.ID
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*account.Account, error) {
	entries, err := r.s.entries(id)
	if err != nil {
		return nil, err
	}
	acc, live := snapshot(entries[0])
	if !live || acc.UserID != userID {
		return nil, account.ErrAccountNotFound
	}
	return &acc, nil
}

func (r *AccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*account.Account, error) {
	out := []*account.Account{}
	for _, e := range r.s.userEntries(userID) {
		if acc, live := snapshot(e); live {
			out = append(out, &acc)
		}
	}
	slices.SortFunc(out, func(a, b *account.Account) int {
		if a.IsPrimary != b.IsPrimary {
			if a.IsPrimary {
				return -1
			}
			return 1
		}
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (r *AccountRepository) FindByName(ctx context.Context, userID int64, name string) (*account.Account, error) {
	for _, e := range r.s.userEntries(userID) {
		if acc, live := snapshot(e); live && strings.EqualFold(acc.Name, name) {
			return &acc, nil
		}
	}
	return nil, account.ErrAccountNotFound
}

func (r *AccountRepository) Update(ctx context.Context, acc *account.Account) error {
	locked, unlock, err := r.s.lockAccounts(acc.ID)
	if err != nil {
		return err
	}
	defer unlock()

	e := locked[acc.ID]
	if e.acc.UserID != acc.UserID {
		return account.ErrAccountNotFound
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := accountNameKey(acc.UserID, acc.Name)
	if owner, taken := r.s.accountNames[key]; taken && owner != acc.ID {
		return account.ErrAccountNameTaken
	}
	delete(r.s.accountNames, accountNameKey(e.acc.UserID, e.acc.Name))
	r.s.accountNames[key] = acc.ID

	e.acc.Name = acc.Name
	e.acc.Type = acc.Type
	e.acc.UpdatedAt = acc.UpdatedAt
	return nil
}

func (r *AccountRepository) SetPrimary(ctx context.Context, userID int64, id uuid.UUID) error {
	r.s.primaryMu.Lock()
	defer r.s.primaryMu.Unlock()

	var ids []uuid.UUID
	for _, e := range r.s.userEntries(userID) {
		ids = append(ids, e.acc.ID)
	}
	if !slices.Contains(ids, id) {
		return account.ErrAccountNotFound
	}

	locked, unlock, err := r.s.lockAccounts(ids...)
	if err != nil {
		return err
	}
	defer unlock()

	now := time.Now().UTC()
	for accID, e := range locked {
		if e.acc.IsPrimary != (accID == id) {
			e.acc.IsPrimary = accID == id
			e.acc.UpdatedAt = now
		}
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	locked, unlock, err := r.s.lockAccounts(id)
	if err != nil {
		return err
	}
	defer unlock()

	e := locked[id]
	if e.acc.UserID != userID {
		return account.ErrAccountNotFound
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, tx := range r.s.transactions {
		if tx.AccountID == id {
			return account.ErrAccountInUse
		}
	}
	for _, t := range r.s.templates {
		if t.AccountID == id {
			return account.ErrAccountInUse
		}
	}
	e.deleted = true
	delete(r.s.accounts, id)
	delete(r.s.accountNames, accountNameKey(userID, e.acc.Name))
	return nil
}

func (r *AccountRepository) ApplyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (*account.Account, error) {
	locked, unlock, err := r.s.lockAccounts(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	e := locked[id]
	applyDelta(e, delta, time.Now().UTC())
	acc := e.acc
	return &acc, nil
}

// applyDelta requires e.mu to be held.
func applyDelta(e *accountEntry, delta decimal.Decimal, now time.Time) {
	e.acc.Balance = e.acc.Balance.Add(delta)
	e.acc.Version++
	e.acc.UpdatedAt = now
}
