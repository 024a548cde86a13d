// Package memory is an in-process implementation of every domain repository.
// It backs local development and the cross-component tests.
//
// Locking: primaryMu serializes primary-flag changes and is taken first.
// Account entries carry their own mutex and are always locked in ascending
// id order, before the store mutex. The store mutex is never held while
// waiting for an account mutex.
package memory

import (
	"bytes"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"ledger/internal/domain/account"
	"ledger/internal/domain/budget"
	"ledger/internal/domain/category"
	"ledger/internal/domain/goal"
	"ledger/internal/domain/recurring"
	"ledger/internal/domain/transaction"
)

type accountEntry struct {
	mu      sync.Mutex
	acc     account.Account
	deleted bool
}

type nameKey struct {
	userID int64
	name   string
}

func accountNameKey(userID int64, name string) nameKey {
	return nameKey{userID: userID, name: strings.ToLower(name)}
}

type occurrenceKey struct {
	recurringID uuid.UUID
	dueDate     string
}

// Store holds all records in maps guarded by one RWMutex, plus a mutex per account.
type Store struct {
	primaryMu    sync.Mutex
	mu           sync.RWMutex
	accounts     map[uuid.UUID]*accountEntry
	accountNames map[nameKey]uuid.UUID
	categories   map[uuid.UUID]*category.Category
	transactions map[uuid.UUID]*transaction.Transaction
	occurrences  map[occurrenceKey]uuid.UUID
	templates    map[uuid.UUID]*recurring.Template
	budgets      map[uuid.UUID]*budget.Budget
	goals        map[uuid.UUID]*goal.Goal
}

func NewStore() *Store {
	return &Store{
		accounts:     make(map[uuid.UUID]*accountEntry),
		accountNames: make(map[nameKey]uuid.UUID),
		categories:   make(map[uuid.UUID]*category.Category),
		transactions: make(map[uuid.UUID]*transaction.Transaction),
		occurrences:  make(map[occurrenceKey]uuid.UUID),
		templates:    make(map[uuid.UUID]*recurring.Template),
		budgets:      make(map[uuid.UUID]*budget.Budget),
		goals:        make(map[uuid.UUID]*goal.Goal),
	}
}

func (s *Store) Accounts() *AccountRepository         { return &AccountRepository{s} }
func (s *Store) Categories() *CategoryRepository      { return &CategoryRepository{s} }
func (s *Store) Transactions() *TransactionRepository { return &TransactionRepository{s} }
func (s *Store) Recurring() *RecurringRepository      { return &RecurringRepository{s} }
func (s *Store) Budgets() *BudgetRepository           { return &BudgetRepository{s} }
func (s *Store) Goals() *GoalRepository               { return &GoalRepository{s} }

// entries looks up account entries by id without locking them.
func (s *Store) entries(ids ...uuid.UUID) ([]*accountEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*accountEntry, 0, len(ids))
	for _, id := range ids {
		e, ok := s.accounts[id]
		if !ok {
			return nil, account.ErrAccountNotFound
		}
		out = append(out, e)
	}
	return out, nil
}

// lockAccounts locks the entries of ids in ascending id order and returns
// the unlock function. Entries deleted while waiting fail the lock.
func (s *Store) lockAccounts(ids ...uuid.UUID) (map[uuid.UUID]*accountEntry, func(), error) {
	ids = slices.Clone(ids)
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	ids = slices.Compact(ids)

	entries, err := s.entries(ids...)
	if err != nil {
		return nil, nil, err
	}

	locked := make(map[uuid.UUID]*accountEntry, len(entries))
	unlock := func() {
		for _, e := range locked {
			e.mu.Unlock()
		}
	}
	for i, e := range entries {
		e.mu.Lock()
		locked[ids[i]] = e
		if e.deleted {
			unlock()
			return nil, nil, account.ErrAccountNotFound
		}
	}
	return locked, unlock, nil
}

// userEntries returns the user's account entries, unlocked.
func (s *Store) userEntries(userID int64) []*accountEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*accountEntry
	for _, e := range s.accounts {
		// acc.UserID and acc.ID never change after insert
		if e.acc.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func snapshot(e *accountEntry) (account.Account, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acc, !e.deleted
}
