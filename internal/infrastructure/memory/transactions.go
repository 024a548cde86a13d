package memory

import (
	"bytes"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/domain/transaction"
)

// TransactionRepository implements transaction.Repository. A write holds the
// mutexes of every account it touches for the whole record-plus-delta unit.
type TransactionRepository struct {
	s *Store
}

func occurrenceOf(tx *transaction.Transaction) (occurrenceKey, bool) {
	if tx.RecurringID == nil || tx.DueDate == nil {
		return occurrenceKey{}, false
	}
	return occurrenceKey{recurringID: *tx.RecurringID, dueDate: tx.DueDate.Format(time.DateOnly)}, true
}

func deltaAccounts(deltas []transaction.BalanceDelta, extra ...uuid.UUID) []uuid.UUID {
	ids := slices.Clone(extra)
	for _, d := range deltas {
		ids = append(ids, d.AccountID)
	}
	return ids
}

// commit applies deltas to already locked entries.
func commit(locked map[uuid.UUID]*accountEntry, deltas []transaction.BalanceDelta) {
	now := time.Now().UTC()
	for _, d := range deltas {
		applyDelta(locked[d.AccountID], d.Amount, now)
	}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *transaction.Transaction, deltas []transaction.BalanceDelta) error {
	locked, unlock, err := r.s.lockAccounts(deltaAccounts(deltas, tx.AccountID)...)
	if err != nil {
		return err
	}
	defer unlock()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key, recurring := occurrenceOf(tx)
	if recurring {
		if _, exists := r.s.occurrences[key]; exists {
			return transaction.ErrDuplicateOccurrence
		}
		r.s.occurrences[key] = tx.ID
	}

	stored := *tx
	r.s.transactions[tx.ID] = &stored
	commit(locked, deltas)
	return nil
}

func (r *TransactionRepository) Update(ctx context.Context, tx *transaction.Transaction, expectedVersion int64, deltas []transaction.BalanceDelta) error {
	locked, unlock, err := r.s.lockAccounts(deltaAccounts(deltas, tx.AccountID)...)
	if err != nil {
		return err
	}
	defer unlock()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.transactions[tx.ID]
	if !ok || current.UserID != tx.UserID || current.Version != expectedVersion {
		return transaction.ErrStaleTransaction
	}

	stored := *tx
	stored.RecurringID, stored.DueDate = current.RecurringID, current.DueDate
	stored.CreatedAt = current.CreatedAt
	r.s.transactions[tx.ID] = &stored
	commit(locked, deltas)
	return nil
}

func (r *TransactionRepository) Delete(ctx context.Context, userID int64, id uuid.UUID, expectedVersion int64, deltas []transaction.BalanceDelta) error {
	locked, unlock, err := r.s.lockAccounts(deltaAccounts(deltas)...)
	if err != nil {
		return err
	}
	defer unlock()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.transactions[id]
	if !ok || current.UserID != userID || current.Version != expectedVersion {
		return transaction.ErrStaleTransaction
	}

	if key, recurring := occurrenceOf(current); recurring {
		delete(r.s.occurrences, key)
	}
	delete(r.s.transactions, id)
	commit(locked, deltas)
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*transaction.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tx, ok := r.s.transactions[id]
	if !ok || tx.UserID != userID {
		return nil, transaction.ErrTransactionNotFound
	}
	out := *tx
	return &out, nil
}

func matches(f transaction.ListFilter, tx *transaction.Transaction) bool {
	switch {
	case tx.UserID != f.UserID:
		return false
	case f.From != nil && tx.Date.Before(*f.From):
		return false
	case f.To != nil && tx.Date.After(*f.To):
		return false
	case f.AccountID != nil && tx.AccountID != *f.AccountID:
		return false
	case f.Type != nil && tx.Type != *f.Type:
		return false
	case len(f.CategoryIDs) > 0 && !slices.Contains(f.CategoryIDs, tx.CategoryID):
		return false
	}
	return true
}

func (r *TransactionRepository) List(ctx context.Context, f transaction.ListFilter) ([]*transaction.Transaction, error) {
	r.s.mu.RLock()
	var out []*transaction.Transaction
	for _, tx := range r.s.transactions {
		if matches(f, tx) {
			cp := *tx
			out = append(out, &cp)
		}
	}
	r.s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *transaction.Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return bytes.Compare(b.ID[:], a.ID[:])
	})

	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *TransactionRepository) SumByCategory(ctx context.Context, userID int64, typ transaction.Type, from, to time.Time) ([]transaction.CategoryTotal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	index := make(map[uuid.UUID]int)
	totals := []transaction.CategoryTotal{}
	for _, tx := range r.s.transactions {
		if tx.UserID != userID || tx.Type != typ || tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		i, ok := index[tx.CategoryID]
		if !ok {
			i = len(totals)
			index[tx.CategoryID] = i
			totals = append(totals, transaction.CategoryTotal{CategoryID: tx.CategoryID, Total: decimal.Zero})
		}
		totals[i].Total = totals[i].Total.Add(tx.Amount)
		totals[i].Count++
	}
	return totals, nil
}

func (r *TransactionRepository) SumByAccount(ctx context.Context, userID int64) (map[uuid.UUID]decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sums := make(map[uuid.UUID]decimal.Decimal)
	for _, tx := range r.s.transactions {
		if tx.UserID == userID {
			sums[tx.AccountID] = sums[tx.AccountID].Add(tx.Amount)
		}
	}
	return sums, nil
}
