package transaction

import (
	"bytes"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceDelta is a signed amount to add to one account's balance.
type BalanceDelta struct {
	AccountID uuid.UUID
	Amount    decimal.Decimal
}

// NormalizeDeltas merges deltas per account, drops zero results and sorts the
// rest by account id, so concurrent writers touching the same accounts always
// lock them in the same order.
func NormalizeDeltas(deltas ...BalanceDelta) []BalanceDelta {
	merged := make(map[uuid.UUID]decimal.Decimal, len(deltas))
	for _, d := range deltas {
		merged[d.AccountID] = merged[d.AccountID].Add(d.Amount)
	}

	out := make([]BalanceDelta, 0, len(merged))
	for id, amount := range merged {
		if amount.IsZero() {
			continue
		}
		out = append(out, BalanceDelta{AccountID: id, Amount: amount})
	}
	slices.SortFunc(out, func(a, b BalanceDelta) int {
		return bytes.Compare(a.AccountID[:], b.AccountID[:])
	})
	return out
}

func createDeltas(tx *Transaction) []BalanceDelta {
	return NormalizeDeltas(BalanceDelta{AccountID: tx.AccountID, Amount: tx.Amount})
}

// updateDeltas reverses old and applies updated. On the same account this
// collapses to a single net delta.
func updateDeltas(old, updated *Transaction) []BalanceDelta {
	return NormalizeDeltas(
		BalanceDelta{AccountID: old.AccountID, Amount: old.Amount.Neg()},
		BalanceDelta{AccountID: updated.AccountID, Amount: updated.Amount},
	)
}

func deleteDeltas(tx *Transaction) []BalanceDelta {
	return NormalizeDeltas(BalanceDelta{AccountID: tx.AccountID, Amount: tx.Amount.Neg()})
}
