package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a committed ledger mutation.
type EventType string

const (
	EventCreated EventType = "transaction.created"
	EventUpdated EventType = "transaction.updated"
	EventDeleted EventType = "transaction.deleted"
)

// Event describes a committed ledger mutation. It is published after the
// write commits, so consumers never observe an event for a rolled-back write.
type Event struct {
	Type           EventType        `json:"type"`
	UserID         int64            `json:"userId"`
	TransactionID  uuid.UUID        `json:"transactionId"`
	AccountIDs     []uuid.UUID      `json:"accountIds"`
	CategoryID     uuid.UUID        `json:"categoryId"`
	Amount         decimal.Decimal  `json:"amount"`
	PreviousAmount *decimal.Decimal `json:"previousAmount,omitempty"`
	Date           time.Time        `json:"date"`
	OccurredAt     time.Time        `json:"occurredAt"`
}

// Publisher delivers ledger events to downstream consumers (cache
// invalidation, report queues).
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

func newEvent(typ EventType, tx *Transaction, deltas []BalanceDelta, occurredAt time.Time) Event {
	accounts := make([]uuid.UUID, 0, len(deltas)+1)
	for _, d := range deltas {
		accounts = append(accounts, d.AccountID)
	}
	if len(accounts) == 0 {
		accounts = append(accounts, tx.AccountID)
	}

	return Event{
		Type:          typ,
		UserID:        tx.UserID,
		TransactionID: tx.ID,
		AccountIDs:    accounts,
		CategoryID:    tx.CategoryID,
		Amount:        tx.Amount,
		Date:          tx.Date,
		OccurredAt:    occurredAt,
	}
}
