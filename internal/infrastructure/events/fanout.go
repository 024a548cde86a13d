// Package events distributes committed ledger events to every subscriber.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ledger/internal/domain/transaction"
)

type subscriber struct {
	name string
	pub  transaction.Publisher
}

// Fanout is a transaction.Publisher that delivers each event to every
// registered subscriber in registration order. A failing subscriber does not
// keep the event from the others.
type Fanout struct {
	mu          sync.RWMutex
	subscribers []subscriber
}

func NewFanout() *Fanout {
	return &Fanout{}
}

// Subscribe registers pub under name. The name only appears in errors.
func (f *Fanout) Subscribe(name string, pub transaction.Publisher) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers = append(f.subscribers, subscriber{name: name, pub: pub})
}

// Len reports the number of subscribers.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

// Publish implements transaction.Publisher. The returned error joins every
// subscriber failure.
func (f *Fanout) Publish(ctx context.Context, event transaction.Event) error {
	f.mu.RLock()
	subs := f.subscribers
	f.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := s.pub.Publish(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
