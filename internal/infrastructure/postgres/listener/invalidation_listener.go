package listener

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"ledger/internal/shared/logging"
)

const (
	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
)

// ChangeNotification is the payload sent by the notify_ledger_change trigger
type ChangeNotification struct {
	UserID int64  `json:"user_id"`
	Table  string `json:"table"`
}

// Invalidator drops a user's cached views.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID int64) error
}

// InvalidationListener relays committed ledger writes made by any replica
// to the local dashboard cache through PostgreSQL LISTEN/NOTIFY.
type InvalidationListener struct {
	connStr     string
	channel     string
	invalidator Invalidator
	logger      *slog.Logger
	shutdownCh  chan struct{}
	done        chan struct{}
}

func NewInvalidationListener(connStr, channel string, invalidator Invalidator) *InvalidationListener {
	return &InvalidationListener{
		connStr:     connStr,
		channel:     channel,
		invalidator: invalidator,
		logger:      logging.Component(logging.ComponentEvents),
		shutdownCh:  make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start begins listening for notifications in a background goroutine
func (l *InvalidationListener) Start(ctx context.Context) {
	go l.listen(ctx)
	l.logger.Info("cache invalidation listener started", "channel", l.channel)
}

// Stop gracefully shuts down the listener
func (l *InvalidationListener) Stop() {
	close(l.shutdownCh)
	<-l.done
	l.logger.Info("cache invalidation listener stopped")
}

func (l *InvalidationListener) listen(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
			l.connectAndListen(ctx)
		}

		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			l.logger.Info("reconnecting to PostgreSQL for notifications")
		}
	}
}

func (l *InvalidationListener) connectAndListen(ctx context.Context) {
	listener := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			l.logger.Info("connected to notification channel", "channel", l.channel)
		case pq.ListenerEventDisconnected:
			l.logger.Warn("disconnected from notification channel", logging.FieldError, err)
		case pq.ListenerEventReconnected:
			l.logger.Info("reconnected to notification channel", "channel", l.channel)
		case pq.ListenerEventConnectionAttemptFailed:
			l.logger.Warn("notification connection attempt failed", logging.FieldError, err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(l.channel); err != nil {
		l.logger.Error("failed to listen on channel", "channel", l.channel, logging.FieldError, err)
		return
	}

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case n := <-listener.Notify:
			if n == nil {
				// Connection lost. Events sent meanwhile are gone; entries
				// they should have dropped expire with the cache TTL.
				return
			}
			l.handle(ctx, n)
		case <-time.After(pingInterval):
			go func() {
				if err := listener.Ping(); err != nil {
					l.logger.Warn("listener ping failed", logging.FieldError, err)
				}
			}()
		}
	}
}

func (l *InvalidationListener) handle(ctx context.Context, n *pq.Notification) {
	userID, err := parseNotification(n.Extra)
	if err != nil {
		l.logger.Warn("failed to parse notification payload", "payload", n.Extra, logging.FieldError, err)
		return
	}
	if err := l.invalidator.InvalidateUser(ctx, userID); err != nil {
		l.logger.WarnContext(ctx, "failed to invalidate cache",
			logging.FieldUserID, userID,
			logging.FieldError, err)
	}
}

func parseNotification(payload string) (int64, error) {
	var n ChangeNotification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return 0, err
	}
	return n.UserID, nil
}
