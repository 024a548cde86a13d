// Package amqp publishes committed ledger events to a RabbitMQ topic exchange
// for report consumers.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"ledger/internal/domain/transaction"
	"ledger/internal/shared/apperror"
	"ledger/internal/shared/logging"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second

	// BindingKey routes every ledger event type to the report queue.
	BindingKey = "transaction.*"
)

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

type connection interface {
	Channel() (channel, error)
	IsClosed() bool
	Close() error
}

type amqpConnection struct {
	*amqp091.Connection
}

func (c amqpConnection) Channel() (channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialAMQP(url string) (connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}

// Publisher implements transaction.Publisher. It connects lazily, reconnects
// after connection-level failures and stops trying for openTimeout once
// maxFailures consecutive publishes have failed.
type Publisher struct {
	url      string
	exchange string
	queue    string
	dial     func(url string) (connection, error)
	logger   *slog.Logger

	mu   sync.Mutex
	conn connection
	ch   channel

	state        int32
	failureCount int64
	failureMu    sync.Mutex
	lastFailure  time.Time
}

// NewPublisher creates a publisher for exchange, binding queue to every
// ledger event. No connection is made until the first publish or Connect.
func NewPublisher(url, exchange, queue string) *Publisher {
	return &Publisher{
		url:      url,
		exchange: exchange,
		queue:    queue,
		dial:     dialAMQP,
		logger:   logging.Component(logging.ComponentEvents),
	}
}

// Connect dials the broker, retrying with exponential backoff up to attempts
// times. Used at startup so a slow broker does not fail the first publishes.
func (p *Publisher) Connect(ctx context.Context, attempts int) error {
	var err error
	for attempt := range attempts {
		p.mu.Lock()
		err = p.ensureConnected()
		p.mu.Unlock()
		if err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}

		wait := exponentialBackoff(attempt)
		p.logger.WarnContext(ctx, "AMQP connection failed, retrying",
			"attempt", attempt+1,
			"backoff", wait,
			logging.FieldError, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("failed to connect to AMQP broker after %d attempts: %w", attempts, err)
}

// ensureConnected requires p.mu to be held.
func (p *Publisher) ensureConnected() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil {
		return nil
	}
	p.resetLocked()

	conn, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := p.setup(ch); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	p.conn, p.ch = conn, ch
	p.logger.Info("AMQP publisher connected", "exchange", p.exchange, "queue", p.queue)
	return nil
}

func (p *Publisher) setup(ch channel) error {
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(p.queue, BindingKey, p.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// resetLocked requires p.mu to be held.
func (p *Publisher) resetLocked() {
	if p.ch != nil {
		p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

// Publish sends the event as a persistent JSON message routed by its type.
func (p *Publisher) Publish(ctx context.Context, event transaction.Event) error {
	if p.isCircuitOpen() {
		return apperror.Unavailable("event broker circuit breaker is open", nil)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.publish(ctx, string(event.Type), body); err != nil {
		p.recordFailure()
		return apperror.Unavailable("failed to publish ledger event", err)
	}
	p.recordSuccess()

	p.logger.DebugContext(ctx, "published ledger event",
		logging.FieldEventType, event.Type,
		logging.FieldUserID, event.UserID,
		logging.FieldTxID, event.TransactionID)
	return nil
}

func (p *Publisher) publish(ctx context.Context, key string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureConnected(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		if isConnectionError(err) {
			p.resetLocked()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close releases the connection. Publishing afterwards reconnects.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}

func (p *Publisher) isCircuitOpen() bool {
	switch atomic.LoadInt32(&p.state) {
	case StateClosed, StateHalfOpen:
		return false
	}

	p.failureMu.Lock()
	elapsed := time.Since(p.lastFailure)
	p.failureMu.Unlock()

	if elapsed > openTimeout {
		// Let one trial publish through to test the broker.
		atomic.CompareAndSwapInt32(&p.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (p *Publisher) recordFailure() {
	p.failureMu.Lock()
	p.lastFailure = time.Now()
	p.failureMu.Unlock()

	failures := atomic.AddInt64(&p.failureCount, 1)
	if failures >= maxFailures || atomic.LoadInt32(&p.state) == StateHalfOpen {
		if atomic.SwapInt32(&p.state, StateOpen) != StateOpen {
			p.logger.Warn("AMQP circuit breaker opened", "failures", failures)
		}
	}
}

func (p *Publisher) recordSuccess() {
	atomic.StoreInt64(&p.failureCount, 0)
	if atomic.SwapInt32(&p.state, StateClosed) != StateClosed {
		p.logger.Info("AMQP circuit breaker closed")
	}
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	return min(time.Second<<attempt, maxBackoff)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
