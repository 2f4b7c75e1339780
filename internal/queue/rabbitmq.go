package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	reconnectBackoff = time.Second
	maxBackoff       = 30 * time.Second
	connectTimeout   = 15 * time.Second
)

var errBrokerClosed = errors.New("rabbitmq client is closed")

// session is a connection with its confirm-mode publishing channel. The
// events topology is declared once when the session is opened.
type session struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func (s *session) alive() bool {
	return s != nil && s.conn != nil && !s.conn.IsClosed()
}

func (s *session) close() {
	if s == nil {
		return
	}
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil && !s.conn.IsClosed() {
		_ = s.conn.Close()
	}
}

// RabbitMQ publishes delivery events over a single reconnecting session.
// Publishes are serialized on the session channel and wait for the broker
// confirm.
type RabbitMQ struct {
	url  string
	dial func(url string) (*amqp.Connection, error)

	mu      sync.Mutex
	current *session
	closed  bool
}

func NewRabbitMQ(ctx context.Context, url string) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}

	r := &RabbitMQ{url: url, dial: amqp.Dial}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.sessionLocked(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// publish sends msg and waits for the broker ack. A failure on a live
// session drops it so the next call reconnects; the failed publish is retried
// once on the new session.
func (r *RabbitMQ) publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		s, err := r.sessionLocked(ctx)
		if err != nil {
			return err
		}

		lastErr = publishConfirmed(ctx, s.ch, routingKey, msg)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}

		s.close()
		r.current = nil
	}
	return lastErr
}

func publishConfirmed(ctx context.Context, ch *amqp.Channel, routingKey string, msg amqp.Publishing) error {
	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, EventsExchangeName, routingKey, false, false, msg)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", routingKey, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to confirm %s publish: %w", routingKey, err)
	}
	if !acked {
		return fmt.Errorf("broker nacked %s publish", routingKey)
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	s := r.current
	r.current = nil
	if s == nil || !s.alive() {
		return nil
	}
	if s.ch != nil {
		_ = s.ch.Close()
	}
	return s.conn.Close()
}

// sessionLocked returns the live session, dialing with exponential backoff
// until ctx is done. Callers hold r.mu.
func (r *RabbitMQ) sessionLocked(ctx context.Context) (*session, error) {
	if r.closed {
		return nil, errBrokerClosed
	}
	if r.current.alive() {
		return r.current, nil
	}
	r.current.close()
	r.current = nil

	wait := reconnectBackoff
	for {
		s, err := r.open()
		if err == nil {
			r.current = s
			return s, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq connect canceled after %w: %w", err, ctx.Err())
		case <-time.After(wait):
		}
		wait = nextBackoff(wait)
	}
}

func (r *RabbitMQ) open() (*session, error) {
	conn, err := r.dial(r.url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &session{conn: conn, ch: ch}, nil
}

func nextBackoff(wait time.Duration) time.Duration {
	return min(wait*2, maxBackoff)
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(EventsExchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare events exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(AuditQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", AuditQueueName, err)
	}

	if err := ch.QueueBind(AuditQueueName, auditBindingKey, EventsExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %q: %w", AuditQueueName, err)
	}
	return nil
}
