package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nandanugg/fleet-gps/module/core/domain"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/publisher"
)

var _ publisher.EventPublisher = (*EventPublisher)(nil)

const (
	ExchangeName    = "fleet.events"
	AuditQueueName  = "fleet.geofence_audit"
	contentTypeJSON = "application/json"
	reconnectDelay  = 5 * time.Second
)

// AuditBindings route geofence transitions of every tenant into the audit queue.
var AuditBindings = []string{
	"*.*." + string(domain.EventGeofenceEnter),
	"*.*." + string(domain.EventGeofenceExit),
}

// ErrNotConnected is returned by Publish while the broker is being redialed.
var ErrNotConnected = errors.New("rabbitmq: not connected")

// session is one broker connection and its publishing channel.
type session interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

type topology interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

type amqpSession struct {
	*amqp.Channel
	conn *amqp.Connection
}

func (s *amqpSession) Close() error {
	_ = s.Channel.Close()
	return s.conn.Close()
}

// EventPublisher publishes events on the topic exchange. When the channel
// or connection closes it redials and declares the topology again.
type EventPublisher struct {
	dial  func() (session, error)
	retry time.Duration

	mu   sync.RWMutex
	sess session

	done      chan struct{}
	closeOnce sync.Once
}

func NewEventPublisher(dial func() (*amqp.Connection, error)) (*EventPublisher, error) {
	return newEventPublisher(func() (session, error) { return openSession(dial) }, reconnectDelay)
}

func newEventPublisher(dial func() (session, error), retry time.Duration) (*EventPublisher, error) {
	s, err := dial()
	if err != nil {
		return nil, err
	}
	p := &EventPublisher{dial: dial, retry: retry, sess: s, done: make(chan struct{})}
	go p.handleReconnect(s)
	return p, nil
}

func openSession(dial func() (*amqp.Connection, error)) (session, error) {
	conn, err := dial()
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &amqpSession{Channel: ch, conn: conn}, nil
}

// declareTopology declares the topic exchange and the durable audit queue.
func declareTopology(ch topology) error {
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(AuditQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	for _, key := range AuditBindings {
		if err := ch.QueueBind(AuditQueueName, key, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", key, err)
		}
	}
	return nil
}

func (p *EventPublisher) handleReconnect(s session) {
	for {
		closed := s.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-p.done:
			return
		case err := <-closed:
			slog.Warn("rabbitmq channel closed, reconnecting", "err", err)
		}

		p.swap(nil)
		if s = p.redial(); s == nil {
			return
		}
		if !p.swap(s) {
			_ = s.Close()
			return
		}
		slog.Info("rabbitmq reconnected")
	}
}

func (p *EventPublisher) redial() session {
	for {
		s, err := p.dial()
		if err == nil {
			return s
		}
		slog.Warn("rabbitmq reconnect failed", "err", err, "retry_in", p.retry)
		select {
		case <-p.done:
			return nil
		case <-time.After(p.retry):
		}
	}
}

// swap installs s as the current session. It reports false once the
// publisher is closed.
func (p *EventPublisher) swap(s session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.done:
		return false
	default:
	}
	p.sess = s
	return true
}

func (p *EventPublisher) Publish(ctx context.Context, e *domain.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.RLock()
	s := p.sess
	p.mu.RUnlock()
	if s == nil {
		return ErrNotConnected
	}

	return s.PublishWithContext(ctx, ExchangeName, RoutingKey(e), false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.OccurredAt,
		Type:         string(e.Type),
		Body:         body,
	})
}

// IsClosed reports whether no broker session is currently usable.
func (p *EventPublisher) IsClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sess == nil
}

// Close stops reconnecting and closes the current session.
func (p *EventPublisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		close(p.done)
		if p.sess != nil {
			err = p.sess.Close()
			p.sess = nil
		}
	})
	return err
}

// RoutingKey builds "<tenant>.<vehicle>.<event>". Dots inside ids are
// replaced so each id stays a single topic word.
func RoutingKey(e *domain.Event) string {
	return word(e.TenantID) + "." + word(e.VehicleID) + "." + string(e.Type)
}

func word(s string) string {
	if s == "" {
		return "_"
	}
	return strings.ReplaceAll(s, ".", "_")
}
