package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nandanugg/fleet-gps/module/core/domain"
)

type fakeSession struct {
	mu       sync.Mutex
	exchange string
	key      string
	msg      amqp.Publishing
	sent     int
	err      error
	closed   bool

	notify  chan *amqp.Error
	watched chan struct{}
	once    sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{watched: make(chan struct{})}
}

func (f *fakeSession) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchange = exchange
	f.key = key
	f.msg = msg
	f.sent++
	return f.err
}

func (f *fakeSession) NotifyClose(c chan *amqp.Error) chan *amqp.Error {
	f.mu.Lock()
	f.notify = c
	f.mu.Unlock()
	f.once.Do(func() { close(f.watched) })
	return c
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// drop simulates the broker closing the channel.
func (f *fakeSession) drop() {
	<-f.watched
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notify <- amqp.ErrClosed
}

func (f *fakeSession) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent
}

// dialSequence hands out sessions in order; nil entries fail.
func dialSequence(sessions ...*fakeSession) (func() (session, error), *int) {
	var mu sync.Mutex
	calls := 0
	return func() (session, error) {
		mu.Lock()
		defer mu.Unlock()
		i := calls
		calls++
		if i >= len(sessions) || sessions[i] == nil {
			return nil, errors.New("connection refused")
		}
		return sessions[i], nil
	}, &calls
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

var positionEvent = &domain.Event{Type: domain.EventVehiclePosition, TenantID: "acme", VehicleID: "V1"}

func TestPublish_RoutesByTenantVehicleAndType(t *testing.T) {
	s := newFakeSession()
	p := &EventPublisher{sess: s}

	e := &domain.Event{
		Type:       domain.EventGeofenceEnter,
		TenantID:   "acme",
		VehicleID:  "V1",
		OccurredAt: time.Unix(1715000000, 0).UTC(),
		Payload:    map[string]string{"geofenceId": "gf-1"},
	}
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.exchange != ExchangeName {
		t.Errorf("expected exchange %s, got %s", ExchangeName, s.exchange)
	}
	if s.key != "acme.V1.geofence:enter" {
		t.Errorf("unexpected routing key %s", s.key)
	}
	if s.msg.DeliveryMode != amqp.Persistent {
		t.Errorf("expected persistent delivery")
	}

	var decoded domain.Event
	if err := json.Unmarshal(s.msg.Body, &decoded); err != nil {
		t.Fatalf("body is not json: %v", err)
	}
	if decoded.Type != domain.EventGeofenceEnter || decoded.VehicleID != "V1" {
		t.Errorf("unexpected body %+v", decoded)
	}
}

func TestPublish_PropagatesChannelError(t *testing.T) {
	s := newFakeSession()
	s.err = errors.New("channel closed")
	p := &EventPublisher{sess: s}

	if err := p.Publish(context.Background(), positionEvent); err == nil {
		t.Fatal("expected error")
	}
}

func TestPublish_NotConnected(t *testing.T) {
	p := &EventPublisher{}
	if err := p.Publish(context.Background(), positionEvent); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if !p.IsClosed() {
		t.Error("expected publisher reported closed")
	}
}

func TestEventPublisher_ReconnectsAfterChannelClose(t *testing.T) {
	first, second := newFakeSession(), newFakeSession()
	dial, calls := dialSequence(first, nil, second)

	p, err := newEventPublisher(dial, time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close()

	if err := p.Publish(context.Background(), positionEvent); err != nil {
		t.Fatalf("publish before drop: %v", err)
	}

	first.drop()
	waitFor(t, func() bool {
		p.mu.RLock()
		defer p.mu.RUnlock()
		return p.sess == second
	})

	if err := p.Publish(context.Background(), positionEvent); err != nil {
		t.Fatalf("publish after reconnect: %v", err)
	}
	if first.sentCount() != 1 || second.sentCount() != 1 {
		t.Errorf("expected one message per session, got %d and %d", first.sentCount(), second.sentCount())
	}
	if *calls != 3 {
		t.Errorf("expected a failed redial before success, got %d dials", *calls)
	}
	if p.IsClosed() {
		t.Error("expected publisher connected")
	}
}

func TestEventPublisher_CloseStopsReconnecting(t *testing.T) {
	first := newFakeSession()
	dial, calls := dialSequence(first)

	p, err := newEventPublisher(dial, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	<-first.watched
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !first.closed {
		t.Error("expected session closed")
	}

	time.Sleep(10 * time.Millisecond)
	if *calls != 1 {
		t.Errorf("expected no redial after close, got %d dials", *calls)
	}
	if err := p.Publish(context.Background(), positionEvent); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected after close, got %v", err)
	}
}

func TestNewEventPublisher_DialError(t *testing.T) {
	dial, _ := dialSequence()
	if _, err := newEventPublisher(dial, time.Millisecond); err == nil {
		t.Fatal("expected error")
	}
}

type fakeTopology struct {
	exchanges []string
	queues    []string
	bindings  []string
	bindErr   error
}

func (f *fakeTopology) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	f.exchanges = append(f.exchanges, name+":"+kind)
	return nil
}

func (f *fakeTopology) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if !durable {
		return amqp.Queue{}, errors.New("audit queue must be durable")
	}
	f.queues = append(f.queues, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeTopology) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	if f.bindErr != nil {
		return f.bindErr
	}
	f.bindings = append(f.bindings, exchange+">"+name+":"+key)
	return nil
}

func TestDeclareTopology(t *testing.T) {
	top := &fakeTopology{}
	if err := declareTopology(top); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top.exchanges) != 1 || top.exchanges[0] != "fleet.events:topic" {
		t.Errorf("unexpected exchanges %v", top.exchanges)
	}
	if len(top.queues) != 1 || top.queues[0] != AuditQueueName {
		t.Errorf("unexpected queues %v", top.queues)
	}
	want := []string{
		"fleet.events>fleet.geofence_audit:*.*.geofence:enter",
		"fleet.events>fleet.geofence_audit:*.*.geofence:exit",
	}
	if len(top.bindings) != len(want) {
		t.Fatalf("expected %d bindings, got %v", len(want), top.bindings)
	}
	for i := range want {
		if top.bindings[i] != want[i] {
			t.Errorf("binding %d: expected %s, got %s", i, want[i], top.bindings[i])
		}
	}

	if err := declareTopology(&fakeTopology{bindErr: errors.New("access refused")}); err == nil {
		t.Error("expected bind error")
	}
}

func TestRoutingKey_EscapesDots(t *testing.T) {
	key := RoutingKey(&domain.Event{Type: domain.EventVehicleStopped, TenantID: "acme.cl", VehicleID: ""})
	if key != "acme_cl._.vehicle:stopped" {
		t.Errorf("unexpected key %s", key)
	}
}
