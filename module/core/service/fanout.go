package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/nandanugg/fleet-gps/module/core/domain"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/publisher"
)

// EventSink receives every realtime event produced by the core.
type EventSink interface {
	Publish(ctx context.Context, e *domain.Event) error
}

type Sink struct {
	Name      string
	Publisher publisher.EventPublisher
}

// Fanout delivers each event to all sinks in order. Delivery failures are
// logged and never surface to the producer.
type Fanout struct {
	sinks   []Sink
	timeout time.Duration
}

var _ EventSink = (*Fanout)(nil)

func NewFanout(timeout time.Duration, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, timeout: timeout}
}

func (f *Fanout) Publish(ctx context.Context, e *domain.Event) error {
	base := context.WithoutCancel(ctx)
	for _, s := range f.sinks {
		sctx, cancel := base, context.CancelFunc(func() {})
		if f.timeout > 0 {
			sctx, cancel = context.WithTimeout(base, f.timeout)
		}
		err := s.Publisher.Publish(sctx, e)
		cancel()
		if err != nil {
			derr := &domain.FanoutDeliveryError{Sink: s.Name, Event: e.Type, Err: err}
			slog.Warn("event delivery failed", "tenant", e.TenantID, "vehicle", e.VehicleID, "err", derr)
		}
	}
	return nil
}

func newEvent(typ domain.EventType, tenantID, vehicleID string, at time.Time, payload any) *domain.Event {
	return &domain.Event{
		Type:       typ,
		TenantID:   tenantID,
		VehicleID:  vehicleID,
		OccurredAt: at,
		Payload:    payload,
	}
}

func geofenceEventType(t domain.GeofenceEventType) domain.EventType {
	if t == domain.GeofenceEnter {
		return domain.EventGeofenceEnter
	}
	return domain.EventGeofenceExit
}
