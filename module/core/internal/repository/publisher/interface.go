package publisher

import (
	"context"

	"github.com/nandanugg/fleet-gps/module/core/domain"
)

// EventPublisher delivers realtime events to one sink.
type EventPublisher interface {
	Publish(ctx context.Context, e *domain.Event) error
}
