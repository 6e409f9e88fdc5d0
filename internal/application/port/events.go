package port

import (
	"context"

	"github.com/garyjia/crop-guard/internal/domain/event"
)

// EventPublisher fans domain events out to subscribers. Publish must not
// block on slow subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event)
}
