// Package dispatcher routes scan events to subscribers such as chat alerts
// and stored-image cleanup.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/crop-guard/internal/application/port"
	"github.com/garyjia/crop-guard/internal/domain/entity"
	"github.com/garyjia/crop-guard/internal/domain/event"
)

// Dispatcher routes events to registered handlers
type Dispatcher interface {
	port.EventPublisher

	// Subscribe registers a handler for an event type
	Subscribe(eventType event.Type, handler Handler)

	// SubscribeNamed registers a handler with a name for debugging
	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// Dispatch sends event to all registered handlers synchronously
	// Returns first error encountered (handlers run in order)
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync sends event to handlers asynchronously
	// Does not wait for handlers to complete
	DispatchAsync(ctx context.Context, evt *event.Event)

	// ListHandlers returns registered handlers for an event type
	ListHandlers(eventType event.Type) []HandlerInfo

	// Close shuts down the dispatcher and waits for async handlers
	Close() error
}

// eventDispatcher is the concrete implementation of Dispatcher
type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerInfo
	logger   *zap.Logger

	// For async dispatch. wg.Add only runs under lifecycle's read lock.
	lifecycle sync.RWMutex
	closed    bool
	wg        sync.WaitGroup
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger *zap.Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers: make(map[event.Type][]HandlerInfo),
		logger:   zap.NewNop(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Subscribe registers a handler for an event type with an auto-generated name
func (d *eventDispatcher) Subscribe(eventType event.Type, handler Handler) {
	d.mu.RLock()
	name := fmt.Sprintf("handler-%d", len(d.handlers[eventType]))
	d.mu.RUnlock()
	d.SubscribeNamed(eventType, name, handler)
}

// SubscribeNamed registers a handler with a specific name for debugging
func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], HandlerInfo{
		Name:      name,
		EventType: eventType,
		Handler:   handler,
	})

	d.logger.Debug("Handler registered",
		zap.Stringer("event_type", eventType),
		zap.String("handler_name", name))
}

// Dispatch sends event to all registered handlers synchronously
func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.isClosed() {
		return fmt.Errorf("dispatcher is closed")
	}

	for _, info := range d.snapshot(evt.Type) {
		if err := d.safeExecute(ctx, evt, info); err != nil {
			d.logger.Error("Handler error",
				zap.Stringer("event_type", evt.Type),
				zap.String("event_id", evt.ID),
				zap.String("handler_name", info.Name),
				zap.Error(err))
			return fmt.Errorf("handler %s failed: %w", info.Name, err)
		}
	}

	return nil
}

// DispatchAsync sends event to handlers asynchronously
func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.lifecycle.RLock()
	defer d.lifecycle.RUnlock()

	if d.closed {
		d.logger.Warn("Dropping event, dispatcher is closed",
			zap.Stringer("event_type", evt.Type),
			zap.String("event_id", evt.ID))
		return
	}

	handlers := d.snapshot(evt.Type)
	d.logger.Debug("Dispatching event asynchronously",
		zap.Stringer("event_type", evt.Type),
		zap.String("event_id", evt.ID),
		zap.String("scan_id", evt.ScanID()),
		zap.Int("handler_count", len(handlers)))

	d.wg.Add(len(handlers))
	for _, info := range handlers {
		go func(h HandlerInfo) {
			defer d.wg.Done()

			if err := d.safeExecute(ctx, evt, h); err != nil {
				d.logger.Error("Async handler error",
					zap.Stringer("event_type", evt.Type),
					zap.String("event_id", evt.ID),
					zap.String("handler_name", h.Name),
					zap.Error(err))
			}
		}(info)
	}
}

// Publish dispatches asynchronously, detached from the caller's cancellation
// so a finished request does not abort its subscribers.
func (d *eventDispatcher) Publish(ctx context.Context, evt *event.Event) {
	d.DispatchAsync(context.WithoutCancel(ctx), evt)
}

// ListHandlers returns registered handlers for an event type
func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	handlers := d.snapshot(eventType)
	for i := range handlers {
		handlers[i].Handler = nil
	}
	return handlers
}

// Close shuts down the dispatcher and waits for async handlers to complete
func (d *eventDispatcher) Close() error {
	d.lifecycle.Lock()
	if d.closed {
		d.lifecycle.Unlock()
		return fmt.Errorf("dispatcher already closed")
	}
	d.closed = true
	d.lifecycle.Unlock()

	d.logger.Debug("Closing dispatcher, waiting for async handlers")
	d.wg.Wait()
	return nil
}

func (d *eventDispatcher) isClosed() bool {
	d.lifecycle.RLock()
	defer d.lifecycle.RUnlock()
	return d.closed
}

func (d *eventDispatcher) snapshot(eventType event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]HandlerInfo(nil), d.handlers[eventType]...)
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, info HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			d.logger.Error("Handler panic recovered",
				zap.Stringer("event_type", evt.Type),
				zap.String("event_id", evt.ID),
				zap.String("handler_name", info.Name),
				zap.Any("panic", r))
		}
	}()

	return info.Handler(ctx, evt)
}

// ScanNotifier implements port.Notifier by publishing a scan.recorded event
type ScanNotifier struct {
	Publisher port.EventPublisher
}

// NotifyScan publishes the event and returns immediately
func (n ScanNotifier) NotifyScan(ctx context.Context, scan entity.ScanResult) error {
	n.Publisher.Publish(ctx, event.NewEvent(event.TypeScanRecorded, scan))
	return nil
}

// NotifyHandler adapts a notifier into a scan.recorded handler
func NotifyHandler(n port.Notifier) Handler {
	return func(ctx context.Context, evt *event.Event) error {
		return n.NotifyScan(ctx, evt.Scan)
	}
}

// ImageCleanupHandler deletes the stored image of a removed scan. URIs the
// store does not own are skipped.
func ImageCleanupHandler(images port.ImageStore, logger *zap.Logger) Handler {
	return func(ctx context.Context, evt *event.Event) error {
		uri := evt.Scan.ImageURI
		if uri == "" {
			return nil
		}
		if err := images.Delete(ctx, uri); err != nil {
			logger.Debug("Image not removed with scan",
				zap.String("scan_id", evt.ScanID()),
				zap.String("image_uri", uri),
				zap.Error(err))
		}
		return nil
	}
}
