package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/smbgAlokk/bharatforce/internal/domain/event"
)

// Dispatcher routes record events to side effects and observers.
//
// Effects are keyed by route (workflow and entered status) and run synchronously
// in registration order. Observers are keyed by event type and run asynchronously.
type Dispatcher interface {
	// SubscribeEffect registers a named side effect for a route
	SubscribeEffect(route event.Route, name string, handler Handler)

	// Subscribe registers an observer for an event type
	Subscribe(eventType event.Type, handler Handler)

	// SubscribeNamed registers an observer with a name for debugging
	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// Unsubscribe removes an observer by name
	Unsubscribe(eventType event.Type, name string)

	// Dispatch runs the effects of the event route synchronously.
	// Returns first error encountered (effects run in order)
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync sends the event to observers asynchronously
	// Does not wait for observers to complete
	DispatchAsync(ctx context.Context, evt *event.Event)

	// ListEffects returns registered effects for a route
	ListEffects(route event.Route) []HandlerInfo

	// ListHandlers returns registered observers for an event type
	ListHandlers(eventType event.Type) []HandlerInfo

	// Close shuts down the dispatcher and waits for async observers
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// eventDispatcher is the concrete implementation of Dispatcher
type eventDispatcher struct {
	mu        sync.RWMutex
	effects   map[event.Route][]HandlerInfo
	observers map[event.Type][]HandlerInfo
	logger    Logger

	// For async dispatch
	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		effects:   make(map[event.Route][]HandlerInfo),
		observers: make(map[event.Type][]HandlerInfo),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// SubscribeEffect registers a named side effect for a route
func (d *eventDispatcher) SubscribeEffect(route event.Route, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.effects[route] = append(d.effects[route], HandlerInfo{
		Name:      name,
		EventType: event.TypeRecordTransitioned,
		Route:     route,
		Handler:   handler,
	})

	if d.logger != nil {
		d.logger.Info("Effect registered",
			"route", route.String(),
			"effect", name,
		)
	}
}

// Subscribe registers an observer with an auto-generated name
func (d *eventDispatcher) Subscribe(eventType event.Type, handler Handler) {
	d.mu.RLock()
	name := fmt.Sprintf("handler-%d", len(d.observers[eventType]))
	d.mu.RUnlock()
	d.SubscribeNamed(eventType, name, handler)
}

// SubscribeNamed registers an observer with a specific name for debugging
func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.observers[eventType] = append(d.observers[eventType], HandlerInfo{
		Name:      name,
		EventType: eventType,
		Handler:   handler,
	})

	if d.logger != nil {
		d.logger.Info("Handler registered",
			"event_type", eventType,
			"handler_name", name,
		)
	}
}

// Unsubscribe removes an observer by name
func (d *eventDispatcher) Unsubscribe(eventType event.Type, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	handlers := d.observers[eventType]
	filtered := make([]HandlerInfo, 0, len(handlers))
	for _, h := range handlers {
		if h.Name != name {
			filtered = append(filtered, h)
		}
	}
	d.observers[eventType] = filtered

	if d.logger != nil {
		d.logger.Info("Handler unregistered",
			"event_type", eventType,
			"handler_name", name,
		)
	}
}

// Dispatch runs the effects of the event route synchronously
func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return fmt.Errorf("dispatcher is closed")
	}

	route := evt.Route()
	d.mu.RLock()
	effects := append([]HandlerInfo(nil), d.effects[route]...)
	d.mu.RUnlock()

	if len(effects) == 0 {
		return nil
	}

	if d.logger != nil {
		d.logger.Info("Dispatching effects",
			"route", route.String(),
			"event_id", evt.ID,
			"record_id", evt.RecordID,
			"effect_count", len(effects),
		)
	}

	for _, info := range effects {
		if err := d.safeExecute(ctx, evt, info); err != nil {
			if d.logger != nil {
				d.logger.Error("Effect failed",
					"route", route.String(),
					"event_id", evt.ID,
					"record_id", evt.RecordID,
					"effect", info.Name,
					"error", err,
				)
			}
			return fmt.Errorf("effect %s failed: %w", info.Name, err)
		}
	}

	return nil
}

// DispatchAsync sends the event to observers asynchronously
func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	if d.closed.Load() {
		if d.logger != nil {
			d.logger.Error("Cannot dispatch async event, dispatcher is closed",
				"event_type", evt.Type,
				"event_id", evt.ID,
			)
		}
		return
	}

	d.mu.RLock()
	handlers := append([]HandlerInfo(nil), d.observers[evt.Type]...)
	d.mu.RUnlock()

	// Observers outlive the request that produced the event
	ctx = context.WithoutCancel(ctx)

	for _, info := range handlers {
		d.wg.Add(1)
		go func(h HandlerInfo) {
			defer d.wg.Done()

			if err := d.safeExecute(ctx, evt, h); err != nil {
				if d.logger != nil {
					d.logger.Error("Async handler error",
						"event_type", evt.Type,
						"event_id", evt.ID,
						"handler_name", h.Name,
						"error", err,
					)
				}
			}
		}(info)
	}
}

// ListEffects returns registered effects for a route
func (d *eventDispatcher) ListEffects(route event.Route) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return describe(d.effects[route])
}

// ListHandlers returns registered observers for an event type
func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return describe(d.observers[eventType])
}

// Close shuts down the dispatcher and waits for async observers to complete
func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}

	if d.logger != nil {
		d.logger.Info("Closing dispatcher, waiting for async handlers")
	}

	d.wg.Wait()

	if d.logger != nil {
		d.logger.Info("Dispatcher closed")
	}

	return nil
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, info HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			if d.logger != nil {
				d.logger.Error("Handler panic recovered",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", info.Name,
					"panic", r,
				)
			}
		}
	}()

	return info.Handler(ctx, evt)
}

// describe copies handler metadata without the handler function
func describe(handlers []HandlerInfo) []HandlerInfo {
	result := make([]HandlerInfo, len(handlers))
	for i, h := range handlers {
		result[i] = HandlerInfo{
			Name:        h.Name,
			EventType:   h.EventType,
			Route:       h.Route,
			Description: h.Description,
		}
	}
	return result
}
