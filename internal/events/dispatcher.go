package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// New builds an event with a fresh id and timestamp around payload.
func New(eventType EventType, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

// Registry holds subscriptions and fans events out to them. It backs both the
// in-memory dispatcher and the broker consumer.
type Registry struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{listeners: make(map[EventType][]EventHandler)}
}

// Subscribe registers a handler for the given event type.
func (r *Registry) Subscribe(eventType EventType, handler EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[eventType] = append(r.listeners[eventType], handler)
}

// Dispatch invokes every handler for the event and joins their errors.
// Events without subscribers are ignored.
func (r *Registry) Dispatch(ctx context.Context, event Event) error {
	r.mu.RLock()
	handlers := append([]EventHandler{}, r.listeners[event.Type]...)
	r.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Types lists the event types with at least one handler.
func (r *Registry) Types() []EventType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]EventType, 0, len(r.listeners))
	for t := range r.listeners {
		types = append(types, t)
	}
	return types
}

// inMemoryDispatcher is a simple synchronous dispatcher.
type inMemoryDispatcher struct {
	*Registry
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{Registry: NewRegistry()}
}

// Publish synchronously invokes handlers for the given event.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	return d.Dispatch(ctx, event)
}
