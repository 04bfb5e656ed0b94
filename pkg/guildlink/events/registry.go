package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tsarna/guildlink/pkg/guildlink/bus"
)

var (
	// ErrDuplicateEvent is returned when an event name is registered twice.
	ErrDuplicateEvent = errors.New("event already registered")
	// ErrEmptyPayload is returned when an event frame carries no payload.
	ErrEmptyPayload = errors.New("event payload is empty")
)

// DecodeFunc turns a raw event payload into a typed event.
type DecodeFunc func(payload json.RawMessage) (Event, error)

// PublishFunc delivers a decoded event to its sink.
type PublishFunc func(ctx context.Context, event Event) error

// Entry is one registered event kind.
type Entry struct {
	name    string
	decode  DecodeFunc
	publish PublishFunc
}

// Name returns the event's wire name.
func (e Entry) Name() string { return e.name }

// Decode decodes payload into this entry's event type.
func (e Entry) Decode(payload json.RawMessage) (Event, error) {
	return e.decode(payload)
}

// Publish delivers event to this entry's sink.
func (e Entry) Publish(ctx context.Context, event Event) error {
	return e.publish(ctx, event)
}

// Registry maps wire event names to decoders and sinks. It is populated when
// a client is built and only read afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// RegisterFunc adds an entry with explicit decode and publish functions.
func (r *Registry) RegisterFunc(name string, decode DecodeFunc, publish PublishFunc) error {
	if name == "" {
		return fmt.Errorf("event name is required")
	}
	if decode == nil || publish == nil {
		return fmt.Errorf("event %q: decode and publish functions are required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEvent, name)
	}
	r.entries[name] = Entry{name: name, decode: decode, publish: publish}
	return nil
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	return entry, ok
}

// Names returns every registered event name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register binds name to a JSON decoder for T and publishes decoded values to
// stream and to any additional sinks of untyped events.
func Register[T Event](r *Registry, name string, stream *bus.Stream[T], also ...*bus.Stream[Event]) error {
	if stream == nil {
		return fmt.Errorf("event %q: stream is required", name)
	}

	return r.RegisterFunc(name, DecodeJSON[T], func(ctx context.Context, event Event) error {
		typed, ok := event.(T)
		if !ok {
			return fmt.Errorf("event %q: unexpected type %T", name, event)
		}
		stream.Publish(ctx, typed)
		for _, sink := range also {
			sink.Publish(ctx, event)
		}
		return nil
	})
}

// MustRegister is like Register but panics on error. Use it for
// registrations fixed at compile time, where an error is a programming bug.
func MustRegister[T Event](r *Registry, name string, stream *bus.Stream[T], also ...*bus.Stream[Event]) {
	if err := Register(r, name, stream, also...); err != nil {
		panic(err)
	}
}

// DecodeJSON decodes a payload into T.
func DecodeJSON[T Event](payload json.RawMessage) (Event, error) {
	if len(payload) == 0 || string(payload) == "null" {
		return nil, ErrEmptyPayload
	}

	var event T
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode %T: %w", event, err)
	}
	return event, nil
}
