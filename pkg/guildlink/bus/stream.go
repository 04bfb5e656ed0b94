// Package bus provides typed, in-process publish/subscribe streams.
//
// A Stream delivers each published value to every current subscriber in
// subscription order, on the publisher's goroutine. A subscriber that returns
// an error or panics is logged and counted but never prevents delivery to the
// others, and never propagates back to the publisher.
package bus

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/tsarna/guildlink/pkg/guildlink/o11y"
	"go.uber.org/zap"
)

// Handler receives values published to a Stream. Handlers run on the
// publisher's goroutine; blocking work should be handed off (see
// subutils.NewAsyncHandler).
type Handler[T any] func(ctx context.Context, value T) error

// Config carries the ambient dependencies shared by every stream of a client.
type Config struct {
	Logger  *zap.Logger
	Metrics o11y.MetricsProvider
}

type subscriber[T any] struct {
	id      uint64
	handler Handler[T]
	active  atomic.Bool
}

// Stream is a typed multicast stream. The zero value is not usable; create
// streams with NewStream.
type Stream[T any] struct {
	name   string
	logger *zap.Logger

	errorCounter    o11y.Counter
	subscriberGauge o11y.Gauge

	mu     sync.Mutex
	subs   atomic.Pointer[[]*subscriber[T]] // copy-on-write
	nextID uint64
}

// NewStream creates a stream identified by name in logs and metrics.
func NewStream[T any](name string, cfg Config) *Stream[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Stream[T]{
		name:   name,
		logger: logger.With(zap.String("stream", name)),
	}
	empty := make([]*subscriber[T], 0)
	s.subs.Store(&empty)

	if cfg.Metrics != nil {
		s.errorCounter = cfg.Metrics.Counter(o11y.MetricSubscriberErrs)
		s.subscriberGauge = cfg.Metrics.Gauge(o11y.MetricSubscribers)
	}

	return s
}

// Name returns the stream's name.
func (s *Stream[T]) Name() string {
	return s.name
}

// Len returns the number of active subscribers.
func (s *Stream[T]) Len() int {
	return len(*s.subs.Load())
}

// Subscribe registers handler and returns a handle that removes it again.
func (s *Stream[T]) Subscribe(handler Handler[T]) *Subscription {
	if handler == nil {
		panic("bus: nil handler")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	sub := &subscriber[T]{id: s.nextID, handler: handler}
	sub.active.Store(true)

	current := *s.subs.Load()
	next := make([]*subscriber[T], len(current), len(current)+1)
	copy(next, current)
	next = append(next, sub)
	s.subs.Store(&next)
	s.updateGauge(len(next))

	return &Subscription{unsubscribe: func() { s.remove(sub) }}
}

func (s *Stream[T]) remove(sub *subscriber[T]) {
	sub.active.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	current := *s.subs.Load()
	next := make([]*subscriber[T], 0, len(current))
	for _, existing := range current {
		if existing.id != sub.id {
			next = append(next, existing)
		}
	}
	s.subs.Store(&next)
	s.updateGauge(len(next))
}

func (s *Stream[T]) updateGauge(n int) {
	if s.subscriberGauge != nil {
		s.subscriberGauge.Set(context.Background(), float64(n), o11y.Label{Key: "stream", Value: s.name})
	}
}

// Publish delivers value to every subscriber and returns how many handlers
// completed without error.
func (s *Stream[T]) Publish(ctx context.Context, value T) int {
	if ctx == nil {
		ctx = context.Background()
	}

	delivered := 0
	for _, sub := range *s.subs.Load() {
		if !sub.active.Load() {
			continue
		}
		if err := s.invoke(ctx, sub, value); err != nil {
			s.logger.Error("Error in subscriber", zap.Uint64("subscriber", sub.id), zap.Error(err))
			if s.errorCounter != nil {
				s.errorCounter.Add(ctx, 1, o11y.Label{Key: "stream", Value: s.name})
			}
			continue
		}
		delivered++
	}

	return delivered
}

func (s *Stream[T]) invoke(ctx context.Context, sub *subscriber[T], value T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	return sub.handler(ctx, value)
}

// Chan subscribes a buffered channel of the given size. Values that arrive
// while the buffer is full are dropped and logged. Unsubscribing closes the
// channel.
func (s *Stream[T]) Chan(size int) (<-chan T, *Subscription) {
	if size <= 0 {
		size = 64
	}

	ch := make(chan T, size)
	var mu sync.Mutex
	closed := false

	sub := s.Subscribe(func(ctx context.Context, value T) error {
		mu.Lock()
		defer mu.Unlock()

		if closed {
			return nil
		}
		select {
		case ch <- value:
			return nil
		default:
			return ErrChannelFull
		}
	})

	inner := sub.unsubscribe
	sub.unsubscribe = func() {
		inner()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}

	return ch, sub
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	once        sync.Once
	unsubscribe func()
}

// Unsubscribe stops further deliveries to this subscription. Other
// subscribers of the stream are unaffected. It is safe to call more than once
// and from within the subscription's own handler.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.unsubscribe)
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}
