// Package subutils provides reusable stream handlers: an asynchronous
// hand-off queue, a logging handler, and a transforming handler.
package subutils

import (
	"context"
	"errors"
	"sync"

	"github.com/tsarna/guildlink/pkg/guildlink/bus"
	"go.uber.org/zap"
)

var (
	ErrQueueFull     = errors.New("handler queue is full")
	ErrHandlerClosed = errors.New("handler is closed")
)

type queued[T any] struct {
	ctx   context.Context
	value T
}

// AsyncHandler wraps a stream handler and runs it on its own goroutine
// through a buffered queue, so the publisher (the gateway's reader) returns
// immediately. Values arriving while the queue is full are rejected with
// ErrQueueFull, which the stream logs and counts.
type AsyncHandler[T any] struct {
	wrapped bus.Handler[T]
	logger  *zap.Logger
	queue   chan queued[T]
	done    chan struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
	startOnce sync.Once
}

// NewAsyncHandler creates an AsyncHandler with the given queue size.
// Call Start before subscribing it and Close when done; Close processes
// whatever is still queued.
//
//	async := subutils.NewAsyncHandler(slowHandler, 100, logger).Start()
//	defer async.Close()
//	client.Events().MessageCreated.Subscribe(async.Handle)
func NewAsyncHandler[T any](wrapped bus.Handler[T], queueSize int, logger *zap.Logger) *AsyncHandler[T] {
	if queueSize <= 0 {
		queueSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AsyncHandler[T]{
		wrapped: wrapped,
		logger:  logger,
		queue:   make(chan queued[T], queueSize),
		done:    make(chan struct{}),
	}
}

// Start begins processing in a background goroutine.
func (a *AsyncHandler[T]) Start() *AsyncHandler[T] {
	a.startOnce.Do(func() {
		a.wg.Add(1)
		go a.processQueue()
	})
	return a
}

func (a *AsyncHandler[T]) processQueue() {
	defer a.wg.Done()

	for {
		select {
		case item := <-a.queue:
			a.process(item)
		case <-a.done:
			a.drainQueue()
			return
		}
	}
}

func (a *AsyncHandler[T]) drainQueue() {
	for {
		select {
		case item := <-a.queue:
			a.process(item)
		default:
			return
		}
	}
}

func (a *AsyncHandler[T]) process(item queued[T]) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Recovered from panic in async handler", zap.Any("panic", r))
		}
	}()

	if err := a.wrapped(item.ctx, item.value); err != nil {
		a.logger.Error("Error in async handler", zap.Error(err))
	}
}

// Handle queues value and returns immediately. It has the bus.Handler shape.
func (a *AsyncHandler[T]) Handle(ctx context.Context, value T) error {
	if a.IsClosed() {
		return ErrHandlerClosed
	}

	// the publisher's context may end before the value is processed
	select {
	case a.queue <- queued[T]{ctx: context.WithoutCancel(ctx), value: value}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting values and waits until everything queued has been
// processed.
func (a *AsyncHandler[T]) Close() error {
	a.closeOnce.Do(func() {
		close(a.done)
		a.wg.Wait()
	})
	return nil
}

// QueueSize returns the number of values waiting.
func (a *AsyncHandler[T]) QueueSize() int {
	return len(a.queue)
}

// QueueCapacity returns the maximum number of values that can wait.
func (a *AsyncHandler[T]) QueueCapacity() int {
	return cap(a.queue)
}

// IsClosed reports whether Close has been called.
func (a *AsyncHandler[T]) IsClosed() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}
