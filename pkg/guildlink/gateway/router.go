package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tsarna/guildlink/pkg/guildlink/dedup"
	"github.com/tsarna/guildlink/pkg/guildlink/events"
	"github.com/tsarna/guildlink/pkg/guildlink/o11y"
	"go.uber.org/zap"
)

// router turns frames into typed events. It runs only on the reader
// goroutine, which makes it the sole writer of the resumption cursor.
type router struct {
	registry *events.Registry
	logger   *zap.Logger
	window   *dedup.Window
	tracing  o11y.TracingProvider
	metrics  routerMetrics
	now      func() time.Time

	cursor  atomic.Pointer[string]
	lastAck atomic.Int64 // unix nanoseconds
	welcome atomic.Pointer[Welcome]

	// hooks into the connection manager
	onWelcome       func(ctx context.Context, welcome Welcome)
	onInvalidCursor func(ctx context.Context, reason string)
}

type routerMetrics struct {
	frames        o11y.Counter
	published     o11y.Counter
	decodeErrors  o11y.Counter
	unknownEvents o11y.Counter
	duplicates    o11y.Counter
	latency       o11y.Histogram
}

func newRouterMetrics(provider o11y.MetricsProvider) routerMetrics {
	if provider == nil {
		return routerMetrics{}
	}
	return routerMetrics{
		frames:        provider.Counter(o11y.MetricFrames),
		published:     provider.Counter(o11y.MetricEventsPublished),
		decodeErrors:  provider.Counter(o11y.MetricDecodeErrors),
		unknownEvents: provider.Counter(o11y.MetricUnknownEvents),
		duplicates:    provider.Counter(o11y.MetricDuplicates),
		latency:       provider.Histogram(o11y.MetricRouteLatency),
	}
}

func count(ctx context.Context, c o11y.Counter, labels ...o11y.Label) {
	if c != nil {
		c.Add(ctx, 1, labels...)
	}
}

// Cursor returns the id of the last successfully routed event, or "".
func (r *router) Cursor() string {
	if p := r.cursor.Load(); p != nil {
		return *p
	}
	return ""
}

func (r *router) setCursor(id string) {
	r.cursor.Store(&id)
}

// LastAck returns when the last heartbeat acknowledgement (or welcome) arrived.
func (r *router) LastAck() time.Time {
	return time.Unix(0, r.lastAck.Load())
}

func (r *router) markAck() {
	r.lastAck.Store(r.now().UnixNano())
}

// routeData decodes one raw frame and routes it. Malformed frames are logged
// and dropped.
func (r *router) routeData(ctx context.Context, data []byte) {
	frame, err := DecodeFrame(data)
	if err != nil {
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			r.logger.Warn("Dropping malformed frame", zap.Error(err), zap.ByteString("frame", decodeErr.Data))
		}
		count(ctx, r.metrics.decodeErrors, o11y.Label{Key: "stage", Value: "frame"})
		return
	}
	r.route(ctx, frame)
}

// route handles one decoded frame. It never panics.
func (r *router) route(ctx context.Context, frame Frame) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Recovered from panic while routing frame",
				zap.Stringer("op", frame.Op),
				zap.String("event", frame.EventName),
				zap.Any("panic", p))
		}
	}()

	count(ctx, r.metrics.frames, o11y.Label{Key: "op", Value: frame.Op.String()})

	switch frame.Op {
	case OpEvent:
		r.routeEvent(ctx, frame)
	case OpWelcome:
		r.routeWelcome(ctx, frame)
	case OpHeartbeatAck:
		r.markAck()
	case OpResume:
		r.logger.Info("Resumed event stream", zap.String("lastMessageId", r.Cursor()))
	case OpError:
		r.logger.Error("Gateway reported an error", zap.String("message", frame.ServerError().Message))
	case OpInvalidCursor:
		reason := frame.ServerError().Message
		r.logger.Warn("Resumption cursor rejected, starting a fresh session",
			zap.String("lastMessageId", r.Cursor()),
			zap.String("message", reason))
		r.setCursor("")
		if r.onInvalidCursor != nil {
			r.onInvalidCursor(ctx, reason)
		}
	default:
		r.logger.Debug("Dropping frame with unhandled opcode", zap.Stringer("op", frame.Op))
	}
}

func (r *router) routeWelcome(ctx context.Context, frame Frame) {
	welcome, err := frame.Welcome()
	if err != nil {
		r.logger.Warn("Dropping invalid welcome", zap.Error(err))
		count(ctx, r.metrics.decodeErrors, o11y.Label{Key: "stage", Value: "welcome"})
		return
	}

	r.welcome.Store(&welcome)
	r.markAck()

	// On a resumed session the server's latest id may be ahead of events not
	// yet replayed, so only a fresh session takes its cursor from the welcome.
	if r.Cursor() == "" && welcome.LastMessageID != "" {
		r.setCursor(welcome.LastMessageID)
	}

	r.logger.Info("Received welcome",
		zap.Int("heartbeatIntervalMs", welcome.HeartbeatIntervalMs),
		zap.String("identity", welcome.Identity()),
		zap.String("lastMessageId", r.Cursor()))

	if r.onWelcome != nil {
		r.onWelcome(ctx, welcome)
	}
}

func (r *router) routeEvent(ctx context.Context, frame Frame) {
	if frame.EventName == "" {
		r.logger.Warn("Dropping event frame without a name", zap.String("messageId", frame.MessageID))
		count(ctx, r.metrics.decodeErrors, o11y.Label{Key: "stage", Value: "event"})
		return
	}

	entry, ok := r.registry.Lookup(frame.EventName)
	if !ok {
		r.logger.Debug("Dropping unknown event", zap.String("event", frame.EventName))
		count(ctx, r.metrics.unknownEvents, o11y.Label{Key: "event", Value: frame.EventName})
		return
	}

	if r.window.Seen(frame.MessageID) {
		r.logger.Debug("Dropping duplicate event",
			zap.String("event", frame.EventName),
			zap.String("messageId", frame.MessageID))
		count(ctx, r.metrics.duplicates, o11y.Label{Key: "event", Value: frame.EventName})
		return
	}

	start := r.now()
	var span o11y.Span
	if r.tracing != nil {
		ctx, span = r.tracing.StartSpan(ctx, "gateway.route")
		defer span.End()
		span.SetAttributes(
			o11y.Label{Key: "event", Value: frame.EventName},
			o11y.Label{Key: "message_id", Value: frame.MessageID},
		)
	}

	event, err := entry.Decode(frame.Payload)
	if err != nil {
		r.logger.Warn("Dropping event that failed to decode",
			zap.String("event", frame.EventName),
			zap.String("messageId", frame.MessageID),
			zap.Error(err))
		count(ctx, r.metrics.decodeErrors, o11y.Label{Key: "stage", Value: "payload"})
		if span != nil {
			span.SetStatus(o11y.SpanStatusError, err.Error())
		}
		return
	}

	if err := entry.Publish(ctx, event); err != nil {
		r.logger.Error("Failed to publish event",
			zap.String("event", frame.EventName),
			zap.Error(fmt.Errorf("publish %s: %w", frame.EventName, err)))
		if span != nil {
			span.SetStatus(o11y.SpanStatusError, err.Error())
		}
		return
	}

	// The cursor only moves once the event has been handed to every subscriber.
	if frame.MessageID != "" {
		r.window.Mark(frame.MessageID)
		r.setCursor(frame.MessageID)
	}

	count(ctx, r.metrics.published, o11y.Label{Key: "event", Value: frame.EventName})
	if r.metrics.latency != nil {
		r.metrics.latency.Record(ctx, r.now().Sub(start).Seconds(), o11y.Label{Key: "event", Value: frame.EventName})
	}
	if span != nil {
		span.SetStatus(o11y.SpanStatusOK, "")
	}
}
