// Package o11y defines the small metrics and tracing surface used by the
// gateway, so the core does not depend on a particular telemetry SDK.
package o11y

import (
	"context"
)

// ObservabilityConfig holds optional observability providers
type ObservabilityConfig struct {
	MetricsProvider MetricsProvider
	TracingProvider TracingProvider
	ServiceName     string
	ServiceVersion  string
}

// MetricsProvider abstracts metrics collection (can be implemented with OpenTelemetry, Prometheus, etc.)
type MetricsProvider interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Gauge(name string) Gauge
}

// TracingProvider abstracts distributed tracing (can be implemented with OpenTelemetry, Jaeger, etc.)
type TracingProvider interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Counter represents a monotonically increasing metric
type Counter interface {
	Add(ctx context.Context, value int64, labels ...Label)
}

// Histogram records distribution of values
type Histogram interface {
	Record(ctx context.Context, value float64, labels ...Label)
}

// Gauge represents a value that can go up and down
type Gauge interface {
	Set(ctx context.Context, value float64, labels ...Label)
}

// Span represents a unit of work in a trace
type Span interface {
	SetAttributes(labels ...Label)
	SetStatus(code SpanStatusCode, description string)
	End()
}

// Label represents a key-value pair for metrics and tracing
type Label struct {
	Key   string
	Value string
}

// SpanStatusCode represents the status of a span
type SpanStatusCode int

const (
	SpanStatusUnset SpanStatusCode = iota
	SpanStatusOK
	SpanStatusError
)

// Metric names recorded by the gateway and the streams it feeds. The
// stream_* metrics are shared by every stream and carry a stream label.
const (
	MetricFrames          = "gateway_frames_total"
	MetricEventsPublished = "gateway_events_published_total"
	MetricDecodeErrors    = "gateway_decode_errors_total"
	MetricUnknownEvents   = "gateway_unknown_events_total"
	MetricDuplicates      = "gateway_duplicates_total"
	MetricReconnects      = "gateway_reconnects_total"
	MetricHeartbeatMisses = "gateway_heartbeat_timeouts_total"
	MetricSubscriberErrs  = "stream_subscriber_errors_total"
	MetricSubscribers     = "stream_subscribers"
	MetricCommands        = "commands_dispatched_total"
	MetricRouteLatency    = "gateway_route_duration_seconds"
	MetricConnected       = "gateway_connected"
)
