package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tsarna/guildlink/pkg/guildlink/bus"
	"github.com/tsarna/guildlink/pkg/guildlink/dedup"
	"github.com/tsarna/guildlink/pkg/guildlink/events"
	"github.com/tsarna/guildlink/pkg/guildlink/o11y"
	"go.uber.org/zap"
)

// DefaultURL is the platform's bot gateway endpoint.
const DefaultURL = "wss://www.guilded.gg/websocket/v1"

const (
	DefaultDialTimeout  = 30 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultMissedAcks   = 2
	DefaultDedupWindow  = 512
)

// RegisterFunc adds event kinds beyond the built-in set to a client's
// registry, typically with events.Register onto streams it owns.
type RegisterFunc func(registry *events.Registry, streams *events.Streams) error

// ClientBuilder provides a fluent interface for building gateway clients.
type ClientBuilder struct {
	url          string
	token        string
	logger       *zap.Logger
	dialTimeout  time.Duration
	writeTimeout time.Duration
	headers      http.Header
	dialer       Dialer
	backoff      Backoff
	missedAcks   int
	dedupWindow  int
	cursor       string
	metrics      o11y.MetricsProvider
	tracing      o11y.TracingProvider
	registrars   []RegisterFunc
	now          func() time.Time
}

// NewClient creates a new gateway client builder.
func NewClient() *ClientBuilder {
	return &ClientBuilder{
		url:          DefaultURL,
		logger:       zap.NewNop(),
		dialTimeout:  DefaultDialTimeout,
		writeTimeout: DefaultWriteTimeout,
		backoff:      DefaultBackoff,
		missedAcks:   DefaultMissedAcks,
		dedupWindow:  DefaultDedupWindow,
		now:          time.Now,
	}
}

// WithURL overrides the gateway URL.
func (b *ClientBuilder) WithURL(url string) *ClientBuilder {
	b.url = url
	return b
}

// WithToken sets the bot token sent as a bearer credential.
func (b *ClientBuilder) WithToken(token string) *ClientBuilder {
	b.token = token
	return b
}

// WithLogger sets the logger for the client and its streams.
func (b *ClientBuilder) WithLogger(logger *zap.Logger) *ClientBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithDialTimeout sets the timeout for establishing each connection.
func (b *ClientBuilder) WithDialTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.dialTimeout = timeout
	}
	return b
}

// WithWriteTimeout bounds every outbound frame write.
func (b *ClientBuilder) WithWriteTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.writeTimeout = timeout
	}
	return b
}

// WithHeaders adds custom HTTP headers to the handshake. Authorization and
// the resumption header are always set by the client.
func (b *ClientBuilder) WithHeaders(headers map[string][]string) *ClientBuilder {
	if b.headers == nil {
		b.headers = make(http.Header)
	}
	for key, values := range headers {
		b.headers[http.CanonicalHeaderKey(key)] = values
	}
	return b
}

// WithHeader sets a single handshake header.
func (b *ClientBuilder) WithHeader(key, value string) *ClientBuilder {
	if b.headers == nil {
		b.headers = make(http.Header)
	}
	b.headers.Set(key, value)
	return b
}

// WithDialer replaces the WebSocket transport, mainly for tests.
func (b *ClientBuilder) WithDialer(dialer Dialer) *ClientBuilder {
	b.dialer = dialer
	return b
}

// WithReconnectBackoff sets the delay schedule between reconnect attempts.
func (b *ClientBuilder) WithReconnectBackoff(backoff Backoff) *ClientBuilder {
	b.backoff = backoff
	return b
}

// WithMissedAcks sets how many heartbeat intervals may pass without an
// acknowledgement before the connection is dropped.
func (b *ClientBuilder) WithMissedAcks(n int) *ClientBuilder {
	b.missedAcks = n
	return b
}

// WithDedupWindow sets how many recent message ids are remembered to drop
// replayed frames. Zero disables suppression.
func (b *ClientBuilder) WithDedupWindow(size int) *ClientBuilder {
	b.dedupWindow = size
	return b
}

// WithLastMessageID seeds the resumption cursor, so a restarted process can
// resume where a previous one stopped.
func (b *ClientBuilder) WithLastMessageID(id string) *ClientBuilder {
	b.cursor = id
	return b
}

// WithMetrics sets the metrics provider.
func (b *ClientBuilder) WithMetrics(provider o11y.MetricsProvider) *ClientBuilder {
	b.metrics = provider
	return b
}

// WithTracing sets the tracing provider.
func (b *ClientBuilder) WithTracing(provider o11y.TracingProvider) *ClientBuilder {
	b.tracing = provider
	return b
}

// WithObservability sets both providers from one config.
func (b *ClientBuilder) WithObservability(config o11y.ObservabilityConfig) *ClientBuilder {
	b.metrics = config.MetricsProvider
	b.tracing = config.TracingProvider
	return b
}

// WithEvents registers additional event kinds after the built-in ones.
func (b *ClientBuilder) WithEvents(register RegisterFunc) *ClientBuilder {
	if register != nil {
		b.registrars = append(b.registrars, register)
	}
	return b
}

// WithClock replaces time.Now, for tests.
func (b *ClientBuilder) WithClock(now func() time.Time) *ClientBuilder {
	if now != nil {
		b.now = now
	}
	return b
}

// Build creates and returns a new client with the configured options.
func (b *ClientBuilder) Build() (*Client, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	streamCfg := bus.Config{Logger: b.logger, Metrics: b.metrics}
	streams := events.NewStreams(streamCfg)
	registry := events.NewRegistry()
	if err := streams.Register(registry); err != nil {
		return nil, err
	}
	for _, register := range b.registrars {
		if err := register(registry, streams); err != nil {
			return nil, fmt.Errorf("failed to register events: %w", err)
		}
	}

	dialer := b.dialer
	if dialer == nil {
		dialer = WebSocketDialer{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	client := &Client{
		url:          b.url,
		token:        b.token,
		logger:       b.logger,
		dialer:       dialer,
		dialTimeout:  b.dialTimeout,
		writeTimeout: b.writeTimeout,
		headers:      b.headers,
		backoff:      b.backoff,
		missedAcks:   b.missedAcks,
		now:          b.now,
		streams:      streams,
		registry:     registry,
		stateChanges: bus.NewStream[StateChange]("state", streamCfg),
		state:        StateDisconnected,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	client.router = &router{
		registry: registry,
		logger:   b.logger,
		window:   dedup.NewWindow(b.dedupWindow),
		tracing:  b.tracing,
		metrics:  newRouterMetrics(b.metrics),
		now:      b.now,

		onWelcome:       client.startHeartbeat,
		onInvalidCursor: client.dropSession,
	}
	if b.cursor != "" {
		client.router.setCursor(b.cursor)
	}

	if b.metrics != nil {
		client.reconnects = b.metrics.Counter(o11y.MetricReconnects)
		client.heartbeatMisses = b.metrics.Counter(o11y.MetricHeartbeatMisses)
		client.connected = b.metrics.Gauge(o11y.MetricConnected)
	}

	return client, nil
}

// IsValid checks that all required configuration is present.
func (b *ClientBuilder) IsValid() error {
	if b.url == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(b.url)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("invalid URL scheme %q", u.Scheme)
	}

	if b.token == "" {
		return fmt.Errorf("token is required")
	}

	if err := b.backoff.Validate(); err != nil {
		return err
	}

	if b.missedAcks < 1 {
		return fmt.Errorf("missed acks must be at least 1, got %d", b.missedAcks)
	}

	if b.dedupWindow < 0 {
		return fmt.Errorf("dedup window must not be negative, got %d", b.dedupWindow)
	}

	// Logger is optional - we provide a default nop logger
	if b.logger == nil {
		b.logger = zap.NewNop()
	}

	if b.dialTimeout <= 0 {
		b.dialTimeout = DefaultDialTimeout
	}

	if b.writeTimeout <= 0 {
		b.writeTimeout = DefaultWriteTimeout
	}

	return nil
}
