// Package gateway maintains the persistent connection to the platform's
// real-time event gateway. It keeps the connection alive with heartbeats,
// resumes from the last routed event after a drop, and routes each event
// frame to the typed stream registered for its name.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tsarna/guildlink/pkg/guildlink/bus"
	"github.com/tsarna/guildlink/pkg/guildlink/events"
	"github.com/tsarna/guildlink/pkg/guildlink/o11y"
	"go.uber.org/zap"
)

// HeaderLastMessageID carries the resumption cursor on the handshake.
const HeaderLastMessageID = "guilded-last-message-id"

// Client is a gateway connection manager. Create one with NewClient().Build().
//
// Events are published synchronously on the client's reader goroutine, in
// the order the server sent them. Subscribers must not call Close from
// inside a callback; use `go client.Close()` instead.
type Client struct {
	// Configuration
	url          string
	token        string
	logger       *zap.Logger
	dialer       Dialer
	dialTimeout  time.Duration
	writeTimeout time.Duration
	headers      http.Header
	backoff      Backoff
	missedAcks   int
	now          func() time.Time

	streams      *events.Streams
	registry     *events.Registry
	stateChanges *bus.Stream[StateChange]
	router       *router

	reconnects      o11y.Counter
	heartbeatMisses o11y.Counter
	connected       o11y.Gauge

	// Connection state
	connectMu sync.Mutex // serializes Connect
	mu        sync.Mutex // guards the fields below
	state     State
	session   *session
	running   bool

	ctx    context.Context // client lifetime, cancelled by Close
	cancel context.CancelFunc
	done   chan struct{} // closed when the supervisor exits
	closed atomic.Bool
}

// session is one connection epoch.
type session struct {
	conn   Conn
	epoch  string
	ctx    context.Context
	cancel context.CancelCauseFunc

	hbMu     sync.Mutex
	hbCancel context.CancelFunc
	hbWG     sync.WaitGroup
}

// end stops the epoch's heartbeat and tears the socket down.
func (s *session) end(graceful bool) {
	s.cancel(nil)
	s.hbWG.Wait()
	if graceful {
		_ = s.conn.Close("client closed")
		return
	}
	_ = s.conn.Abort()
}

// Connect dials the gateway and starts the supervisor that reads frames and
// reconnects after drops. ctx bounds the initial dial only. Concurrent calls
// are serialized, and once the supervisor is running Connect returns nil.
// It returns ErrClosed if Close ran before or during the call.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if c.closed.Load() {
		return ErrClosed
	}

	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if running {
		return nil
	}

	c.setState(StateConnecting, nil)

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected, err)
		return err
	}

	s := c.attach(conn)
	if s == nil {
		return ErrClosed
	}

	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	go c.run(s)

	// A subscriber of the Connected change may have closed the client.
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

// dial opens one socket, carrying the token and the resumption cursor.
func (c *Client) dial(ctx context.Context) (Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	// Close must be able to abort a dial started with an unrelated context.
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	conn, err := c.dialer.Dial(dialCtx, c.url, c.handshakeHeader())
	if err != nil {
		if c.ctx.Err() != nil {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("failed to connect to gateway: %w", err)
	}
	return conn, nil
}

func (c *Client) handshakeHeader() http.Header {
	header := c.headers.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set("Authorization", "Bearer "+c.token)
	if cursor := c.router.Cursor(); cursor != "" {
		header.Set(HeaderLastMessageID, cursor)
	}
	return header
}

// attach installs conn as the live session. It returns nil, aborting conn,
// if the client was closed while dialing.
func (c *Client) attach(conn Conn) *session {
	s := &session{conn: conn, epoch: uuid.NewString()}
	s.ctx, s.cancel = context.WithCancelCause(c.ctx)

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		s.cancel(ErrClosed)
		_ = conn.Abort()
		return nil
	}
	c.session = s
	change := c.transition(StateConnected, nil)
	c.mu.Unlock()

	c.logger.Info("Gateway connected", zap.String("url", c.url), zap.String("epoch", s.epoch))
	c.publishState(change)
	return s
}

// run is the supervisor: the reader for the live session and, between
// sessions, the reconnect loop. It exits only when the client is closed.
func (c *Client) run(s *session) {
	defer close(c.done)

	for s != nil {
		err := c.serve(s)

		if c.ctx.Err() != nil {
			s.end(true)
			return
		}
		s.end(false)

		c.logger.Warn("Gateway connection lost",
			zap.String("epoch", s.epoch),
			zap.String("lastMessageId", c.router.Cursor()),
			zap.Error(err))
		c.setState(StateReconnecting, err)

		s = c.reconnect()
	}
}

// serve reads and routes frames until the session ends, and returns why.
func (c *Client) serve(s *session) error {
	for {
		if s.ctx.Err() != nil {
			return context.Cause(s.ctx)
		}

		data, err := s.conn.Read(s.ctx)
		if err != nil {
			if cause := context.Cause(s.ctx); cause != nil {
				return cause
			}
			return fmt.Errorf("failed to read frame: %w", err)
		}

		c.router.routeData(s.ctx, data)

		if s.ctx.Err() != nil {
			return context.Cause(s.ctx)
		}
	}
}

// reconnect dials until it succeeds or the client is closed, waiting a
// growing delay before each attempt.
func (c *Client) reconnect() *session {
	for attempt := 1; ; attempt++ {
		delay := c.backoff.Delay(attempt)
		c.logger.Info("Reconnecting to gateway",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if c.reconnects != nil {
			c.reconnects.Add(c.ctx, 1)
		}

		conn, err := c.dial(c.ctx)
		if err == nil {
			return c.attach(conn)
		}
		if c.ctx.Err() != nil {
			return nil
		}

		c.logger.Warn("Reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}
}

// startHeartbeat is called by the router on every welcome.
func (c *Client) startHeartbeat(ctx context.Context, welcome Welcome) {
	s := c.currentSession()
	if s == nil || s.ctx != ctx {
		return
	}

	hb := &heartbeat{
		interval:   time.Duration(welcome.HeartbeatIntervalMs) * time.Millisecond,
		missedAcks: c.missedAcks,
		logger:     c.logger.With(zap.String("epoch", s.epoch)),
		now:        c.now,
		lastAck:    c.router.LastAck,
		send: func(ctx context.Context, data []byte) error {
			writeCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
			defer cancel()
			return s.conn.Write(writeCtx, data)
		},
		fail:   s.cancel,
		misses: c.heartbeatMisses,
	}

	s.hbMu.Lock()
	defer s.hbMu.Unlock()

	// a repeated welcome replaces the running heartbeat
	if s.hbCancel != nil {
		s.hbCancel()
	}
	hbCtx, cancel := context.WithCancel(s.ctx)
	s.hbCancel = cancel

	s.hbWG.Add(1)
	go func() {
		defer s.hbWG.Done()
		hb.run(hbCtx)
	}()
}

// dropSession is called by the router when the server rejects the cursor.
func (c *Client) dropSession(ctx context.Context, reason string) {
	if s := c.currentSession(); s != nil && s.ctx == ctx {
		s.cancel(fmt.Errorf("%w: %s", ErrInvalidCursor, reason))
	}
}

func (c *Client) currentSession() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Send writes a raw frame on the live connection. It fails with
// ErrNotConnected unless the client is connected.
func (c *Client) Send(ctx context.Context, data []byte) error {
	if c.closed.Load() {
		return fmt.Errorf("%w: %w", ErrNotConnected, ErrClosed)
	}

	c.mu.Lock()
	s, state := c.session, c.state
	c.mu.Unlock()
	if state != StateConnected || s == nil {
		return ErrNotConnected
	}

	writeCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	if err := s.conn.Write(writeCtx, data); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	return nil
}

// Close shuts the client down for good. It is idempotent and safe to call
// from any goroutine other than a subscriber callback. No events are
// published after it returns.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.logger.Info("Closing gateway client")
	c.cancel()

	c.mu.Lock()
	running, s := c.running, c.session
	c.mu.Unlock()
	if running {
		<-c.done
	} else if s != nil {
		// Connect attached a session but has not started the supervisor.
		// The supervisor will see the cancelled context and serve nothing.
		s.end(true)
	}

	c.mu.Lock()
	c.session = nil
	change := c.transition(StateClosed, ErrClosed)
	c.mu.Unlock()
	c.publishState(change)

	c.logger.Info("Gateway client closed")
	return nil
}

// transition moves to a new state. c.mu must be held.
func (c *Client) transition(to State, err error) StateChange {
	if c.state == StateClosed {
		return StateChange{From: StateClosed, To: StateClosed}
	}

	change := StateChange{From: c.state, To: to, Err: err, At: c.now()}
	if c.session != nil {
		change.Epoch = c.session.epoch
	}
	if to != StateConnected {
		c.session = nil
	}
	c.state = to
	return change
}

func (c *Client) setState(to State, err error) {
	c.mu.Lock()
	change := c.transition(to, err)
	c.mu.Unlock()
	c.publishState(change)
}

func (c *Client) publishState(change StateChange) {
	if change.From == change.To {
		return
	}

	if c.connected != nil {
		value := 0.0
		if change.To == StateConnected {
			value = 1
		}
		c.connected.Set(context.Background(), value)
	}

	fields := []zap.Field{
		zap.Stringer("from", change.From),
		zap.Stringer("to", change.To),
		zap.String("epoch", change.Epoch),
	}
	if change.Err != nil && !errors.Is(change.Err, ErrClosed) {
		fields = append(fields, zap.Error(change.Err))
	}
	c.logger.Debug("Gateway state changed", fields...)

	c.stateChanges.Publish(context.Background(), change)
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Epoch returns the id of the live connection, or "" when not connected.
func (c *Client) Epoch() string {
	if s := c.currentSession(); s != nil {
		return s.epoch
	}
	return ""
}

// LastMessageID returns the resumption cursor: the id of the last event
// handed to subscribers, or "".
func (c *Client) LastMessageID() string {
	return c.router.Cursor()
}

// Welcome returns the most recent welcome descriptor, if any arrived yet.
func (c *Client) Welcome() (Welcome, bool) {
	if w := c.router.welcome.Load(); w != nil {
		return *w, true
	}
	return Welcome{}, false
}

// Identity returns the bot's own user id once welcomed, or "".
func (c *Client) Identity() string {
	w, _ := c.Welcome()
	return w.Identity()
}

// Events returns the typed event streams.
func (c *Client) Events() *events.Streams {
	return c.streams
}

// Registry returns the event registry the router decodes with.
func (c *Client) Registry() *events.Registry {
	return c.registry
}

// StateChanges returns the stream of lifecycle transitions.
func (c *Client) StateChanges() *bus.Stream[StateChange] {
	return c.stateChanges
}
