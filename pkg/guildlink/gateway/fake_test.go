package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

var errConnDropped = errors.New("connection dropped")

// fakeConn is a scripted connection: tests push inbound frames and observe
// outbound writes.
type fakeConn struct {
	frames    chan []byte
	writes    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	graceful  atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 64),
		writes: make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, errConnDropped
	case data := <-c.frames:
		return data, nil
	}
}

func (c *fakeConn) Write(ctx context.Context, data []byte) error {
	select {
	case <-c.closed:
		return errConnDropped
	default:
	}
	select {
	case c.writes <- data:
	default:
	}
	return nil
}

func (c *fakeConn) Close(reason string) error {
	c.graceful.Store(true)
	c.drop()
	return nil
}

func (c *fakeConn) Abort() error {
	c.drop()
	return nil
}

// drop simulates the server going away.
func (c *fakeConn) drop() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *fakeConn) push(frames ...string) {
	for _, f := range frames {
		c.frames <- []byte(f)
	}
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// fakeDialer hands out a fresh fakeConn per dial and records handshakes.
type fakeDialer struct {
	mu      sync.Mutex
	headers []http.Header
	conns   chan *fakeConn
	failing atomic.Int32
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	d.mu.Lock()
	d.headers = append(d.headers, header.Clone())
	d.mu.Unlock()

	if d.failing.Load() > 0 {
		d.failing.Add(-1)
		return nil, errors.New("connection refused")
	}

	conn := newFakeConn()
	d.conns <- conn
	return conn, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.headers)
}

func (d *fakeDialer) header(i int) http.Header {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.headers[i]
}

// next waits for the next dialed connection.
func (d *fakeDialer) next() *fakeConn {
	select {
	case c := <-d.conns:
		return c
	case <-time.After(2 * time.Second):
		panic("no connection dialed")
	}
}

func welcomeFrame(intervalMs int, lastMessageID string) string {
	return fmt.Sprintf(`{"op":1,"d":{"heartbeatIntervalMs":%d,"lastMessageId":%q,"botId":"bot1","user":{"id":"botUser","name":"Bot","type":"bot"}}}`,
		intervalMs, lastMessageID)
}

func messageFrame(id, content string) string {
	return fmt.Sprintf(`{"op":0,"t":"ChatMessageCreated","s":%q,"d":{"serverId":"srv1","message":{"id":%q,"channelId":"ch1","content":%q,"createdBy":"u1"}}}`,
		id, id, content)
}

func eventFrame(name, id, payload string) string {
	return fmt.Sprintf(`{"op":0,"t":%q,"s":%q,"d":%s}`, name, id, payload)
}

var testBackoff = Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2}
