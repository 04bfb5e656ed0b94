package gateway

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
)

// Conn is one open gateway socket. Read is only ever called from the
// client's reader goroutine; Write may be called concurrently with Read.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	// Close performs a graceful close handshake.
	Close(reason string) error
	// Abort tears the connection down without a handshake.
	Abort() error
}

// Dialer opens gateway connections.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url string, header http.Header) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	return f(ctx, url, header)
}

// WebSocketDialer dials the gateway with github.com/coder/websocket.
type WebSocketDialer struct {
	// ReadLimit is the largest frame accepted, in bytes. Defaults to 1 MiB.
	ReadLimit int64
	// HTTPClient is used for the upgrade request when set.
	HTTPClient *http.Client
}

func (d WebSocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: header,
		HTTPClient: d.HTTPClient,
	})
	if err != nil {
		return nil, err
	}

	limit := d.ReadLimit
	if limit <= 0 {
		limit = 1 << 20
	}
	conn.SetReadLimit(limit)

	return &websocketConn{conn: conn}, nil
}

type websocketConn struct {
	conn *websocket.Conn
}

func (c *websocketConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *websocketConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *websocketConn) Close(reason string) error {
	return c.conn.Close(websocket.StatusNormalClosure, reason)
}

func (c *websocketConn) Abort() error {
	return c.conn.CloseNow()
}
