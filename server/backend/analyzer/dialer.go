package analyzer

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// maxFrameSize caps a single alert frame
	maxFrameSize = 1 << 20

	// writeWait bounds control frame writes
	writeWait = 10 * time.Second

	// closeWait bounds the close frame write so a wedged peer cannot stall
	// the manager loop
	closeWait = time.Second

	// handshakeTimeout bounds the websocket upgrade
	handshakeTimeout = 10 * time.Second
)

// Conn is an open alert stream. ReadMessage blocks until the next frame or
// until the connection fails; Close unblocks a pending read.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	Close() error
}

// Dialer opens alert stream connections
type Dialer interface {
	Dial(ctx context.Context, streamURL string) (Conn, error)
}

// WebsocketDialer dials the backend's websocket endpoint
type WebsocketDialer struct {
	dialer       *websocket.Dialer
	pingInterval time.Duration
}

// NewWebsocketDialer creates a dialer. A positive pingInterval enables
// keepalive pings and a read deadline of twice the interval, so a silently
// dead peer is detected and the manager reconnects.
func NewWebsocketDialer(pingInterval time.Duration) *WebsocketDialer {
	return &WebsocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		pingInterval: pingInterval,
	}
}

// Dial performs the websocket handshake against streamURL
func (d *WebsocketDialer) Dial(ctx context.Context, streamURL string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	conn.SetReadLimit(maxFrameSize)
	return newWebsocketConn(conn, d.pingInterval), nil
}

// websocketConn adds keepalive handling to a gorilla connection
type websocketConn struct {
	conn         *websocket.Conn
	pingInterval time.Duration
	done         chan struct{}
	closeOnce    sync.Once
}

func newWebsocketConn(conn *websocket.Conn, pingInterval time.Duration) *websocketConn {
	c := &websocketConn{
		conn:         conn,
		pingInterval: pingInterval,
		done:         make(chan struct{}),
	}

	if pingInterval > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
		})
		go c.keepalive()
	}

	return c
}

// ReadMessage reads the next frame and extends the read deadline on success
func (c *websocketConn) ReadMessage() (int, []byte, error) {
	messageType, data, err := c.conn.ReadMessage()
	if err == nil && c.pingInterval > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * c.pingInterval))
	}
	return messageType, data, err
}

// Close sends a close frame on a best-effort basis and closes the socket
func (c *websocketConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWait))
		err = c.conn.Close()
	})
	return err
}

// keepalive pings the peer until the connection is closed.
// WriteControl may be called concurrently with other methods.
func (c *websocketConn) keepalive() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
