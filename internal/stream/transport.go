package stream

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Frame types as reported by Conn.ReadMessage.
const (
	TextFrame   = websocket.TextMessage
	BinaryFrame = websocket.BinaryMessage
)

// Conn is one established transport. A Conn is never reused once closed.
// ReadMessage is called from a single goroutine; Ping and Close may be
// called concurrently with it.
type Conn interface {
	ReadMessage() (frameType int, data []byte, err error)
	Ping(deadline time.Time) error
	Close() error
}

// Dialer opens a fresh Conn per attempt.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

// Interface guard
var _ Dialer = (*WebsocketDialer)(nil)

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	dialer    *websocket.Dialer
	readLimit int64
}

func NewWebsocketDialer(handshakeTimeout time.Duration, readLimit int64) *WebsocketDialer {
	return &WebsocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		},
		readLimit: readLimit,
	}
}

func (d *WebsocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	ws, resp, err := d.dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	if d.readLimit > 0 {
		ws.SetReadLimit(d.readLimit)
	}
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) ReadMessage() (int, []byte, error) {
	t, data, err := c.ws.ReadMessage()
	if err != nil && websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		// gorilla's default close handler already echoed the close frame
		return t, data, fmt.Errorf("%w: %v", ErrPeerClosed, err)
	}
	return t, data, err
}

func (c *wsConn) Ping(deadline time.Time) error {
	return c.ws.WriteControl(websocket.PingMessage, nil, deadline)
}

// Close sends a best-effort normal closure and releases the socket.
func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.ws.Close()
}

// ValidateAddress checks that raw is an absolute ws:// or wss:// URL.
func ValidateAddress(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: scheme %q, want ws or wss", ErrInvalidAddress, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidAddress)
	}
	return u, nil
}

// BuildURL adds the identity query parameter when name is known.
func BuildURL(address, param, name string) (string, error) {
	u, err := ValidateAddress(address)
	if err != nil {
		return "", err
	}
	if name == "" || param == "" {
		return u.String(), nil
	}
	q := u.Query()
	q.Set(param, name)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
