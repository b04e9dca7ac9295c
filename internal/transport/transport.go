// Package transport is the client side of the relay connection.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
)

// ErrClosed is returned by operations on a connection that has gone away.
var ErrClosed = errors.New("transport closed")

// Conn carries whole text frames.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, frame []byte) error
	Close() error
}

// Dialer opens a connection into a room as user.
type Dialer interface {
	Dial(ctx context.Context, room, user string) (Conn, error)
}

// WSDialer dials the relay's websocket endpoint, e.g. ws://host:8080/ws.
type WSDialer struct {
	URL        string
	HTTPClient *http.Client
	// ReadLimit caps one inbound frame. Zero keeps a 4 MiB default, which
	// leaves room for full_state snapshots.
	ReadLimit int64
}

func (d WSDialer) Dial(ctx context.Context, room, user string) (Conn, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("relay url: %w", err)
	}
	q := u.Query()
	q.Set("room", room)
	q.Set("user", user)
	u.RawQuery = q.Encode()

	c, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPClient: d.HTTPClient})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	limit := d.ReadLimit
	if limit <= 0 {
		limit = 4 << 20
	}
	c.SetReadLimit(limit)
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return nil, ErrClosed
		}
		return nil, err
	}
	return data, nil
}

func (w *wsConn) Write(ctx context.Context, frame []byte) error {
	return w.c.Write(ctx, websocket.MessageText, frame)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "bye")
}
