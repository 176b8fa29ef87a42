package ws

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Time allowed to write a frame to the server.
const writeWait = 10 * time.Second

// Conn is the framed transport the Manager drives.
type Conn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens a Conn to url with the handshake headers.
type Dialer func(ctx context.Context, url string, header http.Header) (Conn, error)

// WebsocketDialer adapts a gorilla websocket dialer. d may be nil.
func WebsocketDialer(d *websocket.Dialer) Dialer {
	if d == nil {
		d = websocket.DefaultDialer
	}
	return func(ctx context.Context, url string, header http.Header) (Conn, error) {
		conn, resp, err := d.DialContext(ctx, url, header)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
			}
			return nil, fmt.Errorf("dial %s: %w", url, err)
		}
		return &wsConn{conn: conn}, nil
	}
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadJSON(v interface{}) error {
	return c.conn.ReadJSON(v)
}

func (c *wsConn) WriteJSON(v interface{}) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
