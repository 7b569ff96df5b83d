package stream

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vessel-tracker/src/interfaces"
)

const writeWait = 2 * time.Second

// -----------------------------------------------------------------------------
// GorillaTransport is the production IStreamTransport.
// -----------------------------------------------------------------------------

type GorillaTransport struct {
	dialer *websocket.Dialer
}

// -----------------------------------------------------------------------------

func NewGorillaTransport() *GorillaTransport {
	return &GorillaTransport{dialer: websocket.DefaultDialer}
}

// -----------------------------------------------------------------------------

func (t *GorillaTransport) Dial(ctx context.Context, url string) (interfaces.IStreamConn, error) {
	conn, _, err := t.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &gorillaConn{conn: conn}, nil
}

// -----------------------------------------------------------------------------
// gorillaConn adapts *websocket.Conn. Gorilla permits one concurrent writer,
// so the subscription write and the keepalive pings share a mutex.
// -----------------------------------------------------------------------------

type gorillaConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// -----------------------------------------------------------------------------

func (c *gorillaConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// -----------------------------------------------------------------------------

func (c *gorillaConn) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// -----------------------------------------------------------------------------

func (c *gorillaConn) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// -----------------------------------------------------------------------------

func (c *gorillaConn) Close() error {
	return c.conn.Close()
}
