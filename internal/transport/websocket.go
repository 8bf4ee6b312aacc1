package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/trainbook/internal/common"
	"github.com/dmitrijs2005/trainbook/internal/protocol"
	"github.com/gorilla/websocket"
)

const closeWriteWait = time.Second

// WSConn is a Conn over a WebSocket. Each binary WebSocket message carries
// exactly one protocol frame.
type WSConn struct {
	ws *websocket.Conn

	sendMu    sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewWSConn wraps ws and limits incoming messages to protocol.MaxFrameSize.
func NewWSConn(ws *websocket.Conn) *WSConn {
	ws.SetReadLimit(protocol.MaxFrameSize)
	return &WSConn{ws: ws}
}

// DialWS connects to a ws:// or wss:// URL.
func DialWS(ctx context.Context, url string) (*WSConn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", common.ErrTransport, url, err)
	}
	return NewWSConn(ws), nil
}

func (c *WSConn) Send(m protocol.Message) error {
	if c.closed.Load() {
		return closedError()
	}

	frame, err := protocol.MarshalFrame(m)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		if c.closed.Load() {
			return closedError()
		}
		return fmt.Errorf("%w: write message: %w", common.ErrTransport, err)
	}
	return nil
}

func (c *WSConn) Receive() (protocol.Message, error) {
	if c.closed.Load() {
		return protocol.Message{}, closedError()
	}

	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		if c.closed.Load() {
			return protocol.Message{}, closedError()
		}
		return protocol.Message{}, fmt.Errorf("%w: read message: %w", common.ErrTransport, err)
	}
	if mt != websocket.BinaryMessage {
		return protocol.Message{}, fmt.Errorf("%w: unexpected websocket message type %d", common.ErrDecode, mt)
	}
	return protocol.UnmarshalFrame(data)
}

func (c *WSConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *WSConn) RemoteAddr() string {
	if addr := c.ws.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
