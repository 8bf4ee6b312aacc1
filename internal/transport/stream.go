package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/trainbook/internal/common"
	"github.com/dmitrijs2005/trainbook/internal/protocol"
)

// StreamConn is a Conn over a net.Conn byte stream using size-delimited frames.
type StreamConn struct {
	conn net.Conn
	enc  *protocol.Encoder
	dec  *protocol.Decoder

	sendMu    sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewStreamConn wraps an established network connection.
func NewStreamConn(conn net.Conn) *StreamConn {
	return &StreamConn{
		conn: conn,
		enc:  protocol.NewEncoder(conn),
		dec:  protocol.NewDecoder(conn),
	}
}

// Dial opens a TCP connection to addr.
func Dial(ctx context.Context, addr string) (*StreamConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", common.ErrTransport, addr, err)
	}
	return NewStreamConn(conn), nil
}

func (c *StreamConn) Send(m protocol.Message) error {
	if c.closed.Load() {
		return closedError()
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if err := c.enc.Encode(m); err != nil {
		if c.closed.Load() {
			return closedError()
		}
		return err
	}
	return nil
}

func (c *StreamConn) Receive() (protocol.Message, error) {
	if c.closed.Load() {
		return protocol.Message{}, closedError()
	}

	m, err := c.dec.Decode()
	if err != nil {
		if c.closed.Load() {
			return protocol.Message{}, closedError()
		}
		return protocol.Message{}, err
	}
	return m, nil
}

func (c *StreamConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *StreamConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func closedError() error {
	return fmt.Errorf("%w: %w", common.ErrTransport, common.ErrConnClosed)
}
