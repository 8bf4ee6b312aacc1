package client

import (
	"context"

	"github.com/dmitrijs2005/trainbook/internal/transport"
)

// Dialer opens a new connection to the server.
type Dialer func(ctx context.Context) (transport.Conn, error)

// TCPDialer dials the size-delimited stream endpoint at addr (host:port).
func TCPDialer(addr string) Dialer {
	return func(ctx context.Context) (transport.Conn, error) {
		return transport.Dial(ctx, addr)
	}
}

// WSDialer dials the WebSocket endpoint served at ws://addr/ws.
func WSDialer(addr string) Dialer {
	return func(ctx context.Context) (transport.Conn, error) {
		return transport.DialWS(ctx, "ws://"+addr+"/ws")
	}
}
