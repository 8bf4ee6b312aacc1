// Package transport provides the bidirectional message channel used by both
// sides of the protocol. A Conn sends and receives whole protocol messages
// over an underlying stream and owns that stream's lifetime.
package transport

import (
	"github.com/dmitrijs2005/trainbook/internal/protocol"
)

// Conn is a blocking, message-oriented connection.
//
// Send and Receive block until the message is flushed or fully read. Every
// failure wraps common.ErrTransport, except bytes that do not form a message,
// which wrap common.ErrDecode. Close releases the stream exactly once; it may
// be called any number of times and concurrently with a blocked Receive,
// which then fails with a transport error.
type Conn interface {
	Send(m protocol.Message) error
	Receive() (protocol.Message, error)
	Close() error
	RemoteAddr() string
}
