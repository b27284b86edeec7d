// Package transport abstracts the bidirectional connection the chat
// protocol rides on and provides its WebSocket implementation.
package transport

import "context"

// Conn is a bidirectional text-frame connection. The protocol is pure
// text; binary frames are not part of the contract.
type Conn interface {
	// Read blocks for the next text frame. Returns an error once the
	// connection is closed.
	Read(ctx context.Context) (string, error)

	// Write sends a single text frame. The write is a synchronous enqueue,
	// not a delivery confirmation.
	Write(ctx context.Context, text string) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
