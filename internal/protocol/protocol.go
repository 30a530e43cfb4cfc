// internal/protocol/protocol.go
package protocol

import (
	"context"
	"errors"

	"emg-service/internal/model"
)

var (
	// ErrClosed is returned by Connect once the transport has been closed
	ErrClosed = errors.New("transport closed")

	// ErrNotConnected is returned by ReadLine before a successful Connect
	ErrNotConnected = errors.New("transport not connected")
)

// Transport is a line-oriented byte stream to the glove.
//
// Connect fails with *ConnectError, or with an error wrapping
// context.Canceled when ctx is cancelled. ReadLine returns io.EOF at end of
// stream. Close is idempotent and may run concurrently with ReadLine, which
// it unblocks; the pending read then returns io.EOF.
type Transport interface {
	Connect(ctx context.Context) error
	ReadLine() (string, error)
	Close() error

	GetProtocolType() model.ConnectionType
	Target() string
}
