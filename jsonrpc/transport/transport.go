// Package transport defines the uniform send/receive contract every physical
// channel implements. Transports never retry: connection-level problems surface
// once as a Failure and the session layer decides what to do about it.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/toolproto/mcpc/jsonrpc"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Failure marks a connection-level error: refused connection, abrupt stream
// close, unreadable frame source. It is the reconnect trigger for the session.
type Failure struct {
	Err error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("transport failure: %v", f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// NewFailure wraps err as a transport failure, keeping an existing Failure as is.
func NewFailure(err error) error {
	if err == nil {
		return nil
	}
	var failure *Failure
	if errors.As(err, &failure) {
		return err
	}
	return &Failure{Err: err}
}

// IsFailure reports whether err is connection-level.
func IsFailure(err error) bool {
	var failure *Failure
	return errors.As(err, &failure)
}

// Transport abstracts one physical channel.
//
// Messages yields inbound messages (replies and notifications) in arrival
// order and is closed on terminal failure or Close; after it closes, Err
// reports the cause (nil for a clean Close). Implementations do not reconnect.
type Transport interface {
	// Open establishes the channel. It must be called once, before Send.
	Open(ctx context.Context) error

	// Send transmits one message. A returned Failure means the channel is unusable.
	Send(ctx context.Context, msg *jsonrpc.Message) error

	// Messages returns the ordered inbound stream.
	Messages() <-chan *jsonrpc.Message

	// Err returns the terminal failure after Messages closes, nil on clean close.
	Err() error

	// Close tears the channel down and releases resources.
	Close() error
}
