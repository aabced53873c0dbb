package core

import "errors"

// Frame is an encoded wire event, ready to hand to a transport.
type Frame []byte

// ConnID identifies one live transport session. Assigned by the
// adapter at handshake time, never reused.
type ConnID string

var ErrBackpressure = errors.New("backpressure")

// Conn abstracts a transport endpoint for fan-out.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	// TrySend queues a frame without blocking. Returns ErrBackpressure
	// when the peer cannot keep up.
	TrySend(Frame) error
	Close()
}
