package stream

import (
	"context"
	"errors"

	"vision-tracker-agent/internal/model"
)

// Channel accepts messages for the robot. Send must return immediately; any
// I/O happens on the channel's own goroutines.
type Channel interface {
	Send(msg model.Message)
}

// Transport opens connections to the robot.
type Transport interface {
	Name() string
	Dial(ctx context.Context) (Conn, error)
}

// Conn carries whole frames. One goroutine may write while another reads.
type Conn interface {
	WriteFrame(ctx context.Context, frame []byte) error
	ReadFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// ErrClosed is returned by a Conn used after Close.
var ErrClosed = errors.New("stream: connection closed")
