package camera

import (
	"context"
	"time"
)

// Frame is one captured image. Pixels may be nil for sources that only drive
// timing.
type Frame struct {
	Seq        uint64
	CapturedAt int64 // monotonic nanoseconds, see Clock
	Width      int
	Height     int
	Pixels     []byte
}

// Source produces frames until ctx is cancelled; the channel is closed then.
type Source interface {
	Frames(ctx context.Context) <-chan Frame
}

// Clock reads a monotonic device clock in nanoseconds.
type Clock interface {
	Now() int64
}

type monotonicClock struct {
	start time.Time
}

// NewMonotonicClock counts from the moment it is created. time.Since uses the
// monotonic reading, so wall clock steps do not leak in.
func NewMonotonicClock() Clock {
	return monotonicClock{start: time.Now()}
}

func (c monotonicClock) Now() int64 {
	return int64(time.Since(c.start))
}
