package camera

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// TickerSource emits empty frames at a fixed rate. It stands in for the
// camera driver and never blocks on a slow consumer: a frame the consumer is
// not ready for is dropped.
type TickerSource struct {
	logger   *slog.Logger
	clock    Clock
	width    int
	height   int
	interval time.Duration
	buffer   int

	produced atomic.Uint64
	dropped  atomic.Uint64
}

func NewTickerSource(width, height, fps, buffer int, clock Clock, logger *slog.Logger) *TickerSource {
	if fps <= 0 {
		fps = 30
	}
	if buffer <= 0 {
		buffer = 1
	}
	if clock == nil {
		clock = NewMonotonicClock()
	}
	return &TickerSource{
		logger:   logger,
		clock:    clock,
		width:    width,
		height:   height,
		interval: time.Second / time.Duration(fps),
		buffer:   buffer,
	}
}

func (s *TickerSource) Frames(ctx context.Context) <-chan Frame {
	out := make(chan Frame, s.buffer)
	go s.run(ctx, out)
	return out
}

func (s *TickerSource) run(ctx context.Context, out chan<- Frame) {
	defer close(out)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("camera source stopped", "produced", s.produced.Load(), "dropped", s.dropped.Load())
			return
		case <-ticker.C:
			frame := Frame{Seq: seq, CapturedAt: s.clock.Now(), Width: s.width, Height: s.height}
			seq++
			select {
			case out <- frame:
				s.produced.Add(1)
			default:
				s.dropped.Add(1)
				s.logger.Debug("camera frame dropped, processor busy", "seq", frame.Seq)
			}
		}
	}
}

// Stats returns (produced, dropped).
func (s *TickerSource) Stats() (uint64, uint64) {
	return s.produced.Load(), s.dropped.Load()
}
