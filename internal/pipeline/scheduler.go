package pipeline

import (
	"context"
	"log/slog"
	"time"

	"vision-tracker-agent/internal/camera"
)

const fpsWindow = 30

// FrameRecorder observes every processed frame.
type FrameRecorder interface {
	RecordFrame(res FrameResult, err error)
}

// Scheduler feeds frames from a source through the processor on one
// goroutine, so messages leave in frame order.
type Scheduler struct {
	logger    *slog.Logger
	source    camera.Source
	processor *Processor
	recorder  FrameRecorder
}

func NewScheduler(logger *slog.Logger, source camera.Source, processor *Processor, recorder FrameRecorder) *Scheduler {
	return &Scheduler{logger: logger, source: source, processor: processor, recorder: recorder}
}

func (s *Scheduler) Run(ctx context.Context) error {
	frames := s.source.Frames(ctx)

	count := 0
	windowStart := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			res, err := s.processor.ProcessFrame(ctx, frame)
			if err != nil {
				s.logger.Warn("frame processing failed", "seq", frame.Seq, "error", err)
			}
			if s.recorder != nil {
				s.recorder.RecordFrame(res, err)
			}

			count++
			if count >= fpsWindow {
				elapsed := time.Since(windowStart)
				if elapsed > 0 {
					s.logger.Info("frame rate", "fps", int(float64(count)/elapsed.Seconds()))
				}
				count = 0
				windowStart = time.Now()
			}
		}
	}
}
