package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"vision-tracker-agent/internal/camera"
	"vision-tracker-agent/internal/detector"
	"vision-tracker-agent/internal/geometry"
	"vision-tracker-agent/internal/model"
	"vision-tracker-agent/internal/stream"
)

// Settings are the camera parameters applied to a frame. They are replaced
// wholesale, never edited in place.
type Settings struct {
	Intrinsics geometry.Intrinsics
	Thresholds model.Thresholds
}

// FrameResult summarizes what one frame produced.
type FrameResult struct {
	Seq        uint64
	CapturedAt int64
	SentAt     int64
	Targets    int
	Rejected   int
	Sent       bool
}

type channelRef struct {
	ch stream.Channel
}

// Processor turns frames into target messages. ProcessFrame is meant to be
// called from a single goroutine; SetChannel and SetSettings may be called
// from any goroutine at any time.
type Processor struct {
	logger   *slog.Logger
	detector detector.Detector
	clock    camera.Clock

	settings atomic.Pointer[Settings]
	channel  atomic.Pointer[channelRef]
}

func NewProcessor(det detector.Detector, settings Settings, clock camera.Clock, logger *slog.Logger) *Processor {
	if clock == nil {
		clock = camera.NewMonotonicClock()
	}
	p := &Processor{logger: logger, detector: det, clock: clock}
	p.SetSettings(settings)
	return p
}

// SetChannel installs the robot link. nil removes it; frames are then still
// processed but nothing is sent.
func (p *Processor) SetChannel(ch stream.Channel) {
	if ch == nil {
		p.channel.Store(nil)
		return
	}
	p.channel.Store(&channelRef{ch: ch})
}

func (p *Processor) Channel() stream.Channel {
	if ref := p.channel.Load(); ref != nil {
		return ref.ch
	}
	return nil
}

func (p *Processor) SetSettings(s Settings) {
	p.settings.Store(&s)
}

func (p *Processor) Settings() Settings {
	return *p.settings.Load()
}

// ProcessFrame detects, converts and hands off one frame. Malformed targets
// are dropped individually. The only error is a detector failure, in which
// case nothing is sent for the frame.
func (p *Processor) ProcessFrame(ctx context.Context, frame camera.Frame) (FrameResult, error) {
	settings := p.settings.Load()
	res := FrameResult{Seq: frame.Seq, CapturedAt: frame.CapturedAt}

	det, err := p.detector.Detect(ctx, frame, settings.Thresholds)
	if err != nil {
		return res, fmt.Errorf("detect frame %d: %w", frame.Seq, err)
	}

	update := model.NewVisionUpdate(frame.CapturedAt)
	for i, raw := range det.Targets {
		if !raw.Finite() {
			res.Rejected++
			p.logger.Warn("dropping malformed target", "seq", frame.Seq, "index", i)
			continue
		}
		target := settings.Intrinsics.Transform(raw)
		if !target.Finite() {
			res.Rejected++
			p.logger.Warn("dropping target with non-finite angles", "seq", frame.Seq, "index", i)
			continue
		}
		p.logger.Debug("target",
			"seq", frame.Seq,
			"h_angle", target.HAngle(),
			"v_angle", target.VAngle(),
			"h_width", target.HWidth(),
			"v_width", target.VWidth(),
		)
		update.Add(target)
	}
	res.Targets = update.Len()

	ch := p.Channel()
	if ch == nil {
		return res, nil
	}
	res.SentAt = p.clock.Now()
	ch.Send(model.TargetsMessage(update, res.SentAt))
	res.Sent = true
	return res, nil
}
