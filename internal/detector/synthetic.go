package detector

import (
	"context"
	"math"

	"vision-tracker-agent/internal/camera"
	"vision-tracker-agent/internal/model"
)

// Synthetic reports targets sweeping the frame on fixed Lissajous paths. The
// output depends only on the frame, so runs are reproducible.
type Synthetic struct {
	count  int
	period float64 // frames per horizontal sweep
}

func NewSynthetic(count int) *Synthetic {
	if count < 0 {
		count = 0
	}
	return &Synthetic{count: count, period: 240}
}

func (s *Synthetic) Detect(_ context.Context, frame camera.Frame, _ model.Thresholds) (model.Detection, error) {
	w, h := float64(frame.Width), float64(frame.Height)
	targets := make([]model.RawTarget, 0, s.count)
	for i := 0; i < s.count; i++ {
		phase := 2*math.Pi*float64(frame.Seq)/s.period + float64(i)*math.Pi/3
		targets = append(targets, model.RawTarget{
			CentroidX: w/2 + 0.35*w*math.Sin(phase),
			CentroidY: h/2 + 0.25*h*math.Sin(2*phase),
			Width:     0.1 * w,
			Height:    0.06 * h,
		})
	}
	return model.Detection{Targets: targets}, nil
}
