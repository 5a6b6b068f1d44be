package detector

import (
	"context"

	"vision-tracker-agent/internal/camera"
	"vision-tracker-agent/internal/model"
)

// Detector finds targets in a frame. Implementations are opaque to the rest
// of the agent; the native image processor, a replay or a simulation all sit
// behind this interface.
type Detector interface {
	Detect(ctx context.Context, frame camera.Frame, th model.Thresholds) (model.Detection, error)
}

// Bounded caps the number of targets a detector may report per frame. The
// native processor wrote at most three targets back.
type Bounded struct {
	inner Detector
	max   int
}

// NewBounded returns d unchanged when max is not positive.
func NewBounded(d Detector, max int) Detector {
	if max <= 0 {
		return d
	}
	return &Bounded{inner: d, max: max}
}

func (b *Bounded) Detect(ctx context.Context, frame camera.Frame, th model.Thresholds) (model.Detection, error) {
	det, err := b.inner.Detect(ctx, frame, th)
	if err != nil {
		return model.Detection{}, err
	}
	if len(det.Targets) > b.max {
		det.Targets = det.Targets[:b.max]
	}
	return det, nil
}
