package model

// VisionUpdate holds every target found in one camera frame. Targets keep the
// order the detector emitted them in.
type VisionUpdate struct {
	capturedAt int64
	targets    []TargetInfo
}

// NewVisionUpdate starts a batch for a frame captured at capturedAt
// (monotonic nanoseconds, not wall clock).
func NewVisionUpdate(capturedAt int64) *VisionUpdate {
	return &VisionUpdate{capturedAt: capturedAt}
}

func (u *VisionUpdate) Add(t TargetInfo) {
	u.targets = append(u.targets, t)
}

func (u *VisionUpdate) CapturedAt() int64 {
	return u.capturedAt
}

func (u *VisionUpdate) Len() int {
	return len(u.targets)
}

// Targets returns a copy of the batch contents.
func (u *VisionUpdate) Targets() []TargetInfo {
	return append([]TargetInfo(nil), u.targets...)
}

// Each visits targets in emission order without copying.
func (u *VisionUpdate) Each(fn func(i int, t TargetInfo)) {
	for i, t := range u.targets {
		fn(i, t)
	}
}
