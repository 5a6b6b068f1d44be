package geometry

import (
	"errors"
	"fmt"
	"math"

	"vision-tracker-agent/internal/model"
)

// Intrinsics describe the camera image the detector works on.
type Intrinsics struct {
	FrameWidth        int
	FrameHeight       int
	FocalLengthPixels float64
	HorizontalFOV     float64 // radians
	VerticalFOV       float64 // radians
}

// NewIntrinsics fills in the focal length from the horizontal field of view
// when focalLengthPixels is not positive.
func NewIntrinsics(width, height int, focalLengthPixels, hfov, vfov float64) Intrinsics {
	in := Intrinsics{
		FrameWidth:        width,
		FrameHeight:       height,
		FocalLengthPixels: focalLengthPixels,
		HorizontalFOV:     hfov,
		VerticalFOV:       vfov,
	}
	if in.FocalLengthPixels <= 0 {
		in.FocalLengthPixels = FocalLengthFromFOV(width, hfov)
	}
	return in
}

// FocalLengthFromFOV returns the pinhole focal length, in pixels, of a lens
// spanning hfov radians across frameWidth pixels.
func FocalLengthFromFOV(frameWidth int, hfov float64) float64 {
	if frameWidth <= 0 || hfov <= 0 || hfov >= math.Pi {
		return 0
	}
	return (float64(frameWidth) / 2) / math.Tan(hfov/2)
}

func (in Intrinsics) Validate() error {
	if in.FrameWidth <= 0 || in.FrameHeight <= 0 {
		return fmt.Errorf("frame size must be > 0, got %dx%d", in.FrameWidth, in.FrameHeight)
	}
	if !(in.FocalLengthPixels > 0) || math.IsInf(in.FocalLengthPixels, 0) {
		return errors.New("focal length must be a positive number of pixels")
	}
	if !(in.HorizontalFOV > 0) || in.HorizontalFOV >= math.Pi {
		return fmt.Errorf("horizontal field of view %v out of range (0, pi)", in.HorizontalFOV)
	}
	if !(in.VerticalFOV > 0) || in.VerticalFOV >= math.Pi {
		return fmt.Errorf("vertical field of view %v out of range (0, pi)", in.VerticalFOV)
	}
	return nil
}

// CenterCol is the optical center column. For even widths it sits between
// the two middle pixels.
func (in Intrinsics) CenterCol() float64 {
	return float64(in.FrameWidth)/2 - 0.5
}

func (in Intrinsics) CenterRow() float64 {
	return float64(in.FrameHeight)/2 - 0.5
}

// Transform converts one raw detector target into its angular descriptor.
// Pixel coordinates grow right and down, so the centroid offsets are negated
// to make positive angles point left and up.
//
// The caller must pass intrinsics that satisfy Validate; Transform does not
// check them.
func (in Intrinsics) Transform(t model.RawTarget) model.TargetInfo {
	hAngle := math.Atan2(-(t.CentroidX - in.CenterCol()), in.FocalLengthPixels)
	vAngle := math.Atan2(-(t.CentroidY - in.CenterRow()), in.FocalLengthPixels)

	hWidth := t.Width / float64(in.FrameWidth) * in.HorizontalFOV
	vWidth := t.Height / float64(in.FrameHeight) * in.VerticalFOV

	return model.NewTargetInfo(hAngle, vAngle, hWidth, vWidth)
}
