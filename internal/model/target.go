package model

import "math"

// TargetInfo is one detected target in the camera's angular frame.
//
// Coordinate frame:
//   - +x is out the camera's optical axis
//   - +y is to the left of the image
//   - +z is to the top of the image
//
// HAngle is measured from the x-axis in the xy plane (pi/2 at the y-axis).
// VAngle is measured from the x-axis in the xz plane (pi/2 at the z-axis).
// All values are radians.
type TargetInfo struct {
	hAngle float64
	vAngle float64
	hWidth float64
	vWidth float64
}

func NewTargetInfo(hAngle, vAngle, hWidth, vWidth float64) TargetInfo {
	return TargetInfo{hAngle: hAngle, vAngle: vAngle, hWidth: hWidth, vWidth: vWidth}
}

func (t TargetInfo) HAngle() float64 { return t.hAngle }
func (t TargetInfo) VAngle() float64 { return t.vAngle }
func (t TargetInfo) HWidth() float64 { return t.hWidth }
func (t TargetInfo) VWidth() float64 { return t.vWidth }

func (t TargetInfo) Finite() bool {
	return finite(t.hAngle) && finite(t.vAngle) && finite(t.hWidth) && finite(t.vWidth)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
