package model

// RawTarget is the per-target pixel geometry reported by the detector.
type RawTarget struct {
	CentroidX float64 `json:"centroid_x" yaml:"centroid_x"`
	CentroidY float64 `json:"centroid_y" yaml:"centroid_y"`
	Width     float64 `json:"width" yaml:"width"`
	Height    float64 `json:"height" yaml:"height"`
}

func (r RawTarget) Finite() bool {
	return finite(r.CentroidX) && finite(r.CentroidY) && finite(r.Width) && finite(r.Height)
}

// Detection is the fixed-shape detector result for one frame. The target
// count is len(Targets).
type Detection struct {
	Targets []RawTarget
}

func (d Detection) NumTargets() int {
	return len(d.Targets)
}

// Range is an inclusive 0-255 threshold band.
type Range struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// Thresholds are the HSV bands handed to the detector with every frame.
type Thresholds struct {
	Hue        Range `yaml:"hue" json:"hue"`
	Saturation Range `yaml:"saturation" json:"saturation"`
	Value      Range `yaml:"value" json:"value"`
}

// FullRange accepts every pixel.
func FullRange() Range {
	return Range{Min: 0, Max: 255}
}

func DefaultThresholds() Thresholds {
	return Thresholds{Hue: FullRange(), Saturation: FullRange(), Value: FullRange()}
}
