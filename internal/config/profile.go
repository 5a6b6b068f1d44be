package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"vision-tracker-agent/internal/model"
)

// CameraProfile is the on-disk camera description, e.g.
//
//	camera:
//	  resolution: {width: 640, height: 480}
//	  fps: 30
//	  horizontal_fov_rad: 1.0
//	  vertical_fov_rad: 0.75
//	thresholds:
//	  value: {min: 130, max: 255}
//
// Zero fields keep the value already configured.
type CameraProfile struct {
	Camera struct {
		Resolution struct {
			Width  int `yaml:"width"`
			Height int `yaml:"height"`
		} `yaml:"resolution"`
		FPS               int     `yaml:"fps"`
		FocalLengthPixels float64 `yaml:"focal_length_px"`
		HorizontalFOV     float64 `yaml:"horizontal_fov_rad"`
		VerticalFOV       float64 `yaml:"vertical_fov_rad"`
	} `yaml:"camera"`
	Thresholds struct {
		Hue        *model.Range `yaml:"hue"`
		Saturation *model.Range `yaml:"saturation"`
		Value      *model.Range `yaml:"value"`
	} `yaml:"thresholds"`
}

func LoadCameraProfile(path string) (*CameraProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read camera profile: %w", err)
	}
	var p CameraProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse camera profile: %w", err)
	}
	return &p, nil
}

func (p *CameraProfile) Apply(cfg *Config) {
	cam := p.Camera
	if cam.Resolution.Width > 0 {
		cfg.FrameWidth = cam.Resolution.Width
	}
	if cam.Resolution.Height > 0 {
		cfg.FrameHeight = cam.Resolution.Height
	}
	if cam.FPS > 0 {
		cfg.FPS = cam.FPS
	}
	if cam.FocalLengthPixels > 0 {
		cfg.FocalLengthPixels = cam.FocalLengthPixels
	}
	if cam.HorizontalFOV > 0 {
		cfg.HorizontalFOV = cam.HorizontalFOV
	}
	if cam.VerticalFOV > 0 {
		cfg.VerticalFOV = cam.VerticalFOV
	}
	if r := p.Thresholds.Hue; r != nil {
		cfg.Thresholds.Hue = *r
	}
	if r := p.Thresholds.Saturation; r != nil {
		cfg.Thresholds.Saturation = *r
	}
	if r := p.Thresholds.Value; r != nil {
		cfg.Thresholds.Value = *r
	}
}

// Reload re-reads the camera profile on top of c. c itself is not modified.
func (c Config) Reload() (Config, error) {
	if c.CameraProfilePath == "" {
		return c, nil
	}
	p, err := LoadCameraProfile(c.CameraProfilePath)
	if err != nil {
		return c, err
	}
	next := c
	p.Apply(&next)
	if err := next.Validate(); err != nil {
		return c, fmt.Errorf("reloaded camera profile: %w", err)
	}
	return next, nil
}
