package detector

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"vision-tracker-agent/internal/camera"
	"vision-tracker-agent/internal/model"
)

// Script is a recorded detector session:
//
//	frames:
//	  - targets:
//	      - {centroid_x: 320, centroid_y: 240, width: 40, height: 30}
//	  - targets: []
type Script struct {
	Frames []ScriptFrame `yaml:"frames"`
}

type ScriptFrame struct {
	Targets []model.RawTarget `yaml:"targets"`
}

// Scripted replays a Script, one entry per frame, wrapping at the end.
type Scripted struct {
	script Script
}

func NewScripted(script Script) (*Scripted, error) {
	if len(script.Frames) == 0 {
		return nil, errors.New("detector script has no frames")
	}
	return &Scripted{script: script}, nil
}

func LoadScript(path string) (*Scripted, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read detector script: %w", err)
	}
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parse detector script: %w", err)
	}
	return NewScripted(script)
}

func (s *Scripted) Detect(ctx context.Context, frame camera.Frame, _ model.Thresholds) (model.Detection, error) {
	if err := ctx.Err(); err != nil {
		return model.Detection{}, err
	}
	entry := s.script.Frames[frame.Seq%uint64(len(s.script.Frames))]
	return model.Detection{Targets: append([]model.RawTarget(nil), entry.Targets...)}, nil
}
