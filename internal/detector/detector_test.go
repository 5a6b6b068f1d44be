package detector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vision-tracker-agent/internal/camera"
	"vision-tracker-agent/internal/model"
)

type stubDetector struct {
	det model.Detection
	err error
}

func (s stubDetector) Detect(context.Context, camera.Frame, model.Thresholds) (model.Detection, error) {
	return s.det, s.err
}

func frame(seq uint64) camera.Frame {
	return camera.Frame{Seq: seq, Width: 640, Height: 480}
}

func TestBoundedTruncates(t *testing.T) {
	inner := stubDetector{det: model.Detection{Targets: make([]model.RawTarget, 5)}}

	det, err := NewBounded(inner, 3).Detect(context.Background(), frame(0), model.DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, 3, det.NumTargets())

	unbounded := NewBounded(inner, 0)
	assert.Equal(t, inner, unbounded)
}

func TestBoundedPassesErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewBounded(stubDetector{err: boom}, 3).Detect(context.Background(), frame(0), model.DefaultThresholds())
	assert.ErrorIs(t, err, boom)
}

func TestSyntheticIsDeterministicAndInFrame(t *testing.T) {
	s := NewSynthetic(2)
	for seq := uint64(0); seq < 500; seq += 7 {
		a, err := s.Detect(context.Background(), frame(seq), model.Thresholds{})
		require.NoError(t, err)
		b, _ := s.Detect(context.Background(), frame(seq), model.Thresholds{})
		assert.Equal(t, a, b)

		require.Equal(t, 2, a.NumTargets())
		for _, tgt := range a.Targets {
			assert.True(t, tgt.Finite())
			assert.GreaterOrEqual(t, tgt.CentroidX, 0.0)
			assert.LessOrEqual(t, tgt.CentroidX, 640.0)
			assert.GreaterOrEqual(t, tgt.CentroidY, 0.0)
			assert.LessOrEqual(t, tgt.CentroidY, 480.0)
		}
	}

	none, err := NewSynthetic(0).Detect(context.Background(), frame(1), model.Thresholds{})
	require.NoError(t, err)
	assert.Zero(t, none.NumTargets())
}

func TestLoadScriptReplaysAndWraps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
frames:
  - targets:
      - {centroid_x: 320, centroid_y: 240, width: 40, height: 30}
      - {centroid_x: 10, centroid_y: 20, width: 5, height: 6}
  - targets: []
`), 0o644))

	s, err := LoadScript(path)
	require.NoError(t, err)

	first, err := s.Detect(context.Background(), frame(0), model.Thresholds{})
	require.NoError(t, err)
	require.Equal(t, 2, first.NumTargets())
	assert.Equal(t, model.RawTarget{CentroidX: 320, CentroidY: 240, Width: 40, Height: 30}, first.Targets[0])

	second, err := s.Detect(context.Background(), frame(1), model.Thresholds{})
	require.NoError(t, err)
	assert.Zero(t, second.NumTargets())

	wrapped, err := s.Detect(context.Background(), frame(2), model.Thresholds{})
	require.NoError(t, err)
	assert.Equal(t, first, wrapped)

	// callers may not reach into the script through the result
	wrapped.Targets[0].CentroidX = -1
	again, _ := s.Detect(context.Background(), frame(0), model.Thresholds{})
	assert.Equal(t, 320.0, again.Targets[0].CentroidX)
}

func TestLoadScriptErrors(t *testing.T) {
	_, err := LoadScript(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read detector script")

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("frames: []\n"), 0o644))
	_, err = LoadScript(path)
	assert.ErrorContains(t, err, "no frames")
}

func TestScriptedHonoursCancellation(t *testing.T) {
	s, err := NewScripted(Script{Frames: make([]ScriptFrame, 1)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Detect(ctx, frame(0), model.Thresholds{})
	assert.ErrorIs(t, err, context.Canceled)
}
