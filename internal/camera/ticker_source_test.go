package camera

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTickerSourceEmitsOrderedFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := NewTickerSource(640, 480, 200, 8, nil, discardLogger())
	frames := src.Frames(ctx)

	var got []Frame
	for len(got) < 3 {
		select {
		case f := <-frames:
			got = append(got, f)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for frames")
		}
	}

	for i, f := range got {
		assert.Equal(t, 640, f.Width)
		assert.Equal(t, 480, f.Height)
		if i > 0 {
			assert.Greater(t, f.Seq, got[i-1].Seq)
			assert.GreaterOrEqual(t, f.CapturedAt, got[i-1].CapturedAt)
		}
	}
}

func TestTickerSourceDropsWhenConsumerStalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := NewTickerSource(320, 240, 500, 1, nil, discardLogger())
	ch := src.Frames(ctx)

	require.Eventually(t, func() bool {
		_, dropped := src.Stats()
		return dropped > 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	for range ch {
	}
	produced, _ := src.Stats()
	assert.GreaterOrEqual(t, produced, uint64(1))
}

func TestMonotonicClockAdvances(t *testing.T) {
	c := NewMonotonicClock()
	a := c.Now()
	time.Sleep(time.Millisecond)
	assert.Greater(t, c.Now(), a)
}
