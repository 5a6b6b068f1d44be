package agent

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"vision-tracker-agent/internal/config"
	"vision-tracker-agent/internal/pipeline"
)

func (a *Agent) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})
	if a.dispatcher != nil {
		g.Go(func() error {
			return a.dispatcher.Run(gctx)
		})
	} else {
		a.logger.Warn("robot link disabled, targets are computed but not sent")
	}
	g.Go(func() error {
		return a.runHealthLoop(gctx)
	})
	g.Go(func() error {
		return a.runProbeListener(gctx)
	})
	g.Go(func() error {
		return a.runReloadLoop(gctx, a.reloads)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *Agent) runHealthLoop(ctx context.Context) error {
	t := time.NewTicker(a.cfg.HealthInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := a.host.Sample(); err != nil {
				a.logger.Debug("host sample failed", "error", err)
			}
			a.logger.Info("agent health", "snapshot", a.snapshot())
		}
	}
}

// runReloadLoop re-reads the camera profile on every signal and swaps the
// processor settings. Resolution and FPS changes need a restart.
func (a *Agent) runReloadLoop(ctx context.Context, reloads <-chan os.Signal) error {
	current := a.cfg
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-reloads:
			if !ok {
				return nil
			}
			next, err := a.reload(current)
			if err != nil {
				a.logger.Error("camera profile reload failed, keeping previous settings", "error", err)
				continue
			}
			current = next
		}
	}
}

func (a *Agent) reload(current config.Config) (config.Config, error) {
	next, err := current.Reload()
	if err != nil {
		return current, err
	}
	if next.FrameWidth != current.FrameWidth || next.FrameHeight != current.FrameHeight || next.FPS != current.FPS {
		a.logger.Warn("camera resolution or fps changed, restart to apply",
			"frame_width", next.FrameWidth, "frame_height", next.FrameHeight, "fps", next.FPS)
		next.FrameWidth, next.FrameHeight, next.FPS = current.FrameWidth, current.FrameHeight, current.FPS
	}
	a.processor.SetSettings(pipeline.Settings{
		Intrinsics: next.Intrinsics(),
		Thresholds: next.Thresholds,
	})
	a.logger.Info("camera profile reloaded", "path", next.CameraProfilePath)
	return next, nil
}

func (a *Agent) snapshot() map[string]any {
	out := a.health.Snapshot()
	produced, dropped := a.source.Stats()
	out["frames_produced"] = produced
	out["frames_skipped"] = dropped
	out["host"] = a.host.Last()
	if a.dispatcher != nil {
		out["link"] = a.dispatcher.Stats()
	}
	return out
}

func (a *Agent) shutdown() {
	a.processor.SetChannel(nil)
	a.health.SetStreamConnected(false)
}
