package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"vision-tracker-agent/internal/camera"
	"vision-tracker-agent/internal/codec"
	"vision-tracker-agent/internal/config"
	"vision-tracker-agent/internal/detector"
	"vision-tracker-agent/internal/pipeline"
	"vision-tracker-agent/internal/stream"
	"vision-tracker-agent/internal/system"
)

type Agent struct {
	cfg        config.Config
	logger     *slog.Logger
	sessionID  string
	source     *camera.TickerSource
	processor  *pipeline.Processor
	scheduler  *pipeline.Scheduler
	dispatcher *stream.Dispatcher
	health     *HealthStatus
	host       *system.HostSampler
	reloads    chan os.Signal
}

func New(cfg config.Config, logger *slog.Logger) (*Agent, error) {
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("tls config: %w", err)
	}

	sessionID := uuid.NewString()
	encoder := codec.NewEncoder(cfg.NudgeThreshold, logger)
	health := NewHealthStatus()

	transport, err := stream.NewTransportFromConfig(cfg, tlsCfg, sessionID, logger)
	if err != nil {
		return nil, fmt.Errorf("robot transport: %w", err)
	}
	var dispatcher *stream.Dispatcher
	if transport != nil {
		opts := stream.DispatcherOptionsFromConfig(cfg)
		opts.OnConnState = health.SetStreamConnected
		dispatcher = stream.NewDispatcher(transport, encoder, opts, logger)
	}

	det, err := buildDetector(cfg)
	if err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}

	clock := camera.NewMonotonicClock()
	processor := pipeline.NewProcessor(det, pipeline.Settings{
		Intrinsics: cfg.Intrinsics(),
		Thresholds: cfg.Thresholds,
	}, clock, logger)
	if dispatcher != nil {
		processor.SetChannel(dispatcher)
	}

	source := camera.NewTickerSource(cfg.FrameWidth, cfg.FrameHeight, cfg.FPS, 1, clock, logger)
	scheduler := pipeline.NewScheduler(logger, source, processor, health)

	return &Agent{
		cfg:        cfg,
		logger:     logger.With("session_id", sessionID),
		sessionID:  sessionID,
		source:     source,
		processor:  processor,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		health:     health,
		host:       system.NewHostSampler(),
	}, nil
}

func buildDetector(cfg config.Config) (detector.Detector, error) {
	var det detector.Detector
	if cfg.DetectorScriptPath != "" {
		scripted, err := detector.LoadScript(cfg.DetectorScriptPath)
		if err != nil {
			return nil, err
		}
		det = scripted
	} else {
		det = detector.NewSynthetic(cfg.MaxTargetsPerFrame)
	}
	return detector.NewBounded(det, cfg.MaxTargetsPerFrame), nil
}

func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting vision-tracker-agent",
		"agent_id", a.cfg.AgentID,
		"stream_mode", a.cfg.StreamMode,
		"resolution", fmt.Sprintf("%dx%d", a.cfg.FrameWidth, a.cfg.FrameHeight),
		"fps", a.cfg.FPS,
	)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	a.reloads = make(chan os.Signal, 1)
	signal.Notify(a.reloads, syscall.SIGHUP)
	defer signal.Stop(a.reloads)

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.run(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", a.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(a.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
		case sig2 := <-sigCh:
			a.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			a.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", a.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	a.shutdown()

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	a.logger.Info("vision-tracker-agent stopped")
	return nil
}

func BuildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, hOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, hOpts))
}
