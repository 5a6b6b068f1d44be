package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"vision-tracker-agent/internal/geometry"
	"vision-tracker-agent/internal/model"
)

type StreamMode string

const (
	StreamModeTCP       StreamMode = "tcp"
	StreamModeWebSocket StreamMode = "websocket"
	StreamModeGRPC      StreamMode = "grpc"
	StreamModeNone      StreamMode = "none"
	HardcodedVersion    string     = "V0.3"
)

type Config struct {
	AgentID           string
	Hostname          string
	ProbeListenAddr   string
	HealthInterval    time.Duration
	ShutdownTimeout   time.Duration
	AgentVersion      string
	LogJSON           bool
	LogLevel          string
	CameraProfilePath string

	// camera and geometry
	FrameWidth        int
	FrameHeight       int
	FPS               int
	FocalLengthPixels float64
	HorizontalFOV     float64
	VerticalFOV       float64
	Thresholds        model.Thresholds

	// detector
	DetectorScriptPath string
	MaxTargetsPerFrame int

	// encoding
	NudgeThreshold float64

	// robot link
	StreamMode         StreamMode
	RobotTCPAddr       string
	RobotWSURL         string
	RobotGRPCAddr      string
	GRPCStreamMethod   string
	RobotToken         string
	TLSEnabled         bool
	TLSSkipVerify      bool
	TLSCAPath          string
	TLSCertPath        string
	TLSKeyPath         string
	HeartbeatInterval  time.Duration
	ReconnectInterval  time.Duration
	MaxReconnectJitter time.Duration
	DialTimeout        time.Duration
	WriteTimeout       time.Duration
	PingInterval       time.Duration
	StreamBufferSize   int
}

func Load() (Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	cfg := Config{
		AgentID:           env("VISION_AGENT_ID", hostname),
		Hostname:          hostname,
		ProbeListenAddr:   env("VISION_PROBE_ADDR", "0.0.0.0:5805"),
		HealthInterval:    envDuration("VISION_HEALTH_INTERVAL", 10*time.Second),
		ShutdownTimeout:   envDuration("VISION_SHUTDOWN_TIMEOUT", 5*time.Second),
		AgentVersion:      HardcodedVersion,
		LogJSON:           envBool("VISION_LOG_JSON", true),
		LogLevel:          strings.ToLower(env("VISION_LOG_LEVEL", "info")),
		CameraProfilePath: env("VISION_CAMERA_PROFILE", ""),

		FrameWidth:        envInt("VISION_FRAME_WIDTH", 640),
		FrameHeight:       envInt("VISION_FRAME_HEIGHT", 480),
		FPS:               envInt("VISION_FPS", 30),
		FocalLengthPixels: envFloat("VISION_FOCAL_LENGTH_PX", 0),
		HorizontalFOV:     envFloat("VISION_HFOV_RAD", 1.0),
		VerticalFOV:       envFloat("VISION_VFOV_RAD", 0.75),
		Thresholds:        model.DefaultThresholds(),

		DetectorScriptPath: env("VISION_DETECTOR_SCRIPT", ""),
		MaxTargetsPerFrame: envInt("VISION_MAX_TARGETS", 3),

		NudgeThreshold: envFloat("VISION_NUDGE_THRESHOLD", 1e-7),

		StreamMode:         StreamMode(strings.ToLower(env("VISION_STREAM_MODE", string(StreamModeTCP)))),
		RobotTCPAddr:       env("VISION_ROBOT_TCP_ADDR", "127.0.0.1:8254"),
		RobotWSURL:         env("VISION_ROBOT_WS_URL", "ws://127.0.0.1:8255/vision"),
		RobotGRPCAddr:      env("VISION_ROBOT_GRPC_ADDR", "127.0.0.1:8256"),
		GRPCStreamMethod:   env("VISION_GRPC_STREAM_METHOD", "/vision.v1.VisionService/StreamTargets"),
		RobotToken:         env("VISION_ROBOT_TOKEN", ""),
		TLSEnabled:         envBool("VISION_TLS_ENABLED", false),
		TLSSkipVerify:      envBool("VISION_TLS_SKIP_VERIFY", false),
		TLSCAPath:          env("VISION_TLS_CA_PATH", ""),
		TLSCertPath:        env("VISION_TLS_CERT_PATH", ""),
		TLSKeyPath:         env("VISION_TLS_KEY_PATH", ""),
		HeartbeatInterval:  envDuration("VISION_HEARTBEAT_INTERVAL", 100*time.Millisecond),
		ReconnectInterval:  envDuration("VISION_RECONNECT_INTERVAL", 1*time.Second),
		MaxReconnectJitter: envDuration("VISION_RECONNECT_MAX_JITTER", 250*time.Millisecond),
		DialTimeout:        envDuration("VISION_DIAL_TIMEOUT", 2*time.Second),
		WriteTimeout:       envDuration("VISION_WRITE_TIMEOUT", 500*time.Millisecond),
		PingInterval:       envDuration("VISION_WS_PING_INTERVAL", 5*time.Second),
		StreamBufferSize:   envInt("VISION_STREAM_BUFFER_SIZE", 4),
	}

	if cfg.CameraProfilePath != "" {
		profile, err := LoadCameraProfile(cfg.CameraProfilePath)
		if err != nil {
			return Config{}, err
		}
		profile.Apply(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.AgentID == "" {
		return errors.New("VISION_AGENT_ID is required")
	}
	if strings.TrimSpace(c.AgentVersion) == "" {
		return errors.New("agent version must not be empty")
	}
	if strings.TrimSpace(c.ProbeListenAddr) == "" {
		return errors.New("VISION_PROBE_ADDR is required")
	}
	if c.FPS <= 0 {
		return errors.New("VISION_FPS must be > 0")
	}
	if err := c.Intrinsics().Validate(); err != nil {
		return fmt.Errorf("camera intrinsics: %w", err)
	}
	if err := validateThresholds(c.Thresholds); err != nil {
		return err
	}
	if c.MaxTargetsPerFrame < 0 {
		return errors.New("VISION_MAX_TARGETS must be >= 0")
	}
	if !(c.NudgeThreshold > 0) || c.NudgeThreshold >= 1 || math.IsInf(c.NudgeThreshold, 0) {
		return errors.New("VISION_NUDGE_THRESHOLD must be in (0, 1)")
	}
	if c.HealthInterval <= 0 {
		return errors.New("VISION_HEALTH_INTERVAL must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("VISION_SHUTDOWN_TIMEOUT must be > 0")
	}
	switch c.StreamMode {
	case StreamModeTCP, StreamModeWebSocket, StreamModeGRPC, StreamModeNone:
	default:
		return fmt.Errorf("unsupported stream mode %q", c.StreamMode)
	}
	if c.StreamMode == StreamModeTCP && strings.TrimSpace(c.RobotTCPAddr) == "" {
		return errors.New("VISION_ROBOT_TCP_ADDR is required for tcp mode")
	}
	if c.StreamMode == StreamModeWebSocket && strings.TrimSpace(c.RobotWSURL) == "" {
		return errors.New("VISION_ROBOT_WS_URL is required for websocket mode")
	}
	if c.StreamMode == StreamModeGRPC {
		if strings.TrimSpace(c.RobotGRPCAddr) == "" {
			return errors.New("VISION_ROBOT_GRPC_ADDR is required for grpc mode")
		}
		if strings.TrimSpace(c.GRPCStreamMethod) == "" {
			return errors.New("VISION_GRPC_STREAM_METHOD is required for grpc mode")
		}
	}
	if c.StreamMode != StreamModeNone {
		if c.HeartbeatInterval <= 0 {
			return errors.New("VISION_HEARTBEAT_INTERVAL must be > 0")
		}
		if c.StreamBufferSize <= 0 {
			return errors.New("VISION_STREAM_BUFFER_SIZE must be > 0")
		}
	}
	return nil
}

// Intrinsics derives the focal length from the horizontal field of view when
// none is configured.
func (c Config) Intrinsics() geometry.Intrinsics {
	return geometry.NewIntrinsics(c.FrameWidth, c.FrameHeight, c.FocalLengthPixels, c.HorizontalFOV, c.VerticalFOV)
}

func (c Config) TLSConfig() (*tls.Config, error) {
	if !c.TLSEnabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.TLSSkipVerify}
	if c.TLSCAPath != "" {
		caBytes, err := os.ReadFile(c.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, errors.New("append CA cert failed")
		}
		tlsCfg.RootCAs = pool
	}
	if c.TLSCertPath != "" || c.TLSKeyPath != "" {
		if c.TLSCertPath == "" || c.TLSKeyPath == "" {
			return nil, errors.New("both TLS cert and key are required")
		}
		crt, err := tls.LoadX509KeyPair(c.TLSCertPath, c.TLSKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load mTLS cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{crt}
	}
	return tlsCfg, nil
}

func validateThresholds(th model.Thresholds) error {
	bands := []struct {
		name string
		r    model.Range
	}{
		{"hue", th.Hue},
		{"saturation", th.Saturation},
		{"value", th.Value},
	}
	for _, b := range bands {
		if b.r.Min < 0 || b.r.Max > 255 || b.r.Min > b.r.Max {
			return fmt.Errorf("%s threshold %d-%d must satisfy 0 <= min <= max <= 255", b.name, b.r.Min, b.r.Max)
		}
	}
	return nil
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
