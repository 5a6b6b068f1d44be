package stream

import (
	"crypto/tls"
	"fmt"
	"log/slog"

	"vision-tracker-agent/internal/config"
)

const (
	sessionHeader      = "X-Vision-Session"
	sessionMetadataKey = "x-vision-session"
)

// NewTransportFromConfig returns nil without error in none mode: the agent
// then runs with no channel at all.
func NewTransportFromConfig(cfg config.Config, tlsCfg *tls.Config, sessionID string, logger *slog.Logger) (Transport, error) {
	switch cfg.StreamMode {
	case config.StreamModeTCP:
		return NewTCPTransport(cfg.RobotTCPAddr, tlsCfg, cfg.DialTimeout), nil
	case config.StreamModeWebSocket:
		return NewWebSocketTransport(cfg.RobotWSURL, cfg.RobotToken, sessionID, tlsCfg, cfg.DialTimeout, cfg.PingInterval, logger), nil
	case config.StreamModeGRPC:
		return NewGRPCTransport(cfg.RobotGRPCAddr, cfg.GRPCStreamMethod, cfg.RobotToken, sessionID, tlsCfg, cfg.DialTimeout, logger), nil
	case config.StreamModeNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported stream mode %q", cfg.StreamMode)
	}
}

func DispatcherOptionsFromConfig(cfg config.Config) DispatcherOptions {
	return DispatcherOptions{
		BufferSize:        cfg.StreamBufferSize,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ReconnectInterval: cfg.ReconnectInterval,
		MaxJitter:         cfg.MaxReconnectJitter,
		WriteTimeout:      cfg.WriteTimeout,
	}
}
