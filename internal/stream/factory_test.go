package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vision-tracker-agent/internal/config"
)

func TestNewTransportFromConfig(t *testing.T) {
	cfg := config.Config{
		RobotTCPAddr:     "127.0.0.1:8254",
		RobotWSURL:       "ws://127.0.0.1:8255/vision",
		RobotGRPCAddr:    "127.0.0.1:8256",
		GRPCStreamMethod: "/vision.v1.VisionService/StreamTargets",
	}

	tests := []struct {
		mode config.StreamMode
		name string
	}{
		{config.StreamModeTCP, "tcp"},
		{config.StreamModeWebSocket, "websocket"},
		{config.StreamModeGRPC, "grpc"},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			c := cfg
			c.StreamMode = tt.mode
			tr, err := NewTransportFromConfig(c, nil, "session", discardLogger())
			require.NoError(t, err)
			assert.Equal(t, tt.name, tr.Name())
		})
	}

	cfg.StreamMode = config.StreamModeNone
	tr, err := NewTransportFromConfig(cfg, nil, "session", discardLogger())
	require.NoError(t, err)
	assert.Nil(t, tr)

	cfg.StreamMode = "smoke-signals"
	_, err = NewTransportFromConfig(cfg, nil, "session", discardLogger())
	assert.Error(t, err)
}

func TestDispatcherOptionsFromConfig(t *testing.T) {
	opts := DispatcherOptionsFromConfig(config.Config{
		StreamBufferSize:   8,
		HeartbeatInterval:  50 * time.Millisecond,
		ReconnectInterval:  time.Second,
		MaxReconnectJitter: 100 * time.Millisecond,
		WriteTimeout:       300 * time.Millisecond,
	})
	assert.Equal(t, 8, opts.BufferSize)
	assert.Equal(t, 50*time.Millisecond, opts.HeartbeatInterval)
	assert.Equal(t, time.Second, opts.ReconnectInterval)
	assert.Equal(t, 100*time.Millisecond, opts.MaxJitter)
	assert.Equal(t, 300*time.Millisecond, opts.WriteTimeout)
	assert.Nil(t, opts.OnConnState)
}
