package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"vision-tracker-agent/internal/agent/version"
)

const probePrefix = "vision-tracker-agent:ok "

type probeReply struct {
	*version.GetVersionResponse
	Health map[string]any `json:"health"`
}

func (a *Agent) runProbeListener(ctx context.Context) error {
	addr := strings.TrimSpace(a.cfg.ProbeListenAddr)
	if addr == "" {
		return fmt.Errorf("empty probe listen address")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen probe endpoint %s: %w", addr, err)
	}
	return a.serveProbe(ctx, ln)
}

func (a *Agent) serveProbe(ctx context.Context, ln net.Listener) error {
	defer func() { _ = ln.Close() }()

	a.logger.Info("probe endpoint listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, acceptErr := ln.Accept()
		if acceptErr != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(acceptErr, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(acceptErr, &ne) && ne.Timeout() {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept probe endpoint %s: %w", ln.Addr(), acceptErr)
		}

		_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
		_, _ = conn.Write(a.probeLine())
		_ = conn.Close()
	}
}

func (a *Agent) probeLine() []byte {
	reply := probeReply{
		GetVersionResponse: version.Get(a.cfg, &version.GetVersionRequest{SessionID: a.sessionID}),
		Health:             a.snapshot(),
	}
	body, err := json.Marshal(reply)
	if err != nil {
		a.logger.Debug("probe payload encode failed", "error", err)
		body = []byte("{}")
	}
	line := make([]byte, 0, len(probePrefix)+len(body)+1)
	line = append(line, probePrefix...)
	line = append(line, body...)
	return append(line, '\n')
}
