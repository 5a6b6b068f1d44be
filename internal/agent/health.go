package agent

import (
	"sync/atomic"
	"time"

	"vision-tracker-agent/internal/pipeline"
)

type HealthStatus struct {
	streamConnected atomic.Bool
	lastFrameAt     atomic.Int64
	lastSendAt      atomic.Int64
	frames          atomic.Uint64
	frameErrors     atomic.Uint64
	targets         atomic.Uint64
	rejected        atomic.Uint64
}

func NewHealthStatus() *HealthStatus {
	return &HealthStatus{}
}

func (h *HealthStatus) SetStreamConnected(ok bool) {
	h.streamConnected.Store(ok)
}

// RecordFrame implements pipeline.FrameRecorder.
func (h *HealthStatus) RecordFrame(res pipeline.FrameResult, err error) {
	now := time.Now().UnixNano()
	h.frames.Add(1)
	h.lastFrameAt.Store(now)
	if err != nil {
		h.frameErrors.Add(1)
		return
	}
	h.targets.Add(uint64(res.Targets))
	h.rejected.Add(uint64(res.Rejected))
	if res.Sent {
		h.lastSendAt.Store(now)
	}
}

func (h *HealthStatus) Snapshot() map[string]any {
	out := map[string]any{
		"stream_connected": h.streamConnected.Load(),
		"frames":           h.frames.Load(),
		"frame_errors":     h.frameErrors.Load(),
		"targets":          h.targets.Load(),
		"rejected_targets": h.rejected.Load(),
	}
	if v := h.lastFrameAt.Load(); v > 0 {
		out["last_frame_at"] = time.Unix(0, v).UTC()
	}
	if v := h.lastSendAt.Load(); v > 0 {
		out["last_send_at"] = time.Unix(0, v).UTC()
	}
	return out
}
