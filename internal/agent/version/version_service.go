package version

import (
	"time"

	"vision-tracker-agent/internal/config"
)

func Get(cfg config.Config, req *GetVersionRequest) *GetVersionResponse {
	resp := &GetVersionResponse{
		AgentID:         cfg.AgentID,
		AgentVersion:    cfg.AgentVersion,
		StreamMode:      string(cfg.StreamMode),
		ProbeListenAddr: cfg.ProbeListenAddr,
		FrameWidth:      cfg.FrameWidth,
		FrameHeight:     cfg.FrameHeight,
		FPS:             cfg.FPS,
		CheckedAtUnix:   time.Now().UTC().Unix(),
	}
	if req != nil {
		resp.SessionID = req.SessionID
	}
	return resp
}
