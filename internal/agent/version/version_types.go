package version

type GetVersionRequest struct {
	SessionID string `json:"session_id"`
}

type GetVersionResponse struct {
	AgentID         string `json:"agent_id"`
	SessionID       string `json:"session_id"`
	AgentVersion    string `json:"agent_version"`
	StreamMode      string `json:"stream_mode"`
	ProbeListenAddr string `json:"probe_listen_addr"`
	FrameWidth      int    `json:"frame_width"`
	FrameHeight     int    `json:"frame_height"`
	FPS             int    `json:"fps"`
	CheckedAtUnix   int64  `json:"checked_at_unix"`
}
