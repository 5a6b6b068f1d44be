package model

type MessageType string

const (
	MessageTargets   MessageType = "targets"
	MessageHeartbeat MessageType = "heartbeat"
)

// Message is the transmissible unit: either a targets update or a heartbeat.
// Build it with TargetsMessage or Heartbeat.
type Message struct {
	kind   MessageType
	update *VisionUpdate
	sentAt int64
}

// TargetsMessage wraps a frame's batch with the time it is being sent.
// A nil update is sent as a batch with no targets.
func TargetsMessage(update *VisionUpdate, sentAt int64) Message {
	if update == nil {
		update = NewVisionUpdate(0)
	}
	return Message{kind: MessageTargets, update: update, sentAt: sentAt}
}

// Heartbeat carries no state; every call returns the same value.
func Heartbeat() Message {
	return Message{kind: MessageHeartbeat}
}

func (m Message) Type() MessageType {
	return m.kind
}

// Update is nil for heartbeats.
func (m Message) Update() *VisionUpdate {
	return m.update
}

// SentAt is zero for heartbeats.
func (m Message) SentAt() int64 {
	return m.sentAt
}
