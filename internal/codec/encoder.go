package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"vision-tracker-agent/internal/model"
)

// DefaultNudge keeps exact integers from being read back as integer types by
// the robot-side parser.
const DefaultNudge = 1e-7

const heartbeatBody = "{}"

var ErrUnknownMessageType = errors.New("unknown message type")

// Encoder turns messages into their wire text. It holds no per-message state
// and is safe for concurrent use.
type Encoder struct {
	logger    *slog.Logger
	threshold float64
}

func NewEncoder(threshold float64, logger *slog.Logger) *Encoder {
	if threshold <= 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		threshold = DefaultNudge
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Encoder{logger: logger, threshold: threshold}
}

func (e *Encoder) Threshold() float64 {
	return e.threshold
}

// Nudge adds the threshold to v when v's fractional remainder is below it.
// math.Mod keeps the sign of v, so negative values are always nudged; the
// error stays bounded by the threshold either way.
func (e *Encoder) Nudge(v float64) float64 {
	if math.Mod(v, 1) < e.threshold {
		return v + e.threshold
	}
	return v
}

// EncodeTarget writes {"hAngle":..,"vAngle":..,"hWidth":..,"vWidth":..}.
// A field that cannot be encoded is logged and left out.
func (e *Encoder) EncodeTarget(t model.TargetInfo) []byte {
	var buf bytes.Buffer
	e.writeTarget(&buf, t)
	return buf.Bytes()
}

// EncodeUpdate writes the sendable form of a frame's batch, stamped with the
// time it is sent.
func (e *Encoder) EncodeUpdate(u *model.VisionUpdate, sentAt int64) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"type":"`)
	buf.WriteString(string(model.MessageTargets))
	buf.WriteString(`","timestamp":`)
	buf.WriteString(strconv.FormatInt(sentAt, 10))
	buf.WriteString(`,"targets":[`)
	if u != nil {
		u.Each(func(i int, t model.TargetInfo) {
			if i > 0 {
				buf.WriteByte(',')
			}
			e.writeTarget(&buf, t)
		})
	}
	buf.WriteString(`]}`)
	return buf.Bytes()
}

// Body is the message text for m: the batch for targets, "{}" for heartbeats.
func (e *Encoder) Body(m model.Message) (string, error) {
	switch m.Type() {
	case model.MessageTargets:
		return string(e.EncodeUpdate(m.Update(), m.SentAt())), nil
	case model.MessageHeartbeat:
		return heartbeatBody, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownMessageType, m.Type())
	}
}

// Envelope is one line on the robot link.
type Envelope struct {
	Type    model.MessageType `json:"type"`
	Message string            `json:"message"`
}

// Frame wraps m's body with its type tag, ready to hand to a transport.
func (e *Encoder) Frame(m model.Message) ([]byte, error) {
	body, err := e.Body(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: m.Type(), Message: body})
}

// DecodeFrame parses a line received from the robot.
func DecodeFrame(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(bytes.TrimSpace(data), &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, errors.New("decode frame: missing type")
	}
	return env, nil
}

func (e *Encoder) writeTarget(buf *bytes.Buffer, t model.TargetInfo) {
	buf.WriteByte('{')
	n := 0
	n = e.writeField(buf, n, "hAngle", t.HAngle())
	n = e.writeField(buf, n, "vAngle", t.VAngle())
	n = e.writeField(buf, n, "hWidth", t.HWidth())
	e.writeField(buf, n, "vWidth", t.VWidth())
	buf.WriteByte('}')
}

func (e *Encoder) writeField(buf *bytes.Buffer, written int, name string, v float64) int {
	raw, err := json.Marshal(e.Nudge(v))
	if err != nil {
		e.logger.Error("could not encode target field", "field", name, "value", v, "error", err)
		return written
	}
	if written > 0 {
		buf.WriteByte(',')
	}
	buf.WriteByte('"')
	buf.WriteString(name)
	buf.WriteString(`":`)
	buf.Write(raw)
	return written + 1
}
