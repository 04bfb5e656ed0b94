package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tsarna/guildlink/pkg/guildlink/events"
)

// Opcode identifies the category of a gateway frame (the "op" field).
type Opcode int

const (
	OpEvent         Opcode = 0 // Server to client: a named event with payload and message id
	OpWelcome       Opcode = 1 // Server to client: sent once per connection
	OpResume        Opcode = 2 // Server to client: replay after resumption has finished
	OpHeartbeat     Opcode = 3 // Client to server: keep-alive
	OpHeartbeatAck  Opcode = 4 // Server to client: keep-alive acknowledgement
	OpError         Opcode = 8 // Server to client: protocol error report
	OpInvalidCursor Opcode = 9 // Server to client: the resumption cursor was rejected
)

// Known reports whether the opcode is one this client understands.
func (o Opcode) Known() bool {
	switch o {
	case OpEvent, OpWelcome, OpResume, OpHeartbeat, OpHeartbeatAck, OpError, OpInvalidCursor:
		return true
	}
	return false
}

func (o Opcode) String() string {
	switch o {
	case OpEvent:
		return "event"
	case OpWelcome:
		return "welcome"
	case OpResume:
		return "resume"
	case OpHeartbeat:
		return "heartbeat"
	case OpHeartbeatAck:
		return "heartbeat_ack"
	case OpError:
		return "error"
	case OpInvalidCursor:
		return "invalid_cursor"
	}
	return "unknown(" + strconv.Itoa(int(o)) + ")"
}

// Frame is one decoded gateway frame. Frames are transient: the router
// consumes them immediately and never keeps them.
type Frame struct {
	Op        Opcode
	EventName string
	MessageID string
	Payload   json.RawMessage
}

// wireFrame is the JSON shape on the wire. The short field names are part of
// the platform protocol.
type wireFrame struct {
	Op *Opcode         `json:"op"`
	T  string          `json:"t,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
	S  string          `json:"s,omitempty"`
}

// DecodeError reports a frame that could not be decoded.
type DecodeError struct {
	Data []byte // the offending frame, truncated
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode frame: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// errMissingOpcode is wrapped in a DecodeError when "op" is absent.
var errMissingOpcode = errors.New("missing opcode")

// max bytes of a bad frame kept in a DecodeError
const maxErrorDataLen = 256

// DecodeFrame parses a raw text frame. It never panics; every failure is
// returned as a *DecodeError.
func DecodeFrame(data []byte) (Frame, error) {
	var wire wireFrame
	if err := json.Unmarshal(data, &wire); err != nil {
		return Frame{}, newDecodeError(data, err)
	}
	if wire.Op == nil {
		return Frame{}, newDecodeError(data, errMissingOpcode)
	}

	return Frame{
		Op:        *wire.Op,
		EventName: wire.T,
		MessageID: wire.S,
		Payload:   wire.D,
	}, nil
}

func newDecodeError(data []byte, err error) *DecodeError {
	if len(data) > maxErrorDataLen {
		data = data[:maxErrorDataLen]
	}
	kept := make([]byte, len(data))
	copy(kept, data)
	return &DecodeError{Data: kept, Err: err}
}

var heartbeatFrame = []byte(`{"op":3}`)

// EncodeHeartbeat returns the keep-alive frame.
func EncodeHeartbeat() []byte {
	out := make([]byte, len(heartbeatFrame))
	copy(out, heartbeatFrame)
	return out
}

// EncodeFrame serializes an outbound control frame with an optional payload.
func EncodeFrame(op Opcode, payload any) ([]byte, error) {
	wire := wireFrame{Op: &op}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		wire.D = data
	}
	return json.Marshal(wire)
}

// Welcome is the descriptor the server sends once per successful connection.
type Welcome struct {
	HeartbeatIntervalMs int          `json:"heartbeatIntervalMs"`
	LastMessageID       string       `json:"lastMessageId,omitempty"`
	BotID               string       `json:"botId,omitempty"`
	User                *events.User `json:"user,omitempty"`
}

// Identity returns the bot's user id, falling back to the bot id.
func (w Welcome) Identity() string {
	if w.User != nil && w.User.ID != "" {
		return w.User.ID
	}
	return w.BotID
}

// Welcome decodes the frame's payload as a welcome descriptor.
func (f Frame) Welcome() (Welcome, error) {
	var welcome Welcome
	if f.Op != OpWelcome {
		return welcome, fmt.Errorf("frame is %s, not welcome", f.Op)
	}
	if err := json.Unmarshal(f.Payload, &welcome); err != nil {
		return welcome, fmt.Errorf("failed to decode welcome: %w", err)
	}
	if welcome.HeartbeatIntervalMs <= 0 {
		return welcome, fmt.Errorf("welcome has invalid heartbeat interval %d", welcome.HeartbeatIntervalMs)
	}
	return welcome, nil
}

// ServerError is the payload of an OpError or OpInvalidCursor frame.
type ServerError struct {
	Message string `json:"message"`
}

// ServerError decodes the frame's payload as a server error report.
// A missing payload yields an empty message.
func (f Frame) ServerError() ServerError {
	var serverErr ServerError
	if len(f.Payload) > 0 {
		_ = json.Unmarshal(f.Payload, &serverErr)
	}
	return serverErr
}
