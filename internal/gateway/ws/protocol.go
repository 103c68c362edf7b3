package ws

import "encoding/json"

// FrameType represents the type of WebSocket frame broadcast to dashboards.
type FrameType string

const (
	FrameTypeEvent FrameType = "event"
)

// Frame is the WebSocket protocol envelope. The bridge's admin websocket is
// broadcast-only: the server pushes session lifecycle events, clients don't
// issue requests over it.
type Frame struct {
	Type      FrameType       `json:"type"`
	Event     string          `json:"event,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// MarshalFrame serializes a Frame to JSON bytes.
func MarshalFrame(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// NewEventFrame creates a Frame for broadcasting an event.
func NewEventFrame(event string, sessionID string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:      FrameTypeEvent,
		Event:     event,
		SessionID: sessionID,
		Payload:   data,
	}, nil
}

// UnmarshalFrame deserializes JSON bytes into a Frame, for dashboard clients
// reading off the broadcast socket.
func UnmarshalFrame(data []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return f, err
}
