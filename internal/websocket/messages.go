package websocket

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeCapabilitiesRefreshed MessageType = "capabilities.refreshed"
	TypePTZMoved              MessageType = "ptz.moved"
	TypeControlChanged        MessageType = "control.changed"
	TypeNotification          MessageType = "notification"

	// Client -> Server command types
	TypePing MessageType = "ping"

	// Server -> Client response types
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Message is the WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// PTZMovedPayload is the payload for ptz.moved events.
type PTZMovedPayload struct {
	Axis  string `json:"axis"`
	Value int    `json:"value"`
}

// ControlChangedPayload is the payload for control.changed events. Value
// is what the driver actually accepted, which may differ from the request.
type ControlChangedPayload struct {
	ControlID uint32 `json:"control_id"`
	Name      string `json:"name"`
	Value     int32  `json:"value"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level       string `json:"level"` // info, warning, error
	Title       string `json:"title"`
	Message     string `json:"message"`
	Dismissible bool   `json:"dismissible"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
