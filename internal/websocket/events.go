package websocket

import (
	"log"

	"github.com/camera-control-manager/backend/internal/discovery"
)

// EventBroadcaster publishes backend events to every connected UI session.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates an event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// BroadcastCapabilitiesRefreshed pushes a freshly built capabilities model
// so open sessions can rebuild their control panels.
func (b *EventBroadcaster) BroadcastCapabilitiesRefreshed(model *discovery.Capabilities) {
	b.broadcast(NewMessage(TypeCapabilitiesRefreshed, model))
}

// BroadcastPTZMoved announces an acknowledged PTZ axis movement.
func (b *EventBroadcaster) BroadcastPTZMoved(axis string, value int) {
	b.broadcast(NewMessage(TypePTZMoved, PTZMovedPayload{Axis: axis, Value: value}))
}

// BroadcastControlChanged announces an accepted video-control write.
func (b *EventBroadcaster) BroadcastControlChanged(id uint32, name string, value int32) {
	b.broadcast(NewMessage(TypeControlChanged, ControlChangedPayload{
		ControlID: id,
		Name:      name,
		Value:     value,
	}))
}

// BroadcastNotification sends a user-facing notification.
func (b *EventBroadcaster) BroadcastNotification(level, title, message string) {
	b.broadcast(NewMessage(TypeNotification, NotificationPayload{
		Level:       level,
		Title:       title,
		Message:     message,
		Dismissible: true,
	}))
}

func (b *EventBroadcaster) broadcast(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		log.Printf("Error encoding WebSocket message: %v", err)
		return
	}
	b.hub.Broadcast(data)
}
