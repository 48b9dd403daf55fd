package websocket

import (
	"encoding/json"
	"testing"
	"time"
)

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", hub.ClientCount(), want)
}

func TestHubRegisterBroadcastUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	a := NewClient(hub)
	b := NewClient(hub)
	hub.Register(a)
	hub.Register(b)
	waitForCount(t, hub, 2)

	hub.Broadcast([]byte("hello"))

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.Send():
			if string(msg) != "hello" {
				t.Errorf("received %q", msg)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("broadcast never arrived")
		}
	}

	hub.Unregister(a)
	waitForCount(t, hub, 1)

	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("done signal never fired for unregistered client")
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := NewClient(hub)
	hub.Register(slow)
	waitForCount(t, hub, 1)

	// Nothing drains the send channel; once its buffer fills the hub must
	// drop the client rather than block the broadcast loop.
	deadline := time.Now().Add(5 * time.Second)
	for hub.ClientCount() > 0 && time.Now().Before(deadline) {
		hub.Broadcast([]byte("x"))
		time.Sleep(time.Microsecond)
	}
	waitForCount(t, hub, 0)
}

func TestEnqueueAfterDropIsSafe(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c := NewClient(hub)
	hub.Register(c)
	waitForCount(t, hub, 1)
	hub.Unregister(c)
	waitForCount(t, hub, 0)

	// Must not panic even though the hub already dropped the client.
	c.Enqueue([]byte("late pong"))
}

func TestEventBroadcasterEnvelope(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	c := NewClient(hub)
	hub.Register(c)
	waitForCount(t, hub, 1)

	b := NewEventBroadcaster(hub)
	b.BroadcastPTZMoved("pan", 90)

	select {
	case raw := <-c.Send():
		var msg struct {
			Type    MessageType     `json:"type"`
			Payload PTZMovedPayload `json:"payload"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("unparseable broadcast %q: %v", raw, err)
		}
		if msg.Type != TypePTZMoved {
			t.Errorf("type = %s", msg.Type)
		}
		if msg.Payload.Axis != "pan" || msg.Payload.Value != 90 {
			t.Errorf("payload = %+v", msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never broadcast")
	}
}
