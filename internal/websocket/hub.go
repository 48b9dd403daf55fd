// Package websocket provides WebSocket connection management and message
// broadcasting for UI sessions watching the camera.
package websocket

import (
	"log"
	"sync/atomic"
)

// Hub maintains the set of active WebSocket clients and broadcasts
// messages to them. The client map is owned by the Run goroutine; other
// goroutines interact with it only through channels.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	count      atomic.Int64
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop. Call it in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			log.Printf("WebSocket client connected (total: %d)", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.done)
				h.count.Store(int64(len(h.clients)))
				log.Printf("WebSocket client disconnected (total: %d)", len(h.clients))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client send buffer full, drop the connection.
					delete(h.clients, client)
					close(client.done)
				}
			}
			h.count.Store(int64(len(h.clients)))
		}
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		log.Println("Broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Client represents one WebSocket client connection. The send channel is
// never closed; the hub signals shutdown through done instead, so any
// goroutine may enqueue without racing a close.
type Client struct {
	hub  *Hub
	send chan []byte
	done chan struct{}
}

// NewClient creates a client attached to the hub.
func NewClient(hub *Hub) *Client {
	return &Client{
		hub:  hub,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}
}

// Send returns the client's outbound message channel.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Done is closed when the hub drops the client.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Enqueue queues a message for this client only, dropping it if the
// client's buffer is full.
func (c *Client) Enqueue(message []byte) {
	select {
	case c.send <- message:
	default:
	}
}
