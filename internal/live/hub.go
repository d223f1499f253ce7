package live

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/coder/websocket"
)

// RoundEvent is the JSON structure pushed to feed subscribers whenever a
// round finishes. Player identities are already hashed before they get here.
type RoundEvent struct {
	Type         string `json:"t"`
	PlayerHash   string `json:"player,omitempty"`
	Kind         string `json:"kind,omitempty"`
	Level        int    `json:"level,omitempty"`
	Score        int    `json:"score,omitempty"`
	CorrectSteps int    `json:"correct,omitempty"`
	Perfect      bool   `json:"perfect,omitempty"`
	Passed       bool   `json:"passed,omitempty"`
}

// Event types carried on the feed.
const (
	EventRoundCompleted = "round_completed"
	EventRoundAbandoned = "round_abandoned"
)

// Client represents a single WebSocket subscriber on the feed.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// Hub manages the set of feed subscribers.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a subscriber to the feed.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes a subscriber and closes its Send channel.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		close(c.Send)
		delete(h.clients, id)
	}
}

// Len reports the current subscriber count.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to every subscriber. Non-blocking: a subscriber
// with a full channel misses the event rather than stalling the feed.
func (h *Hub) Broadcast(ev RoundEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[Live] Marshal error: %v\n", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case c.Send <- data:
		default:
			// Drop event if channel full
		}
	}
}
