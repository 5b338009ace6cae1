// Package live pushes mood change notifications to connected clients over
// websockets.
package live

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/atinyakov/moodmap/internal/metrics"
	"go.uber.org/zap"
)

// EventMoodUpserted is sent after any owner's mood was written.
const EventMoodUpserted = "mood.upserted"

// Event is the wire format of a push message.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// UpsertedPayload identifies the owner whose mood changed.
type UpsertedPayload struct {
	OwnerID int64 `json:"owner_id"`
}

// Hub fans every event out to all subscribers.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			metrics.LiveSubscribers.Set(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			metrics.LiveSubscribers.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			metrics.LiveSubscribers.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case payload := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					// Slow subscriber; it reconnects and refetches.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MoodUpserted broadcasts a mood.upserted event. It never blocks the caller;
// when the queue is full the event is dropped.
func (h *Hub) MoodUpserted(owner int64) {
	payload, err := json.Marshal(Event{Type: EventMoodUpserted, Payload: UpsertedPayload{OwnerID: owner}})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.log.Warn("live broadcast queue full, dropping event", zap.Int64("owner_id", owner))
	}
}
