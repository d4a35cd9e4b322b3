// Package websocket fans server events out to connected admin clients.
package websocket

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Event is the frame sent to clients
type Event struct {
	Topic string    `json:"topic"`
	Data  any       `json:"data,omitempty"`
	Time  time.Time `json:"time"`
}

// Hub tracks clients and broadcasts events to those subscribed
type Hub struct {
	logger     *zap.Logger
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	// done is closed when Run returns
	done    chan struct{}
	clients map[*Client]struct{}
	count   chan chan int
}

// NewHub creates a hub; it does nothing until Run is called
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		count:      make(chan chan int),
	}
}

// Run owns the client set until ctx is done, then disconnects everyone
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			h.logger.Debug("websocket hub stopped")
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.logger.Debug("websocket client connected",
				zap.String("client_id", c.id), zap.Int("clients", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.logger.Debug("websocket client disconnected",
					zap.String("client_id", c.id), zap.Int("clients", len(h.clients)))
			}

		case ev := <-h.broadcast:
			h.deliver(ev)

		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

func (h *Hub) deliver(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("topic", ev.Topic), zap.Error(err))
		return
	}
	for c := range h.clients {
		if !c.subscribed(ev.Topic) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// a client that cannot keep up is disconnected
			h.logger.Warn("websocket client too slow, disconnecting", zap.String("client_id", c.id))
			h.drop(c)
		}
	}
}

// drop removes c and closes its send queue, which ends its write pump
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
}

// Publish queues an event for every subscribed client. It never blocks; when
// the queue is full or the hub has stopped the event is dropped.
func (h *Hub) Publish(topic string, data any) {
	ev := Event{Topic: topic, Data: data, Time: time.Now().UTC()}
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- ev:
	default:
		h.logger.Warn("websocket broadcast queue full, event dropped", zap.String("topic", topic))
	}
}

// ClientCount returns the number of connected clients, or 0 once stopped
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
