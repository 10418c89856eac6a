// Package ws streams session notifications to browsers over websockets.
package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
	"github.com/SBCM-Alliance/G-Cart/pkg/metrics"
)

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

type message struct {
	sessionID string
	payload   []byte
}

type subscription struct {
	sessionID string
	client    Subscriber
}

type countRequest struct {
	sessionID string
	reply     chan int
}

// Hub manages stream subscriptions by session ID. All bookkeeping happens on
// the goroutine started by Run.
type Hub struct {
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
	count     chan countRequest
	done      chan struct{}
}

// NewHub creates a hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message),
		count:     make(chan countRequest),
		done:      make(chan struct{}),
	}
}

// Run serves hub requests until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for _, clients := range h.clients {
			for c := range clients {
				c.Close()
			}
		}
		h.clients = nil
		metrics.UpdateNotifySubscribers(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case sub := <-h.register:
			if _, ok := h.clients[sub.sessionID]; !ok {
				h.clients[sub.sessionID] = make(map[Subscriber]struct{})
			}
			h.clients[sub.sessionID][sub.client] = struct{}{}
			h.updateGauge()
		case sub := <-h.unreg:
			if clients, ok := h.clients[sub.sessionID]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.sessionID)
				}
			}
			h.updateGauge()
		case msg := <-h.broadcast:
			if clients, ok := h.clients[msg.sessionID]; ok {
				for c := range clients {
					if err := c.Send(msg.payload); err != nil {
						c.Close()
						delete(clients, c)
					}
				}
				if len(clients) == 0 {
					delete(h.clients, msg.sessionID)
				}
				h.updateGauge()
			}
		case req := <-h.count:
			if req.sessionID == "" {
				req.reply <- h.total()
			} else {
				req.reply <- len(h.clients[req.sessionID])
			}
		}
	}
}

func (h *Hub) total() int {
	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}

func (h *Hub) updateGauge() {
	metrics.UpdateNotifySubscribers(h.total())
}

// Register adds a client to a session stream.
func (h *Hub) Register(sessionID string, client Subscriber) error {
	select {
	case h.register <- subscription{sessionID: sessionID, client: client}:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(sessionID string, client Subscriber) {
	select {
	case h.unreg <- subscription{sessionID: sessionID, client: client}:
	case <-h.done:
	}
}

// Subscribers returns the clients listening on a session, or on all sessions
// when sessionID is empty.
func (h *Hub) Subscribers(sessionID string) int {
	reply := make(chan int, 1)
	select {
	case h.count <- countRequest{sessionID: sessionID, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Publish sends a notification to every client of its session as JSON.
func (h *Hub) Publish(ctx context.Context, n model.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	select {
	case h.broadcast <- message{sessionID: n.SessionID, payload: payload}:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
