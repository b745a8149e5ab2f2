// Package hub generalizes the register/unregister/broadcast fan-out
// pattern used for realtime delivery: a subscriber set guarded by a
// mutex, buffered per-subscriber send channels, and a single broadcast
// loop that routes each message to the subscribers of one session. The
// transport that turns a subscriber's Send channel into bytes on a wire
// (WebSocket, SSE, whatever) is deliberately out of scope here — a
// Subscriber is just an ID, a session and a channel.
package hub

import (
	"context"
	"encoding/json"
	"sync"

	"shootcoach/internal/logging"
)

// Subscriber is one fan-out destination attached to a session. Callers
// construct a Subscriber per connected client and drain Send on whatever
// transport they're bridging to.
type Subscriber struct {
	ID        string
	SessionID string
	Send      chan []byte
}

// NewSubscriber builds a Subscriber with a buffered send channel.
func NewSubscriber(id, sessionID string, bufferSize int) *Subscriber {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Subscriber{ID: id, SessionID: sessionID, Send: make(chan []byte, bufferSize)}
}

type broadcastMsg struct {
	sessionID string
	payload   []byte
}

// Hub fans out session-scoped messages to every subscriber attached to
// that session. Safe for concurrent use.
type Hub struct {
	mutex       sync.RWMutex
	subscribers map[*Subscriber]bool

	register   chan *Subscriber
	unregister chan *Subscriber
	broadcast  chan broadcastMsg

	logger logging.Logger
}

// New builds a Hub. Call Run in its own goroutine to start fan-out.
func New(logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewLoggerWithComponent("hub")
	}
	return &Hub{
		subscribers: make(map[*Subscriber]bool),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		broadcast:   make(chan broadcastMsg, 256),
		logger:      logger,
	}
}

// Run drives the hub's main loop until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sub := <-h.register:
			h.mutex.Lock()
			h.subscribers[sub] = true
			h.mutex.Unlock()
			h.logger.WithFields(logging.Fields{
				"session_id":  sub.SessionID,
				"subscriber":  sub.ID,
				"subscribers": len(h.subscribers),
			}).Info("subscriber registered")

		case sub := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				close(sub.Send)
			}
			h.mutex.Unlock()
			h.logger.WithFields(logging.Fields{
				"session_id":  sub.SessionID,
				"subscriber":  sub.ID,
				"subscribers": len(h.subscribers),
			}).Info("subscriber unregistered")

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Register attaches a subscriber to the hub. The register channel is
// unbuffered, so the call blocks until Run's loop receives the request.
func (h *Hub) Register(sub *Subscriber) {
	h.register <- sub
}

// Unregister detaches a subscriber from the hub.
func (h *Hub) Unregister(sub *Subscriber) {
	h.unregister <- sub
}

// BroadcastToSession JSON-encodes v and queues it for delivery to every
// subscriber currently attached to sessionID. A single client's full send
// buffer never blocks delivery to the others — see deliver.
func (h *Hub) BroadcastToSession(sessionID string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.broadcast <- broadcastMsg{sessionID: sessionID, payload: payload}
	return nil
}

// deliver sends one message to every subscriber of its session. A
// subscriber whose send buffer is full is dropped and unregistered rather
// than blocking the whole broadcast, matching the original hub's
// default-case-closes-client behavior.
func (h *Hub) deliver(msg broadcastMsg) {
	h.mutex.RLock()
	targets := make([]*Subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		if sub.SessionID == msg.sessionID {
			targets = append(targets, sub)
		}
	}
	h.mutex.RUnlock()

	for _, sub := range targets {
		select {
		case sub.Send <- msg.payload:
		default:
			h.logger.WithFields(logging.Fields{"session_id": msg.sessionID, "subscriber": sub.ID}).Warn("dropping slow subscriber")
			h.dropLocked(sub)
		}
	}
}

// dropLocked removes a subscriber directly rather than via the
// unregister channel: deliver already runs on the Hub's single Run
// goroutine, so routing through that channel here would deadlock against
// itself.
func (h *Hub) dropLocked(sub *Subscriber) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.Send)
	}
}

// SubscriberCount returns the number of subscribers attached to sessionID.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	n := 0
	for sub := range h.subscribers {
		if sub.SessionID == sessionID {
			n++
		}
	}
	return n
}

// Stats returns the current subscriber count per session.
func (h *Hub) Stats() map[string]int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	out := make(map[string]int)
	for sub := range h.subscribers {
		out[sub.SessionID]++
	}
	return out
}
