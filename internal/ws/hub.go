package ws

import (
	"context"
	"encoding/json"
	"sync"

	"tournament_market/internal/logger"
	"tournament_market/internal/metrics"
	"tournament_market/internal/notify"
)

// MaxSubscriptions caps how many tournaments one connection may follow.
const MaxSubscriptions = 20

// Hub fans notify events out to websocket clients. Clients follow tournaments by id; events that
// carry a user_id also reach every connection of that user.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Client]struct{}
	users  map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[*Client]struct{}),
		users:  make(map[string]map[*Client]struct{}),
	}
}

// Register attaches a connected client to its user's personal feed.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.users[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.users[c.UserID] = set
	}
	set[c] = struct{}{}
}

// Subscribe adds c to a tournament feed. It reports false when the client is at its limit.
func (h *Hub) Subscribe(c *Client, tournamentID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, already := c.topics[tournamentID]; already {
		return true
	}
	if len(c.topics) >= MaxSubscriptions {
		return false
	}
	set, ok := h.topics[tournamentID]
	if !ok {
		set = make(map[*Client]struct{})
		h.topics[tournamentID] = set
	}
	set[c] = struct{}{}
	c.topics[tournamentID] = struct{}{}
	return true
}

func (h *Hub) Unsubscribe(c *Client, tournamentID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(c, tournamentID)
}

func (h *Hub) unsubscribeLocked(c *Client, tournamentID string) {
	delete(c.topics, tournamentID)
	if set, ok := h.topics[tournamentID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.topics, tournamentID)
		}
	}
}

// OnDisconnect drops every subscription of c.
func (h *Hub) OnDisconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range c.topics {
		h.unsubscribeLocked(c, id)
	}
	if set, ok := h.users[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.users, c.UserID)
		}
	}
}

// Subscribers returns how many clients follow the tournament.
func (h *Hub) Subscribers(tournamentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[tournamentID])
}

// Notify implements notify.Sink. Slow clients lose the event instead of blocking the caller.
func (h *Hub) Notify(_ context.Context, e notify.Event) {
	event, err := json.Marshal(e)
	if err != nil {
		metrics.NotifyFailures.WithLabelValues("ws").Inc()
		return
	}

	targets := make(map[*Client]struct{})
	h.mu.RLock()
	tid := e.TournamentID()
	if tid != "" {
		for c := range h.topics[tid] {
			targets[c] = struct{}{}
		}
	}
	if uid, _ := e.Payload["user_id"].(string); uid != "" {
		for c := range h.users[uid] {
			targets[c] = struct{}{}
		}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	msg, _ := json.Marshal(Outbound{Type: MsgEvent, TournamentID: tid, Event: event})
	for c := range targets {
		if !c.enqueue(msg) {
			metrics.NotifyFailures.WithLabelValues("ws").Inc()
			logger.Debug("ws client too slow, event dropped", "user_id", c.UserID, "kind", e.Kind)
		}
	}
}
