// Package delivery implements C10: the live-channel hub and push
// delivery fabric. The hub's register/deregister/send shape is adapted
// from control_plane/ws_hub.go's MetricsHub, keyed by user ID instead
// of tenant ID and exposing a synchronous SendLive rather than a
// ticker-driven broadcast (C9 decides what and when to send; C10 only
// delivers).
package delivery

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/humancompiler/planner/internal/escalator"
	"github.com/humancompiler/planner/internal/observability"
)

// LiveHub is a process-wide map of user -> set of live client handles.
// The map is the shared resource; every mutation goes through its own
// mutex so concurrent registers, deregisters, and sends never race.
type LiveHub struct {
	mu      sync.RWMutex
	clients map[string]map[*websocket.Conn]bool
}

// NewLiveHub constructs an empty hub.
func NewLiveHub() *LiveHub {
	return &LiveHub{clients: make(map[string]map[*websocket.Conn]bool)}
}

// Register adds a client handle for userID.
func (h *LiveHub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*websocket.Conn]bool)
		h.clients[userID] = set
	}
	set[conn] = true
	observability.LiveClientsConnected.Inc()
}

// Deregister removes a client handle for userID.
func (h *LiveHub) Deregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[userID]; ok {
		if _, present := set[conn]; present {
			delete(set, conn)
			observability.LiveClientsConnected.Dec()
		}
		if len(set) == 0 {
			delete(h.clients, userID)
		}
	}
	conn.Close()
}

// ClientCount reports how many live handles userID currently has.
func (h *LiveHub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// SendLive implements escalator.Delivery: it writes n to every live
// handle for userID, drops any handle whose write fails, and returns
// the count of successful sends.
func (h *LiveHub) SendLive(_ context.Context, userID string, n escalator.Notification) int {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	sent := 0
	var dead []*websocket.Conn
	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.WriteJSON(n); err != nil {
			log.Printf("delivery: live send to user %s failed: %v", userID, err)
			dead = append(dead, c)
			continue
		}
		sent++
	}
	for _, c := range dead {
		h.Deregister(userID, c)
	}
	return sent
}

// Broadcast sends n to every registered client across all users,
// returning the total successful send count.
func (h *LiveHub) Broadcast(n escalator.Notification) int {
	h.mu.RLock()
	users := make([]string, 0, len(h.clients))
	for u := range h.clients {
		users = append(users, u)
	}
	h.mu.RUnlock()

	ctx := context.Background()
	total := 0
	for _, u := range users {
		total += h.SendLive(ctx, u, n)
	}
	return total
}
