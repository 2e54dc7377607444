// Package fanout delivers published frames to every connection joined to a
// room. It only touches in-memory state and never blocks on a slow reader.
package fanout

import (
	"log/slog"
	"sync"

	"github.com/mahaj/commune-chat/pkg/metrics"
)

// Subscriber is one live connection.
type Subscriber interface {
	ID() string
	UserID() int64
	// Enqueue queues payload without blocking and reports false when the
	// connection's buffer is full.
	Enqueue(payload []byte) bool
	// Close terminates the connection. It may be called more than once.
	Close()
}

// Observer is told when a user gets their first connection in a room and
// when their last one leaves. Calls happen under the hub lock in transition
// order, so implementations must return quickly.
type Observer interface {
	Online(room string, userID int64)
	Offline(room string, userID int64)
}

type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[Subscriber]struct{}
	joined map[Subscriber]map[string]struct{}
	users  map[string]map[int64]int

	observer Observer
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewHub builds an empty hub. observer may be nil.
func NewHub(log *slog.Logger, m *metrics.Metrics, observer Observer) *Hub {
	return &Hub{
		rooms:    make(map[string]map[Subscriber]struct{}),
		joined:   make(map[Subscriber]map[string]struct{}),
		users:    make(map[string]map[int64]int),
		observer: observer,
		metrics:  m,
		log:      log,
	}
}

// Join adds sub to room and reports whether it was not already joined.
func (h *Hub) Join(sub Subscriber, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[Subscriber]struct{})
		h.rooms[room] = members
		h.metrics.Rooms.Set(float64(len(h.rooms)))
	}
	if _, ok := members[sub]; ok {
		return false
	}
	members[sub] = struct{}{}

	if h.joined[sub] == nil {
		h.joined[sub] = make(map[string]struct{})
	}
	h.joined[sub][room] = struct{}{}

	if h.users[room] == nil {
		h.users[room] = make(map[int64]int)
	}
	h.users[room][sub.UserID()]++
	if h.users[room][sub.UserID()] == 1 && h.observer != nil {
		h.observer.Online(room, sub.UserID())
	}
	h.log.Debug("Joined room", "conn", sub.ID(), "user", sub.UserID(), "room", room)
	return true
}

// Leave removes sub from room and reports whether it was joined.
func (h *Hub) Leave(sub Subscriber, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leave(sub, room)
}

func (h *Hub) leave(sub Subscriber, room string) bool {
	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[sub]; !ok {
		return false
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(h.rooms, room)
		h.metrics.Rooms.Set(float64(len(h.rooms)))
	}

	delete(h.joined[sub], room)
	if len(h.joined[sub]) == 0 {
		delete(h.joined, sub)
	}

	counts := h.users[room]
	counts[sub.UserID()]--
	if counts[sub.UserID()] <= 0 {
		delete(counts, sub.UserID())
		if h.observer != nil {
			h.observer.Offline(room, sub.UserID())
		}
	}
	if len(counts) == 0 {
		delete(h.users, room)
	}
	h.log.Debug("Left room", "conn", sub.ID(), "user", sub.UserID(), "room", room)
	return true
}

// LeaveAll removes sub from every room it joined and returns those rooms.
func (h *Hub) LeaveAll(sub Subscriber) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var left []string
	for room := range h.joined[sub] {
		left = append(left, room)
	}
	for _, room := range left {
		h.leave(sub, room)
	}
	return left
}

// Publish queues payload to every connection joined to room at call time and
// returns how many accepted it. Connections with a full buffer are evicted.
func (h *Hub) Publish(room string, payload []byte) int {
	var delivered int
	var slow []Subscriber

	h.mu.RLock()
	for sub := range h.rooms[room] {
		if sub.Enqueue(payload) {
			delivered++
		} else {
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	h.metrics.FanoutDeliveries.Add(float64(delivered))
	for _, sub := range slow {
		h.log.Warn("Evicting slow connection", "conn", sub.ID(), "user", sub.UserID(), "room", room)
		h.metrics.FanoutEvictions.Inc()
		h.LeaveAll(sub)
		sub.Close()
	}
	return delivered
}

// Members returns the number of connections joined to room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Rooms returns the rooms sub is joined to.
func (h *Hub) Rooms(sub Subscriber) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.joined[sub]))
	for room := range h.joined[sub] {
		out = append(out, room)
	}
	return out
}

// Shutdown closes every joined connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	subs := make([]Subscriber, 0, len(h.joined))
	for sub := range h.joined {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.LeaveAll(sub)
		sub.Close()
	}
	h.log.Info("Hub shut down", "connections", len(subs))
}
