package app

import (
	"sync"
	"time"
)

// ConnectionRegistry maps an ephemeral connection ID to its current room and
// last-measured round-trip latency. Entries live only as long as the
// connection; nothing here is persisted.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]*connEntry
}

type connEntry struct {
	roomID  string
	latency time.Duration
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{conns: make(map[string]*connEntry)}
}

// Connect registers a fresh connection with no room and zero latency.
func (r *ConnectionRegistry) Connect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[connID] = &connEntry{}
}

// Disconnect forgets the connection entirely.
func (r *ConnectionRegistry) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connID)
}

// SetRoom records the room a connection currently belongs to.
func (r *ConnectionRegistry) SetRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.conns[connID]; ok {
		entry.roomID = roomID
	}
}

// ClearRoom detaches the connection from its room, if any.
func (r *ConnectionRegistry) ClearRoom(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.conns[connID]; ok {
		entry.roomID = ""
	}
}

// RoomOf returns the room the connection is in, if any.
func (r *ConnectionRegistry) RoomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.conns[connID]
	if !ok || entry.roomID == "" {
		return "", false
	}
	return entry.roomID, true
}

// SetLatency stores the latest round-trip estimate for the connection.
func (r *ConnectionRegistry) SetLatency(connID string, rtt time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.conns[connID]; ok {
		entry.latency = rtt
	}
}

// Latency returns the last-measured round trip, zero when unknown.
func (r *ConnectionRegistry) Latency(connID string) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.conns[connID]; ok {
		return entry.latency
	}
	return 0
}
