package chat

import (
	"sync"

	"github.com/samber/lo"
)

// RoomRegistry maps rooms to the connections subscribed to them. A
// connection is in at most one room.
type RoomRegistry struct {
	mu         sync.RWMutex
	rooms      map[int][]Conn
	membership map[string]int
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:      make(map[int][]Conn),
		membership: make(map[string]int),
	}
}

// Join moves conn into roomID in one step and returns the room it left, if any.
func (r *RoomRegistry) Join(conn Conn, roomID int) (previous int, moved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.membership[conn.ID()]
	if ok && current == roomID {
		return current, false
	}
	if ok {
		r.removeLocked(conn.ID(), current)
	}
	r.rooms[roomID] = append(r.rooms[roomID], conn)
	r.membership[conn.ID()] = roomID
	return current, ok
}

// Leave removes conn from its room and returns that room.
func (r *RoomRegistry) Leave(conn Conn) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.membership[conn.ID()]
	if !ok {
		return 0, false
	}
	r.removeLocked(conn.ID(), current)
	delete(r.membership, conn.ID())
	return current, true
}

func (r *RoomRegistry) removeLocked(connID string, roomID int) {
	subs := lo.Reject(r.rooms[roomID], func(c Conn, _ int) bool {
		return c.ID() == connID
	})
	if len(subs) == 0 {
		delete(r.rooms, roomID)
		return
	}
	r.rooms[roomID] = subs
}

// Subscribers returns a snapshot of the connections in roomID, in join order.
func (r *RoomRegistry) Subscribers(roomID int) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.rooms[roomID]
	snapshot := make([]Conn, len(subs))
	copy(snapshot, subs)
	return snapshot
}

// Rooms returns the subscriber count of every non-empty room.
func (r *RoomRegistry) Rooms() map[int]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[int]int, len(r.rooms))
	for id, subs := range r.rooms {
		counts[id] = len(subs)
	}
	return counts
}
