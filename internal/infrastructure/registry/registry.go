package registry

import "sync"

// Registry is the process-local table mapping a live connection to the canvas
// room it is bound to. A connection belongs to at most one room; binding to a
// new room implicitly unbinds the previous one.
type Registry struct {
	mu     sync.RWMutex
	roomOf map[string]string              // connection id -> room id
	rooms  map[string]map[string]struct{} // room id -> member connection ids
}

func New() *Registry {
	return &Registry{
		roomOf: make(map[string]string),
		rooms:  make(map[string]map[string]struct{}),
	}
}

// Bind attaches the connection to roomID and returns the previously bound
// room id, if any.
func (r *Registry) Bind(connectionID, roomID string) (previous string, rebound bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, rebound = r.roomOf[connectionID]
	if rebound {
		if previous == roomID {
			return previous, true
		}
		r.removeLocked(connectionID, previous)
	}

	r.roomOf[connectionID] = roomID
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
	}
	members[connectionID] = struct{}{}

	return previous, rebound
}

// Unbind detaches the connection and returns the room it was bound to.
// Safe to call for connections that were never bound.
func (r *Registry) Unbind(connectionID string) (roomID string, wasBound bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, wasBound = r.roomOf[connectionID]
	if !wasBound {
		return "", false
	}

	delete(r.roomOf, connectionID)
	r.removeLocked(connectionID, roomID)
	return roomID, true
}

// RoomOf returns the room the connection is currently bound to.
func (r *Registry) RoomOf(connectionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomID, ok := r.roomOf[connectionID]
	return roomID, ok
}

// Members returns the connection ids currently bound to roomID.
func (r *Registry) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]string, 0, len(r.rooms[roomID]))
	for id := range r.rooms[roomID] {
		members = append(members, id)
	}
	return members
}

// Count returns how many connections are bound to roomID.
func (r *Registry) Count(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[roomID])
}

func (r *Registry) removeLocked(connectionID, roomID string) {
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}
