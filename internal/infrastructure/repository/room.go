package repository

import (
	"context"
	"sync"
	"time"

	"github.com/sketchdash/sketchdash/internal/domain"
)

// roomRepository is the default, in-memory implementation of the durable
// canvas-room store. Idle rooms are evicted opportunistically on writes.
type roomRepository struct {
	rooms          map[string]*domain.CanvasRoom
	lastAccess     map[string]time.Time
	capacity       uint
	idleRoomExpiry time.Duration
	mu             sync.RWMutex
}

func NewRoomRepository(capacity uint, idleRoomExpiry time.Duration) domain.RoomRepository {
	if capacity == 0 {
		capacity = 500
	}
	if idleRoomExpiry == 0 {
		idleRoomExpiry = time.Hour
	}

	return &roomRepository{
		rooms:          make(map[string]*domain.CanvasRoom),
		lastAccess:     make(map[string]time.Time),
		capacity:       capacity,
		idleRoomExpiry: idleRoomExpiry,
	}
}

func (r *roomRepository) touch(roomID string) {
	r.lastAccess[roomID] = time.Now()
}

func (r *roomRepository) evictIdle() {
	cutoff := time.Now().Add(-r.idleRoomExpiry)
	for id, last := range r.lastAccess {
		if last.Before(cutoff) {
			delete(r.rooms, id)
			delete(r.lastAccess, id)
		}
	}
}

func (r *roomRepository) CreateIfAbsent(ctx context.Context, room *domain.CanvasRoom) error {
	if room == nil || room.ID == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictIdle()

	if _, exists := r.rooms[room.ID]; exists {
		return domain.ErrRoomAlreadyExists
	}
	if uint(len(r.rooms)) >= r.capacity {
		return domain.ErrInvalidInput
	}

	stored := *room
	r.rooms[room.ID] = &stored
	r.touch(room.ID)
	return nil
}

func (r *roomRepository) FindByID(ctx context.Context, id string) (*domain.CanvasRoom, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[id]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}
	r.touch(id)

	return snapshot(room), nil
}

func (r *roomRepository) AddMember(ctx context.Context, roomID, connectionID string) (*domain.CanvasRoom, error) {
	if roomID == "" || connectionID == "" {
		return nil, domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[roomID]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	room.AddUser(connectionID)
	r.touch(roomID)
	return snapshot(room), nil
}

func (r *roomRepository) RemoveMember(ctx context.Context, roomID, connectionID string) (*domain.CanvasRoom, error) {
	if roomID == "" || connectionID == "" {
		return nil, domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[roomID]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	room.RemoveUser(connectionID)
	r.touch(roomID)
	return snapshot(room), nil
}

// DeleteByID is idempotent: deleting a missing room is not an error.
func (r *roomRepository) DeleteByID(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rooms, id)
	delete(r.lastAccess, id)
	return nil
}

// snapshot copies the record so callers never alias the stored slice.
func snapshot(room *domain.CanvasRoom) *domain.CanvasRoom {
	out := *room
	out.Users = append([]string(nil), room.Users...)
	return &out
}
