package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrRoomClosed        = errors.New("room is closed")
	ErrNotAMember        = errors.New("not a member of the room")
	ErrParticipantFound  = errors.New("participant not found")
)

// CanvasRoom is the durable record of a co-drawing session. The relay never
// interprets canvas contents; it only tracks which connections are members.
type CanvasRoom struct {
	ID        string    `json:"roomId" bson:"_id"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	Users     []string  `json:"users" bson:"users"`
	IsActive  bool      `json:"isActive" bson:"is_active"`
}

// RoomRepository is the external durable store for canvas-room records.
// AddMember and RemoveMember are idempotent set operations.
type RoomRepository interface {
	CreateIfAbsent(ctx context.Context, room *CanvasRoom) error
	FindByID(ctx context.Context, id string) (*CanvasRoom, error)
	AddMember(ctx context.Context, roomID, connectionID string) (*CanvasRoom, error)
	RemoveMember(ctx context.Context, roomID, connectionID string) (*CanvasRoom, error)
	DeleteByID(ctx context.Context, id string) error
}

func NewCanvasRoom(id string) *CanvasRoom {
	return &CanvasRoom{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Users:     make([]string, 0, 4),
		IsActive:  true,
	}
}

func (r *CanvasRoom) HasUser(connectionID string) bool {
	for _, id := range r.Users {
		if id == connectionID {
			return true
		}
	}
	return false
}

// AddUser appends the connection id if absent and reports whether it was added.
func (r *CanvasRoom) AddUser(connectionID string) bool {
	if r.HasUser(connectionID) {
		return false
	}
	r.Users = append(r.Users, connectionID)
	return true
}

// RemoveUser removes the connection id, preserving join order of the rest.
func (r *CanvasRoom) RemoveUser(connectionID string) bool {
	for i, id := range r.Users {
		if id == connectionID {
			r.Users = append(r.Users[:i], r.Users[i+1:]...)
			return true
		}
	}
	return false
}
