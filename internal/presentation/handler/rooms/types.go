package rooms

import "time"

// createRoomResponse represents the response after creating a canvas room
type createRoomResponse struct {
	RoomID    string    `json:"roomId"`
	CreatedAt time.Time `json:"createdAt"`
}

// roomResponse represents a canvas room record
type roomResponse struct {
	RoomID      string    `json:"roomId"`
	CreatedAt   time.Time `json:"createdAt"`
	MemberCount int       `json:"memberCount"`
	IsActive    bool      `json:"isActive"`
}
