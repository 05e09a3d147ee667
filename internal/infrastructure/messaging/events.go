package messaging

import "github.com/sketchdash/sketchdash/internal/domain"

const (
	RoomsQueue      = "rooms"
	DeadLetterQueue = "dead_letter_queue"
)

type RoomEventData struct {
	Room domain.CanvasRoom `json:"room"`
}
