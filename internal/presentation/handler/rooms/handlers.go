package rooms

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sketchdash/sketchdash/internal/domain"
	"github.com/sketchdash/sketchdash/internal/infrastructure/events"
	"github.com/sketchdash/sketchdash/internal/infrastructure/json"
)

type Handler struct {
	roomRepository domain.RoomRepository
	roomPublisher  events.Publisher
}

func NewHandler(roomRepository domain.RoomRepository, roomPublisher events.Publisher) *Handler {
	return &Handler{
		roomRepository: roomRepository,
		roomPublisher:  roomPublisher,
	}
}

// CreateRoomHandler allocates a fresh room code and creates the durable
// record. Code collisions are retried a bounded number of times before the
// request fails.
func (h *Handler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var newRoom *domain.CanvasRoom
	for attempt := 0; attempt < domain.CodeConflictRetries; attempt++ {
		candidate := domain.NewCanvasRoom(domain.NewRoomCode())

		err := h.roomRepository.CreateIfAbsent(ctx, candidate)
		if err == nil {
			newRoom = candidate
			break
		}
		if !errors.Is(err, domain.ErrRoomAlreadyExists) {
			log.Printf("Repository error creating room %s: %v", candidate.ID, err)
			json.WriteInternalError(w, err)
			return
		}
	}
	if newRoom == nil {
		json.WriteError(w, http.StatusConflict, domain.ErrRoomAlreadyExists, "Could not allocate a room code")
		return
	}

	if err := h.roomPublisher.PublishRoomCreated(ctx, *newRoom); err != nil {
		log.Printf("Error publishing room created: %v", err)
	}

	json.Write(w, http.StatusCreated, createRoomResponse{
		RoomID:    newRoom.ID,
		CreatedAt: newRoom.CreatedAt,
	})
}

// GetRoomHandler fetches a durable room record by its code.
func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if !domain.IsValidRoomCode(roomID) {
		json.WriteValidationError(w, errors.New("invalid room code"))
		return
	}

	room, err := h.roomRepository.FindByID(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			json.WriteError(w, http.StatusNotFound, err, "Room not found")
			return
		}
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, roomResponse{
		RoomID:      room.ID,
		CreatedAt:   room.CreatedAt,
		MemberCount: len(room.Users),
		IsActive:    room.IsActive,
	})
}
