package typing

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sketchdash/sketchdash/internal/domain"
	"github.com/sketchdash/sketchdash/internal/infrastructure/json"
	"github.com/sketchdash/sketchdash/internal/session"
)

type Handler struct {
	core *session.Core
}

func NewHandler(core *session.Core) *Handler {
	return &Handler{core: core}
}

// CreateRoomHandler creates an in-memory typing room and returns the first
// prompt plus the round count. Custom prompts are optional; missing rounds
// are filled from the prompt source.
func (h *Handler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req createTypingRoomRequest
	if r.ContentLength > 0 {
		if err := json.Read(r, &req); err != nil {
			json.WriteValidationError(w, err)
			return
		}
	}

	info, err := h.core.CreateTypingRoom(r.Context(), req.Prompts)
	if err != nil {
		if errors.Is(err, domain.ErrRoomAlreadyExists) {
			json.WriteError(w, http.StatusConflict, err, "Could not allocate a room code")
			return
		}
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusCreated, info)
}

// GetRoomHandler returns the current prompt and round position.
func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if !domain.IsValidRoomCode(roomID) {
		json.WriteValidationError(w, errors.New("invalid room code"))
		return
	}

	info, err := h.core.GetTypingRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			json.WriteError(w, http.StatusNotFound, err, "Typing room not found")
			return
		}
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, info)
}
