package realtime

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sketchdash/sketchdash/internal/infrastructure/ws"
	"github.com/sketchdash/sketchdash/internal/presentation/utils"
	"github.com/sketchdash/sketchdash/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Rooms are join-code protected; the relay accepts any origin.
		return true
	},
}

type Handler struct {
	core *session.Core
}

func NewHandler(core *session.Core) *Handler {
	return &Handler{core: core}
}

// ConnectHandler upgrades to a websocket and attaches the connection to the
// relay. All room interaction happens over frames after this point.
func (h *Handler) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	connectionID := utils.EnsureConnectionID(w, r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := ws.NewClient(conn, connectionID)
	h.core.Register() <- client

	go client.WritePump()
	go client.ReadPump(h.core)
}
