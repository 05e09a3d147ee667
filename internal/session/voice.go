package session

import (
	"encoding/json"

	"github.com/sketchdash/sketchdash/internal/domain"
	"github.com/sketchdash/sketchdash/internal/infrastructure/ws"
)

// Voice presence follows one pattern in both modes: membership in the room
// is required, enabling is idempotent, and the caller gets back the other
// peers so it can initiate signaling to each of them.

func (c *Core) enableCanvasVoice(client *ws.Client, req *ws.Request) {
	roomID, bound := c.registry.RoomOf(client.ID)
	if !bound || (req.RoomID != "" && req.RoomID != roomID) {
		client.Send(ws.NewError(req.RoomID, ws.CodePermission, "join the room before enabling voice"))
		return
	}

	voice := c.canvasVoice[roomID]
	if voice == nil {
		voice = make(map[string]*domain.VoiceParticipant)
		c.canvasVoice[roomID] = voice
	}

	_, already := voice[client.ID]
	voice[client.ID] = domain.NewVoiceParticipant(client.ID, c.names[client.ID])

	peers := make([]ws.PeerPayload, 0, len(voice)-1)
	for id, vp := range voice {
		if id == client.ID {
			continue
		}
		peers = append(peers, ws.PeerPayload{ConnectionID: id, Username: vp.Username})
	}
	client.Send(ws.NewPeerList(ws.VoicePeers, roomID, peers))

	if !already {
		joined := ws.NewPeerEvent(ws.VoicePeerJoined, roomID, ws.PeerPayload{
			ConnectionID: client.ID,
			Username:     c.names[client.ID],
		})
		c.broadcastCanvas(roomID, joined, client.ID)
	}
}

func (c *Core) disableCanvasVoice(roomID, connectionID string, silent bool) {
	voice := c.canvasVoice[roomID]
	if voice == nil {
		return
	}
	vp, ok := voice[connectionID]
	if !ok {
		return
	}

	delete(voice, connectionID)
	if len(voice) == 0 {
		delete(c.canvasVoice, roomID)
	}

	left := ws.NewPeerEvent(ws.VoicePeerLeft, roomID, ws.PeerPayload{
		ConnectionID: connectionID,
		Username:     vp.Username,
	})
	except := connectionID
	if silent {
		except = ""
	}
	c.broadcastCanvas(roomID, left, except)
}

func (c *Core) enableTypingVoice(client *ws.Client, req *ws.Request) {
	room, ok := c.typingRoomOf(client.ID, req.RoomID)
	if !ok {
		client.Send(ws.NewError(req.RoomID, ws.CodePermission, "join the typing room before enabling voice"))
		return
	}

	participant := room.Participants[client.ID]
	_, already := room.Voice[client.ID]
	room.Voice[client.ID] = domain.NewVoiceParticipant(client.ID, participant.Username)

	peers := make([]ws.PeerPayload, 0, len(room.Voice)-1)
	for id, vp := range room.Voice {
		if id == client.ID {
			continue
		}
		peers = append(peers, ws.PeerPayload{ConnectionID: id, Username: vp.Username})
	}
	client.Send(ws.NewPeerList(ws.VoicePeers, room.ID, peers))

	if !already {
		joined := ws.NewPeerEvent(ws.VoicePeerJoined, room.ID, ws.PeerPayload{
			ConnectionID: client.ID,
			Username:     participant.Username,
		})
		c.broadcastTyping(room, joined, client.ID)
	}
}

func (c *Core) disableTypingVoice(connectionID string, silent bool) {
	roomID, ok := c.typingOf[connectionID]
	if !ok {
		return
	}
	room, ok := c.typingRooms[roomID]
	if !ok {
		return
	}
	c.disableTypingVoiceIn(room, connectionID, silent)
}

func (c *Core) disableTypingVoiceIn(room *domain.TypingRoom, connectionID string, silent bool) {
	vp, ok := room.Voice[connectionID]
	if !ok {
		return
	}

	delete(room.Voice, connectionID)

	left := ws.NewPeerEvent(ws.VoicePeerLeft, room.ID, ws.PeerPayload{
		ConnectionID: connectionID,
		Username:     vp.Username,
	})
	except := connectionID
	if silent {
		except = ""
	}
	c.broadcastTyping(room, left, except)
}

// relaySignal forwards an opaque offer/answer/candidate payload to one
// target. Sender and target must resolve to the same room in the event's
// scope; anything else is dropped without a reply.
func (c *Core) relaySignal(client *ws.Client, req *ws.Request) {
	var payload ws.SignalPayload
	if err := json.Unmarshal(req.Data, &payload); err != nil || payload.Target == "" {
		return
	}

	var scope string
	switch req.Type {
	case ws.VoiceOffer, ws.VoiceAnswer, ws.VoiceCandidate:
		scope = "canvas"
		fromRoom, fromBound := c.registry.RoomOf(client.ID)
		toRoom, toBound := c.registry.RoomOf(payload.Target)
		if !fromBound || !toBound || fromRoom != toRoom {
			return
		}
		c.send(payload.Target, ws.NewRelayed(req.Type, fromRoom, client.ID, payload.Payload))

	default:
		scope = "typing"
		fromRoom, fromOK := c.typingOf[client.ID]
		toRoom, toOK := c.typingOf[payload.Target]
		if !fromOK || !toOK || fromRoom != toRoom {
			return
		}
		c.send(payload.Target, ws.NewRelayed(req.Type, fromRoom, client.ID, payload.Payload))
	}

	if c.metrics != nil {
		c.metrics.SignalsRelayed.WithLabelValues(scope).Inc()
	}
}

// typingRoomOf resolves the typing room the connection participates in,
// cross-checked against the room id the frame names.
func (c *Core) typingRoomOf(connectionID, claimed string) (*domain.TypingRoom, bool) {
	roomID, ok := c.typingOf[connectionID]
	if !ok {
		return nil, false
	}
	if claimed != "" && claimed != roomID {
		return nil, false
	}
	room, ok := c.typingRooms[roomID]
	if !ok || room.Participants[connectionID] == nil {
		return nil, false
	}
	return room, true
}
