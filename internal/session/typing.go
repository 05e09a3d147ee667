package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sketchdash/sketchdash/internal/domain"
	"github.com/sketchdash/sketchdash/internal/infrastructure/logging"
	"github.com/sketchdash/sketchdash/internal/infrastructure/ws"
)

// TypingRoomInfo is the read model handed to the HTTP layer.
type TypingRoomInfo struct {
	ID               string    `json:"roomId"`
	Prompt           string    `json:"prompt"`
	Round            int       `json:"round"`
	RoundCount       int       `json:"roundCount"`
	TimeLimitSeconds int       `json:"timeLimitSeconds"`
	CreatedAt        time.Time `json:"createdAt"`
}

// CreateTypingRoom allocates a code, builds the round prompts and registers
// the room. It runs the mutation on the Run goroutine and waits for it.
func (c *Core) CreateTypingRoom(ctx context.Context, requested []string) (TypingRoomInfo, error) {
	type result struct {
		info TypingRoomInfo
		err  error
	}
	reply := make(chan result, 1)

	c.do(func() {
		var id string
		for attempt := 0; attempt < domain.CodeConflictRetries; attempt++ {
			code := domain.NewRoomCode()
			if _, taken := c.typingRooms[code]; !taken {
				id = code
				break
			}
		}
		if id == "" {
			reply <- result{err: domain.ErrRoomAlreadyExists}
			return
		}

		rounds := domain.BuildRounds(requested, c.opts.RoundCount, c.prompts)
		room := domain.NewTypingRoom(id, rounds, c.opts.TimeLimit, c.opts.InputSlack)
		c.typingRooms[id] = room
		if c.metrics != nil {
			c.metrics.ActiveTypingRooms.Inc()
		}

		c.logger.Info(logging.Realtime, logging.RoomLifecycle, "typing room created", map[logging.ExtraKey]any{
			logging.RoomID: id,
		})
		reply <- result{info: infoFor(room)}
	})

	select {
	case <-ctx.Done():
		return TypingRoomInfo{}, ctx.Err()
	case res := <-reply:
		return res.info, res.err
	}
}

// GetTypingRoom reads a room snapshot, or domain.ErrRoomNotFound.
func (c *Core) GetTypingRoom(ctx context.Context, id string) (TypingRoomInfo, error) {
	type result struct {
		info TypingRoomInfo
		err  error
	}
	reply := make(chan result, 1)

	c.do(func() {
		room, ok := c.typingRooms[id]
		if !ok {
			reply <- result{err: domain.ErrRoomNotFound}
			return
		}
		reply <- result{info: infoFor(room)}
	})

	select {
	case <-ctx.Done():
		return TypingRoomInfo{}, ctx.Err()
	case res := <-reply:
		return res.info, res.err
	}
}

func infoFor(room *domain.TypingRoom) TypingRoomInfo {
	return TypingRoomInfo{
		ID:               room.ID,
		Prompt:           room.CurrentPrompt(),
		Round:            room.CurrentRound + 1,
		RoundCount:       len(room.Rounds),
		TimeLimitSeconds: int(room.TimeLimit / time.Second),
		CreatedAt:        room.CreatedAt,
	}
}

func (c *Core) handleTypingJoin(client *ws.Client, req *ws.Request) {
	var payload ws.JoinPayload
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, &payload); err != nil {
			client.Send(ws.NewError(req.RoomID, ws.CodeValidation, "malformed join payload"))
			return
		}
	}

	room, ok := c.typingRooms[req.RoomID]
	if !ok {
		client.Send(ws.NewError(req.RoomID, ws.CodeNotFound, "typing room not found"))
		return
	}

	// Joining a second typing room implicitly leaves the first.
	if prev, joined := c.typingOf[client.ID]; joined && prev != req.RoomID {
		c.leaveTyping(client.ID)
	}

	if _, err := room.Join(client.ID, payload.Username); err != nil {
		client.Send(ws.NewError(req.RoomID, ws.CodeValidation, err.Error()))
		return
	}
	c.typingOf[client.ID] = room.ID

	client.Send(ws.NewPrompt(ws.TypingPrompt, room.ID, room))
	c.broadcastTyping(room, ws.NewLeaderboard(room.ID, room.CurrentRound, room.Leaderboard()), "")

	c.logger.Info(logging.Realtime, logging.TypingRace, "participant joined", map[logging.ExtraKey]any{
		logging.RoomID:       room.ID,
		logging.ConnectionID: client.ID,
	})
}

func (c *Core) handleTypingUpdate(client *ws.Client, req *ws.Request) {
	room, ok := c.typingRoomOf(client.ID, req.RoomID)
	if !ok {
		return
	}

	var payload ws.TypingUpdatePayload
	if err := json.Unmarshal(req.Data, &payload); err != nil {
		client.Send(ws.NewError(room.ID, ws.CodeValidation, "malformed update payload"))
		return
	}
	explicitDelta := 0
	if payload.Delta != nil {
		explicitDelta = *payload.Delta
	}

	res := room.Update(client.ID, payload.Typed, payload.IsPaste, explicitDelta, time.Now().UTC())
	if !res.Applied {
		return
	}

	participant := room.Participants[client.ID]
	if c.metrics != nil {
		for _, kind := range res.NewFlags {
			c.metrics.FlagsRaised.WithLabelValues(string(kind)).Inc()
		}
	}

	if res.Completed {
		c.broadcastTyping(room, ws.NewCompleted(room.ID, participant), "")
	}
	if res.TimedOut {
		client.Send(ws.NewTimeUp(room.ID))
		c.broadcastTyping(room, ws.NewParticipantTimeout(room.ID, participant), client.ID)
	}

	c.broadcastTyping(room, ws.NewLeaderboard(room.ID, room.CurrentRound, room.Leaderboard()), "")

	if room.AdvanceRound() {
		c.broadcastTyping(room, ws.NewPrompt(ws.TypingRound, room.ID, room), "")
	}
}

// leaveTyping removes the connection from its typing room, if any. Runs on
// the Run goroutine; idempotent.
func (c *Core) leaveTyping(connectionID string) {
	roomID, ok := c.typingOf[connectionID]
	if !ok {
		return
	}
	delete(c.typingOf, connectionID)

	room, ok := c.typingRooms[roomID]
	if !ok {
		return
	}

	c.disableTypingVoiceIn(room, connectionID, true)

	if empty := room.Leave(connectionID); empty {
		delete(c.typingRooms, roomID)
		if c.metrics != nil {
			c.metrics.ActiveTypingRooms.Dec()
		}
		c.logger.Info(logging.Realtime, logging.RoomLifecycle, "typing room deleted", map[logging.ExtraKey]any{
			logging.RoomID: roomID,
		})
		return
	}

	c.broadcastTyping(room, ws.NewLeaderboard(room.ID, room.CurrentRound, room.Leaderboard()), "")

	if room.AdvanceRound() {
		c.broadcastTyping(room, ws.NewPrompt(ws.TypingRound, room.ID, room), "")
	}
}
