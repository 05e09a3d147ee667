package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sketchdash/sketchdash/internal/domain"
	"github.com/sketchdash/sketchdash/internal/infrastructure/logging"
	"github.com/sketchdash/sketchdash/internal/infrastructure/ws"
)

const storeTimeout = 5 * time.Second

// handleRoomJoin runs on the connection's read goroutine: it resolves and
// mutates the durable record there, then posts the registry bind and the
// broadcasts to the Run goroutine. The binding is not visible until the
// store operation has resolved.
func (c *Core) handleRoomJoin(client *ws.Client, req *ws.Request) {
	var payload ws.JoinPayload
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, &payload); err != nil {
			client.Send(ws.NewError(req.RoomID, ws.CodeValidation, "malformed join payload"))
			return
		}
	}

	username, err := domain.ValidateUsername(payload.Username)
	if err != nil {
		client.Send(ws.NewError(req.RoomID, ws.CodeValidation, err.Error()))
		return
	}
	if !domain.IsValidRoomCode(req.RoomID) {
		client.Send(ws.NewError(req.RoomID, ws.CodeValidation, "invalid room code"))
		return
	}

	// Rebinding implicitly leaves the previous room first, so the durable
	// member sets stay exact.
	if _, bound := c.registry.RoomOf(client.ID); bound {
		c.leaveCanvas(client)
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	room, err := c.store.FindByID(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			client.Send(ws.NewError(req.RoomID, ws.CodeNotFound, "room not found"))
		} else {
			c.logger.Error(logging.Store, logging.Persistence, "room lookup failed", map[logging.ExtraKey]any{
				logging.RoomID:       req.RoomID,
				logging.ErrorMessage: err.Error(),
			})
			client.Send(ws.NewError(req.RoomID, ws.CodeNotFound, "room unavailable"))
		}
		return
	}
	if !room.IsActive {
		client.Send(ws.NewError(req.RoomID, ws.CodeNotFound, "room is closed"))
		return
	}

	room, err = c.store.AddMember(ctx, req.RoomID, client.ID)
	if err != nil {
		client.Send(ws.NewError(req.RoomID, ws.CodeNotFound, "room unavailable"))
		return
	}

	if err := c.publisher.PublishMemberJoined(ctx, *room); err != nil {
		c.logger.Warn(logging.RabbitMQ, logging.RoomLifecycle, "member.joined publish failed", map[logging.ExtraKey]any{
			logging.RoomID:       req.RoomID,
			logging.ErrorMessage: err.Error(),
		})
	}

	memberCount := len(room.Users)
	c.do(func() { c.finishRoomJoin(client, req.RoomID, username, memberCount) })
}

func (c *Core) finishRoomJoin(client *ws.Client, roomID, username string, memberCount int) {
	if !c.alive(client) {
		// The connection vanished while the store call was in flight;
		// undo the member add so the durable set stays exact.
		go c.removeMemberAsync(roomID, client.ID)
		return
	}

	members := make([]ws.MemberPayload, 0, memberCount)
	for _, id := range c.registry.Members(roomID) {
		if id == client.ID {
			continue
		}
		members = append(members, ws.MemberPayload{
			ConnectionID: id,
			Username:     c.names[id],
		})
	}

	previous, rebound := c.registry.Bind(client.ID, roomID)
	if rebound && previous != roomID {
		// Two joins raced: the older bind was still queued when this
		// join's read-side check ran, so its room was never left. Undo
		// that membership now that the registry shows the winner.
		c.abandonCanvasRoom(previous, client.ID)
	}
	c.names[client.ID] = username
	if c.metrics != nil && c.registry.Count(roomID) == 1 {
		c.metrics.ActiveCanvasRooms.Inc()
	}

	client.Send(ws.NewMemberList(roomID, members))
	joined := ws.NewMemberJoined(roomID, ws.MemberPayload{
		ConnectionID: client.ID,
		Username:     username,
		JoinedAt:     time.Now().UTC().Format(time.RFC3339),
	})
	c.broadcastCanvas(roomID, joined, client.ID)
	c.broadcastCanvas(roomID, ws.NewRoomUpdate(roomID, memberCount), "")

	c.logger.Info(logging.Realtime, logging.CanvasRelay, "member joined room", map[logging.ExtraKey]any{
		logging.RoomID:       roomID,
		logging.ConnectionID: client.ID,
	})
}

// leaveCanvas runs on the connection's read goroutine. Safe to call for
// connections that never joined a room.
func (c *Core) leaveCanvas(client *ws.Client) {
	roomID, bound := c.registry.RoomOf(client.ID)
	if !bound {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	room, err := c.store.RemoveMember(ctx, roomID, client.ID)
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		// Already cleaned up elsewhere.
	case err != nil:
		c.logger.Error(logging.Store, logging.Persistence, "member removal failed", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
	case len(room.Users) == 0:
		if err := c.store.DeleteByID(ctx, roomID); err != nil {
			c.logger.Error(logging.Store, logging.Persistence, "room deletion failed", map[logging.ExtraKey]any{
				logging.RoomID:       roomID,
				logging.ErrorMessage: err.Error(),
			})
		}
		if err := c.publisher.PublishRoomDeleted(ctx, *room); err != nil {
			c.logger.Warn(logging.RabbitMQ, logging.RoomLifecycle, "room.deleted publish failed", map[logging.ExtraKey]any{
				logging.RoomID: roomID,
			})
		}
	default:
		if err := c.publisher.PublishMemberLeft(ctx, *room); err != nil {
			c.logger.Warn(logging.RabbitMQ, logging.RoomLifecycle, "member.left publish failed", map[logging.ExtraKey]any{
				logging.RoomID: roomID,
			})
		}
	}

	var remaining int
	if err == nil && room != nil {
		remaining = len(room.Users)
	}
	c.do(func() { c.finishRoomLeave(client, roomID, remaining) })
}

func (c *Core) finishRoomLeave(client *ws.Client, roomID string, remaining int) {
	// A newer socket may own this id by now; its session is not ours to
	// tear down.
	if current, ok := c.clients[client.ID]; ok && current != client {
		return
	}
	// A newer join may have rebound this connection while the store call
	// was pending; last write wins on the registry entry.
	if current, bound := c.registry.RoomOf(client.ID); !bound || current != roomID {
		return
	}
	c.registry.Unbind(client.ID)
	if c.metrics != nil && c.registry.Count(roomID) == 0 {
		c.metrics.ActiveCanvasRooms.Dec()
	}

	c.disableCanvasVoice(roomID, client.ID, true)

	if remaining > 0 {
		c.broadcastCanvas(roomID, ws.NewMemberLeft(roomID, client.ID, c.names[client.ID]), "")
		c.broadcastCanvas(roomID, ws.NewRoomUpdate(roomID, remaining), "")
	}
}

// abandonCanvasRoom runs the leave path for a room whose registry binding
// was lost to a newer join. Runs on the Run goroutine; the store undo is
// spawned off it.
func (c *Core) abandonCanvasRoom(roomID, connectionID string) {
	if c.metrics != nil && c.registry.Count(roomID) == 0 {
		c.metrics.ActiveCanvasRooms.Dec()
	}
	c.disableCanvasVoice(roomID, connectionID, true)

	if c.registry.Count(roomID) > 0 {
		c.broadcastCanvas(roomID, ws.NewMemberLeft(roomID, connectionID, c.names[connectionID]), "")
	}
	go c.removeMemberAsync(roomID, connectionID)
}

// removeMemberAsync undoes a durable member add whose registry bind never
// took effect, either because the connection vanished mid-join or because a
// newer join won the binding.
func (c *Core) removeMemberAsync(roomID, connectionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	room, err := c.store.RemoveMember(ctx, roomID, connectionID)
	if err != nil || room == nil {
		return
	}

	if len(room.Users) == 0 {
		_ = c.store.DeleteByID(ctx, roomID)
		if err := c.publisher.PublishRoomDeleted(ctx, *room); err != nil {
			c.logger.Warn(logging.RabbitMQ, logging.RoomLifecycle, "room.deleted publish failed", map[logging.ExtraKey]any{
				logging.RoomID: roomID,
			})
		}
		return
	}

	if err := c.publisher.PublishMemberLeft(ctx, *room); err != nil {
		c.logger.Warn(logging.RabbitMQ, logging.RoomLifecycle, "member.left publish failed", map[logging.ExtraKey]any{
			logging.RoomID: roomID,
		})
	}

	remaining := len(room.Users)
	c.do(func() { c.broadcastCanvas(roomID, ws.NewRoomUpdate(roomID, remaining), "") })
}

// relayDraw forwards an opaque canvas payload to every other member of the
// sender's room. No interpretation, no backlog for late joiners.
func (c *Core) relayDraw(client *ws.Client, req *ws.Request) {
	roomID, bound := c.registry.RoomOf(client.ID)
	if !bound {
		client.Send(ws.NewError(req.RoomID, ws.CodePermission, "join a room before drawing"))
		return
	}
	if req.RoomID != "" && req.RoomID != roomID {
		client.Send(ws.NewError(req.RoomID, ws.CodePermission, "not a member of this room"))
		return
	}

	c.broadcastCanvas(roomID, ws.NewRelayed(req.Type, roomID, client.ID, req.Data), client.ID)
}
