package events

import (
	"context"
	"encoding/json"

	"github.com/sketchdash/sketchdash/internal/domain"
	"github.com/sketchdash/sketchdash/internal/infrastructure/contracts"
	"github.com/sketchdash/sketchdash/internal/infrastructure/messaging"
)

// Publisher emits room lifecycle events to interested consumers.
type Publisher interface {
	PublishRoomCreated(ctx context.Context, room domain.CanvasRoom) error
	PublishRoomDeleted(ctx context.Context, room domain.CanvasRoom) error
	PublishMemberJoined(ctx context.Context, room domain.CanvasRoom) error
	PublishMemberLeft(ctx context.Context, room domain.CanvasRoom) error
}

type RoomPublisher struct {
	rabbitmq *messaging.RabbitMQ
}

func NewRoomPublisher(rabbitmq *messaging.RabbitMQ) *RoomPublisher {
	return &RoomPublisher{
		rabbitmq: rabbitmq,
	}
}

func (p *RoomPublisher) PublishRoomCreated(ctx context.Context, room domain.CanvasRoom) error {
	return p.publish(ctx, contracts.EventRoomCreated, room)
}

func (p *RoomPublisher) PublishRoomDeleted(ctx context.Context, room domain.CanvasRoom) error {
	return p.publish(ctx, contracts.EventRoomDeleted, room)
}

func (p *RoomPublisher) PublishMemberJoined(ctx context.Context, room domain.CanvasRoom) error {
	return p.publish(ctx, contracts.EventMemberJoined, room)
}

func (p *RoomPublisher) PublishMemberLeft(ctx context.Context, room domain.CanvasRoom) error {
	return p.publish(ctx, contracts.EventMemberLeft, room)
}

func (p *RoomPublisher) publish(ctx context.Context, routingKey string, room domain.CanvasRoom) error {
	payload := messaging.RoomEventData{
		Room: room,
	}

	roomEventJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.rabbitmq.PublishMessage(ctx, routingKey, contracts.AmqpMessage{
		RoomID: room.ID,
		Data:   roomEventJSON,
	})
}

// NoopPublisher is used when messaging is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishRoomCreated(context.Context, domain.CanvasRoom) error { return nil }
func (NoopPublisher) PublishRoomDeleted(context.Context, domain.CanvasRoom) error { return nil }
func (NoopPublisher) PublishMemberJoined(context.Context, domain.CanvasRoom) error {
	return nil
}
func (NoopPublisher) PublishMemberLeft(context.Context, domain.CanvasRoom) error { return nil }
