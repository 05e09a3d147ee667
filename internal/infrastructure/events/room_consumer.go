package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sketchdash/sketchdash/internal/infrastructure/contracts"
	"github.com/sketchdash/sketchdash/internal/infrastructure/messaging"
)

type roomConsumer struct {
	rabbitmq *messaging.RabbitMQ
}

// NewRoomConsumer returns a consumer that drains the rooms queue and writes
// an audit line per room lifecycle event.
func NewRoomConsumer(rabbitmq *messaging.RabbitMQ) *roomConsumer {
	return &roomConsumer{
		rabbitmq: rabbitmq,
	}
}

func (c *roomConsumer) Listen() error {
	return c.rabbitmq.ConsumeMessages(messaging.RoomsQueue, func(ctx context.Context, msg amqp091.Delivery) error {
		var message contracts.AmqpMessage
		if err := json.Unmarshal(msg.Body, &message); err != nil {
			log.Printf("Failed to unmarshal message: %v", err)
			return err
		}

		var payload messaging.RoomEventData
		if err := json.Unmarshal(message.Data, &payload); err != nil {
			log.Printf("Failed to unmarshal room event: %v", err)
			return err
		}

		log.Printf("Room event %s: room=%s members=%d", msg.RoutingKey, message.RoomID, len(payload.Room.Users))

		return nil
	})
}
