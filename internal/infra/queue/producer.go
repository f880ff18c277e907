package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xavierca1/leadpool/internal/usecase"
)

// Channel is the slice of *amqp.Channel the producer needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type RabbitMQProducer struct {
	Ch Channel
}

func NewProducer(ch Channel) *RabbitMQProducer {
	return &RabbitMQProducer{Ch: ch}
}

// PublishLeadAssigned emits a persistent lead.assigned message so the
// notification service can tell the new owner.
func (p *RabbitMQProducer) PublishLeadAssigned(ctx context.Context, event usecase.LeadAssignedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode lead assigned event: %w", err)
	}

	err = p.Ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Type:         RoutingKey,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publish lead %d assigned: %w", event.LeadID, err)
	}
	return nil
}
