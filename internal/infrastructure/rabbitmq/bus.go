package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/burenotti/health-backend/internal/application"
	"github.com/burenotti/health-backend/internal/domain/entity"
)

// Bus publishes committed domain events to a durable AMQP queue. Events are
// sent one message each, in the order they are handed over, as JSON envelopes
// carrying the event name, timestamp and payload.
type Bus struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	Queue string
}

type envelope struct {
	Name       string             `json:"name"`
	OccurredAt time.Time          `json:"occurred_at"`
	Payload    entity.DomainEvent `json:"payload"`
}

func NewBus(url, queue string) (*Bus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	return &Bus{conn: conn, ch: ch, Queue: queue}, nil
}

func (b *Bus) Close() {
	if b == nil {
		return
	}
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
}

// Publish sends each event to the default exchange with the queue as routing
// key. The first failed publication aborts the batch.
func (b *Bus) Publish(ctx context.Context, events ...entity.DomainEvent) error {
	for _, event := range events {
		body, err := json.Marshal(envelope{
			Name:       event.Name(),
			OccurredAt: event.OccurredAt(),
			Payload:    event,
		})
		if err != nil {
			return fmt.Errorf("encode event %s: %w", event.Name(), err)
		}
		err = b.ch.PublishWithContext(ctx,
			"",      // default exchange
			b.Queue, // routing key = queue
			false,   // mandatory
			false,   // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now().UTC(),
				Type:         event.Name(),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish event %s: %w", event.Name(), err)
		}
	}
	return nil
}

var _ application.MessageBus = (*Bus)(nil)
