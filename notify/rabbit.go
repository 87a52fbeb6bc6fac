package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const OrderCreatedQueue = "order.created.v1"

// Rabbit publishes order-created events to a durable queue for out-of-process
// consumers (push notifications, fulfilment).
type Rabbit struct {
	ch *amqp.Channel
}

func NewRabbit(conn *amqp.Connection) (*Rabbit, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(OrderCreatedQueue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare %s: %w", OrderCreatedQueue, err)
	}

	return &Rabbit{ch: ch}, nil
}

func (r *Rabbit) Close() error {
	return r.ch.Close()
}

func (r *Rabbit) OrderCreated(ctx context.Context, ev OrderCreatedEvent) error {
	msg, err := orderCreatedMessage(ev)
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := r.ch.PublishWithContext(pubCtx, "", OrderCreatedQueue, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", OrderCreatedQueue, err)
	}
	return nil
}

func orderCreatedMessage(ev OrderCreatedEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(struct {
		EventType string `json:"event_type"`
		OrderCreatedEvent
	}{"OrderCreated", ev})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal OrderCreated: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.OrderID,
		Timestamp:    ev.CreatedAt,
		Body:         body,
	}, nil
}
