package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	OrdersExchange = "orders_topic"
	KitchenQueue   = "kitchen.q"
)

// RabbitMQ publishes order events to a durable topic exchange with publisher
// confirms. Each Publish waits on the confirmation of its own delivery tag.
type RabbitMQ struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func DialRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	r := &RabbitMQ{conn: conn, ch: ch}
	if err := r.declare(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *RabbitMQ) declare() error {
	if err := r.ch.ExchangeDeclare(OrdersExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if _, err := r.ch.QueueDeclare(KitchenQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := r.ch.QueueBind(KitchenQueue, "order.#", OrdersExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	return nil
}

// Publish routes the event by its type, e.g. "order.created".
func (r *RabbitMQ) Publish(ctx context.Context, event OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	confirm, err := r.ch.PublishWithDeferredConfirmWithContext(ctx, OrdersExchange, string(event.Type), false, false, amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		Timestamp:     time.Now().UTC(),
		CorrelationId: event.Order.ID,
		Headers:       amqp.Table{"x-source": "cafe-bot"},
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish order event: %w", err)
	}

	if confirm == nil {
		return errors.New("channel is not in confirm mode")
	}
	return waitConfirm(ctx, confirm)
}

// ackWaiter is the part of *amqp.DeferredConfirmation that Publish relies on.
type ackWaiter interface {
	WaitContext(ctx context.Context) (bool, error)
}

func waitConfirm(ctx context.Context, confirm ackWaiter) error {
	ack, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to wait for publish confirm: %w", err)
	}
	if !ack {
		return errors.New("publish NACK from broker")
	}
	return nil
}

func (r *RabbitMQ) Ping() error {
	if r.conn == nil || r.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

func (r *RabbitMQ) Close() {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
}
