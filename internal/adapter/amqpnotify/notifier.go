// Package amqpnotify implements the notification channel over RabbitMQ.
// Reminders are published to a topic exchange; the delivery surface (email,
// push) lives in downstream consumers.
package amqpnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/google/uuid"

	"github.com/heartmarshall/leerming-backend/internal/config"
	"github.com/heartmarshall/leerming-backend/internal/domain"
)

// message is the wire format of a learner notification.
type message struct {
	LearnerID uuid.UUID          `json:"learner_id"`
	Kind      domain.MessageKind `json:"kind"`
	SentAt    time.Time          `json:"sent_at"`
}

// Notifier publishes learner notifications to a RabbitMQ topic exchange.
type Notifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// New dials RabbitMQ, declares the exchange, and returns a ready Notifier.
func New(cfg config.NotifyConfig) (*Notifier, error) {
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	return &Notifier{conn: conn, channel: channel, exchange: cfg.Exchange}, nil
}

// Send publishes one notification for a learner. Delivery past the broker is
// the consumer's problem; Send only guarantees the publish.
func (n *Notifier) Send(ctx context.Context, learnerID uuid.UUID, kind domain.MessageKind) error {
	body, err := json.Marshal(message{
		LearnerID: learnerID,
		Kind:      kind,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	err = n.channel.PublishWithContext(ctx,
		n.exchange,
		routingKey(kind),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	return nil
}

// Close shuts down the channel and connection.
func (n *Notifier) Close() error {
	if err := n.channel.Close(); err != nil {
		_ = n.conn.Close()
		return fmt.Errorf("close amqp channel: %w", err)
	}
	if err := n.conn.Close(); err != nil {
		return fmt.Errorf("close amqp connection: %w", err)
	}

	return nil
}

// routingKey maps a message kind to its topic, e.g. REVIEW_REMINDER →
// learner.notify.review_reminder.
func routingKey(kind domain.MessageKind) string {
	switch kind {
	case domain.MessageKindReviewReminder:
		return "learner.notify.review_reminder"
	default:
		return "learner.notify.unknown"
	}
}
