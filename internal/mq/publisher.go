package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Durable/internal/provider"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeWorkflowReady MessageType = "workflow.ready"
	MessageTypeEventReady    MessageType = "event.ready"
)

var messageTypes = map[provider.QueueType]MessageType{
	provider.QueueWorkflow: MessageTypeWorkflowReady,
	provider.QueueEvent:    MessageTypeEventReady,
}

// ErrPublishNacked — брокер отказался принять сообщение.
var ErrPublishNacked = errors.New("publish nacked by broker")

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение очереди.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// WorkPayload — payload элемента очереди: ID экземпляра или события.
type WorkPayload struct {
	ID string `json:"id"`
}

// Publish публикует сообщение и ждёт подтверждения брокера.
// Без подтверждения сообщение считается не доставленным.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx,
			string(exchange),
			string(routingKey),
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		acked, err := confirm.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("wait publish confirm: %w", err)
		}
		if !acked {
			return fmt.Errorf("%w: %s/%s", ErrPublishNacked, exchange, routingKey)
		}

		p.logger.Debug("published message",
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishWork публикует ID в очередь движка.
func (p *Publisher) PublishWork(ctx context.Context, queue provider.QueueType, id string) error {
	r, err := routeFor(queue)
	if err != nil {
		return err
	}

	msg := &Message{
		ID:        uuid.NewString(),
		Type:      messageTypes[queue],
		Payload:   WorkPayload{ID: id},
		Timestamp: time.Now().UTC(),
	}
	return p.Publish(ctx, ExchangeWork, r.routingKey, msg)
}
