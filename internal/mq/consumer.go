package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const resubscribeDelay = time.Second

// Handler — функция обработки сообщения.
// Ошибка — сообщение возвращается в очередь (nack с requeue).
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	// Message — распарсенное сообщение.
	Message Message

	// Raw — сырое AMQP сообщение.
	Raw amqp.Delivery
}

// Consumer потребляет сообщения из очереди RabbitMQ и переподписывается
// после переподключения соединения.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	handler  Handler
	prefetch int

	cancelFunc context.CancelFunc
	mu         sync.Mutex
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue Queue

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — количество неподтверждённых сообщений (default: 1).
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", string(cfg.Queue)),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start потребляет сообщения до Stop или отмены ctx.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()
	defer cancel()

	err := c.consume(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// consume — основной цикл потребления. Каждая подписка живёт на своём
// канале; после разрыва consumer ждёт переподключения и подписывается
// заново.
func (c *Consumer) consume(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		reconnected := c.conn.ReconnectNotify()

		ch, deliveries, err := c.subscribe()
		if err != nil {
			if errors.Is(err, ErrConnectionClosed) {
				return err
			}
			c.logger.Error("failed to subscribe", "error", err)
			if err := c.waitReconnect(ctx, reconnected); err != nil {
				return err
			}
			continue
		}

		c.logger.Info("consumer subscribed", "prefetch", c.prefetch)

		err = c.processDeliveries(ctx, deliveries)
		if !ch.IsClosed() {
			// закрытие канала возвращает неподтверждённые сообщения в очередь
			_ = ch.Close()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("subscription lost, waiting for reconnect", "error", err)
		if err := c.waitReconnect(ctx, reconnected); err != nil {
			return err
		}
	}
}

// waitReconnect ждёт переподключения. Если соединение живо (брокер
// закрыл только канал), повторная подписка — через resubscribeDelay.
func (c *Consumer) waitReconnect(ctx context.Context, reconnected <-chan struct{}) error {
	var retry <-chan time.Time
	if c.conn.IsConnected() {
		retry = time.After(resubscribeDelay)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-reconnected:
		c.logger.Info("reconnected, resubscribing")
		return nil
	case <-retry:
		return nil
	}
}

// subscribe открывает канал, задаёт prefetch и подписывается на очередь.
func (c *Consumer) subscribe() (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := c.conn.OpenChannel()
	if err != nil {
		return nil, nil, err
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(c.queue), // queue
		"",              // consumer tag (auto-generated)
		false,           // auto-ack (мы ack вручную)
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return ch, deliveries, nil
}

// processDeliveries обрабатывает сообщения из канала.
func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery обрабатывает одно сообщение.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message",
			"error", err,
			"body", string(raw.Body),
		)
		// некорректное сообщение не вернётся в очередь
		if err := raw.Nack(false, false); err != nil {
			c.logger.Warn("nack failed", "error", err)
		}
		return
	}

	c.logger.Debug("received message",
		"message_id", msg.ID,
		"type", msg.Type,
	)

	if err := c.handler(ctx, &Delivery{Message: msg, Raw: raw}); err != nil {
		if ctx.Err() == nil {
			c.logger.Error("handler failed",
				"message_id", msg.ID,
				"type", msg.Type,
				"error", err,
			)
		}
		if err := raw.Nack(false, true); err != nil {
			c.logger.Warn("nack failed", "error", err)
		}
		return
	}

	if err := raw.Ack(false); err != nil {
		c.logger.Warn("ack failed", "message_id", msg.ID, "error", err)
	}
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// Payload после json.Unmarshal — map[string]any
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
