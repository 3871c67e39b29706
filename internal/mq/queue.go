package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shaiso/Durable/internal/provider"
)

// QueueProvider — provider.QueueProvider на RabbitMQ.
//
// На каждую очередь движка запускается Consumer. Обработчик сообщения
// передаёт ID в DequeueWork через небуферизованный канал и
// подтверждает сообщение только после передачи: при остановке
// непереданные сообщения возвращаются в очередь.
type QueueProvider struct {
	conn      *Connection
	publisher *Publisher
	prefetch  int
	logger    *slog.Logger

	items map[provider.QueueType]chan string

	consumers []*Consumer
	wg        sync.WaitGroup
	mu        sync.Mutex
	started   bool
}

// QueueConfig — конфигурация QueueProvider.
type QueueConfig struct {
	// Prefetch — сообщений на consumer без подтверждения (default: 10).
	Prefetch int

	// Logger
	Logger *slog.Logger
}

// NewQueueProvider создаёт QueueProvider поверх соединения.
func NewQueueProvider(conn *Connection, cfg QueueConfig) *QueueProvider {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 10
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	items := make(map[provider.QueueType]chan string, len(routes))
	for queue := range routes {
		items[queue] = make(chan string)
	}

	return &QueueProvider{
		conn:      conn,
		publisher: NewPublisher(conn, logger),
		prefetch:  prefetch,
		logger:    logger,
		items:     items,
	}
}

var _ provider.QueueProvider = (*QueueProvider)(nil)

// Start объявляет топологию и запускает consumers.
func (q *QueueProvider) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return nil
	}

	if err := SetupTopology(ctx, q.conn); err != nil {
		return fmt.Errorf("setup topology: %w", err)
	}

	// consumers живут до Stop, а не до ctx вызова Start
	runCtx := context.WithoutCancel(ctx)
	for queue, r := range routes {
		consumer := NewConsumer(q.conn, q.logger, ConsumerConfig{
			Queue:    r.queue,
			Handler:  q.handoff(queue),
			Prefetch: q.prefetch,
		})
		q.consumers = append(q.consumers, consumer)

		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			if err := consumer.Start(runCtx); err != nil {
				q.logger.Error("queue consumer stopped with error", "queue", r.queue, "error", err)
			}
		}()
	}

	q.started = true
	q.logger.Info("rabbitmq queue provider started")
	return nil
}

// Stop останавливает consumers. Соединение закрывает владелец.
func (q *QueueProvider) Stop(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.started {
		return nil
	}

	for _, c := range q.consumers {
		c.Stop()
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("stop consumers: %w", ctx.Err())
	}

	q.consumers = nil
	q.started = false
	return nil
}

// QueueWork публикует ID в очередь.
func (q *QueueProvider) QueueWork(ctx context.Context, id string, queue provider.QueueType) error {
	return q.publisher.PublishWork(ctx, queue, id)
}

// DequeueWork ждёт следующий ID до отмены ctx.
func (q *QueueProvider) DequeueWork(ctx context.Context, queue provider.QueueType) (string, error) {
	items, ok := q.items[queue]
	if !ok {
		return "", fmt.Errorf("unknown queue type %q", queue)
	}

	select {
	case id := <-items:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// IsDequeueBlocking реализует provider.QueueProvider.
func (q *QueueProvider) IsDequeueBlocking() bool {
	return true
}

// handoff возвращает обработчик, передающий ID в DequeueWork.
func (q *QueueProvider) handoff(queue provider.QueueType) Handler {
	items := q.items[queue]
	return func(ctx context.Context, d *Delivery) error {
		payload, err := ParsePayload[WorkPayload](&d.Message)
		if err != nil {
			return err
		}
		if payload.ID == "" {
			// пустой ID не обработать, в очередь не возвращаем
			q.logger.Warn("message without id dropped", "message_id", d.Message.ID)
			return nil
		}

		select {
		case items <- payload.ID:
			return nil
		case <-ctx.Done():
			return errors.Join(errHandoffCancelled, ctx.Err())
		}
	}
}

var errHandoffCancelled = errors.New("handoff cancelled")
