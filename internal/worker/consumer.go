package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/shaiso/Durable/internal/provider"
	"github.com/shaiso/Durable/internal/telemetry"
)

// Default configuration values.
const (
	defaultIdleTime           = 100 * time.Millisecond
	defaultErrorRetryInterval = 60 * time.Second
)

// ProcessFunc обрабатывает один элемент очереди.
type ProcessFunc func(ctx context.Context, id string) error

// Consumer — цикл обработки одной очереди с ограниченной параллельностью.
//
// Consumer:
//   - ждёт свободного слота (не больше MaxConcurrentItems элементов в работе)
//   - забирает ID из очереди (учитывая IsDequeueBlocking)
//   - запускает обработку в отдельной горутине
//   - возвращает ID в очередь, если слот занять не удалось
//
// Один ID никогда не обрабатывается дважды одновременно: повторная
// доставка во время обработки превращается в один перезапуск после неё.
// При отмене контекста Consumer перестаёт забирать элементы и ждёт
// завершения начатых (шаги не прерываются).
type Consumer struct {
	queue     provider.QueueProvider
	queueType provider.QueueType
	process   ProcessFunc

	sem        *semaphore.Weighted
	capacity   int
	idleTime   time.Duration
	errorRetry time.Duration

	// ID в работе → запрошен перезапуск
	inFlight map[string]bool
	mu       sync.Mutex
	wg       sync.WaitGroup

	logger *slog.Logger
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	Queue     provider.QueueProvider
	QueueType provider.QueueType
	Process   ProcessFunc

	// MaxConcurrentItems — размер набора обработчиков (default: max(GOMAXPROCS, 2)).
	MaxConcurrentItems int

	// IdleTime — пауза при пустой неблокирующей очереди (default: 100ms).
	IdleTime time.Duration

	// ErrorRetryInterval — пауза после ошибки очереди (default: 60s).
	ErrorRetryInterval time.Duration

	// Logger
	Logger *slog.Logger
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(cfg ConsumerConfig) *Consumer {
	capacity := cfg.MaxConcurrentItems
	if capacity <= 0 {
		capacity = max(runtime.GOMAXPROCS(0), 2)
	}

	idle := cfg.IdleTime
	if idle <= 0 {
		idle = defaultIdleTime
	}

	errorRetry := cfg.ErrorRetryInterval
	if errorRetry <= 0 {
		errorRetry = defaultErrorRetryInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		queue:      cfg.Queue,
		queueType:  cfg.QueueType,
		process:    cfg.Process,
		sem:        semaphore.NewWeighted(int64(capacity)),
		capacity:   capacity,
		idleTime:   idle,
		errorRetry: errorRetry,
		inFlight:   make(map[string]bool),
		logger:     logger.With("queue", cfg.QueueType.String()),
	}
}

// Run выполняет цикл до отмены ctx, затем дожидается элементов в работе.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("starting queue consumer",
		"max_concurrent_items", c.capacity,
		"blocking", c.queue.IsDequeueBlocking(),
	)

	for ctx.Err() == nil {
		if !c.waitForSlot(ctx) {
			break
		}

		id, err := c.queue.DequeueWork(ctx, c.queueType)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.logger.Error("failed to dequeue work", "error", err, "retry_in", c.errorRetry)
			c.sleep(ctx, c.errorRetry)
			continue
		}

		if id == "" {
			if !c.queue.IsDequeueBlocking() {
				c.sleep(ctx, c.idleTime)
			}
			continue
		}

		c.dispatch(ctx, id)
	}

	c.logger.Info("queue consumer draining", "in_flight", c.InFlight())
	c.wg.Wait()
	c.logger.Info("queue consumer stopped")
	return nil
}

// InFlight возвращает количество элементов в работе.
func (c *Consumer) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inFlight)
}

// waitForSlot ждёт, пока в работе меньше capacity элементов.
// Возвращает false, если ctx отменён.
func (c *Consumer) waitForSlot(ctx context.Context) bool {
	for c.InFlight() >= c.capacity {
		if !c.sleep(ctx, c.idleTime) {
			return false
		}
	}
	return true
}

// dispatch передаёт ID в набор обработчиков.
func (c *Consumer) dispatch(ctx context.Context, id string) {
	c.mu.Lock()
	if _, running := c.inFlight[id]; running {
		c.inFlight[id] = true
		c.mu.Unlock()
		c.logger.Debug("item already in flight, rerun scheduled", "id", id)
		return
	}
	if !c.sem.TryAcquire(1) {
		c.mu.Unlock()
		c.requeue(ctx, id)
		return
	}
	c.inFlight[id] = false
	c.mu.Unlock()

	queue := c.queueType.String()
	telemetry.QueueDispatched.WithLabelValues(queue).Inc()
	telemetry.QueueInFlight.WithLabelValues(queue).Inc()

	// обработка не прерывается отменой цикла
	workCtx := context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer telemetry.QueueInFlight.WithLabelValues(queue).Dec()
		defer c.sem.Release(1)

		for {
			c.runItem(workCtx, id)

			c.mu.Lock()
			rerun := c.inFlight[id]
			if rerun && ctx.Err() == nil {
				c.inFlight[id] = false
				c.mu.Unlock()
				continue
			}
			delete(c.inFlight, id)
			c.mu.Unlock()

			if rerun {
				// остановка: перезапуск достанется следующему узлу
				c.requeue(workCtx, id)
			}
			return
		}
	}()
}

// runItem обрабатывает элемент. Ошибки и паники логируются и не
// останавливают цикл.
func (c *Consumer) runItem(ctx context.Context, id string) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.QueueFailed.WithLabelValues(c.queueType.String()).Inc()
			c.logger.Error("item processing panicked", "id", id, "panic", fmt.Sprint(r))
		}
	}()

	if err := c.process(ctx, id); err != nil {
		telemetry.QueueFailed.WithLabelValues(c.queueType.String()).Inc()
		c.logger.Error("item processing failed", "id", id, "error", err)
	}
}

// requeue возвращает ID в очередь.
func (c *Consumer) requeue(ctx context.Context, id string) {
	telemetry.QueueRequeued.WithLabelValues(c.queueType.String()).Inc()
	if err := c.queue.QueueWork(context.WithoutCancel(ctx), id, c.queueType); err != nil {
		c.logger.Error("failed to requeue item", "id", id, "error", err)
	}
}

// sleep ждёт d или отмены ctx. false — ctx отменён.
func (c *Consumer) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
