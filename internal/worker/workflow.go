package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Durable/internal/domain"
	"github.com/shaiso/Durable/internal/executor"
	"github.com/shaiso/Durable/internal/provider"
	"github.com/shaiso/Durable/internal/telemetry"
)

const defaultPollInterval = 10 * time.Second

// WorkflowProcessor обрабатывает элементы очереди экземпляров:
// загружает экземпляр, выполняет проход executor и сохраняет результат.
//
// Блокировка экземпляра во время прохода не берётся: конкурентные
// записи отсекает ревизия в хранилище, проигравший проход
// возвращает ID в очередь.
type WorkflowProcessor struct {
	store    provider.PersistenceProvider
	queue    provider.QueueProvider
	executor *executor.Executor
	clock    executor.Clock

	pollInterval time.Duration

	// отложенные постановки в очередь (read-ahead)
	timers   map[string]*time.Timer
	timersMu sync.Mutex

	logger *slog.Logger
}

// WorkflowConfig — конфигурация WorkflowProcessor.
type WorkflowConfig struct {
	Store    provider.PersistenceProvider
	Queue    provider.QueueProvider
	Executor *executor.Executor
	Clock    executor.Clock

	// PollInterval — горизонт отложенной постановки (default: 10s).
	// Экземпляры с NextExecution дальше этого горизонта подхватит poller.
	PollInterval time.Duration

	// Logger
	Logger *slog.Logger
}

// NewWorkflowProcessor создаёт новый WorkflowProcessor.
func NewWorkflowProcessor(cfg WorkflowConfig) *WorkflowProcessor {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	clock := cfg.Clock
	if clock == nil {
		clock = executor.SystemClock{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &WorkflowProcessor{
		store:        cfg.Store,
		queue:        cfg.Queue,
		executor:     cfg.Executor,
		clock:        clock,
		pollInterval: pollInterval,
		timers:       make(map[string]*time.Timer),
		logger:       logger,
	}
}

// Process выполняет один проход по экземпляру id.
func (p *WorkflowProcessor) Process(ctx context.Context, id string) error {
	logger := telemetry.WithInstanceID(p.logger, id)

	wf, err := p.store.GetWorkflow(ctx, id)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			logger.Warn("workflow not found, skipping")
			return nil
		}
		return fmt.Errorf("get workflow: %w", err)
	}

	if wf.Status != domain.WorkflowStatusRunnable {
		logger.Debug("workflow not runnable, skipping", "status", wf.Status)
		return nil
	}

	result, err := p.executor.Execute(ctx, wf)
	if err != nil {
		return fmt.Errorf("execute workflow: %w", err)
	}
	if result.Unregistered {
		// экземпляр не менялся; повтор придёт от poller, а не сразу из очереди
		return nil
	}

	if err := p.store.PersistWorkflow(ctx, wf); err != nil {
		if errors.Is(err, provider.ErrConcurrentUpdate) {
			logger.Warn("workflow changed during pass, requeueing")
			telemetry.QueueRequeued.WithLabelValues(provider.QueueWorkflow.String()).Inc()
			return p.queue.QueueWork(ctx, id, provider.QueueWorkflow)
		}
		return fmt.Errorf("persist workflow: %w", err)
	}

	if len(result.Errors) > 0 {
		if err := p.store.PersistErrors(ctx, result.Errors); err != nil {
			logger.Error("failed to persist execution errors", "count", len(result.Errors), "error", err)
		}
	}

	for i := range result.Subscriptions {
		if err := p.subscribeEvent(ctx, &result.Subscriptions[i]); err != nil {
			return fmt.Errorf("subscribe event: %w", err)
		}
	}

	if wf.Status == domain.WorkflowStatusComplete {
		logger.Info("workflow complete", "duration", wf.Duration())
	}

	p.queueFuture(ctx, wf)
	return nil
}

// subscribeEvent сохраняет подписку и возвращает в обработку события,
// опубликованные до её появления.
func (p *WorkflowProcessor) subscribeEvent(ctx context.Context, sub *domain.EventSubscription) error {
	if _, err := p.store.CreateEventSubscription(ctx, sub); err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}

	p.logger.Debug("event subscription created",
		"workflow_id", sub.WorkflowID,
		"event_name", sub.EventName,
		"event_key", sub.EventKey,
	)

	ids, err := p.store.GetEvents(ctx, sub.EventName, sub.EventKey, sub.SubscribeAs, domain.AnyEvents)
	if err != nil {
		return fmt.Errorf("get events: %w", err)
	}

	for _, evtID := range ids {
		if err := p.store.MarkEventUnprocessed(ctx, evtID); err != nil {
			return fmt.Errorf("mark event unprocessed: %w", err)
		}
		if err := p.queue.QueueWork(ctx, evtID, provider.QueueEvent); err != nil {
			return fmt.Errorf("queue event: %w", err)
		}
	}
	return nil
}

// queueFuture ставит экземпляр в очередь к NextExecution, если оно
// наступает раньше следующего опроса.
func (p *WorkflowProcessor) queueFuture(ctx context.Context, wf *domain.WorkflowInstance) {
	if wf.Status != domain.WorkflowStatusRunnable || wf.NextExecution == nil {
		return
	}

	now := p.clock.Now()
	next := time.UnixMilli(*wf.NextExecution)
	if !next.Before(now.Add(p.pollInterval)) {
		return
	}

	delay := next.Sub(now)
	if delay <= 0 {
		if err := p.queue.QueueWork(ctx, wf.ID, provider.QueueWorkflow); err != nil {
			p.logger.Error("failed to requeue workflow", "workflow_id", wf.ID, "error", err)
		}
		return
	}

	id := wf.ID
	p.timersMu.Lock()
	defer p.timersMu.Unlock()

	if existing, ok := p.timers[id]; ok {
		existing.Stop()
	}
	p.timers[id] = time.AfterFunc(delay, func() {
		p.timersMu.Lock()
		delete(p.timers, id)
		p.timersMu.Unlock()

		if err := p.queue.QueueWork(context.Background(), id, provider.QueueWorkflow); err != nil {
			p.logger.Error("failed to queue delayed workflow", "workflow_id", id, "error", err)
		}
	})
}

// PendingTimers возвращает количество отложенных постановок.
func (p *WorkflowProcessor) PendingTimers() int {
	p.timersMu.Lock()
	defer p.timersMu.Unlock()
	return len(p.timers)
}

// Close отменяет отложенные постановки. Экземпляры подхватит poller.
func (p *WorkflowProcessor) Close() {
	p.timersMu.Lock()
	defer p.timersMu.Unlock()

	for id, timer := range p.timers {
		timer.Stop()
		delete(p.timers, id)
	}
}
