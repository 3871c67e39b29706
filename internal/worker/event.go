package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Durable/internal/domain"
	"github.com/shaiso/Durable/internal/executor"
	"github.com/shaiso/Durable/internal/provider"
	"github.com/shaiso/Durable/internal/telemetry"
)

// eventLockPrefix — префикс ключа блокировки события.
const eventLockPrefix = "evt:"

// EventProcessor доставляет опубликованные события в ожидающие экземпляры.
//
// Для каждой подписки на событие под блокировкой экземпляра помечает
// ожидающие указатели опубликованными, активирует их и ставит
// экземпляр в очередь. Событие считается обработанным, только когда
// доставлено во все подписки; иначе его снова подхватит poller.
type EventProcessor struct {
	store provider.PersistenceProvider
	queue provider.QueueProvider
	locks provider.LockProvider
	clock executor.Clock

	logger *slog.Logger
}

// EventConfig — конфигурация EventProcessor.
type EventConfig struct {
	Store provider.PersistenceProvider
	Queue provider.QueueProvider
	Locks provider.LockProvider
	Clock executor.Clock

	// Logger
	Logger *slog.Logger
}

// NewEventProcessor создаёт новый EventProcessor.
func NewEventProcessor(cfg EventConfig) *EventProcessor {
	clock := cfg.Clock
	if clock == nil {
		clock = executor.SystemClock{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &EventProcessor{
		store:  cfg.Store,
		queue:  cfg.Queue,
		locks:  cfg.Locks,
		clock:  clock,
		logger: logger,
	}
}

// Process доставляет событие id.
func (p *EventProcessor) Process(ctx context.Context, id string) error {
	logger := telemetry.WithEventID(p.logger, id)

	acquired, err := p.locks.AcquireLock(ctx, eventLockPrefix+id)
	if err != nil {
		return fmt.Errorf("acquire event lock: %w", err)
	}
	if !acquired {
		logger.Info("event locked by another worker")
		return nil
	}
	defer p.release(ctx, eventLockPrefix+id)

	evt, err := p.store.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			logger.Warn("event not found, skipping")
			return nil
		}
		return fmt.Errorf("get event: %w", err)
	}

	if evt.IsProcessed {
		return nil
	}
	if evt.Time.After(p.clock.Now()) {
		// ещё не наступило, подхватит poller
		logger.Debug("event not effective yet", "time", evt.Time)
		return nil
	}

	subs, err := p.store.GetSubscriptions(ctx, evt.Name, evt.Key, evt.Time)
	if err != nil {
		return fmt.Errorf("get subscriptions: %w", err)
	}

	complete := true
	for _, sub := range subs {
		seeded, err := p.seedSubscription(ctx, evt, sub)
		if err != nil {
			logger.Error("failed to deliver event",
				"workflow_id", sub.WorkflowID,
				"subscription_id", sub.ID,
				"error", err,
			)
		}
		complete = complete && seeded
	}

	if !complete {
		logger.Info("event delivered partially, will retry", "subscriptions", len(subs))
		return nil
	}

	if err := p.store.MarkEventProcessed(ctx, id); err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}

	logger.Info("event processed",
		"event_name", evt.Name,
		"event_key", evt.Key,
		"subscriptions", len(subs),
	)
	return nil
}

// seedSubscription доставляет событие в экземпляр подписки.
// false — экземпляр занят или изменился, доставку нужно повторить.
func (p *EventProcessor) seedSubscription(ctx context.Context, evt *domain.Event, sub *domain.EventSubscription) (bool, error) {
	acquired, err := p.locks.AcquireLock(ctx, sub.WorkflowID)
	if err != nil {
		return false, fmt.Errorf("acquire workflow lock: %w", err)
	}
	if !acquired {
		p.logger.Info("workflow locked, event delivery postponed", "workflow_id", sub.WorkflowID)
		return false, nil
	}
	defer p.release(ctx, sub.WorkflowID)

	wf, err := p.store.GetWorkflow(ctx, sub.WorkflowID)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return true, p.store.TerminateSubscription(ctx, sub.ID)
		}
		return false, fmt.Errorf("get workflow: %w", err)
	}

	if wf.IsFinished() {
		return true, p.store.TerminateSubscription(ctx, sub.ID)
	}

	for _, ptr := range wf.ExecutionPointers {
		if ptr.EventName != sub.EventName || ptr.EventKey != sub.EventKey {
			continue
		}
		if ptr.EventPublished || ptr.IsEnded() {
			continue
		}
		ptr.EventData = evt.Data
		ptr.EventPublished = true
		ptr.Active = true
	}
	wf.ScheduleAt(0)

	if err := p.store.PersistWorkflow(ctx, wf); err != nil {
		if errors.Is(err, provider.ErrConcurrentUpdate) {
			return false, nil
		}
		return false, fmt.Errorf("persist workflow: %w", err)
	}

	if err := p.store.TerminateSubscription(ctx, sub.ID); err != nil {
		return false, fmt.Errorf("terminate subscription: %w", err)
	}

	if err := p.queue.QueueWork(ctx, wf.ID, provider.QueueWorkflow); err != nil {
		// NextExecution = 0, экземпляр подхватит poller
		p.logger.Warn("failed to queue workflow after event", "workflow_id", wf.ID, "error", err)
	}
	return true, nil
}

func (p *EventProcessor) release(ctx context.Context, key string) {
	if err := p.locks.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
		p.logger.Warn("failed to release lock", "key", key, "error", err)
	}
}
