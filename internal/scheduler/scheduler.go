package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Durable/internal/executor"
	"github.com/shaiso/Durable/internal/provider"
)

// PollLockKey — глобальная блокировка опроса: в кластере опрашивает один узел.
const PollLockKey = "poll-runnables"

const defaultPollInterval = 10 * time.Second

// Poller периодически ставит в очередь экземпляры, чьё NextExecution
// наступило, и необработанные события.
//
// Poller — страховка для событийной доставки: подхватывает экземпляры
// после рестарта узла, просроченные таймеры и события, доставка
// которых была отложена.
type Poller struct {
	store    provider.PersistenceProvider
	queue    provider.QueueProvider
	locks    provider.LockProvider
	clock    executor.Clock
	schedule cron.Schedule
	logger   *slog.Logger
}

// Config — конфигурация Poller.
type Config struct {
	Store provider.PersistenceProvider
	Queue provider.QueueProvider
	Locks provider.LockProvider
	Clock executor.Clock

	// PollInterval — интервал опроса (default: 10s).
	PollInterval time.Duration

	// PollSchedule — cron-выражение вместо интервала (опционально).
	PollSchedule string

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Poller.
func New(cfg Config) (*Poller, error) {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	schedule, err := ParseSchedule(cfg.PollSchedule, interval)
	if err != nil {
		return nil, err
	}

	clock := cfg.Clock
	if clock == nil {
		clock = executor.SystemClock{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		store:    cfg.Store,
		queue:    cfg.Queue,
		locks:    cfg.Locks,
		clock:    clock,
		schedule: schedule,
		logger:   logger,
	}, nil
}

// Run выполняет Tick по расписанию до отмены ctx.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("starting runnable poller")

	for {
		now := time.Now()
		timer := time.NewTimer(p.schedule.Next(now).Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("runnable poller stopped")
			return nil
		case <-timer.C:
			if err := p.Tick(ctx); err != nil {
				p.logger.Error("poll failed", "error", err)
			}
		}
	}
}

// Tick выполняет один опрос.
//
// 1. Берёт глобальную блокировку (занята — другой узел уже опрашивает)
// 2. Ставит в очередь экземпляры с NextExecution <= now
// 3. Ставит в очередь необработанные события с Time <= now
//
// Ошибка постановки одного ID не блокирует остальные.
func (p *Poller) Tick(ctx context.Context) error {
	acquired, err := p.locks.AcquireLock(ctx, PollLockKey)
	if err != nil {
		return fmt.Errorf("acquire poll lock: %w", err)
	}
	if !acquired {
		p.logger.Debug("poll lock held by another node")
		return nil
	}
	defer func() {
		if err := p.locks.ReleaseLock(context.WithoutCancel(ctx), PollLockKey); err != nil {
			p.logger.Warn("failed to release poll lock", "error", err)
		}
	}()

	now := p.clock.Now()

	instances, err := p.store.GetRunnableInstances(ctx, now)
	if err != nil {
		return fmt.Errorf("get runnable instances: %w", err)
	}
	queuedInstances := p.enqueue(ctx, instances, provider.QueueWorkflow)

	events, err := p.store.GetRunnableEvents(ctx, now)
	if err != nil {
		return fmt.Errorf("get runnable events: %w", err)
	}
	queuedEvents := p.enqueue(ctx, events, provider.QueueEvent)

	if len(instances) > 0 || len(events) > 0 {
		p.logger.Info("poll completed",
			"instances", queuedInstances,
			"events", queuedEvents,
		)
	}
	return nil
}

func (p *Poller) enqueue(ctx context.Context, ids []string, queue provider.QueueType) int {
	var queued int
	for _, id := range ids {
		if err := p.queue.QueueWork(ctx, id, queue); err != nil {
			p.logger.Error("failed to queue work",
				"queue", queue,
				"id", id,
				"error", err,
			)
			continue
		}
		queued++
	}
	return queued
}
