package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Durable/internal/domain"
	"github.com/shaiso/Durable/internal/engine"
	"github.com/shaiso/Durable/internal/executor"
	"github.com/shaiso/Durable/internal/provider"
	"github.com/shaiso/Durable/internal/scheduler"
	"github.com/shaiso/Durable/internal/worker"
)

// Host собирает движок: реестр, executor, циклы очередей, poller и
// Controller.
//
// Host — центральный компонент процесса, который:
//   - Проверяет хранилище и открывает очередь и блокировки
//   - Запускает consumer для очереди экземпляров
//   - Запускает consumer для очереди событий
//   - Запускает poller (fallback для таймеров и рестартов)
//   - Пробрасывает операции Controller
type Host struct {
	registry *engine.Registry
	store    provider.PersistenceProvider
	queue    provider.QueueProvider
	locks    provider.LockProvider

	controller *Controller
	workflows  *worker.WorkflowProcessor
	events     *worker.EventProcessor
	poller     *scheduler.Poller

	workflowConsumer *worker.Consumer
	eventConsumer    *worker.Consumer

	// Step error callbacks
	stepErrors   []executor.StepErrorHandler
	stepErrorsMu sync.RWMutex

	// Lifecycle
	logger  *slog.Logger
	cancel  context.CancelFunc
	group   *errgroup.Group
	running bool
	mu      sync.Mutex
}

// Config — конфигурация Host.
type Config struct {
	// Registry — реестр определений (default: пустой).
	Registry *engine.Registry

	// Bodies — тела шагов по BodyType.
	Bodies executor.BodyProvider

	// Providers
	Store provider.PersistenceProvider
	Queue provider.QueueProvider
	Locks provider.LockProvider

	// Clock (default: SystemClock)
	Clock executor.Clock

	// PollInterval — интервал poller и горизонт отложенной постановки (default: 10s).
	PollInterval time.Duration

	// PollSchedule — cron-выражение poller вместо PollInterval.
	PollSchedule string

	// IdleTime — пауза consumer на пустой неблокирующей очереди (default: 100ms).
	IdleTime time.Duration

	// ErrorRetryInterval — задержка повтора шага после ошибки и пауза
	// consumer после ошибки очереди (default: 60s).
	ErrorRetryInterval time.Duration

	// MaxConcurrentWorkflows, MaxConcurrentEvents — ёмкость consumer
	// (default: max(GOMAXPROCS, 2)).
	MaxConcurrentWorkflows int
	MaxConcurrentEvents    int

	// Logger
	Logger *slog.Logger
}

// New создаёт Host. Процесс ничего не запускает до Start.
func New(cfg Config) (*Host, error) {
	registry := cfg.Registry
	if registry == nil {
		registry = engine.NewRegistry()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Host{
		registry: registry,
		store:    cfg.Store,
		queue:    cfg.Queue,
		locks:    cfg.Locks,
		logger:   logger,
	}

	exec := executor.New(executor.Config{
		Registry:           registry,
		Bodies:             cfg.Bodies,
		Clock:              cfg.Clock,
		ErrorRetryInterval: cfg.ErrorRetryInterval,
		OnStepError:        []executor.StepErrorHandler{h.notifyStepError},
		Logger:             logger.With("component", "executor"),
	})

	h.controller = NewController(ControllerConfig{
		Registry: registry,
		Store:    cfg.Store,
		Queue:    cfg.Queue,
		Locks:    cfg.Locks,
		Clock:    cfg.Clock,
		Logger:   logger.With("component", "controller"),
	})

	h.workflows = worker.NewWorkflowProcessor(worker.WorkflowConfig{
		Store:        cfg.Store,
		Queue:        cfg.Queue,
		Executor:     exec,
		Clock:        cfg.Clock,
		PollInterval: cfg.PollInterval,
		Logger:       logger.With("component", "workflow-processor"),
	})

	h.events = worker.NewEventProcessor(worker.EventConfig{
		Store:  cfg.Store,
		Queue:  cfg.Queue,
		Locks:  cfg.Locks,
		Clock:  cfg.Clock,
		Logger: logger.With("component", "event-processor"),
	})

	poller, err := scheduler.New(scheduler.Config{
		Store:        cfg.Store,
		Queue:        cfg.Queue,
		Locks:        cfg.Locks,
		Clock:        cfg.Clock,
		PollInterval: cfg.PollInterval,
		PollSchedule: cfg.PollSchedule,
		Logger:       logger.With("component", "poller"),
	})
	if err != nil {
		return nil, fmt.Errorf("create poller: %w", err)
	}
	h.poller = poller

	h.workflowConsumer = worker.NewConsumer(worker.ConsumerConfig{
		Queue:              cfg.Queue,
		QueueType:          provider.QueueWorkflow,
		Process:            h.workflows.Process,
		MaxConcurrentItems: cfg.MaxConcurrentWorkflows,
		IdleTime:           cfg.IdleTime,
		ErrorRetryInterval: cfg.ErrorRetryInterval,
		Logger:             logger.With("component", "workflow-consumer"),
	})

	h.eventConsumer = worker.NewConsumer(worker.ConsumerConfig{
		Queue:              cfg.Queue,
		QueueType:          provider.QueueEvent,
		Process:            h.events.Process,
		MaxConcurrentItems: cfg.MaxConcurrentEvents,
		IdleTime:           cfg.IdleTime,
		ErrorRetryInterval: cfg.ErrorRetryInterval,
		Logger:             logger.With("component", "event-consumer"),
	})

	return h, nil
}

// Start запускает Host.
//
// Порядок:
//   - EnsureStoreExists
//   - Start провайдеров очереди и блокировок
//   - Consumer для очереди экземпляров и очереди событий
//   - Poller
//
// Циклы работают до Stop или отмены ctx.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrHostRunning
	}

	h.logger.Info("starting host", "definitions", h.registry.Count())

	if err := h.store.EnsureStoreExists(ctx); err != nil {
		return fmt.Errorf("ensure store: %w", err)
	}
	if err := h.locks.Start(ctx); err != nil {
		return fmt.Errorf("start lock provider: %w", err)
	}
	if err := h.queue.Start(ctx); err != nil {
		return errors.Join(
			fmt.Errorf("start queue provider: %w", err),
			h.locks.Stop(ctx),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error { return h.workflowConsumer.Run(groupCtx) })
	group.Go(func() error { return h.eventConsumer.Run(groupCtx) })
	group.Go(func() error { return h.poller.Run(groupCtx) })

	h.cancel = cancel
	h.group = group
	h.running = true

	h.logger.Info("host started")
	return nil
}

// Stop останавливает циклы, дожидается элементов в работе и закрывает
// провайдеры очереди и блокировок.
func (h *Host) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHostStopped
	}

	h.logger.Info("stopping host...")

	h.cancel()
	loopErr := h.group.Wait()
	h.workflows.Close()
	h.running = false

	err := errors.Join(
		loopErr,
		h.queue.Stop(ctx),
		h.locks.Stop(ctx),
	)

	h.logger.Info("host stopped")
	return err
}

// IsRunning проверяет, запущен ли Host.
func (h *Host) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Registry возвращает реестр определений.
func (h *Host) Registry() *engine.Registry {
	return h.registry
}

// RegisterWorkflow регистрирует определение.
func (h *Host) RegisterWorkflow(def *engine.Definition) error {
	if err := h.registry.Register(def); err != nil {
		return err
	}
	if unreachable, err := engine.UnreachableSteps(def); err == nil && len(unreachable) > 0 {
		h.logger.Warn("workflow has unreachable steps",
			"definition_id", def.ID,
			"version", def.Version,
			"steps", unreachable,
		)
	}
	h.logger.Info("workflow registered", "definition_id", def.ID, "version", def.Version)
	return nil
}

// OnStepError добавляет обработчик ошибок шагов.
func (h *Host) OnStepError(handler executor.StepErrorHandler) {
	h.stepErrorsMu.Lock()
	defer h.stepErrorsMu.Unlock()
	h.stepErrors = append(h.stepErrors, handler)
}

func (h *Host) notifyStepError(wf *domain.WorkflowInstance, step *engine.Step, err error) {
	h.stepErrorsMu.RLock()
	handlers := h.stepErrors
	h.stepErrorsMu.RUnlock()

	for _, handler := range handlers {
		handler(wf, step, err)
	}
}

// StartWorkflow запускает новый экземпляр.
func (h *Host) StartWorkflow(ctx context.Context, req StartRequest) (string, error) {
	return h.controller.StartWorkflow(ctx, req)
}

// PublishEvent публикует событие.
func (h *Host) PublishEvent(ctx context.Context, name, key string, data any, effective time.Time) (string, error) {
	return h.controller.PublishEvent(ctx, name, key, data, effective)
}

// SuspendWorkflow приостанавливает экземпляр.
func (h *Host) SuspendWorkflow(ctx context.Context, id string) (bool, error) {
	return h.controller.SuspendWorkflow(ctx, id)
}

// ResumeWorkflow возобновляет экземпляр.
func (h *Host) ResumeWorkflow(ctx context.Context, id string) (bool, error) {
	return h.controller.ResumeWorkflow(ctx, id)
}

// TerminateWorkflow останавливает экземпляр.
func (h *Host) TerminateWorkflow(ctx context.Context, id string) (bool, error) {
	return h.controller.TerminateWorkflow(ctx, id)
}

// GetWorkflow возвращает экземпляр.
func (h *Host) GetWorkflow(ctx context.Context, id string) (*domain.WorkflowInstance, error) {
	return h.store.GetWorkflow(ctx, id)
}

// ListWorkflows возвращает экземпляры по фильтру.
func (h *Host) ListWorkflows(ctx context.Context, filter domain.InstanceFilter) ([]*domain.WorkflowInstance, error) {
	return h.store.GetWorkflowInstances(ctx, filter)
}

// GetErrors возвращает журнал ошибок экземпляра.
func (h *Host) GetErrors(ctx context.Context, id string) ([]domain.ExecutionError, error) {
	return h.store.GetErrors(ctx, id)
}
