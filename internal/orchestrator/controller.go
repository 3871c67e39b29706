package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Durable/internal/domain"
	"github.com/shaiso/Durable/internal/engine"
	"github.com/shaiso/Durable/internal/executor"
	"github.com/shaiso/Durable/internal/provider"
	"github.com/shaiso/Durable/internal/telemetry"
)

// Результаты операций для метрики ControllerOperations.
const (
	resultOK     = "ok"
	resultNoop   = "noop"
	resultLocked = "locked"
	resultError  = "error"
)

// Controller выполняет операции над статусом экземпляров.
//
// Каждая операция берёт блокировку экземпляра (ключ — ID экземпляра)
// только на время проверки и изменения статуса. Проход executor
// блокировку не берёт.
type Controller struct {
	registry *engine.Registry
	store    provider.PersistenceProvider
	queue    provider.QueueProvider
	locks    provider.LockProvider
	clock    executor.Clock
	logger   *slog.Logger
}

// ControllerConfig — конфигурация Controller.
type ControllerConfig struct {
	Registry *engine.Registry
	Store    provider.PersistenceProvider
	Queue    provider.QueueProvider
	Locks    provider.LockProvider
	Clock    executor.Clock

	// Logger
	Logger *slog.Logger
}

// NewController создаёт новый Controller.
func NewController(cfg ControllerConfig) *Controller {
	clock := cfg.Clock
	if clock == nil {
		clock = executor.SystemClock{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		registry: cfg.Registry,
		store:    cfg.Store,
		queue:    cfg.Queue,
		locks:    cfg.Locks,
		clock:    clock,
		logger:   logger,
	}
}

// StartRequest — параметры запуска экземпляра.
type StartRequest struct {
	DefinitionID string
	// Version — версия определения; 0 — последняя.
	Version  int
	TenantID string

	// Data — данные экземпляра. Nil — NewData() определения.
	Data any

	Reference string
	UserID    string
}

// StartWorkflow создаёт экземпляр и ставит его в очередь.
// Возвращает ID нового экземпляра.
func (c *Controller) StartWorkflow(ctx context.Context, req StartRequest) (id string, err error) {
	defer func() { c.observe("start", err == nil, true, errors.Is(err, ErrInstanceLocked)) }()

	def, err := c.registry.Get(req.DefinitionID, req.Version, req.TenantID)
	if err != nil {
		return "", err
	}

	now := c.clock.Now()
	wf := &domain.WorkflowInstance{
		ID:                uuid.NewString(),
		DefinitionID:      def.ID,
		Version:           def.Version,
		TenantID:          def.TenantID,
		Description:       def.Description,
		Reference:         req.Reference,
		UserID:            req.UserID,
		Status:            domain.WorkflowStatusRunnable,
		Data:              req.Data,
		CreateTime:        now,
		ExecutionPointers: domain.PointerCollection{engine.NewGenesisPointer(def)},
	}
	if wf.Data == nil && def.NewData != nil {
		wf.Data = def.NewData()
	}
	wf.ScheduleAt(0)

	acquired, err := c.locks.AcquireLock(ctx, wf.ID)
	if err != nil {
		return "", fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		return "", fmt.Errorf("%w: %s", ErrInstanceLocked, wf.ID)
	}

	if err := c.create(ctx, wf); err != nil {
		return "", err
	}

	telemetry.WithDefinition(telemetry.WithInstanceID(c.logger, wf.ID), def.ID, def.Version).
		Info("workflow started", "reference", wf.Reference)
	return wf.ID, nil
}

// create сохраняет экземпляр под блокировкой и ставит его в очередь.
func (c *Controller) create(ctx context.Context, wf *domain.WorkflowInstance) error {
	defer c.release(ctx, wf.ID)

	if _, err := c.store.CreateWorkflow(ctx, wf); err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}
	if err := c.queue.QueueWork(ctx, wf.ID, provider.QueueWorkflow); err != nil {
		return fmt.Errorf("queue workflow: %w", err)
	}
	return nil
}

// PublishEvent сохраняет событие и ставит его в очередь событий.
// Нулевое effective — событие действует с текущего момента.
func (c *Controller) PublishEvent(ctx context.Context, name, key string, data any, effective time.Time) (id string, err error) {
	defer func() { c.observe("publish", err == nil, true, false) }()

	if name == "" {
		return "", ErrEmptyEventName
	}
	if effective.IsZero() {
		effective = c.clock.Now()
	}

	evt := &domain.Event{
		ID:   uuid.NewString(),
		Name: name,
		Key:  key,
		Data: data,
		Time: effective.UTC(),
	}
	if _, err := c.store.CreateEvent(ctx, evt); err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}
	if err := c.queue.QueueWork(ctx, evt.ID, provider.QueueEvent); err != nil {
		return "", fmt.Errorf("queue event: %w", err)
	}

	telemetry.WithEventID(c.logger, evt.ID).Info("event published",
		"event_name", name,
		"event_key", key,
	)
	return evt.ID, nil
}

// SuspendWorkflow приостанавливает экземпляр в статусе RUNNABLE.
func (c *Controller) SuspendWorkflow(ctx context.Context, id string) (bool, error) {
	return c.transition(ctx, "suspend", id, func(wf *domain.WorkflowInstance) bool {
		if wf.Status != domain.WorkflowStatusRunnable {
			return false
		}
		wf.Status = domain.WorkflowStatusSuspended
		return true
	})
}

// ResumeWorkflow возобновляет экземпляр в статусе SUSPENDED.
// Экземпляр ставится в очередь после снятия блокировки.
func (c *Controller) ResumeWorkflow(ctx context.Context, id string) (bool, error) {
	ok, err := c.transition(ctx, "resume", id, func(wf *domain.WorkflowInstance) bool {
		if wf.Status != domain.WorkflowStatusSuspended {
			return false
		}
		wf.Status = domain.WorkflowStatusRunnable
		return true
	})
	if !ok || err != nil {
		return ok, err
	}

	if err := c.queue.QueueWork(ctx, id, provider.QueueWorkflow); err != nil {
		return true, fmt.Errorf("queue workflow: %w", err)
	}
	return true, nil
}

// TerminateWorkflow останавливает экземпляр, если он ещё не завершён.
func (c *Controller) TerminateWorkflow(ctx context.Context, id string) (bool, error) {
	return c.transition(ctx, "terminate", id, func(wf *domain.WorkflowInstance) bool {
		if wf.IsFinished() {
			return false
		}
		wf.MarkTerminated(c.clock.Now())
		return true
	})
}

// transition под блокировкой загружает экземпляр, применяет mutate и
// сохраняет его. mutate возвращает false, если переход недопустим.
// false без ошибки — блокировка занята или переход недопустим.
func (c *Controller) transition(ctx context.Context, op, id string, mutate func(*domain.WorkflowInstance) bool) (ok bool, err error) {
	logger := telemetry.WithInstanceID(c.logger, id)

	acquired, err := c.locks.AcquireLock(ctx, id)
	if err != nil {
		c.observe(op, false, false, false)
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		logger.Info("workflow locked, operation skipped", "operation", op)
		c.observe(op, true, false, true)
		return false, nil
	}
	defer c.release(ctx, id)
	defer func() { c.observe(op, err == nil, ok, false) }()

	wf, err := c.store.GetWorkflow(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get workflow: %w", err)
	}

	from := wf.Status
	if !mutate(wf) {
		logger.Debug("transition not allowed", "operation", op, "status", from)
		return false, nil
	}

	if err := c.store.PersistWorkflow(ctx, wf); err != nil {
		return false, fmt.Errorf("persist workflow: %w", err)
	}

	logger.Info("workflow status changed",
		"operation", op,
		"from", from,
		"to", wf.Status,
	)
	return true, nil
}

func (c *Controller) release(ctx context.Context, key string) {
	if err := c.locks.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
		c.logger.Warn("failed to release lock", "key", key, "error", err)
	}
}

// observe учитывает операцию в метрике.
func (c *Controller) observe(op string, succeeded, changed, locked bool) {
	result := resultOK
	switch {
	case locked:
		result = resultLocked
	case !succeeded:
		result = resultError
	case !changed:
		result = resultNoop
	}
	telemetry.ControllerOperations.WithLabelValues(op, result).Inc()
}
