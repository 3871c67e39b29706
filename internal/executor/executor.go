package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Durable/internal/domain"
	"github.com/shaiso/Durable/internal/engine"
	"github.com/shaiso/Durable/internal/telemetry"
)

const defaultErrorRetryInterval = 60 * time.Second

// ErrNilResult — тело шага вернуло nil без ошибки.
var ErrNilResult = errors.New("step body returned nil result")

// BodyProvider создаёт тело шага по имени типа.
type BodyProvider interface {
	New(bodyType string) (engine.StepBody, error)
}

// StepErrorHandler вызывается после каждой ошибки шага.
type StepErrorHandler func(wf *domain.WorkflowInstance, step *engine.Step, err error)

// Result — побочные результаты прохода, которые вызывающий сохраняет
// вместе с экземпляром.
type Result struct {
	// Errors — ошибки шагов этого прохода.
	Errors []domain.ExecutionError

	// Subscriptions — новые подписки на события.
	Subscriptions []domain.EventSubscription

	// Unregistered — определение экземпляра не найдено, проход не выполнялся.
	Unregistered bool
}

// Executor выполняет один проход по активным указателям экземпляра.
//
// Executor не обращается к хранилищу и очередям: он меняет экземпляр в
// памяти и возвращает ошибки и подписки. Сохранение, блокировки и
// повторная постановка в очередь — забота вызывающего (worker).
type Executor struct {
	registry           *engine.Registry
	bodies             BodyProvider
	clock              Clock
	errorRetryInterval time.Duration
	onStepError        []StepErrorHandler
	logger             *slog.Logger
}

// Config — конфигурация Executor.
type Config struct {
	// Registry — реестр определений. Обязателен.
	Registry *engine.Registry

	// Bodies — тела шагов по Step.BodyType (для шагов без Body).
	Bodies BodyProvider

	// Clock — источник времени (default: SystemClock).
	Clock Clock

	// ErrorRetryInterval — задержка повтора по умолчанию (default: 60s).
	ErrorRetryInterval time.Duration

	// OnStepError — обработчики ошибок шагов.
	OnStepError []StepErrorHandler

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Executor.
func New(cfg Config) *Executor {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	retry := cfg.ErrorRetryInterval
	if retry <= 0 {
		retry = defaultErrorRetryInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		registry:           cfg.Registry,
		bodies:             cfg.Bodies,
		clock:              clock,
		errorRetryInterval: retry,
		onStepError:        cfg.OnStepError,
		logger:             logger,
	}
}

// Execute выполняет один проход.
//
// Проход берёт снимок активных указателей (Active и SleepUntil в прошлом);
// указатели, созданные во время прохода, выполняются в следующем. После
// всех указателей вызываются AfterIteration хуки и пересчитывается
// NextExecution. Если определение не зарегистрировано, экземпляр не
// меняется и возвращается пустой результат.
func (e *Executor) Execute(ctx context.Context, wf *domain.WorkflowInstance) (*Result, error) {
	result := &Result{}
	logger := telemetry.WithInstanceID(e.logger, wf.ID)

	def, err := e.registry.Get(wf.DefinitionID, wf.Version, wf.TenantID)
	if err != nil {
		logger.Error("workflow definition not found",
			"definition", wf.DefinitionID,
			"version", wf.Version,
			"error", err,
		)
		result.Unregistered = true
		return result, nil
	}

	start := time.Now()
	now := e.clock.Now()
	pointers := wf.ExecutionPointers.Active(now)

	for _, ptr := range pointers {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		step := def.FindStep(ptr.StepID)
		if step == nil {
			logger.Error("step not found in definition", "step_id", ptr.StepID, "pointer_id", ptr.ID)
			ptr.SleepFor(now, e.errorRetryInterval)
			result.Errors = append(result.Errors, e.newError(wf, ptr, now,
				fmt.Errorf("%w: %d", engine.ErrStepNotFound, ptr.StepID)))
			telemetry.ExecutorStepErrors.WithLabelValues(def.ID).Inc()
			continue
		}

		if err := e.executePointer(ctx, wf, def, step, ptr, now, result); err != nil {
			telemetry.WithPointerID(logger, ptr.ID, ptr.StepID).Error("step failed",
				"step", step.DisplayName(),
				"error", err,
			)
			result.Errors = append(result.Errors, e.newError(wf, ptr, now, err))
			telemetry.ExecutorStepErrors.WithLabelValues(def.ID).Inc()

			e.handleStepError(wf, def, step, ptr, now)
			for _, handler := range e.onStepError {
				handler(wf, step, err)
			}
		}
	}

	e.afterIteration(ctx, wf, def)
	determineNextExecution(wf, now)

	telemetry.ExecutorPasses.WithLabelValues(def.ID).Inc()
	telemetry.ExecutorPassDuration.Observe(time.Since(start).Seconds())

	logger.Debug("executor pass finished",
		"pointers", len(pointers),
		"errors", len(result.Errors),
		"status", wf.Status,
	)

	return result, nil
}

// executePointer выполняет один указатель.
// Возвращённая ошибка обрабатывается политикой ошибок шага.
func (e *Executor) executePointer(
	ctx context.Context,
	wf *domain.WorkflowInstance,
	def *engine.Definition,
	step *engine.Step,
	ptr *domain.ExecutionPointer,
	now time.Time,
	result *Result,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panicked: %v", r)
		}
	}()

	if step.Hooks.PreInit != nil {
		switch step.Hooks.PreInit(ctx, wf, ptr) {
		case engine.DirectiveDefer:
			return nil
		case engine.DirectiveEndWorkflow:
			wf.MarkComplete(now)
			return nil
		}
	}

	ptr.Status = domain.PointerStatusRunning
	ptr.SleepUntil = nil
	if ptr.StartTime == nil {
		started := now
		ptr.StartTime = &started
	}

	body, err := e.newBody(step)
	if err != nil {
		// тело не создано: ошибка без политики ошибок шага, указатель не завершается
		e.logger.Error("unable to construct step body",
			"workflow_id", wf.ID,
			"step", step.DisplayName(),
			"error", err,
		)
		ptr.SleepFor(now, e.errorRetryInterval)
		result.Errors = append(result.Errors, e.newError(wf, ptr, now,
			fmt.Errorf("unable to construct step body %s: %w", step.DisplayName(), err)))
		telemetry.ExecutorStepErrors.WithLabelValues(def.ID).Inc()
		return nil
	}

	ec := &engine.ExecutionContext{
		Workflow:        wf,
		Definition:      def,
		Step:            step,
		Pointer:         ptr,
		PersistenceData: ptr.PersistenceData,
		Item:            ptr.ContextItem,
		Logger:          telemetry.WithPointerID(telemetry.WithInstanceID(e.logger, wf.ID), ptr.ID, ptr.StepID),
	}

	if err := engine.BindInputs(body, step.Inputs, wf.Data, ec); err != nil {
		return err
	}

	if step.Hooks.BeforeExecute != nil {
		switch step.Hooks.BeforeExecute(ctx, ec) {
		case engine.DirectiveDefer:
			return nil
		case engine.DirectiveEndWorkflow:
			wf.MarkComplete(now)
			return nil
		}
	}

	res, err := body.Run(ctx, ec)
	if err != nil {
		return err
	}
	if res == nil {
		return ErrNilResult
	}

	if res.Proceed() {
		if err := engine.BindOutputs(body, step.Outputs, wf.Data); err != nil {
			return err
		}
	}

	e.applyResult(ec, res, now, result)

	if step.Hooks.AfterExecute != nil {
		step.Hooks.AfterExecute(ctx, ec, res)
	}
	return nil
}

// newBody создаёт тело шага: конструктор шага или тело по типу.
func (e *Executor) newBody(step *engine.Step) (engine.StepBody, error) {
	if step.Body != nil {
		body, err := step.Body()
		if err != nil {
			return nil, err
		}
		if body == nil {
			return nil, errors.New("constructor returned nil body")
		}
		return body, nil
	}
	if step.BodyType == "" || e.bodies == nil {
		return nil, fmt.Errorf("%w: step %d", engine.ErrMissingBody, step.ID)
	}
	return e.bodies.New(step.BodyType)
}

// afterIteration вызывает AfterIteration для незавершённых указателей.
func (e *Executor) afterIteration(ctx context.Context, wf *domain.WorkflowInstance, def *engine.Definition) {
	for _, ptr := range wf.ExecutionPointers {
		if ptr.IsEnded() {
			continue
		}
		step := def.FindStep(ptr.StepID)
		if step == nil || step.Hooks.AfterIteration == nil {
			continue
		}
		step.Hooks.AfterIteration(ctx, wf, ptr)
	}
}

func (e *Executor) newError(wf *domain.WorkflowInstance, ptr *domain.ExecutionPointer, now time.Time, err error) domain.ExecutionError {
	return domain.ExecutionError{
		WorkflowID: wf.ID,
		PointerID:  ptr.ID,
		Time:       now,
		Message:    err.Error(),
	}
}
