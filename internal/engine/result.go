package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/Durable/internal/domain"
)

// ResultKind — вариант результата выполнения шага.
type ResultKind int

const (
	// ResultNext — шаг завершён, переходим к outcomes.
	ResultNext ResultKind = iota

	// ResultBranch — создать дочерние указатели, шаг остаётся открытым.
	ResultBranch

	// ResultPersist — сохранить PersistenceData, шаг остаётся открытым.
	ResultPersist

	// ResultSleep — повторить шаг после SleepFor.
	ResultSleep

	// ResultWaitForEvent — деактивировать указатель до прихода события.
	ResultWaitForEvent

	// ResultEndWorkflow — завершить экземпляр немедленно.
	ResultEndWorkflow
)

// String возвращает имя варианта для логов.
func (k ResultKind) String() string {
	switch k {
	case ResultNext:
		return "next"
	case ResultBranch:
		return "branch"
	case ResultPersist:
		return "persist"
	case ResultSleep:
		return "sleep"
	case ResultWaitForEvent:
		return "wait_for_event"
	case ResultEndWorkflow:
		return "end_workflow"
	default:
		return "unknown"
	}
}

// ExecutionResult — что тело шага просит сделать с указателем.
// Применяется централизованно в executor; тела шагов не меняют указатели сами.
type ExecutionResult struct {
	Kind ResultKind

	// OutcomeValue — значение, записываемое в Outcome указателя.
	OutcomeValue any

	// PersistenceData — новое состояние тела шага.
	PersistenceData any

	// BranchValues — элементы веток; на каждый элемент × дочерний шаг создаётся указатель.
	BranchValues []any

	// SleepFor — задержка для ResultSleep.
	SleepFor time.Duration

	// EventName, EventKey, EventAsOf — ожидаемое событие для ResultWaitForEvent.
	EventName string
	EventKey  string
	EventAsOf time.Time
}

// Proceed возвращает true, если шаг завершён и нужно связать выходы.
func (r *ExecutionResult) Proceed() bool {
	return r.Kind == ResultNext
}

// Next — шаг завершён.
func Next() *ExecutionResult {
	return &ExecutionResult{Kind: ResultNext}
}

// OutcomeResult — шаг завершён со значением outcome.
func OutcomeResult(value any) *ExecutionResult {
	return &ExecutionResult{Kind: ResultNext, OutcomeValue: value}
}

// Branch — создать дочерние ветки и сохранить persistence.
func Branch(items []any, persistence any) *ExecutionResult {
	return &ExecutionResult{Kind: ResultBranch, BranchValues: items, PersistenceData: persistence}
}

// Persist — сохранить состояние, не продвигая указатель.
func Persist(persistence any) *ExecutionResult {
	return &ExecutionResult{Kind: ResultPersist, PersistenceData: persistence}
}

// Sleep — повторить шаг через d.
func Sleep(d time.Duration, persistence any) *ExecutionResult {
	return &ExecutionResult{Kind: ResultSleep, SleepFor: d, PersistenceData: persistence}
}

// WaitForEvent — ждать событие (name, key), опубликованное не раньше asOf.
func WaitForEvent(name, key string, asOf time.Time) *ExecutionResult {
	return &ExecutionResult{Kind: ResultWaitForEvent, EventName: name, EventKey: key, EventAsOf: asOf}
}

// EndWorkflow — завершить экземпляр.
func EndWorkflow() *ExecutionResult {
	return &ExecutionResult{Kind: ResultEndWorkflow}
}

// ExecutionContext — всё, что видит тело шага во время Run.
type ExecutionContext struct {
	Workflow        *domain.WorkflowInstance
	Definition      *Definition
	Step            *Step
	Pointer         *domain.ExecutionPointer
	PersistenceData any
	Item            any
	Logger          *slog.Logger
}

// StepBody — исполняемое тело шага.
type StepBody interface {
	Run(ctx context.Context, ec *ExecutionContext) (*ExecutionResult, error)
}

// BodyFactory создаёт новый экземпляр тела на каждый запуск.
type BodyFactory func() (StepBody, error)

// BodyFunc — тело шага из функции.
type BodyFunc func(ctx context.Context, ec *ExecutionContext) (*ExecutionResult, error)

// Run реализует StepBody.
func (f BodyFunc) Run(ctx context.Context, ec *ExecutionContext) (*ExecutionResult, error) {
	return f(ctx, ec)
}

// Inline возвращает BodyFactory для функции.
func Inline(fn func(ctx context.Context, ec *ExecutionContext) (*ExecutionResult, error)) BodyFactory {
	return func() (StepBody, error) {
		return BodyFunc(fn), nil
	}
}
