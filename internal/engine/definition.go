package engine

import (
	"context"
	"time"

	"github.com/shaiso/Durable/internal/domain"
)

// ErrorBehavior — реакция на ошибку шага.
type ErrorBehavior string

const (
	// ErrorBehaviorRetry — повторить шаг через RetryInterval (по умолчанию).
	ErrorBehaviorRetry ErrorBehavior = "RETRY"

	// ErrorBehaviorSuspend — приостановить экземпляр.
	ErrorBehaviorSuspend ErrorBehavior = "SUSPEND"

	// ErrorBehaviorTerminate — остановить экземпляр.
	ErrorBehaviorTerminate ErrorBehavior = "TERMINATE"
)

// Directive — решение хука pre-init / before-execute.
type Directive int

const (
	// DirectiveNext — продолжить выполнение шага.
	DirectiveNext Directive = iota

	// DirectiveDefer — пропустить указатель в этом проходе.
	DirectiveDefer

	// DirectiveEndWorkflow — завершить экземпляр немедленно.
	DirectiveEndWorkflow
)

// Hooks — хуки жизненного цикла шага. Любой хук может быть nil.
type Hooks struct {
	// PreInit вызывается до отметки старта указателя.
	PreInit func(ctx context.Context, wf *domain.WorkflowInstance, ptr *domain.ExecutionPointer) Directive

	// BeforeExecute вызывается после связывания входов, перед Run.
	BeforeExecute func(ctx context.Context, ec *ExecutionContext) Directive

	// AfterExecute вызывается после применения результата.
	AfterExecute func(ctx context.Context, ec *ExecutionContext, result *ExecutionResult)

	// AfterIteration вызывается в конце прохода для каждого незавершённого указателя шага.
	AfterIteration func(ctx context.Context, wf *domain.WorkflowInstance, ptr *domain.ExecutionPointer)
}

// Outcome — переход к следующему шагу после завершения текущего.
//
// Переход срабатывает, если Value не задан или совпадает с OutcomeValue
// результата, и Condition (Go template над данными) истинно.
type Outcome struct {
	// NextStep — ID шага, на который создаётся next-указатель.
	NextStep int

	// Label — имя перехода для логов.
	Label string

	// Value — ожидаемое значение outcome. Nil — безусловный переход.
	Value any

	// Condition — шаблонное условие, например `eq .Data.approved true`.
	Condition string
}

// Step — шаг определения workflow. Не меняется после регистрации.
type Step struct {
	// ID — идентификатор шага внутри определения.
	ID int

	// Name — имя шага для логов.
	Name string

	// BodyType — тип тела в реестре тел (используется, если Body == nil).
	BodyType string

	// Body — конструктор тела шага.
	Body BodyFactory

	// Children — дочерние шаги контейнера (When, Foreach, Switch).
	Children []int

	// Outcomes — переходы после завершения шага.
	Outcomes []Outcome

	// Inputs — связывание данных workflow с полями тела.
	Inputs []Input

	// Outputs — связывание полей тела с данными workflow.
	Outputs []Output

	// ErrorBehavior — реакция на ошибку. Пусто — берётся из определения.
	ErrorBehavior ErrorBehavior

	// RetryInterval — задержка повтора. 0 — берётся из определения или опций.
	RetryInterval time.Duration

	Hooks Hooks
}

// DisplayName возвращает имя шага или его тип.
func (s *Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.BodyType
}

// Definition — зарегистрированное определение workflow.
// Уникально по (ID, Version, TenantID).
type Definition struct {
	ID          string
	Version     int
	TenantID    string
	Description string

	// NewData создаёт пустые данные экземпляра. Nil — данных нет.
	NewData func() any

	// Steps — шаги. Первый шаг — точка входа.
	Steps []*Step

	// DefaultErrorBehavior — реакция на ошибку для шагов без своей.
	DefaultErrorBehavior ErrorBehavior

	// DefaultErrorRetryInterval — задержка повтора для шагов без своей.
	DefaultErrorRetryInterval time.Duration
}

// FindStep возвращает шаг по ID или nil.
func (d *Definition) FindStep(id int) *Step {
	for _, s := range d.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// EntryStep возвращает первый шаг определения.
func (d *Definition) EntryStep() *Step {
	if len(d.Steps) == 0 {
		return nil
	}
	return d.Steps[0]
}

// ErrorBehaviorFor возвращает реакцию на ошибку для шага.
func (d *Definition) ErrorBehaviorFor(step *Step) ErrorBehavior {
	if step != nil && step.ErrorBehavior != "" {
		return step.ErrorBehavior
	}
	if d.DefaultErrorBehavior != "" {
		return d.DefaultErrorBehavior
	}
	return ErrorBehaviorRetry
}

// RetryIntervalFor возвращает задержку повтора шага; fallback — глобальная опция.
func (d *Definition) RetryIntervalFor(step *Step, fallback time.Duration) time.Duration {
	if step != nil && step.RetryInterval > 0 {
		return step.RetryInterval
	}
	if d.DefaultErrorRetryInterval > 0 {
		return d.DefaultErrorRetryInterval
	}
	return fallback
}
