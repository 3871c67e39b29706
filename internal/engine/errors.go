package engine

import (
	"errors"
	"fmt"
)

// Ошибки валидации определения workflow.
var (
	// ErrEmptySteps — определение не содержит шагов.
	ErrEmptySteps = errors.New("definition has no steps")

	// ErrEmptyDefinitionID — у определения нет ID.
	ErrEmptyDefinitionID = errors.New("definition has empty ID")

	// ErrDuplicateStepID — несколько шагов с одинаковым ID.
	ErrDuplicateStepID = errors.New("duplicate step ID")

	// ErrMissingBody — у шага не задано тело (ни Body, ни BodyType).
	ErrMissingBody = errors.New("step has no body")

	// ErrMissingStep — outcome или child ссылается на несуществующий шаг.
	ErrMissingStep = errors.New("step references unknown step")

	// ErrSelfReference — шаг ссылается сам на себя как на дочерний.
	ErrSelfReference = errors.New("step references itself")

	// ErrChildCycle — шаг вложен в собственного потомка.
	ErrChildCycle = errors.New("cyclic child nesting")

	// ErrUnknownStepType — BodyType не зарегистрирован в реестре тел.
	ErrUnknownStepType = errors.New("unknown step type")
)

// Ошибки реестра определений.
var (
	// ErrWorkflowNotRegistered — определение не найдено в реестре.
	ErrWorkflowNotRegistered = errors.New("workflow not registered")

	// ErrDuplicateDefinition — определение (id, version, tenant) уже зарегистрировано.
	ErrDuplicateDefinition = errors.New("workflow definition already registered")
)

// Ошибки выполнения шагов.
var (
	// ErrStepNotFound — указатель ссылается на шаг, которого нет в определении.
	ErrStepNotFound = errors.New("step not found in definition")

	// ErrCorruptPersistenceData — тело шага получило PersistenceData неожиданного типа.
	ErrCorruptPersistenceData = errors.New("corrupt persistence data")

	// ErrBinding — не удалось связать вход или выход шага.
	ErrBinding = errors.New("step binding failed")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	StepID  int    // ID шага, где произошла ошибка (-1 — уровень определения)
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.StepID >= 0 {
		return fmt.Sprintf("step %d: %s", e.StepID, e.Message)
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(stepID int, field, message string, err error) *ValidationError {
	return &ValidationError{
		StepID:  stepID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// NotRegisteredError — определение (id, version, tenant) не найдено.
type NotRegisteredError struct {
	ID       string
	Version  int
	TenantID string
}

// Error реализует интерфейс error.
func (e *NotRegisteredError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("workflow %s version %d (tenant %q) is not registered", e.ID, e.Version, e.TenantID)
	}
	return fmt.Sprintf("workflow %s (tenant %q) is not registered", e.ID, e.TenantID)
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrWorkflowNotRegistered).
func (e *NotRegisteredError) Unwrap() error {
	return ErrWorkflowNotRegistered
}
