package steps

import (
	"errors"
	"fmt"

	"github.com/shaiso/Durable/internal/domain"
	"github.com/shaiso/Durable/internal/engine"
)

// Ошибки шагов.
var (
	// ErrStepNotFound — тип тела не найден в реестре.
	ErrStepNotFound = errors.New("step type not found")

	// ErrInvalidConfig — невалидные входы тела шага.
	ErrInvalidConfig = errors.New("invalid step config")

	// ErrStepCancelled — выполнение шага отменено.
	ErrStepCancelled = errors.New("step execution cancelled")

	// ErrNoSwitchPointer — у When нет родительского указателя с outcome.
	ErrNoSwitchPointer = errors.New("when step has no switch pointer")
)

// Типы встроенных тел.
const (
	StepTypeWhen      = "when"
	StepTypeForeach   = "foreach"
	StepTypeSwitch    = "switch"
	StepTypeParallel  = "parallel"
	StepTypeDelay     = "delay"
	StepTypeWaitFor   = "wait_for"
	StepTypeHTTP      = "http"
	StepTypeTransform = "transform"
)

// awaitChildren — общая логика контейнеров после ветвления:
// все дочерние ветки завершены → Next, иначе сохранить маркер.
// Любой другой PersistenceData — повреждённое состояние.
func awaitChildren(ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
	control, ok := ec.PersistenceData.(*domain.ControlPersistenceData)
	if !ok || !control.ChildrenActive {
		return nil, fmt.Errorf("%w: step %d got %T",
			engine.ErrCorruptPersistenceData, ec.Step.ID, ec.PersistenceData)
	}

	pointers := ec.Workflow.ExecutionPointers
	for _, childID := range ec.Pointer.Children {
		if !pointers.IsBranchComplete(childID) {
			return engine.Persist(ec.PersistenceData), nil
		}
	}
	return engine.Next(), nil
}

// childrenActive — маркер, который контейнер сохраняет при ветвлении.
func childrenActive() *domain.ControlPersistenceData {
	return &domain.ControlPersistenceData{ChildrenActive: true}
}
