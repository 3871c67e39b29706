package steps

import (
	"context"

	"github.com/shaiso/Durable/internal/engine"
)

// When — условная ветка внутри Switch.
//
// Сравнивает ExpectedOutcome с Outcome указателя Switch (родителя, в
// Children которого находится текущий указатель). Если значения не
// совпадают, шаг завершается без ветвления. Если совпадают — создаёт
// одну дочернюю ветку на свои Children и ждёт её завершения.
type When struct {
	ExpectedOutcome any
}

// Run реализует engine.StepBody.
func (w *When) Run(_ context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
	parent := ec.Workflow.ExecutionPointers.FindParent(ec.Pointer.ID)
	if parent == nil {
		return nil, ErrNoSwitchPointer
	}

	if !engine.OutcomeEquals(w.ExpectedOutcome, parent.Outcome) {
		return engine.Next(), nil
	}

	if ec.PersistenceData == nil {
		return engine.Branch([]any{nil}, childrenActive()), nil
	}

	return awaitChildren(ec)
}
