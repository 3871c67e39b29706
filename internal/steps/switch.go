package steps

import (
	"context"

	"github.com/shaiso/Durable/internal/engine"
)

// Switch — контейнер для шагов When.
//
// Записывает в свой Outcome значение Value (или, если Value не задан,
// Outcome предыдущего указателя) и создаёт по указателю на каждый
// дочерний шаг. Дочерние When сравнивают этот Outcome со своим
// ExpectedOutcome.
type Switch struct {
	Value any
}

// Run реализует engine.StepBody.
func (s *Switch) Run(_ context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
	outcome := s.outcome(ec)

	if ec.PersistenceData == nil {
		result := engine.Branch([]any{ec.Item}, childrenActive())
		result.OutcomeValue = outcome
		return result, nil
	}

	result, err := awaitChildren(ec)
	if err != nil {
		return nil, err
	}
	// Outcome указателя перезаписывается каждым результатом, поэтому
	// пока ветки активны его нужно возвращать снова.
	if !result.Proceed() {
		result.OutcomeValue = outcome
	}
	return result, nil
}

func (s *Switch) outcome(ec *engine.ExecutionContext) any {
	if s.Value != nil {
		return s.Value
	}
	if prev := ec.Workflow.ExecutionPointers.FindByID(ec.Pointer.PredecessorID); prev != nil {
		return prev.Outcome
	}
	return nil
}
