package engine

import (
	"github.com/google/uuid"

	"github.com/shaiso/Durable/internal/domain"
)

// NewGenesisPointer создаёт первый указатель экземпляра на точку входа определения.
func NewGenesisPointer(def *Definition) *domain.ExecutionPointer {
	entry := def.EntryStep()
	return &domain.ExecutionPointer{
		ID:       uuid.NewString(),
		StepID:   entry.ID,
		StepName: entry.DisplayName(),
		Active:   true,
		Status:   domain.PointerStatusPending,
	}
}

// NewNextPointer создаёт указатель на следующий шаг после завершения from.
// Элемент итерации и scope наследуются.
func NewNextPointer(def *Definition, from *domain.ExecutionPointer, outcome Outcome) *domain.ExecutionPointer {
	return &domain.ExecutionPointer{
		ID:            uuid.NewString(),
		PredecessorID: from.ID,
		StepID:        outcome.NextStep,
		StepName:      stepName(def, outcome.NextStep),
		Active:        true,
		ContextItem:   from.ContextItem,
		Status:        domain.PointerStatusPending,
		Scope:         append([]string(nil), from.Scope...),
	}
}

// NewChildPointer создаёт дочерний указатель ветки и добавляет его ID в Children родителя.
func NewChildPointer(def *Definition, parent *domain.ExecutionPointer, childStepID int, item any) *domain.ExecutionPointer {
	scope := make([]string, 0, len(parent.Scope)+1)
	scope = append(scope, parent.ID)
	scope = append(scope, parent.Scope...)

	child := &domain.ExecutionPointer{
		ID:            uuid.NewString(),
		PredecessorID: parent.ID,
		StepID:        childStepID,
		StepName:      stepName(def, childStepID),
		Active:        true,
		ContextItem:   item,
		Status:        domain.PointerStatusPending,
		Scope:         scope,
	}
	parent.Children = append(parent.Children, child.ID)
	return child
}

func stepName(def *Definition, id int) string {
	if step := def.FindStep(id); step != nil {
		return step.DisplayName()
	}
	return ""
}
