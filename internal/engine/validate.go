package engine

import (
	"fmt"
)

// Validate выполняет полную валидацию определения.
//
// Проверяет:
//   - наличие ID и шагов
//   - уникальность ID шагов
//   - наличие тела у каждого шага
//   - что outcomes и children ссылаются на существующие шаги
//   - отсутствие циклов во вложенности шагов
func Validate(def *Definition) error {
	if def == nil || len(def.Steps) == 0 {
		return ErrEmptySteps
	}

	if def.ID == "" {
		return NewValidationError(-1, "id", "definition has empty ID", ErrEmptyDefinitionID)
	}

	stepIDs := make(map[int]bool, len(def.Steps))
	for _, step := range def.Steps {
		if stepIDs[step.ID] {
			return NewValidationError(step.ID, "id",
				fmt.Sprintf("duplicate step ID: %d", step.ID), ErrDuplicateStepID)
		}
		stepIDs[step.ID] = true

		if step.Body == nil && step.BodyType == "" {
			return NewValidationError(step.ID, "body", "step has no body", ErrMissingBody)
		}
	}

	for _, step := range def.Steps {
		if err := validateReferences(step, stepIDs); err != nil {
			return err
		}
	}

	if _, err := BuildDAG(def); err != nil {
		return err
	}

	return nil
}

// validateReferences проверяет ссылки шага на другие шаги.
func validateReferences(step *Step, stepIDs map[int]bool) error {
	for _, child := range step.Children {
		if child == step.ID {
			return NewValidationError(step.ID, "children", "step references itself", ErrSelfReference)
		}
		if !stepIDs[child] {
			return NewValidationError(step.ID, "children",
				fmt.Sprintf("references unknown child step: %d", child), ErrMissingStep)
		}
	}

	for _, outcome := range step.Outcomes {
		if !stepIDs[outcome.NextStep] {
			return NewValidationError(step.ID, "outcomes",
				fmt.Sprintf("references unknown next step: %d", outcome.NextStep), ErrMissingStep)
		}
	}

	return nil
}
