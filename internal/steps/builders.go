package steps

import (
	"time"

	"github.com/shaiso/Durable/internal/engine"
)

// WhenStep — шаг When с ожидаемым значением и дочерними шагами.
func WhenStep(id int, expected any, children ...int) *engine.Step {
	return &engine.Step{
		ID:       id,
		Name:     "when",
		BodyType: StepTypeWhen,
		Children: children,
		Inputs:   []engine.Input{engine.Const("ExpectedOutcome", expected)},
	}
}

// SwitchStep — шаг Switch над значением из данных по пути valuePath.
// Пустой valuePath — берётся Outcome предыдущего шага.
func SwitchStep(id int, valuePath string, whens ...int) *engine.Step {
	step := &engine.Step{
		ID:       id,
		Name:     "switch",
		BodyType: StepTypeSwitch,
		Children: whens,
	}
	if valuePath != "" {
		step.Inputs = []engine.Input{engine.FromData("Value", valuePath)}
	}
	return step
}

// ForeachStep — цикл по коллекции из данных по пути collectionPath.
func ForeachStep(id int, collectionPath string, children ...int) *engine.Step {
	return &engine.Step{
		ID:       id,
		Name:     "foreach",
		BodyType: StepTypeForeach,
		Children: children,
		Inputs:   []engine.Input{engine.FromData("Collection", collectionPath)},
	}
}

// ParallelStep — параллельный запуск дочерних шагов.
func ParallelStep(id int, children ...int) *engine.Step {
	return &engine.Step{
		ID:       id,
		Name:     "parallel",
		BodyType: StepTypeParallel,
		Children: children,
	}
}

// DelayStep — задержка на period.
func DelayStep(id int, period time.Duration) *engine.Step {
	return &engine.Step{
		ID:       id,
		Name:     "delay",
		BodyType: StepTypeDelay,
		Inputs:   []engine.Input{engine.Const("Period", period)},
	}
}

// WaitForStep — ожидание события name с ключом из шаблона keyTemplate.
// EventData события записывается в данные по пути target (если задан).
func WaitForStep(id int, name, keyTemplate, target string) *engine.Step {
	step := &engine.Step{
		ID:       id,
		Name:     "wait_for:" + name,
		BodyType: StepTypeWaitFor,
		Inputs: []engine.Input{
			engine.Const("EventName", name),
			engine.FromTemplate("EventKey", keyTemplate),
		},
	}
	if target != "" {
		step.Outputs = []engine.Output{engine.ToData(target, "EventData")}
	}
	return step
}
