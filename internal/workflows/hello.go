package workflows

import (
	"context"

	"github.com/shaiso/Durable/internal/engine"
	"github.com/shaiso/Durable/internal/steps"
)

// HelloData — данные hello.
type HelloData struct {
	Name     string `json:"name"`
	Greeting string `json:"greeting,omitempty"`
}

// Hello — линейный workflow из двух шагов.
func Hello() *engine.Definition {
	return &engine.Definition{
		ID:          "hello",
		Version:     1,
		Description: "Greets by name",
		NewData:     func() any { return &HelloData{} },
		Steps: []*engine.Step{
			{
				ID:       0,
				Name:     "greet",
				BodyType: steps.StepTypeTransform,
				Inputs: []engine.Input{engine.Const("Mappings", map[string]string{
					"greeting": `Hello, {{ default "world" .Data.Name }}!`,
				})},
				Outputs:  []engine.Output{engine.ToData("Greeting", "Result.greeting")},
				Outcomes: []engine.Outcome{{NextStep: 1}},
			},
			{
				ID:   1,
				Name: "announce",
				Body: engine.Inline(func(_ context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
					data, err := dataOf[HelloData](ec)
					if err != nil {
						return nil, err
					}
					if ec.Logger != nil {
						ec.Logger.Info("greeting", "text", data.Greeting)
					}
					return engine.Next(), nil
				}),
			},
		},
	}
}
