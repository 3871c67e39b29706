package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Durable/internal/engine"
	"github.com/shaiso/Durable/internal/steps"
)

// BatchData — данные batch.
type BatchData struct {
	Items     []string `json:"items"`
	Processed []string `json:"processed,omitempty"`
	Summary   string   `json:"summary,omitempty"`
}

// Batch — обработка элементов: Foreach, в каждой ветке Delay и
// обработка элемента, затем итог.
func Batch(throttle time.Duration) *engine.Definition {
	if throttle <= 0 {
		throttle = DefaultBatchThrottle
	}

	return &engine.Definition{
		ID:          "batch",
		Version:     1,
		Description: "Processes items one branch per item",
		NewData:     func() any { return &BatchData{} },
		Steps: []*engine.Step{
			withOutcomes(steps.ForeachStep(0, "Items", 1), engine.Outcome{NextStep: 3}),
			withOutcomes(steps.DelayStep(1, throttle), engine.Outcome{NextStep: 2}),
			{
				ID:   2,
				Name: "process_item",
				Body: engine.Inline(func(_ context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
					data, err := dataOf[BatchData](ec)
					if err != nil {
						return nil, err
					}
					data.Processed = append(data.Processed, fmt.Sprint(ec.Item))
					return engine.Next(), nil
				}),
			},
			{
				ID:   3,
				Name: "summarize",
				Body: engine.Inline(func(_ context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
					data, err := dataOf[BatchData](ec)
					if err != nil {
						return nil, err
					}
					data.Summary = fmt.Sprintf("%d of %d items processed", len(data.Processed), len(data.Items))
					return engine.Next(), nil
				}),
			},
		},
	}
}
