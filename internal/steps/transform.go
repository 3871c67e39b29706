package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shaiso/Durable/internal/engine"
)

// Transform — шаг трансформации данных через Go templates.
//
// Mappings рендерятся над данными workflow ({{ .Data.x }}) и элементом
// итерации ({{ .Item }}); результат попадает в Result, откуда его
// забирают Outputs:
//
//	Outputs: []engine.Output{engine.ToData("total", "Result.total")}
type Transform struct {
	Mappings map[string]string

	Result map[string]any
}

// Run реализует engine.StepBody.
func (t *Transform) Run(ctx context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
	default:
	}

	var data any
	if ec.Workflow != nil {
		data = ec.Workflow.Data
	}
	tmplCtx := engine.NewTemplateContext(data, ec)

	t.Result = make(map[string]any, len(t.Mappings))
	for key, tmpl := range t.Mappings {
		rendered, err := engine.Render(tmpl, tmplCtx)
		if err != nil {
			return nil, fmt.Errorf("transform %s: %w", key, err)
		}
		t.Result[key] = parseValue(rendered)
	}

	return engine.Next(), nil
}

// parseValue пытается распарсить строку как JSON.
// Если не получается — возвращает строку как есть.
func parseValue(value string) any {
	var v any
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		return value
	}
	if n, ok := v.(float64); ok && n == float64(int64(n)) {
		return int64(n)
	}
	return v
}
