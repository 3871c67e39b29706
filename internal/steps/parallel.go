package steps

import (
	"context"

	"github.com/shaiso/Durable/internal/engine"
)

// Parallel — контейнер, запускающий все дочерние шаги одновременно.
//
// Создаёт по указателю на каждый дочерний шаг и завершается,
// когда все ветки завершены. Ветки выполняются в одних и тех же
// проходах executor, порядок между ними не гарантируется.
type Parallel struct{}

// Run реализует engine.StepBody.
func (p *Parallel) Run(_ context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
	if ec.PersistenceData == nil {
		return engine.Branch([]any{ec.Item}, childrenActive()), nil
	}
	return awaitChildren(ec)
}
