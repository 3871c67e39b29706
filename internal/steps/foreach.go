package steps

import (
	"context"

	"github.com/shaiso/Durable/internal/engine"
)

// Foreach — параллельный цикл по коллекции.
//
// На первом запуске создаёт по дочерней ветке на каждый элемент
// Collection (элемент становится ContextItem ветки), затем ждёт,
// пока все ветки завершатся.
type Foreach struct {
	Collection []any
}

// Run реализует engine.StepBody.
func (f *Foreach) Run(_ context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
	if ec.PersistenceData == nil {
		if len(f.Collection) == 0 {
			return engine.Next(), nil
		}
		items := append([]any(nil), f.Collection...)
		return engine.Branch(items, childrenActive()), nil
	}

	return awaitChildren(ec)
}
