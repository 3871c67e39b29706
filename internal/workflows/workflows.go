package workflows

import (
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Durable/internal/engine"
)

// ErrUnexpectedData — данные экземпляра не того типа, что ожидает шаг.
// Обычно хранилище создано без фабрики данных реестра.
var ErrUnexpectedData = errors.New("unexpected workflow data type")

// DefaultBatchThrottle — пауза перед обработкой элемента batch.
const DefaultBatchThrottle = time.Second

// Registrar регистрирует определения (orchestrator.Host).
type Registrar interface {
	RegisterWorkflow(def *engine.Definition) error
}

// All возвращает все встроенные определения.
func All(batchThrottle time.Duration) []*engine.Definition {
	return []*engine.Definition{
		Hello(),
		Approval(),
		Batch(batchThrottle),
	}
}

// Register регистрирует все встроенные определения.
func Register(r Registrar, batchThrottle time.Duration) error {
	for _, def := range All(batchThrottle) {
		if err := r.RegisterWorkflow(def); err != nil {
			return fmt.Errorf("register %s: %w", def.ID, err)
		}
	}
	return nil
}

// dataOf возвращает типизированные данные экземпляра.
func dataOf[T any](ec *engine.ExecutionContext) (*T, error) {
	data, ok := ec.Workflow.Data.(*T)
	if !ok || data == nil {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedData, ec.Workflow.Data)
	}
	return data, nil
}
