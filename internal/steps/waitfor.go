package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Durable/internal/engine"
)

// WaitFor — ожидание внешнего события (EventName, EventKey).
//
// Первый запуск деактивирует указатель и создаёт подписку. Когда
// событие доставлено, указатель снова активен, EventData заполнено
// и шаг завершается. EventData можно связать с данными через Outputs.
type WaitFor struct {
	EventName     string
	EventKey      string
	EffectiveDate time.Time

	EventData any
}

// Run реализует engine.StepBody.
func (w *WaitFor) Run(_ context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
	if !ec.Pointer.EventPublished {
		if w.EventName == "" {
			return nil, fmt.Errorf("%w: %s: EventName required", ErrInvalidConfig, StepTypeWaitFor)
		}
		return engine.WaitForEvent(w.EventName, w.EventKey, w.EffectiveDate), nil
	}

	w.EventData = ec.Pointer.EventData
	return engine.Next(), nil
}
