package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Durable/internal/engine"
)

// Delay — задержка без блокировки воркера.
//
// Первый запуск возвращает Sleep: указатель исключается из проходов
// до SleepUntil. Второй запуск (после пробуждения) завершает шаг.
//
// Длительность задаётся одним из входов:
//
//	Period      — time.Duration
//	DurationSec — секунды
//	DurationMs  — миллисекунды
type Delay struct {
	Period      time.Duration
	DurationSec int
	DurationMs  int
}

// Run реализует engine.StepBody.
func (d *Delay) Run(_ context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
	if ec.PersistenceData != nil {
		return engine.Next(), nil
	}

	period, err := d.duration()
	if err != nil {
		return nil, err
	}
	return engine.Sleep(period, true), nil
}

// duration извлекает длительность из входов.
func (d *Delay) duration() (time.Duration, error) {
	switch {
	case d.Period > 0:
		return d.Period, nil
	case d.DurationSec > 0:
		return time.Duration(d.DurationSec) * time.Second, nil
	case d.DurationMs > 0:
		return time.Duration(d.DurationMs) * time.Millisecond, nil
	}
	return 0, fmt.Errorf("%w: %s: Period, DurationSec or DurationMs required",
		ErrInvalidConfig, StepTypeDelay)
}
