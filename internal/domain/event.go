package domain

import "time"

// Event — внешнее событие, опубликованное через контроллер.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Data        any       `json:"data,omitempty"`
	Time        time.Time `json:"time"`
	IsProcessed bool      `json:"is_processed"`
}

// ProcessedFilter — отбор событий по признаку обработки.
type ProcessedFilter int

const (
	// AnyEvents — все события.
	AnyEvents ProcessedFilter = iota
	// ProcessedEvents — только обработанные.
	ProcessedEvents
	// UnprocessedEvents — только необработанные.
	UnprocessedEvents
)

// Matches проверяет признак обработки события.
func (f ProcessedFilter) Matches(processed bool) bool {
	switch f {
	case ProcessedEvents:
		return processed
	case UnprocessedEvents:
		return !processed
	}
	return true
}

// EventSubscription — ожидание события указателем экземпляра.
//
// Создаётся после прохода, в котором шаг вернул WaitForEvent, и
// завершается, когда событие доставлено в экземпляр.
type EventSubscription struct {
	ID          string    `json:"id"`
	WorkflowID  string    `json:"workflow_id"`
	StepID      int       `json:"step_id"`
	PointerID   string    `json:"pointer_id"`
	EventName   string    `json:"event_name"`
	EventKey    string    `json:"event_key"`
	SubscribeAs time.Time `json:"subscribe_as_of"`

	// Terminated — подписка отработала.
	Terminated bool `json:"terminated,omitempty"`
}

// Matches проверяет, подходит ли событие под подписку.
// Событие учитывается, если оно не раньше момента подписки.
func (s *EventSubscription) Matches(evt *Event) bool {
	return !s.Terminated &&
		s.EventName == evt.Name &&
		s.EventKey == evt.Key &&
		!evt.Time.Before(s.SubscribeAs)
}

// ExecutionError — ошибка выполнения шага. Журнал ошибок только дополняется.
type ExecutionError struct {
	WorkflowID string    `json:"workflow_id"`
	PointerID  string    `json:"pointer_id"`
	Time       time.Time `json:"time"`
	Message    string    `json:"message"`
}
