package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// ExecutionPointer — позиция выполнения внутри дерева указателей экземпляра.
//
// Указатель создаётся:
//   - при старте workflow (genesis-указатель на первый шаг)
//   - когда шаг завершился и у него есть подходящие outcomes (next-указатели)
//   - когда шаг ветвится (дочерние указатели, по одному на элемент ветки)
//
// Указатели никогда не удаляются: завершённый указатель получает EndTime
// и Active=false и остаётся в экземпляре для аудита.
type ExecutionPointer struct {
	// ID — уникальный идентификатор указателя.
	ID string `json:"id"`

	// StepID — шаг определения, на который указывает указатель.
	StepID int `json:"step_id"`

	// StepName — имя шага на момент создания указателя (для логов и CLI).
	StepName string `json:"step_name,omitempty"`

	// Active — указатель участвует в проходах executor.
	Active bool `json:"active"`

	// Status — маркер текущего состояния.
	Status PointerStatus `json:"status"`

	// StartTime — время первого запуска шага.
	StartTime *time.Time `json:"start_time,omitempty"`

	// EndTime — время завершения. Nil, пока указатель открыт.
	EndTime *time.Time `json:"end_time,omitempty"`

	// SleepUntil — указатель исключён из прохода до этого времени.
	SleepUntil *time.Time `json:"sleep_until,omitempty"`

	// PersistenceData — состояние, которым владеет тело шага между проходами.
	PersistenceData any `json:"-"`

	// ContextItem — элемент итерации (Foreach) или ветки.
	ContextItem any `json:"context_item,omitempty"`

	// Children — упорядоченный список ID дочерних указателей.
	Children []string `json:"children,omitempty"`

	// Outcome — значение, к которому пришёл шаг (читается дочерними When).
	Outcome any `json:"outcome,omitempty"`

	// PredecessorID — указатель, из которого создан этот.
	PredecessorID string `json:"predecessor_id,omitempty"`

	// Scope — стек ID родительских fork-указателей, ближайший первым.
	Scope []string `json:"scope,omitempty"`

	// RetryCount — количество повторов после ошибок.
	RetryCount int `json:"retry_count,omitempty"`

	// EventName, EventKey — событие, которое ожидает указатель.
	EventName string `json:"event_name,omitempty"`
	EventKey  string `json:"event_key,omitempty"`

	// EventPublished — ожидаемое событие доставлено.
	EventPublished bool `json:"event_published,omitempty"`

	// EventData — payload доставленного события.
	EventData any `json:"event_data,omitempty"`
}

// IsEnded возвращает true, если указатель завершён.
func (p *ExecutionPointer) IsEnded() bool {
	return p.EndTime != nil
}

// HasChildren возвращает true, если указатель — точка ветвления.
func (p *ExecutionPointer) HasChildren() bool {
	return len(p.Children) > 0
}

// MarkComplete завершает указатель.
func (p *ExecutionPointer) MarkComplete(now time.Time) {
	p.Active = false
	p.EndTime = &now
	p.Status = PointerStatusComplete
}

// SleepFor откладывает следующий запуск указателя.
func (p *ExecutionPointer) SleepFor(now time.Time, d time.Duration) {
	until := now.Add(d)
	p.SleepUntil = &until
	p.Status = PointerStatusSleeping
}

// pointerAlias — ExecutionPointer без собственных методов JSON.
type pointerAlias ExecutionPointer

// pointerJSON — формат хранения указателя.
// PersistenceData сериализуется в конверт с именем типа, чтобы
// восстановить конкретный тип после загрузки из хранилища.
type pointerJSON struct {
	pointerAlias
	PersistenceData *persistenceEnvelope `json:"persistence_data,omitempty"`
}

// MarshalJSON реализует json.Marshaler.
func (p ExecutionPointer) MarshalJSON() ([]byte, error) {
	env, err := wrapPersistence(p.PersistenceData)
	if err != nil {
		return nil, fmt.Errorf("pointer %s: %w", p.ID, err)
	}
	return json.Marshal(pointerJSON{pointerAlias: pointerAlias(p), PersistenceData: env})
}

// UnmarshalJSON реализует json.Unmarshaler.
func (p *ExecutionPointer) UnmarshalJSON(b []byte) error {
	var raw pointerJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*p = ExecutionPointer(raw.pointerAlias)

	data, err := unwrapPersistence(raw.PersistenceData)
	if err != nil {
		return fmt.Errorf("pointer %s: %w", p.ID, err)
	}
	p.PersistenceData = data
	return nil
}

// PointerCollection — набор указателей экземпляра.
type PointerCollection []*ExecutionPointer

// FindByID возвращает указатель по ID или nil.
func (c PointerCollection) FindByID(id string) *ExecutionPointer {
	for _, p := range c {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// FindParent возвращает указатель, в списке детей которого есть id.
// Для шагов When это указатель Switch, чей Outcome сравнивается с ожидаемым.
func (c PointerCollection) FindParent(id string) *ExecutionPointer {
	for _, p := range c {
		if slices.Contains(p.Children, id) {
			return p
		}
	}
	return nil
}

// FindByScope возвращает указатели, у которых scope содержит id.
func (c PointerCollection) FindByScope(id string) []*ExecutionPointer {
	var result []*ExecutionPointer
	for _, p := range c {
		if slices.Contains(p.Scope, id) {
			result = append(result, p)
		}
	}
	return result
}

// Active возвращает активные указатели, чей SleepUntil не позже now.
func (c PointerCollection) Active(now time.Time) []*ExecutionPointer {
	var result []*ExecutionPointer
	for _, p := range c {
		if !p.Active {
			continue
		}
		if p.SleepUntil != nil && p.SleepUntil.After(now) {
			continue
		}
		result = append(result, p)
	}
	return result
}

// AllEnded возвращает true, если у всех указателей есть EndTime.
func (c PointerCollection) AllEnded() bool {
	for _, p := range c {
		if p.EndTime == nil {
			return false
		}
	}
	return true
}

// successors возвращает указатели, продолжающие ветку id:
// дочерние из списка Children и next-указатели с PredecessorID == id.
func (c PointerCollection) successors(root *ExecutionPointer) []*ExecutionPointer {
	var result []*ExecutionPointer
	for _, p := range c {
		if p.PredecessorID == root.ID || slices.Contains(root.Children, p.ID) {
			result = append(result, p)
		}
	}
	return result
}

// IsBranchComplete возвращает true, если указатель id завершён
// и все его потомки (рекурсивно) тоже завершены.
// Неизвестный id считается незавершённой веткой.
func (c PointerCollection) IsBranchComplete(id string) bool {
	root := c.FindByID(id)
	if root == nil || root.EndTime == nil {
		return false
	}
	for _, next := range c.successors(root) {
		if !c.IsBranchComplete(next.ID) {
			return false
		}
	}
	return true
}
