package domain

import (
	"time"
)

// WorkflowInstance — один запущенный процесс.
//
// Экземпляр создаётся контроллером (Start) и дальше меняется только
// проходами executor и операциями контроллера (Suspend/Resume/Terminate).
// Всё состояние выполнения хранится в указателях, поэтому экземпляр
// может продолжить работу на любом узле после загрузки из хранилища.
type WorkflowInstance struct {
	// ID — уникальный идентификатор экземпляра.
	ID string `json:"id"`

	// DefinitionID, Version, TenantID — определение, которое выполняется.
	DefinitionID string `json:"definition_id"`
	Version      int    `json:"version"`
	TenantID     string `json:"tenant_id,omitempty"`

	// Description — описание из определения.
	Description string `json:"description,omitempty"`

	// Reference — внешний ключ вызывающей стороны (например, id заказа).
	Reference string `json:"reference,omitempty"`

	// UserID — пользователь, запустивший экземпляр.
	UserID string `json:"user_id,omitempty"`

	// Status — текущий статус.
	Status WorkflowStatus `json:"status"`

	// Data — данные workflow. Форма задаётся определением.
	Data any `json:"data,omitempty"`

	// ExecutionPointers — все указатели экземпляра, включая завершённые.
	ExecutionPointers PointerCollection `json:"execution_pointers"`

	// NextExecution — когда экземпляр нужно выполнить снова (Unix ms).
	// 0 — немедленно, nil — не планируется (ждёт событие или завершён).
	NextExecution *int64 `json:"next_execution,omitempty"`

	// CreateTime — время создания.
	CreateTime time.Time `json:"create_time"`

	// CompleteTime — время перехода в COMPLETE.
	CompleteTime *time.Time `json:"complete_time,omitempty"`

	// Revision — версия записи для оптимистичной блокировки в хранилище.
	Revision int64 `json:"revision"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если экземпляр ещё не завершён.
func (w *WorkflowInstance) Duration() time.Duration {
	if w.CompleteTime == nil {
		return 0
	}
	return w.CompleteTime.Sub(w.CreateTime)
}

// IsFinished возвращает true, если экземпляр в финальном статусе.
func (w *WorkflowInstance) IsFinished() bool {
	return w.Status.IsTerminal()
}

// MarkComplete переводит экземпляр в статус COMPLETE.
func (w *WorkflowInstance) MarkComplete(now time.Time) {
	w.Status = WorkflowStatusComplete
	w.CompleteTime = &now
	w.NextExecution = nil
}

// MarkTerminated переводит экземпляр в статус TERMINATED.
func (w *WorkflowInstance) MarkTerminated(now time.Time) {
	w.Status = WorkflowStatusTerminated
	w.CompleteTime = &now
	w.NextExecution = nil
}

// ScheduleAt устанавливает NextExecution.
func (w *WorkflowInstance) ScheduleAt(at int64) {
	w.NextExecution = &at
}

// IsRunnableAt возвращает true, если экземпляр пора выполнить.
func (w *WorkflowInstance) IsRunnableAt(now time.Time) bool {
	if w.Status != WorkflowStatusRunnable || w.NextExecution == nil {
		return false
	}
	return *w.NextExecution <= now.UnixMilli()
}

// InstanceFilter — параметры выборки экземпляров.
type InstanceFilter struct {
	Status       WorkflowStatus
	DefinitionID string
	TenantID     string
	UserID       string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Skip         int
	Take         int
}

// Matches проверяет экземпляр на соответствие фильтру (без пагинации).
func (f InstanceFilter) Matches(w *WorkflowInstance) bool {
	if f.Status != "" && w.Status != f.Status {
		return false
	}
	if f.DefinitionID != "" && w.DefinitionID != f.DefinitionID {
		return false
	}
	if f.TenantID != "" && w.TenantID != f.TenantID {
		return false
	}
	if f.UserID != "" && w.UserID != f.UserID {
		return false
	}
	if f.CreatedFrom != nil && w.CreateTime.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && w.CreateTime.After(*f.CreatedTo) {
		return false
	}
	return true
}
