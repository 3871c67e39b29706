package domain

// WorkflowStatus — статус экземпляра workflow.
//
// Жизненный цикл:
//
//	RUNNABLE ⇄ SUSPENDED
//	    ↘ COMPLETE
//	    ↘ TERMINATED (из RUNNABLE или SUSPENDED)
//
// COMPLETE и TERMINATED — поглощающие состояния.
type WorkflowStatus string

const (
	// WorkflowStatusRunnable — экземпляр может выполняться.
	WorkflowStatusRunnable WorkflowStatus = "RUNNABLE"

	// WorkflowStatusSuspended — выполнение приостановлено пользователем или политикой ошибок.
	WorkflowStatusSuspended WorkflowStatus = "SUSPENDED"

	// WorkflowStatusComplete — все указатели завершены.
	WorkflowStatusComplete WorkflowStatus = "COMPLETE"

	// WorkflowStatusTerminated — экземпляр принудительно остановлен.
	WorkflowStatusTerminated WorkflowStatus = "TERMINATED"
)

// IsTerminal возвращает true, если статус финальный.
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case WorkflowStatusComplete, WorkflowStatusTerminated:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление WorkflowStatus.
func (s WorkflowStatus) String() string {
	return string(s)
}

// ParseWorkflowStatus парсит строку в WorkflowStatus.
// Второе значение false, если строка не является известным статусом.
func ParseWorkflowStatus(s string) (WorkflowStatus, bool) {
	switch WorkflowStatus(s) {
	case WorkflowStatusRunnable, WorkflowStatusSuspended, WorkflowStatusComplete, WorkflowStatusTerminated:
		return WorkflowStatus(s), true
	default:
		return "", false
	}
}

// PointerStatus — маркер состояния указателя выполнения.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETE
//	            ↘ SLEEPING → RUNNING
//	            ↘ WAITING_FOR_EVENT → RUNNING
//	            ↘ FAILED (retry → RUNNING)
type PointerStatus string

const (
	// PointerStatusPending — указатель создан, шаг ещё не запускался.
	PointerStatusPending PointerStatus = "PENDING"

	// PointerStatusRunning — шаг выполняется или ожидает дочерние ветки.
	PointerStatusRunning PointerStatus = "RUNNING"

	// PointerStatusSleeping — повторный запуск отложен до SleepUntil.
	PointerStatusSleeping PointerStatus = "SLEEPING"

	// PointerStatusWaitingForEvent — шаг ждёт внешнее событие.
	PointerStatusWaitingForEvent PointerStatus = "WAITING_FOR_EVENT"

	// PointerStatusFailed — последний запуск шага завершился ошибкой.
	PointerStatusFailed PointerStatus = "FAILED"

	// PointerStatusComplete — шаг завершён.
	PointerStatusComplete PointerStatus = "COMPLETE"
)
