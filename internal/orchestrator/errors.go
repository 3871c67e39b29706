package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrInstanceLocked — экземпляр заблокирован другим узлом.
	// Только Start возвращает её как ошибку: остальные операции
	// сообщают о блокировке через false.
	ErrInstanceLocked = errors.New("workflow instance is locked")

	// ErrEmptyEventName — событие без имени.
	ErrEmptyEventName = errors.New("event name is required")

	// ErrHostRunning — Host уже запущен.
	ErrHostRunning = errors.New("host already running")

	// ErrHostStopped — Host не запущен или уже остановлен.
	ErrHostStopped = errors.New("host is not running")
)
