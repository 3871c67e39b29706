package provider

import (
	"context"
	"errors"
	"time"

	"github.com/shaiso/Durable/internal/domain"
)

// Общие ошибки провайдеров.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")

	// ErrConcurrentUpdate — экземпляр изменён другим узлом (устаревшая ревизия).
	ErrConcurrentUpdate = errors.New("concurrent update")
)

// QueueType — тип очереди.
type QueueType string

const (
	// QueueWorkflow — ID экземпляров, готовых к проходу executor.
	QueueWorkflow QueueType = "workflow"

	// QueueEvent — ID опубликованных событий.
	QueueEvent QueueType = "event"
)

// String возвращает строковое представление QueueType.
func (q QueueType) String() string {
	return string(q)
}

// PersistenceProvider — хранилище экземпляров, подписок, событий и ошибок.
//
// PersistWorkflow обязан сериализовать конкурентные записи одного
// экземпляра: запись с устаревшей Revision отклоняется с
// ErrConcurrentUpdate, успешная запись увеличивает Revision.
type PersistenceProvider interface {
	// Экземпляры
	CreateWorkflow(ctx context.Context, wf *domain.WorkflowInstance) (string, error)
	PersistWorkflow(ctx context.Context, wf *domain.WorkflowInstance) error
	GetWorkflow(ctx context.Context, id string) (*domain.WorkflowInstance, error)
	GetWorkflowInstances(ctx context.Context, filter domain.InstanceFilter) ([]*domain.WorkflowInstance, error)
	GetRunnableInstances(ctx context.Context, asAt time.Time) ([]string, error)

	// GetWorkflowInstanceIDsByUser возвращает ID незавершённых экземпляров
	// пользователя. Пустой tenantID — любой тенант.
	GetWorkflowInstanceIDsByUser(ctx context.Context, userID, tenantID string) ([]string, error)

	// Подписки
	CreateEventSubscription(ctx context.Context, sub *domain.EventSubscription) (string, error)
	GetSubscriptions(ctx context.Context, eventName, eventKey string, asOf time.Time) ([]*domain.EventSubscription, error)
	TerminateSubscription(ctx context.Context, id string) error

	// События
	CreateEvent(ctx context.Context, evt *domain.Event) (string, error)
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	GetRunnableEvents(ctx context.Context, asAt time.Time) ([]string, error)
	GetEvents(ctx context.Context, eventName, eventKey string, asOf time.Time, processed domain.ProcessedFilter) ([]string, error)
	MarkEventProcessed(ctx context.Context, id string) error
	MarkEventUnprocessed(ctx context.Context, id string) error

	// Ошибки
	PersistErrors(ctx context.Context, errs []domain.ExecutionError) error
	GetErrors(ctx context.Context, workflowID string) ([]domain.ExecutionError, error)

	// EnsureStoreExists создаёт схему хранилища, если её нет.
	EnsureStoreExists(ctx context.Context) error
}

// QueueProvider — очередь ID экземпляров и событий.
type QueueProvider interface {
	// QueueWork ставит ID в очередь.
	QueueWork(ctx context.Context, id string, queue QueueType) error

	// DequeueWork забирает следующий ID. Пустая строка — очередь пуста.
	// Блокирующий провайдер ждёт элемент до отмены ctx.
	DequeueWork(ctx context.Context, queue QueueType) (string, error)

	// IsDequeueBlocking — DequeueWork ждёт появления элемента сам.
	IsDequeueBlocking() bool

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// LockProvider — распределённая блокировка по ключу.
type LockProvider interface {
	// AcquireLock пытается захватить блокировку. false — ключ занят.
	AcquireLock(ctx context.Context, key string) (bool, error)

	// ReleaseLock освобождает блокировку, захваченную этим узлом.
	ReleaseLock(ctx context.Context, key string) error

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
