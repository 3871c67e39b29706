package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Durable/internal/domain"
	"github.com/shaiso/Durable/internal/provider"
)

// Store — PersistenceProvider в памяти процесса.
//
// Экземпляры хранятся копиями: изменения вызывающего не видны до
// PersistWorkflow, как и в настоящем хранилище.
type Store struct {
	mu            sync.RWMutex
	instances     map[string]*domain.WorkflowInstance
	subscriptions map[string]*domain.EventSubscription
	events        map[string]*domain.Event
	errors        []domain.ExecutionError

	dataFactory provider.DataFactory
}

// NewStore создаёт пустое хранилище.
func NewStore(dataFactory provider.DataFactory) *Store {
	return &Store{
		instances:     make(map[string]*domain.WorkflowInstance),
		subscriptions: make(map[string]*domain.EventSubscription),
		events:        make(map[string]*domain.Event),
		dataFactory:   dataFactory,
	}
}

var _ provider.PersistenceProvider = (*Store)(nil)

// CreateWorkflow сохраняет новый экземпляр. Пустой ID генерируется.
func (s *Store) CreateWorkflow(_ context.Context, wf *domain.WorkflowInstance) (string, error) {
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	wf.Revision = 1

	clone, err := provider.CloneInstance(wf, s.dataFactory)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[wf.ID] = clone
	return wf.ID, nil
}

// PersistWorkflow сохраняет экземпляр, проверяя ревизию.
func (s *Store) PersistWorkflow(_ context.Context, wf *domain.WorkflowInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.instances[wf.ID]
	if !ok {
		return provider.ErrNotFound
	}
	if existing.Revision != wf.Revision {
		return provider.ErrConcurrentUpdate
	}

	wf.Revision++
	clone, err := provider.CloneInstance(wf, s.dataFactory)
	if err != nil {
		wf.Revision--
		return err
	}
	s.instances[wf.ID] = clone
	return nil
}

// GetWorkflow возвращает копию экземпляра.
func (s *Store) GetWorkflow(_ context.Context, id string) (*domain.WorkflowInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wf, ok := s.instances[id]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return provider.CloneInstance(wf, s.dataFactory)
}

// GetWorkflowInstances возвращает экземпляры по фильтру, по времени создания.
func (s *Store) GetWorkflowInstances(_ context.Context, filter domain.InstanceFilter) ([]*domain.WorkflowInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.WorkflowInstance
	for _, wf := range s.instances {
		if filter.Matches(wf) {
			matched = append(matched, wf)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreateTime.Equal(matched[j].CreateTime) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreateTime.Before(matched[j].CreateTime)
	})

	if filter.Skip > 0 {
		if filter.Skip >= len(matched) {
			return []*domain.WorkflowInstance{}, nil
		}
		matched = matched[filter.Skip:]
	}
	if filter.Take > 0 && filter.Take < len(matched) {
		matched = matched[:filter.Take]
	}

	result := make([]*domain.WorkflowInstance, 0, len(matched))
	for _, wf := range matched {
		clone, err := provider.CloneInstance(wf, s.dataFactory)
		if err != nil {
			return nil, err
		}
		result = append(result, clone)
	}
	return result, nil
}

// GetRunnableInstances возвращает ID экземпляров, которые пора выполнить.
func (s *Store) GetRunnableInstances(_ context.Context, asAt time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, wf := range s.instances {
		if wf.IsRunnableAt(asAt) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// GetWorkflowInstanceIDsByUser возвращает ID незавершённых экземпляров пользователя.
func (s *Store) GetWorkflowInstanceIDsByUser(_ context.Context, userID, tenantID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter := domain.InstanceFilter{UserID: userID, TenantID: tenantID}

	var ids []string
	for id, wf := range s.instances {
		if wf.UserID != "" && !wf.Status.IsTerminal() && filter.Matches(wf) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// CreateEventSubscription сохраняет подписку.
func (s *Store) CreateEventSubscription(_ context.Context, sub *domain.EventSubscription) (string, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *sub
	s.subscriptions[sub.ID] = &copied
	return sub.ID, nil
}

// GetSubscriptions возвращает активные подписки на (name, key), созданные не позже asOf.
func (s *Store) GetSubscriptions(_ context.Context, eventName, eventKey string, asOf time.Time) ([]*domain.EventSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EventSubscription
	for _, sub := range s.subscriptions {
		if sub.Terminated || sub.EventName != eventName || sub.EventKey != eventKey {
			continue
		}
		if sub.SubscribeAs.After(asOf) {
			continue
		}
		copied := *sub
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// TerminateSubscription помечает подписку отработавшей.
func (s *Store) TerminateSubscription(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[id]
	if !ok {
		return provider.ErrNotFound
	}
	sub.Terminated = true
	return nil
}

// CreateEvent сохраняет событие.
func (s *Store) CreateEvent(_ context.Context, evt *domain.Event) (string, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *evt
	s.events[evt.ID] = &copied
	return evt.ID, nil
}

// GetEvent возвращает событие.
func (s *Store) GetEvent(_ context.Context, id string) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evt, ok := s.events[id]
	if !ok {
		return nil, provider.ErrNotFound
	}
	copied := *evt
	return &copied, nil
}

// GetRunnableEvents возвращает необработанные события с Time <= asAt.
func (s *Store) GetRunnableEvents(_ context.Context, asAt time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, evt := range s.events {
		if !evt.IsProcessed && !evt.Time.After(asAt) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// GetEvents возвращает ID событий (name, key), опубликованных не раньше asOf.
func (s *Store) GetEvents(_ context.Context, eventName, eventKey string, asOf time.Time, processed domain.ProcessedFilter) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, evt := range s.events {
		if evt.Name == eventName && evt.Key == eventKey && !evt.Time.Before(asOf) && processed.Matches(evt.IsProcessed) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// MarkEventProcessed помечает событие обработанным.
func (s *Store) MarkEventProcessed(_ context.Context, id string) error {
	return s.setProcessed(id, true)
}

// MarkEventUnprocessed возвращает событие в обработку.
func (s *Store) MarkEventUnprocessed(_ context.Context, id string) error {
	return s.setProcessed(id, false)
}

func (s *Store) setProcessed(id string, processed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	evt, ok := s.events[id]
	if !ok {
		return provider.ErrNotFound
	}
	evt.IsProcessed = processed
	return nil
}

// PersistErrors дописывает ошибки в журнал.
func (s *Store) PersistErrors(_ context.Context, errs []domain.ExecutionError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, errs...)
	return nil
}

// GetErrors возвращает ошибки экземпляра в порядке записи.
func (s *Store) GetErrors(_ context.Context, workflowID string) ([]domain.ExecutionError, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.ExecutionError
	for _, e := range s.errors {
		if e.WorkflowID == workflowID {
			result = append(result, e)
		}
	}
	return result, nil
}

// EnsureStoreExists ничего не делает.
func (s *Store) EnsureStoreExists(context.Context) error {
	return nil
}
