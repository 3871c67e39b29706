package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Durable/internal/domain"
	"github.com/shaiso/Durable/internal/provider"
)

type orderData struct {
	OrderID string `json:"order_id"`
	Amount  int    `json:"amount"`
}

func TestStore_RevisionCheck(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)

	wf := &domain.WorkflowInstance{DefinitionID: "hello", Status: domain.WorkflowStatusRunnable}
	id, err := store.CreateWorkflow(ctx, wf)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	a, err := store.GetWorkflow(ctx, id)
	require.NoError(t, err)
	b, err := store.GetWorkflow(ctx, id)
	require.NoError(t, err)

	a.Description = "first"
	require.NoError(t, store.PersistWorkflow(ctx, a))
	assert.Equal(t, int64(2), a.Revision)

	b.Description = "second"
	assert.ErrorIs(t, store.PersistWorkflow(ctx, b), provider.ErrConcurrentUpdate)

	got, err := store.GetWorkflow(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Description)
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)

	id, err := store.CreateWorkflow(ctx, &domain.WorkflowInstance{
		DefinitionID:      "hello",
		ExecutionPointers: domain.PointerCollection{{ID: "p1", Active: true}},
	})
	require.NoError(t, err)

	wf, err := store.GetWorkflow(ctx, id)
	require.NoError(t, err)
	wf.ExecutionPointers[0].Active = false

	again, err := store.GetWorkflow(ctx, id)
	require.NoError(t, err)
	assert.True(t, again.ExecutionPointers[0].Active)
}

func TestStore_DataFactory(t *testing.T) {
	ctx := context.Background()
	store := NewStore(func(string, int, string) any { return &orderData{} })

	id, err := store.CreateWorkflow(ctx, &domain.WorkflowInstance{
		DefinitionID: "order",
		Data:         &orderData{OrderID: "o-1", Amount: 3},
	})
	require.NoError(t, err)

	wf, err := store.GetWorkflow(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, &orderData{OrderID: "o-1", Amount: 3}, wf.Data)
}

func TestStore_GetWorkflowInstanceIDsByUser(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)

	create := func(user, tenant string, status domain.WorkflowStatus) string {
		id, err := store.CreateWorkflow(ctx, &domain.WorkflowInstance{
			DefinitionID: "hello",
			UserID:       user,
			TenantID:     tenant,
			Status:       status,
		})
		require.NoError(t, err)
		return id
	}

	runnable := create("ann", "acme", domain.WorkflowStatusRunnable)
	suspended := create("ann", "", domain.WorkflowStatusSuspended)
	create("ann", "acme", domain.WorkflowStatusComplete)
	create("ann", "acme", domain.WorkflowStatusTerminated)
	create("bob", "acme", domain.WorkflowStatusRunnable)

	ids, err := store.GetWorkflowInstanceIDsByUser(ctx, "ann", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{runnable, suspended}, ids)

	ids, err = store.GetWorkflowInstanceIDsByUser(ctx, "ann", "acme")
	require.NoError(t, err)
	assert.Equal(t, []string{runnable}, ids)

	ids, err = store.GetWorkflowInstanceIDsByUser(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_GetRunnableInstances(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	now := time.Now()

	due := &domain.WorkflowInstance{ID: "due", Status: domain.WorkflowStatusRunnable}
	due.ScheduleAt(now.Add(-time.Second).UnixMilli())
	later := &domain.WorkflowInstance{ID: "later", Status: domain.WorkflowStatusRunnable}
	later.ScheduleAt(now.Add(time.Hour).UnixMilli())
	suspended := &domain.WorkflowInstance{ID: "suspended", Status: domain.WorkflowStatusSuspended}
	suspended.ScheduleAt(0)
	waiting := &domain.WorkflowInstance{ID: "waiting", Status: domain.WorkflowStatusRunnable}

	for _, wf := range []*domain.WorkflowInstance{due, later, suspended, waiting} {
		_, err := store.CreateWorkflow(ctx, wf)
		require.NoError(t, err)
	}

	ids, err := store.GetRunnableInstances(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"due"}, ids)
}

func TestStore_GetWorkflowInstancesFilter(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, status := range []domain.WorkflowStatus{
		domain.WorkflowStatusRunnable,
		domain.WorkflowStatusComplete,
		domain.WorkflowStatusRunnable,
		domain.WorkflowStatusRunnable,
	} {
		_, err := store.CreateWorkflow(ctx, &domain.WorkflowInstance{
			DefinitionID: "hello",
			Status:       status,
			CreateTime:   base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	runnable, err := store.GetWorkflowInstances(ctx, domain.InstanceFilter{Status: domain.WorkflowStatusRunnable})
	require.NoError(t, err)
	assert.Len(t, runnable, 3)

	page, err := store.GetWorkflowInstances(ctx, domain.InstanceFilter{Skip: 1, Take: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, base.Add(time.Minute), page[0].CreateTime)

	empty, err := store.GetWorkflowInstances(ctx, domain.InstanceFilter{Skip: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_EventsAndSubscriptions(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	now := time.Now()

	subID, err := store.CreateEventSubscription(ctx, &domain.EventSubscription{
		WorkflowID: "wf", EventName: "approved", EventKey: "o-1", SubscribeAs: now.Add(-time.Minute),
	})
	require.NoError(t, err)

	subs, err := store.GetSubscriptions(ctx, "approved", "o-1", now)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	// подписка позже события не учитывается
	subs, err = store.GetSubscriptions(ctx, "approved", "o-1", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, subs)

	require.NoError(t, store.TerminateSubscription(ctx, subID))
	subs, err = store.GetSubscriptions(ctx, "approved", "o-1", now)
	require.NoError(t, err)
	assert.Empty(t, subs)
	assert.ErrorIs(t, store.TerminateSubscription(ctx, "missing"), provider.ErrNotFound)

	evtID, err := store.CreateEvent(ctx, &domain.Event{Name: "approved", Key: "o-1", Time: now})
	require.NoError(t, err)

	ids, err := store.GetRunnableEvents(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{evtID}, ids)

	require.NoError(t, store.MarkEventProcessed(ctx, evtID))
	ids, err = store.GetRunnableEvents(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = store.GetEvents(ctx, "approved", "o-1", now.Add(-time.Second), domain.AnyEvents)
	require.NoError(t, err)
	assert.Equal(t, []string{evtID}, ids)

	ids, err = store.GetEvents(ctx, "approved", "o-1", now.Add(-time.Second), domain.ProcessedEvents)
	require.NoError(t, err)
	assert.Equal(t, []string{evtID}, ids)

	ids, err = store.GetEvents(ctx, "approved", "o-1", now.Add(-time.Second), domain.UnprocessedEvents)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.MarkEventUnprocessed(ctx, evtID))
	evt, err := store.GetEvent(ctx, evtID)
	require.NoError(t, err)
	assert.False(t, evt.IsProcessed)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)

	require.NoError(t, store.PersistErrors(ctx, []domain.ExecutionError{
		{WorkflowID: "a", Message: "one"},
		{WorkflowID: "b", Message: "two"},
		{WorkflowID: "a", Message: "three"},
	}))

	errs, err := store.GetErrors(ctx, "a")
	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.Equal(t, "one", errs[0].Message)
	assert.Equal(t, "three", errs[1].Message)
}

func TestQueue_NonBlocking(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(false)

	id, err := q.DequeueWork(ctx, provider.QueueWorkflow)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, q.QueueWork(ctx, "a", provider.QueueWorkflow))
	require.NoError(t, q.QueueWork(ctx, "b", provider.QueueWorkflow))
	require.NoError(t, q.QueueWork(ctx, "e", provider.QueueEvent))

	id, err = q.DequeueWork(ctx, provider.QueueWorkflow)
	require.NoError(t, err)
	assert.Equal(t, "a", id)
	assert.Equal(t, []string{"b"}, q.Items(provider.QueueWorkflow))
	assert.Equal(t, 1, q.Len(provider.QueueEvent))
}

func TestQueue_BlockingWaitsForItem(t *testing.T) {
	q := NewQueue(true)
	require.True(t, q.IsDequeueBlocking())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = q.QueueWork(context.Background(), "late", provider.QueueWorkflow)
	}()

	id, err := q.DequeueWork(ctx, provider.QueueWorkflow)
	require.NoError(t, err)
	assert.Equal(t, "late", id)
}

func TestQueue_BlockingCancelled(t *testing.T) {
	q := NewQueue(true)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.DequeueWork(ctx, provider.QueueWorkflow)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocker()

	ok, err := l.AcquireLock(ctx, "wf-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.AcquireLock(ctx, "wf-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.ReleaseLock(ctx, "wf-1"))
	ok, err = l.AcquireLock(ctx, "wf-1")
	require.NoError(t, err)
	assert.True(t, ok)
}
