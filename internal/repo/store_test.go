package repo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Durable/internal/domain"
	"github.com/shaiso/Durable/internal/provider"
)

// newTestStore подключается к БД из DURABLE_TEST_DB_URL.
// Без переменной тесты пропускаются.
func newTestStore(t *testing.T, factory provider.DataFactory) *Store {
	t.Helper()

	dsn := os.Getenv("DURABLE_TEST_DB_URL")
	if dsn == "" {
		t.Skip("DURABLE_TEST_DB_URL not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, dsn, 2)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewStore(pool, factory)
	require.NoError(t, store.EnsureStoreExists(ctx))
	// повторный вызов не падает
	require.NoError(t, store.EnsureStoreExists(ctx))
	return store
}

type orderData struct {
	Order string `json:"order"`
	Count int    `json:"count"`
}

func newInstance(definitionID string) *domain.WorkflowInstance {
	zero := int64(0)
	wf := &domain.WorkflowInstance{
		DefinitionID: definitionID,
		Version:      1,
		Status:       domain.WorkflowStatusRunnable,
		Reference:    "ref-1",
		Data:         &orderData{Order: "o-1", Count: 2},
		CreateTime:   time.Now().UTC().Truncate(time.Microsecond),
		ExecutionPointers: domain.PointerCollection{{
			ID:     uuid.NewString(),
			StepID: 0,
			Active: true,
			Status: domain.PointerStatusPending,
		}},
		NextExecution: &zero,
	}
	return wf
}

func TestStore_WorkflowRoundTrip(t *testing.T) {
	store := newTestStore(t, func(string, int, string) any { return &orderData{} })
	ctx := context.Background()

	wf := newInstance("repo-roundtrip-" + uuid.NewString())
	id, err := store.CreateWorkflow(ctx, wf)
	require.NoError(t, err)
	assert.Equal(t, int64(1), wf.Revision)

	got, err := store.GetWorkflow(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, wf.DefinitionID, got.DefinitionID)
	assert.Equal(t, "ref-1", got.Reference)
	assert.Equal(t, &orderData{Order: "o-1", Count: 2}, got.Data)
	assert.True(t, wf.CreateTime.Equal(got.CreateTime))
	require.Len(t, got.ExecutionPointers, 1)
	assert.Equal(t, wf.ExecutionPointers[0].ID, got.ExecutionPointers[0].ID)
	require.NotNil(t, got.NextExecution)
	assert.Equal(t, int64(0), *got.NextExecution)

	_, err = store.GetWorkflow(ctx, uuid.NewString())
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestStore_PersistWorkflowRevision(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	wf := newInstance("repo-revision-" + uuid.NewString())
	id, err := store.CreateWorkflow(ctx, wf)
	require.NoError(t, err)

	first, err := store.GetWorkflow(ctx, id)
	require.NoError(t, err)
	second, err := store.GetWorkflow(ctx, id)
	require.NoError(t, err)

	first.Status = domain.WorkflowStatusSuspended
	require.NoError(t, store.PersistWorkflow(ctx, first))
	assert.Equal(t, int64(2), first.Revision)

	second.Status = domain.WorkflowStatusTerminated
	assert.ErrorIs(t, store.PersistWorkflow(ctx, second), provider.ErrConcurrentUpdate)

	missing := newInstance("missing")
	missing.ID = uuid.NewString()
	assert.ErrorIs(t, store.PersistWorkflow(ctx, missing), provider.ErrNotFound)

	got, err := store.GetWorkflow(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowStatusSuspended, got.Status)
}

func TestStore_RunnableAndFilter(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()
	definitionID := "repo-filter-" + uuid.NewString()

	due := newInstance(definitionID)
	_, err := store.CreateWorkflow(ctx, due)
	require.NoError(t, err)

	waiting := newInstance(definitionID)
	waiting.NextExecution = nil
	_, err = store.CreateWorkflow(ctx, waiting)
	require.NoError(t, err)

	ids, err := store.GetRunnableInstances(ctx, time.Now())
	require.NoError(t, err)
	assert.Contains(t, ids, due.ID)
	assert.NotContains(t, ids, waiting.ID)

	list, err := store.GetWorkflowInstances(ctx, domain.InstanceFilter{DefinitionID: definitionID})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	page, err := store.GetWorkflowInstances(ctx, domain.InstanceFilter{DefinitionID: definitionID, Skip: 1, Take: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestStore_GetWorkflowInstanceIDsByUser(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()
	user := "user-" + uuid.NewString()

	open := newInstance("by-user")
	open.UserID = user
	_, err := store.CreateWorkflow(ctx, open)
	require.NoError(t, err)

	done := newInstance("by-user")
	done.UserID = user
	done.Status = domain.WorkflowStatusComplete
	_, err = store.CreateWorkflow(ctx, done)
	require.NoError(t, err)

	ids, err := store.GetWorkflowInstanceIDsByUser(ctx, user, "")
	require.NoError(t, err)
	assert.Equal(t, []string{open.ID}, ids)

	list, err := store.GetWorkflowInstances(ctx, domain.InstanceFilter{UserID: user})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestStore_EventsAndSubscriptions(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()
	name := "repo-event-" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)

	subID, err := store.CreateEventSubscription(ctx, &domain.EventSubscription{
		WorkflowID:  uuid.NewString(),
		PointerID:   uuid.NewString(),
		EventName:   name,
		EventKey:    "k",
		SubscribeAs: now.Add(-time.Minute),
	})
	require.NoError(t, err)

	evtID, err := store.CreateEvent(ctx, &domain.Event{Name: name, Key: "k", Data: map[string]any{"ok": true}, Time: now})
	require.NoError(t, err)

	subs, err := store.GetSubscriptions(ctx, name, "k", now)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, subID, subs[0].ID)

	evt, err := store.GetEvent(ctx, evtID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, evt.Data)
	assert.False(t, evt.IsProcessed)

	runnable, err := store.GetRunnableEvents(ctx, now)
	require.NoError(t, err)
	assert.Contains(t, runnable, evtID)

	require.NoError(t, store.MarkEventProcessed(ctx, evtID))
	runnable, err = store.GetRunnableEvents(ctx, now)
	require.NoError(t, err)
	assert.NotContains(t, runnable, evtID)

	ids, err := store.GetEvents(ctx, name, "k", now.Add(-time.Second), domain.AnyEvents)
	require.NoError(t, err)
	assert.Equal(t, []string{evtID}, ids)

	ids, err = store.GetEvents(ctx, name, "k", now.Add(-time.Second), domain.UnprocessedEvents)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.TerminateSubscription(ctx, subID))
	subs, err = store.GetSubscriptions(ctx, name, "k", now)
	require.NoError(t, err)
	assert.Empty(t, subs)

	assert.ErrorIs(t, store.TerminateSubscription(ctx, uuid.NewString()), provider.ErrNotFound)
	assert.ErrorIs(t, store.MarkEventUnprocessed(ctx, uuid.NewString()), provider.ErrNotFound)
}

func TestStore_Errors(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()
	workflowID := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, store.PersistErrors(ctx, nil))
	require.NoError(t, store.PersistErrors(ctx, []domain.ExecutionError{
		{WorkflowID: workflowID, PointerID: "p1", Time: now, Message: "first"},
		{WorkflowID: workflowID, PointerID: "p1", Time: now, Message: "second"},
	}))

	errs, err := store.GetErrors(ctx, workflowID)
	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.Equal(t, "first", errs[0].Message)
	assert.Equal(t, "second", errs[1].Message)
}

func TestPoolConfig(t *testing.T) {
	cfg, err := poolConfig("", 0)
	require.NoError(t, err)
	assert.EqualValues(t, defaultMaxConns, cfg.MaxConns)
	assert.Equal(t, "durable", cfg.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "durable", cfg.ConnConfig.Database)

	cfg, err = poolConfig("postgresql://u:p@db:5432/app?application_name=custom", 4)
	require.NoError(t, err)
	assert.EqualValues(t, 4, cfg.MaxConns)
	assert.Equal(t, "custom", cfg.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "db", cfg.ConnConfig.Host)

	_, err = poolConfig("postgresql://u:p@db:notaport/app", 0)
	assert.Error(t, err)
}
