package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Durable/internal/domain"
	"github.com/shaiso/Durable/internal/engine"
	"github.com/shaiso/Durable/internal/executor"
	"github.com/shaiso/Durable/internal/provider"
	"github.com/shaiso/Durable/internal/provider/memory"
	"github.com/shaiso/Durable/internal/steps"
)

type testEnv struct {
	store     *memory.Store
	queue     *memory.Queue
	locks     *memory.Locker
	registry  *engine.Registry
	workflows *WorkflowProcessor
	events    *EventProcessor
}

func newTestEnv(t *testing.T, defs ...*engine.Definition) *testEnv {
	t.Helper()

	env := &testEnv{
		store:    memory.NewStore(nil),
		queue:    memory.NewQueue(false),
		locks:    memory.NewLocker(),
		registry: engine.NewRegistry(),
	}
	for _, def := range defs {
		require.NoError(t, env.registry.Register(def))
	}

	exec := executor.New(executor.Config{
		Registry:           env.registry,
		Bodies:             steps.DefaultRegistry(),
		ErrorRetryInterval: time.Hour,
	})
	env.workflows = NewWorkflowProcessor(WorkflowConfig{
		Store:        env.store,
		Queue:        env.queue,
		Executor:     exec,
		PollInterval: time.Second,
	})
	env.events = NewEventProcessor(EventConfig{
		Store: env.store,
		Queue: env.queue,
		Locks: env.locks,
	})
	t.Cleanup(env.workflows.Close)
	return env
}

// start сохраняет новый экземпляр так же, как контроллер.
func (e *testEnv) start(t *testing.T, def *engine.Definition, data any) string {
	t.Helper()

	wf := &domain.WorkflowInstance{
		DefinitionID:      def.ID,
		Version:           def.Version,
		Status:            domain.WorkflowStatusRunnable,
		Data:              data,
		CreateTime:        time.Now().UTC(),
		ExecutionPointers: domain.PointerCollection{engine.NewGenesisPointer(def)},
	}
	wf.ScheduleAt(0)

	id, err := e.store.CreateWorkflow(context.Background(), wf)
	require.NoError(t, err)
	return id
}

func (e *testEnv) load(t *testing.T, id string) *domain.WorkflowInstance {
	t.Helper()
	wf, err := e.store.GetWorkflow(context.Background(), id)
	require.NoError(t, err)
	return wf
}

func inline(fn func(ec *engine.ExecutionContext) (*engine.ExecutionResult, error)) engine.BodyFactory {
	return engine.Inline(func(_ context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
		return fn(ec)
	})
}

func linearDefinition() *engine.Definition {
	proceed := inline(func(*engine.ExecutionContext) (*engine.ExecutionResult, error) { return engine.Next(), nil })
	return &engine.Definition{
		ID:      "linear",
		Version: 1,
		Steps: []*engine.Step{
			{ID: 0, Name: "first", Body: proceed, Outcomes: []engine.Outcome{{NextStep: 1}}},
			{ID: 1, Name: "second", Body: proceed},
		},
	}
}

func approvalDefinition() *engine.Definition {
	return &engine.Definition{
		ID:      "approval",
		Version: 1,
		Steps:   []*engine.Step{steps.WaitForStep(0, "approved", "{{ .Data.order }}", "decision")},
	}
}

// Workflow processor

func TestWorkflowProcessor_RunsPassAndRequeues(t *testing.T) {
	def := linearDefinition()
	env := newTestEnv(t, def)
	id := env.start(t, def, nil)

	require.NoError(t, env.workflows.Process(context.Background(), id))

	wf := env.load(t, id)
	assert.Len(t, wf.ExecutionPointers, 2)
	assert.Equal(t, int64(2), wf.Revision)
	// NextExecution = 0 — экземпляр сразу возвращается в очередь
	assert.Equal(t, []string{id}, env.queue.Items(provider.QueueWorkflow))

	_, _ = env.queue.DequeueWork(context.Background(), provider.QueueWorkflow)
	require.NoError(t, env.workflows.Process(context.Background(), id))

	wf = env.load(t, id)
	assert.Equal(t, domain.WorkflowStatusComplete, wf.Status)
	assert.NotNil(t, wf.CompleteTime)
	assert.Zero(t, env.queue.Len(provider.QueueWorkflow))
}

func TestWorkflowProcessor_SkipsNotRunnable(t *testing.T) {
	def := linearDefinition()
	env := newTestEnv(t, def)
	id := env.start(t, def, nil)

	wf := env.load(t, id)
	wf.Status = domain.WorkflowStatusSuspended
	require.NoError(t, env.store.PersistWorkflow(context.Background(), wf))

	require.NoError(t, env.workflows.Process(context.Background(), id))

	after := env.load(t, id)
	assert.Equal(t, wf.Revision, after.Revision)
	assert.Nil(t, after.ExecutionPointers[0].StartTime)
	assert.Zero(t, env.queue.Len(provider.QueueWorkflow))
}

func TestWorkflowProcessor_UnregisteredDefinitionNotRequeued(t *testing.T) {
	def := linearDefinition()
	env := newTestEnv(t)
	id := env.start(t, def, nil)

	require.NoError(t, env.workflows.Process(context.Background(), id))

	wf := env.load(t, id)
	assert.Equal(t, int64(1), wf.Revision)
	assert.Nil(t, wf.ExecutionPointers[0].StartTime)
	assert.Zero(t, env.queue.Len(provider.QueueWorkflow))
	assert.Zero(t, env.workflows.PendingTimers())
}

func TestWorkflowProcessor_MissingInstance(t *testing.T) {
	env := newTestEnv(t)
	assert.NoError(t, env.workflows.Process(context.Background(), "missing"))
}

type conflictingStore struct {
	*memory.Store
}

func (s conflictingStore) PersistWorkflow(context.Context, *domain.WorkflowInstance) error {
	return provider.ErrConcurrentUpdate
}

func TestWorkflowProcessor_RequeuesOnConflict(t *testing.T) {
	def := linearDefinition()
	env := newTestEnv(t, def)
	id := env.start(t, def, nil)

	processor := NewWorkflowProcessor(WorkflowConfig{
		Store:    conflictingStore{env.store},
		Queue:    env.queue,
		Executor: executor.New(executor.Config{Registry: env.registry}),
	})

	require.NoError(t, processor.Process(context.Background(), id))

	assert.Equal(t, []string{id}, env.queue.Items(provider.QueueWorkflow))
	assert.Nil(t, env.load(t, id).ExecutionPointers[0].EndTime)
}

func TestWorkflowProcessor_PersistsErrors(t *testing.T) {
	def := &engine.Definition{
		ID: "failing",
		Steps: []*engine.Step{{ID: 0, Body: inline(func(*engine.ExecutionContext) (*engine.ExecutionResult, error) {
			return nil, errors.New("downstream unavailable")
		})}},
	}
	env := newTestEnv(t, def)
	id := env.start(t, def, nil)

	require.NoError(t, env.workflows.Process(context.Background(), id))

	errs, err := env.store.GetErrors(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "downstream unavailable", errs[0].Message)

	// повтор через час — дальше горизонта опроса
	assert.Zero(t, env.workflows.PendingTimers())
	assert.Zero(t, env.queue.Len(provider.QueueWorkflow))
}

func TestWorkflowProcessor_QueuesFutureExecution(t *testing.T) {
	def := &engine.Definition{
		ID:    "short-delay",
		Steps: []*engine.Step{steps.DelayStep(0, 30*time.Millisecond)},
	}
	env := newTestEnv(t, def)
	id := env.start(t, def, nil)

	require.NoError(t, env.workflows.Process(context.Background(), id))
	assert.Equal(t, 1, env.workflows.PendingTimers())

	require.Eventually(t, func() bool {
		return env.queue.Len(provider.QueueWorkflow) == 1
	}, waitFor, tick)
	assert.Zero(t, env.workflows.PendingTimers())
}

func TestWorkflowProcessor_SubscriptionCatchUp(t *testing.T) {
	def := approvalDefinition()
	env := newTestEnv(t, def)
	ctx := context.Background()

	// событие опубликовано и обработано до подписки
	evtID, err := env.store.CreateEvent(ctx, &domain.Event{Name: "approved", Key: "o-1", Time: time.Now().UTC()})
	require.NoError(t, err)
	require.NoError(t, env.store.MarkEventProcessed(ctx, evtID))

	id := env.start(t, def, map[string]any{"order": "o-1"})
	require.NoError(t, env.workflows.Process(ctx, id))

	subs, err := env.store.GetSubscriptions(ctx, "approved", "o-1", time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, id, subs[0].WorkflowID)

	evt, err := env.store.GetEvent(ctx, evtID)
	require.NoError(t, err)
	assert.False(t, evt.IsProcessed)
	assert.Equal(t, []string{evtID}, env.queue.Items(provider.QueueEvent))
}

// Event processor

func TestEventProcessor_DeliversEvent(t *testing.T) {
	def := approvalDefinition()
	env := newTestEnv(t, def)
	ctx := context.Background()

	id := env.start(t, def, map[string]any{"order": "o-1"})
	require.NoError(t, env.workflows.Process(ctx, id))

	wf := env.load(t, id)
	require.False(t, wf.ExecutionPointers[0].Active)
	assert.Nil(t, wf.NextExecution)

	evtID, err := env.store.CreateEvent(ctx, &domain.Event{
		Name: "approved", Key: "o-1", Data: "granted", Time: time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, env.events.Process(ctx, evtID))

	wf = env.load(t, id)
	ptr := wf.ExecutionPointers[0]
	assert.True(t, ptr.Active)
	assert.True(t, ptr.EventPublished)
	assert.Equal(t, "granted", ptr.EventData)
	require.NotNil(t, wf.NextExecution)
	assert.Equal(t, int64(0), *wf.NextExecution)

	evt, err := env.store.GetEvent(ctx, evtID)
	require.NoError(t, err)
	assert.True(t, evt.IsProcessed)
	assert.Contains(t, env.queue.Items(provider.QueueWorkflow), id)
	assert.False(t, env.locks.IsLocked(id))
	assert.False(t, env.locks.IsLocked("evt:"+evtID))

	subs, err := env.store.GetSubscriptions(ctx, "approved", "o-1", time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, subs)

	require.NoError(t, env.workflows.Process(ctx, id))
	wf = env.load(t, id)
	assert.Equal(t, domain.WorkflowStatusComplete, wf.Status)
	assert.Equal(t, "granted", wf.Data.(map[string]any)["decision"])
}

func TestEventProcessor_InstanceLockedPostponesDelivery(t *testing.T) {
	def := approvalDefinition()
	env := newTestEnv(t, def)
	ctx := context.Background()

	id := env.start(t, def, map[string]any{"order": "o-1"})
	require.NoError(t, env.workflows.Process(ctx, id))

	evtID, err := env.store.CreateEvent(ctx, &domain.Event{Name: "approved", Key: "o-1", Time: time.Now().UTC()})
	require.NoError(t, err)

	ok, err := env.locks.AcquireLock(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, env.events.Process(ctx, evtID))

	evt, err := env.store.GetEvent(ctx, evtID)
	require.NoError(t, err)
	assert.False(t, evt.IsProcessed)
	assert.False(t, env.load(t, id).ExecutionPointers[0].EventPublished)

	require.NoError(t, env.locks.ReleaseLock(ctx, id))
	require.NoError(t, env.events.Process(ctx, evtID))

	evt, err = env.store.GetEvent(ctx, evtID)
	require.NoError(t, err)
	assert.True(t, evt.IsProcessed)
}

func TestEventProcessor_FutureEventIgnored(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	evtID, err := env.store.CreateEvent(ctx, &domain.Event{Name: "later", Time: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	require.NoError(t, env.events.Process(ctx, evtID))

	evt, err := env.store.GetEvent(ctx, evtID)
	require.NoError(t, err)
	assert.False(t, evt.IsProcessed)
}

func TestEventProcessor_EventLockHeld(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	evtID, err := env.store.CreateEvent(ctx, &domain.Event{Name: "any", Time: time.Now().Add(-time.Second)})
	require.NoError(t, err)

	ok, err := env.locks.AcquireLock(ctx, "evt:"+evtID)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, env.events.Process(ctx, evtID))

	evt, err := env.store.GetEvent(ctx, evtID)
	require.NoError(t, err)
	assert.False(t, evt.IsProcessed)
}

func TestEventProcessor_NoSubscriptionsMarksProcessed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	evtID, err := env.store.CreateEvent(ctx, &domain.Event{Name: "orphan", Time: time.Now().Add(-time.Second)})
	require.NoError(t, err)

	require.NoError(t, env.events.Process(ctx, evtID))

	evt, err := env.store.GetEvent(ctx, evtID)
	require.NoError(t, err)
	assert.True(t, evt.IsProcessed)
}
