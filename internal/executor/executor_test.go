package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Durable/internal/domain"
	"github.com/shaiso/Durable/internal/engine"
	"github.com/shaiso/Durable/internal/steps"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	clock    *fakeClock
	registry *engine.Registry
	exec     *Executor
	errs     []error
}

func newHarness(t *testing.T, defs ...*engine.Definition) *harness {
	t.Helper()

	h := &harness{
		clock:    &fakeClock{now: epoch},
		registry: engine.NewRegistry(),
	}
	for _, def := range defs {
		require.NoError(t, h.registry.Register(def))
	}
	h.exec = New(Config{
		Registry:           h.registry,
		Bodies:             steps.DefaultRegistry(),
		Clock:              h.clock,
		ErrorRetryInterval: time.Minute,
		OnStepError: []StepErrorHandler{func(_ *domain.WorkflowInstance, _ *engine.Step, err error) {
			h.errs = append(h.errs, err)
		}},
	})
	return h
}

// start создаёт экземпляр так же, как контроллер: genesis-указатель и NextExecution = 0.
func (h *harness) start(def *engine.Definition, data any) *domain.WorkflowInstance {
	wf := &domain.WorkflowInstance{
		ID:                "wf-1",
		DefinitionID:      def.ID,
		Version:           def.Version,
		Status:            domain.WorkflowStatusRunnable,
		Data:              data,
		CreateTime:        h.clock.now,
		ExecutionPointers: domain.PointerCollection{engine.NewGenesisPointer(def)},
	}
	wf.ScheduleAt(0)
	return wf
}

func (h *harness) pass(t *testing.T, wf *domain.WorkflowInstance) *Result {
	t.Helper()
	res, err := h.exec.Execute(context.Background(), wf)
	require.NoError(t, err)
	return res
}

func next() engine.BodyFactory {
	return engine.Inline(func(context.Context, *engine.ExecutionContext) (*engine.ExecutionResult, error) {
		return engine.Next(), nil
	})
}

func pointersForStep(wf *domain.WorkflowInstance, stepID int) []*domain.ExecutionPointer {
	var result []*domain.ExecutionPointer
	for _, p := range wf.ExecutionPointers {
		if p.StepID == stepID {
			result = append(result, p)
		}
	}
	return result
}

func TestExecute_SwitchWhenGate(t *testing.T) {
	def := &engine.Definition{
		ID:      "gate",
		Version: 1,
		Steps: []*engine.Step{
			{ID: 0, Name: "switch", Body: func() (engine.StepBody, error) { return &steps.Switch{Value: true}, nil }, Children: []int{1}},
			steps.WhenStep(1, true, 2),
			{ID: 2, Name: "work", Body: next()},
		},
	}
	h := newHarness(t, def)
	wf := h.start(def, nil)

	// pass 1: switch создаёт указатель на When
	h.pass(t, wf)
	require.Len(t, wf.ExecutionPointers, 2)
	switchPtr := wf.ExecutionPointers[0]
	assert.Equal(t, true, switchPtr.Outcome)
	assert.Equal(t, &domain.ControlPersistenceData{ChildrenActive: true}, switchPtr.PersistenceData)

	// pass 2: When совпал и создал одну ветку
	h.pass(t, wf)
	gate := pointersForStep(wf, 1)[0]
	require.Len(t, gate.Children, 1)
	assert.Equal(t, &domain.ControlPersistenceData{ChildrenActive: true}, gate.PersistenceData)
	require.NotNil(t, wf.NextExecution)
	assert.Equal(t, int64(0), *wf.NextExecution)

	// pass 3: дочерний шаг завершается, When ждёт
	h.pass(t, wf)
	child := pointersForStep(wf, 2)[0]
	assert.NotNil(t, child.EndTime)
	assert.Nil(t, gate.EndTime)
	assert.Len(t, gate.Children, 1, "repeated passes must not branch again")

	// pass 4: When видит завершённую ветку
	h.pass(t, wf)
	assert.NotNil(t, gate.EndTime)
	assert.Equal(t, domain.WorkflowStatusRunnable, wf.Status)

	// pass 5: switch завершается, экземпляр COMPLETE
	h.pass(t, wf)
	assert.NotNil(t, switchPtr.EndTime)
	assert.Equal(t, domain.WorkflowStatusComplete, wf.Status)
	assert.NotNil(t, wf.CompleteTime)
	assert.Nil(t, wf.NextExecution)
	assert.True(t, wf.ExecutionPointers.AllEnded())
}

func TestExecute_WhenMismatchSkipsBranch(t *testing.T) {
	def := &engine.Definition{
		ID: "gate",
		Steps: []*engine.Step{
			{ID: 0, Body: func() (engine.StepBody, error) { return &steps.Switch{Value: "no"}, nil }, Children: []int{1, 2}},
			steps.WhenStep(1, "yes", 3),
			steps.WhenStep(2, "no", 4),
			{ID: 3, Name: "yes", Body: next()},
			{ID: 4, Name: "no", Body: next()},
		},
	}
	h := newHarness(t, def)
	wf := h.start(def, nil)

	for i := 0; i < 10 && wf.Status == domain.WorkflowStatusRunnable; i++ {
		h.pass(t, wf)
	}

	assert.Equal(t, domain.WorkflowStatusComplete, wf.Status)
	assert.Empty(t, pointersForStep(wf, 3))
	assert.Len(t, pointersForStep(wf, 4), 1)
}

func TestExecute_ForeachBranchesPerItem(t *testing.T) {
	var seen []any
	def := &engine.Definition{
		ID: "loop",
		Steps: []*engine.Step{
			steps.ForeachStep(0, "items", 1),
			{ID: 1, Body: engine.Inline(func(_ context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
				seen = append(seen, ec.Item)
				return engine.Next(), nil
			})},
		},
	}
	h := newHarness(t, def)
	wf := h.start(def, map[string]any{"items": []any{"a", "b", "c"}})

	h.pass(t, wf)
	loop := wf.ExecutionPointers[0]
	require.Len(t, loop.Children, 3)
	for i, id := range loop.Children {
		child := wf.ExecutionPointers.FindByID(id)
		require.NotNil(t, child)
		assert.Equal(t, []any{"a", "b", "c"}[i], child.ContextItem)
		assert.Equal(t, []string{loop.ID}, child.Scope)
		assert.Equal(t, loop.ID, child.PredecessorID)
	}

	h.pass(t, wf)
	assert.ElementsMatch(t, []any{"a", "b", "c"}, seen)

	h.pass(t, wf)
	assert.Equal(t, domain.WorkflowStatusComplete, wf.Status)
}

func TestExecute_CompleteIffAllPointersEnded(t *testing.T) {
	tests := []struct {
		name string
		def  *engine.Definition
		data any
	}{
		{
			name: "chain",
			def: &engine.Definition{ID: "chain", Steps: []*engine.Step{
				{ID: 0, Body: next(), Outcomes: []engine.Outcome{{NextStep: 1}}},
				{ID: 1, Body: next()},
			}},
		},
		{
			name: "nested foreach",
			def: &engine.Definition{ID: "nested", Steps: []*engine.Step{
				steps.ForeachStep(0, "outer", 1),
				steps.ParallelStep(1, 2, 3),
				{ID: 2, Body: next()},
				steps.DelayStep(3, time.Second),
			}},
			data: map[string]any{"outer": []any{1, 2}},
		},
		{
			name: "switch",
			def: &engine.Definition{ID: "switch", Steps: []*engine.Step{
				steps.SwitchStep(0, "kind", 1, 2),
				steps.WhenStep(1, "a", 3),
				steps.WhenStep(2, "b", 3),
				{ID: 3, Body: next()},
			}},
			data: map[string]any{"kind": "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.def)
			wf := h.start(tt.def, tt.data)

			for i := 0; i < 20 && wf.Status == domain.WorkflowStatusRunnable; i++ {
				h.pass(t, wf)
				assert.Equal(t, wf.ExecutionPointers.AllEnded(), wf.Status == domain.WorkflowStatusComplete,
					"pass %d", i+1)
				h.clock.Advance(time.Second)
			}
			assert.Equal(t, domain.WorkflowStatusComplete, wf.Status)
		})
	}
}

func TestExecute_OutcomesSelectNextStep(t *testing.T) {
	def := &engine.Definition{
		ID: "route",
		Steps: []*engine.Step{
			{
				ID: 0,
				Body: engine.Inline(func(context.Context, *engine.ExecutionContext) (*engine.ExecutionResult, error) {
					return engine.OutcomeResult("b"), nil
				}),
				Outcomes: []engine.Outcome{
					{NextStep: 1, Value: "a"},
					{NextStep: 2, Value: "b"},
					{NextStep: 3, Condition: `eq .Data.tier "gold"`},
				},
			},
			{ID: 1, Body: next()},
			{ID: 2, Body: next()},
			{ID: 3, Body: next()},
		},
	}
	h := newHarness(t, def)
	wf := h.start(def, map[string]any{"tier": "gold"})

	h.pass(t, wf)

	assert.Empty(t, pointersForStep(wf, 1))
	require.Len(t, pointersForStep(wf, 2), 1)
	require.Len(t, pointersForStep(wf, 3), 1)
	assert.Equal(t, wf.ExecutionPointers[0].ID, pointersForStep(wf, 2)[0].PredecessorID)
}

func TestExecute_BindsInputsAndOutputs(t *testing.T) {
	def := &engine.Definition{
		ID: "transform",
		Steps: []*engine.Step{
			{
				ID:       0,
				BodyType: steps.StepTypeTransform,
				Inputs: []engine.Input{engine.Const("Mappings", map[string]string{
					"greeting": "hello {{ .Data.name }}",
				})},
				Outputs: []engine.Output{engine.ToData("greeting", "Result.greeting")},
			},
		},
	}
	h := newHarness(t, def)
	data := map[string]any{"name": "world"}
	wf := h.start(def, data)

	h.pass(t, wf)

	assert.Equal(t, "hello world", data["greeting"])
	assert.Equal(t, domain.WorkflowStatusComplete, wf.Status)
}

func TestExecute_DelaySchedulesNextExecution(t *testing.T) {
	def := &engine.Definition{
		ID:    "delay",
		Steps: []*engine.Step{steps.DelayStep(0, 5*time.Minute)},
	}
	h := newHarness(t, def)
	wf := h.start(def, nil)

	h.pass(t, wf)
	ptr := wf.ExecutionPointers[0]
	assert.Equal(t, domain.PointerStatusSleeping, ptr.Status)
	require.NotNil(t, wf.NextExecution)
	assert.Equal(t, epoch.Add(5*time.Minute).UnixMilli(), *wf.NextExecution)

	// до пробуждения указатель не выполняется
	h.clock.Advance(time.Minute)
	h.pass(t, wf)
	assert.Nil(t, ptr.EndTime)

	h.clock.Advance(5 * time.Minute)
	h.pass(t, wf)
	assert.NotNil(t, ptr.EndTime)
	assert.Equal(t, domain.WorkflowStatusComplete, wf.Status)
}

func TestExecute_RunsPointerAtWakeTime(t *testing.T) {
	var ran int
	def := &engine.Definition{
		ID: "wake",
		Steps: []*engine.Step{{ID: 0, Body: engine.Inline(func(context.Context, *engine.ExecutionContext) (*engine.ExecutionResult, error) {
			ran++
			return engine.Next(), nil
		})}},
	}
	h := newHarness(t, def)
	wf := h.start(def, nil)
	wake := h.clock.now
	wf.ExecutionPointers[0].SleepUntil = &wake

	h.pass(t, wf)

	assert.Equal(t, 1, ran)
	assert.Equal(t, domain.WorkflowStatusComplete, wf.Status)
}

func TestExecute_WaitForEventSubscribes(t *testing.T) {
	def := &engine.Definition{
		ID:    "approval",
		Steps: []*engine.Step{steps.WaitForStep(0, "approved", "{{ .Data.order }}", "approval")},
	}
	h := newHarness(t, def)
	wf := h.start(def, map[string]any{"order": "o-1"})

	res := h.pass(t, wf)

	require.Len(t, res.Subscriptions, 1)
	sub := res.Subscriptions[0]
	ptr := wf.ExecutionPointers[0]
	assert.Equal(t, "approved", sub.EventName)
	assert.Equal(t, "o-1", sub.EventKey)
	assert.Equal(t, ptr.ID, sub.PointerID)
	assert.Equal(t, wf.ID, sub.WorkflowID)

	assert.False(t, ptr.Active)
	assert.Equal(t, domain.PointerStatusWaitingForEvent, ptr.Status)
	assert.Nil(t, wf.NextExecution)
	assert.Equal(t, domain.WorkflowStatusRunnable, wf.Status)

	// доставка события
	ptr.Active = true
	ptr.EventPublished = true
	ptr.EventData = "yes"

	res = h.pass(t, wf)
	assert.Empty(t, res.Subscriptions)
	assert.Equal(t, "yes", wf.Data.(map[string]any)["approval"])
	assert.Equal(t, domain.WorkflowStatusComplete, wf.Status)
}

func TestExecute_BodyConstructorFailure(t *testing.T) {
	def := &engine.Definition{
		ID: "broken",
		Steps: []*engine.Step{{ID: 0, Body: func() (engine.StepBody, error) {
			return nil, errors.New("no dependencies")
		}}},
	}
	h := newHarness(t, def)
	wf := h.start(def, nil)

	res := h.pass(t, wf)

	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "no dependencies")
	ptr := wf.ExecutionPointers[0]
	assert.Nil(t, ptr.EndTime)
	require.NotNil(t, ptr.SleepUntil)
	assert.Equal(t, epoch.Add(time.Minute), *ptr.SleepUntil)
	assert.Equal(t, 0, ptr.RetryCount)
	assert.Empty(t, h.errs)
	assert.Equal(t, domain.WorkflowStatusRunnable, wf.Status)
	require.NotNil(t, wf.NextExecution)
	assert.Equal(t, epoch.Add(time.Minute).UnixMilli(), *wf.NextExecution)
}

func TestExecute_StepErrorBehavior(t *testing.T) {
	failing := engine.Inline(func(context.Context, *engine.ExecutionContext) (*engine.ExecutionResult, error) {
		return nil, errors.New("boom")
	})

	tests := []struct {
		name       string
		behavior   engine.ErrorBehavior
		wantStatus domain.WorkflowStatus
		wantRetry  int
		wantSleep  bool
	}{
		{"retry", engine.ErrorBehaviorRetry, domain.WorkflowStatusRunnable, 1, true},
		{"suspend", engine.ErrorBehaviorSuspend, domain.WorkflowStatusSuspended, 0, false},
		{"terminate", engine.ErrorBehaviorTerminate, domain.WorkflowStatusTerminated, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := &engine.Definition{
				ID: "failing",
				Steps: []*engine.Step{{
					ID:            0,
					Body:          failing,
					ErrorBehavior: tt.behavior,
					RetryInterval: 30 * time.Second,
				}},
			}
			h := newHarness(t, def)
			wf := h.start(def, nil)

			res := h.pass(t, wf)

			require.Len(t, res.Errors, 1)
			assert.Equal(t, "boom", res.Errors[0].Message)
			require.Len(t, h.errs, 1)

			ptr := wf.ExecutionPointers[0]
			assert.Equal(t, tt.wantStatus, wf.Status)
			assert.Equal(t, domain.PointerStatusFailed, ptr.Status)
			assert.Equal(t, tt.wantRetry, ptr.RetryCount)
			assert.Nil(t, ptr.EndTime)
			if tt.wantSleep {
				require.NotNil(t, ptr.SleepUntil)
				assert.Equal(t, epoch.Add(30*time.Second), *ptr.SleepUntil)
			}
			if tt.wantStatus == domain.WorkflowStatusTerminated {
				require.NotNil(t, wf.CompleteTime)
				assert.Equal(t, epoch, *wf.CompleteTime)
				assert.Nil(t, wf.NextExecution)
			}
		})
	}
}

func TestExecute_PanicIsStepError(t *testing.T) {
	def := &engine.Definition{
		ID: "panics",
		Steps: []*engine.Step{{ID: 0, Body: engine.Inline(func(context.Context, *engine.ExecutionContext) (*engine.ExecutionResult, error) {
			panic("unexpected")
		})}},
	}
	h := newHarness(t, def)
	wf := h.start(def, nil)

	res := h.pass(t, wf)

	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "unexpected")
	assert.Equal(t, 1, wf.ExecutionPointers[0].RetryCount)
}

func TestExecute_MissingStep(t *testing.T) {
	def := &engine.Definition{ID: "short", Steps: []*engine.Step{{ID: 0, Body: next()}}}
	h := newHarness(t, def)
	wf := h.start(def, nil)
	wf.ExecutionPointers[0].StepID = 42

	res := h.pass(t, wf)

	require.Len(t, res.Errors, 1)
	require.NotNil(t, wf.ExecutionPointers[0].SleepUntil)
	assert.Equal(t, epoch.Add(time.Minute), *wf.ExecutionPointers[0].SleepUntil)
}

func TestExecute_UnregisteredDefinition(t *testing.T) {
	def := &engine.Definition{ID: "known", Steps: []*engine.Step{{ID: 0, Body: next()}}}
	h := newHarness(t, def)
	wf := h.start(def, nil)
	wf.DefinitionID = "unknown"

	res := h.pass(t, wf)

	assert.True(t, res.Unregistered)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Subscriptions)
	assert.Nil(t, wf.ExecutionPointers[0].StartTime)
	require.NotNil(t, wf.NextExecution)
	assert.Equal(t, int64(0), *wf.NextExecution)
}

func TestExecute_EndWorkflow(t *testing.T) {
	def := &engine.Definition{
		ID: "end",
		Steps: []*engine.Step{
			{ID: 0, Body: engine.Inline(func(context.Context, *engine.ExecutionContext) (*engine.ExecutionResult, error) {
				return engine.EndWorkflow(), nil
			}), Outcomes: []engine.Outcome{{NextStep: 1}}},
			{ID: 1, Body: next()},
		},
	}
	h := newHarness(t, def)
	wf := h.start(def, nil)

	h.pass(t, wf)

	assert.Equal(t, domain.WorkflowStatusComplete, wf.Status)
	assert.Len(t, wf.ExecutionPointers, 1)
	assert.Nil(t, wf.NextExecution)
}

func TestExecute_Hooks(t *testing.T) {
	var calls []string
	deferOnce := true

	def := &engine.Definition{
		ID: "hooks",
		Steps: []*engine.Step{{
			ID:   0,
			Body: next(),
			Hooks: engine.Hooks{
				PreInit: func(context.Context, *domain.WorkflowInstance, *domain.ExecutionPointer) engine.Directive {
					calls = append(calls, "pre-init")
					if deferOnce {
						deferOnce = false
						return engine.DirectiveDefer
					}
					return engine.DirectiveNext
				},
				BeforeExecute: func(context.Context, *engine.ExecutionContext) engine.Directive {
					calls = append(calls, "before")
					return engine.DirectiveNext
				},
				AfterExecute: func(_ context.Context, _ *engine.ExecutionContext, res *engine.ExecutionResult) {
					calls = append(calls, "after:"+res.Kind.String())
				},
				AfterIteration: func(context.Context, *domain.WorkflowInstance, *domain.ExecutionPointer) {
					calls = append(calls, "iteration")
				},
			},
		}},
	}
	h := newHarness(t, def)
	wf := h.start(def, nil)

	h.pass(t, wf)
	assert.Nil(t, wf.ExecutionPointers[0].StartTime)

	h.pass(t, wf)

	assert.Equal(t, []string{
		"pre-init", "iteration",
		"pre-init", "before", "after:" + engine.ResultNext.String(),
	}, calls)
	assert.Equal(t, domain.WorkflowStatusComplete, wf.Status)
}

func TestExecute_CancelledContext(t *testing.T) {
	def := &engine.Definition{ID: "c", Steps: []*engine.Step{{ID: 0, Body: next()}}}
	h := newHarness(t, def)
	wf := h.start(def, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.exec.Execute(ctx, wf)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, wf.ExecutionPointers[0].EndTime)
}
