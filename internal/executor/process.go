package executor

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Durable/internal/domain"
	"github.com/shaiso/Durable/internal/engine"
)

// applyResult применяет результат тела шага к указателю и экземпляру.
//
// Outcome и PersistenceData указателя перезаписываются любым результатом.
func (e *Executor) applyResult(ec *engine.ExecutionContext, res *engine.ExecutionResult, now time.Time, out *Result) {
	wf, def, step, ptr := ec.Workflow, ec.Definition, ec.Step, ec.Pointer

	ptr.PersistenceData = res.PersistenceData
	ptr.Outcome = res.OutcomeValue

	switch res.Kind {
	case engine.ResultNext:
		ptr.MarkComplete(now)
		for _, outcome := range step.Outcomes {
			if e.outcomeMatches(ec, outcome, res) {
				wf.ExecutionPointers = append(wf.ExecutionPointers, engine.NewNextPointer(def, ptr, outcome))
			}
		}

	case engine.ResultBranch:
		for _, item := range res.BranchValues {
			for _, childID := range step.Children {
				wf.ExecutionPointers = append(wf.ExecutionPointers, engine.NewChildPointer(def, ptr, childID, item))
			}
		}

	case engine.ResultPersist:
		// состояние уже сохранено выше

	case engine.ResultSleep:
		ptr.SleepFor(now, res.SleepFor)

	case engine.ResultWaitForEvent:
		ptr.Active = false
		ptr.Status = domain.PointerStatusWaitingForEvent
		ptr.EventName = res.EventName
		ptr.EventKey = res.EventKey
		ptr.EventPublished = false
		ptr.EventData = nil

		out.Subscriptions = append(out.Subscriptions, domain.EventSubscription{
			ID:          uuid.NewString(),
			WorkflowID:  wf.ID,
			StepID:      ptr.StepID,
			PointerID:   ptr.ID,
			EventName:   res.EventName,
			EventKey:    res.EventKey,
			SubscribeAs: res.EventAsOf,
		})

	case engine.ResultEndWorkflow:
		ptr.MarkComplete(now)
		wf.MarkComplete(now)
	}
}

// outcomeMatches проверяет, срабатывает ли переход для результата.
func (e *Executor) outcomeMatches(ec *engine.ExecutionContext, outcome engine.Outcome, res *engine.ExecutionResult) bool {
	if outcome.Value != nil && !engine.OutcomeEquals(outcome.Value, res.OutcomeValue) {
		return false
	}
	if outcome.Condition == "" {
		return true
	}

	ok, err := engine.RenderCondition(outcome.Condition, engine.NewTemplateContext(ec.Workflow.Data, ec))
	if err != nil {
		ec.Logger.Warn("outcome condition failed",
			"next_step", outcome.NextStep,
			"error", err,
		)
		return false
	}
	return ok
}

// handleStepError применяет политику ошибок шага.
func (e *Executor) handleStepError(wf *domain.WorkflowInstance, def *engine.Definition, step *engine.Step, ptr *domain.ExecutionPointer, now time.Time) {
	ptr.Status = domain.PointerStatusFailed

	switch def.ErrorBehaviorFor(step) {
	case engine.ErrorBehaviorSuspend:
		wf.Status = domain.WorkflowStatusSuspended
	case engine.ErrorBehaviorTerminate:
		wf.MarkTerminated(now)
	default:
		ptr.RetryCount++
		until := now.Add(def.RetryIntervalFor(step, e.errorRetryInterval))
		ptr.SleepUntil = &until
	}
}
