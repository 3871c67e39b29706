package workflows

import (
	"context"

	"github.com/shaiso/Durable/internal/engine"
	"github.com/shaiso/Durable/internal/steps"
)

// ApprovalLimit — сумма, начиная с которой заказ требует ручного решения.
const ApprovalLimit = 1000

// ApprovalEvent — имя события ручного решения. Ключ — OrderID.
const ApprovalEvent = "approval"

// Результаты проверки заказа.
const (
	RouteAuto   = "auto"
	RouteManual = "manual"
)

// ApprovalData — данные approval.
type ApprovalData struct {
	OrderID  string  `json:"order_id"`
	Amount   float64 `json:"amount"`
	Route    string  `json:"route,omitempty"`
	Decision string  `json:"decision,omitempty"`
	Status   string  `json:"status,omitempty"`
}

// Approval — согласование заказа.
//
//	review → switch ─ when auto   → auto_approve
//	               └ when manual → wait_for:approval
//	       → finalize
func Approval() *engine.Definition {
	return &engine.Definition{
		ID:          "approval",
		Version:     1,
		Description: "Approves orders automatically or waits for a decision",
		NewData:     func() any { return &ApprovalData{} },
		Steps: []*engine.Step{
			{
				ID:   0,
				Name: "review",
				Body: engine.Inline(func(_ context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
					data, err := dataOf[ApprovalData](ec)
					if err != nil {
						return nil, err
					}
					data.Route = RouteAuto
					if data.Amount >= ApprovalLimit {
						data.Route = RouteManual
					}
					return engine.OutcomeResult(data.Route), nil
				}),
				Outcomes: []engine.Outcome{{NextStep: 1}},
			},
			withOutcomes(steps.SwitchStep(1, "", 2, 3), engine.Outcome{NextStep: 6}),
			steps.WhenStep(2, RouteAuto, 4),
			steps.WhenStep(3, RouteManual, 5),
			{
				ID:   4,
				Name: "auto_approve",
				Body: engine.Inline(func(_ context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
					data, err := dataOf[ApprovalData](ec)
					if err != nil {
						return nil, err
					}
					data.Decision = "approved"
					return engine.Next(), nil
				}),
			},
			steps.WaitForStep(5, ApprovalEvent, "{{ .Data.OrderID }}", "Decision"),
			{
				ID:   6,
				Name: "finalize",
				Body: engine.Inline(func(_ context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
					data, err := dataOf[ApprovalData](ec)
					if err != nil {
						return nil, err
					}
					data.Status = "closed:" + data.Decision
					return engine.Next(), nil
				}),
			},
		},
	}
}

func withOutcomes(step *engine.Step, outcomes ...engine.Outcome) *engine.Step {
	step.Outcomes = append(step.Outcomes, outcomes...)
	return step
}
