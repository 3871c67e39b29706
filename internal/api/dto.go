package api

import (
	"encoding/json"
	"time"

	"github.com/shaiso/Durable/internal/domain"
	"github.com/shaiso/Durable/internal/engine"
)

// Definition DTOs

// DefinitionResponse — ответ с определением workflow.
type DefinitionResponse struct {
	ID          string `json:"id"`
	Version     int    `json:"version"`
	TenantID    string `json:"tenant_id,omitempty"`
	Description string `json:"description,omitempty"`
	Steps       int    `json:"steps"`
}

// DefinitionFromEngine конвертирует engine.Definition в DefinitionResponse.
func DefinitionFromEngine(d *engine.Definition) DefinitionResponse {
	return DefinitionResponse{
		ID:          d.ID,
		Version:     d.Version,
		TenantID:    d.TenantID,
		Description: d.Description,
		Steps:       len(d.Steps),
	}
}

// Instance DTOs

// StartInstanceRequest — запрос на запуск экземпляра.
type StartInstanceRequest struct {
	// Version — версия определения; 0 или отсутствует — последняя.
	Version   int             `json:"version,omitempty"`
	TenantID  string          `json:"tenant_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Reference string          `json:"reference,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
}

// StartInstanceResponse — ответ на запуск экземпляра.
type StartInstanceResponse struct {
	ID string `json:"id"`
}

// InstanceResponse — ответ с экземпляром.
type InstanceResponse struct {
	ID            string            `json:"id"`
	DefinitionID  string            `json:"definition_id"`
	Version       int               `json:"version"`
	TenantID      string            `json:"tenant_id,omitempty"`
	Description   string            `json:"description,omitempty"`
	Reference     string            `json:"reference,omitempty"`
	UserID        string            `json:"user_id,omitempty"`
	Status        string            `json:"status"`
	Data          any               `json:"data,omitempty"`
	NextExecution *time.Time        `json:"next_execution,omitempty"`
	CreateTime    time.Time         `json:"create_time"`
	CompleteTime  *time.Time        `json:"complete_time,omitempty"`
	Pointers      []PointerResponse `json:"pointers,omitempty"`
}

// PointerResponse — ответ с указателем выполнения.
type PointerResponse struct {
	ID         string     `json:"id"`
	StepID     int        `json:"step_id"`
	StepName   string     `json:"step_name,omitempty"`
	Status     string     `json:"status"`
	Active     bool       `json:"active"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	SleepUntil *time.Time `json:"sleep_until,omitempty"`
	RetryCount int        `json:"retry_count,omitempty"`
	EventName  string     `json:"event_name,omitempty"`
	EventKey   string     `json:"event_key,omitempty"`
	Children   int        `json:"children,omitempty"`
}

// InstanceFromDomain конвертирует domain.WorkflowInstance в InstanceResponse.
// withPointers — включать указатели (для списка не нужны).
func InstanceFromDomain(wf *domain.WorkflowInstance, withPointers bool) InstanceResponse {
	resp := InstanceResponse{
		ID:           wf.ID,
		DefinitionID: wf.DefinitionID,
		Version:      wf.Version,
		TenantID:     wf.TenantID,
		Description:  wf.Description,
		Reference:    wf.Reference,
		UserID:       wf.UserID,
		Status:       wf.Status.String(),
		Data:         wf.Data,
		CreateTime:   wf.CreateTime,
		CompleteTime: wf.CompleteTime,
	}

	if wf.NextExecution != nil {
		next := time.UnixMilli(*wf.NextExecution).UTC()
		resp.NextExecution = &next
	}

	if withPointers {
		resp.Pointers = make([]PointerResponse, len(wf.ExecutionPointers))
		for i, p := range wf.ExecutionPointers {
			resp.Pointers[i] = PointerResponse{
				ID:         p.ID,
				StepID:     p.StepID,
				StepName:   p.StepName,
				Status:     string(p.Status),
				Active:     p.Active,
				StartTime:  p.StartTime,
				EndTime:    p.EndTime,
				SleepUntil: p.SleepUntil,
				RetryCount: p.RetryCount,
				EventName:  p.EventName,
				EventKey:   p.EventKey,
				Children:   len(p.Children),
			}
		}
	}
	return resp
}

// TransitionResponse — результат Suspend/Resume/Terminate.
// Changed=false — переход недопустим или экземпляр заблокирован.
type TransitionResponse struct {
	ID        string `json:"id"`
	Operation string `json:"operation"`
	Changed   bool   `json:"changed"`
}

// ExecutionErrorResponse — запись журнала ошибок.
type ExecutionErrorResponse struct {
	PointerID string    `json:"pointer_id"`
	Time      time.Time `json:"time"`
	Message   string    `json:"message"`
}

// Event DTOs

// PublishEventRequest — запрос на публикацию события.
type PublishEventRequest struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	Data any    `json:"data,omitempty"`

	// EffectiveTime — с какого момента событие действует (default: сейчас).
	EffectiveTime *time.Time `json:"effective_time,omitempty"`
}

// PublishEventResponse — ответ на публикацию события.
type PublishEventResponse struct {
	ID string `json:"id"`
}
