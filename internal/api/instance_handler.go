package api

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/shaiso/Durable/internal/domain"
	"github.com/shaiso/Durable/internal/orchestrator"
)

const defaultListLimit = 50

// StartInstance запускает экземпляр определения.
// POST /api/v1/workflows/{id}/instances
func (h *Handler) StartInstance(w http.ResponseWriter, r *http.Request) {
	definitionID := r.PathValue("id")

	var req StartInstanceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	def, err := h.engine.Registry().Get(definitionID, req.Version, req.TenantID)
	if HandleEngineError(w, r, err, "") {
		return
	}

	// Данные декодируются в тип определения, если он задан
	var data any
	if len(req.Data) > 0 && string(req.Data) != "null" {
		data, err = decodeData(req.Data, def.NewData)
		if err != nil {
			BadRequest(w, "invalid data: "+err.Error())
			return
		}
	}

	id, err := h.engine.StartWorkflow(r.Context(), orchestrator.StartRequest{
		DefinitionID: def.ID,
		Version:      def.Version,
		TenantID:     def.TenantID,
		Data:         data,
		Reference:    req.Reference,
		UserID:       req.UserID,
	})
	if HandleEngineError(w, r, err, "") {
		return
	}

	Created(w, StartInstanceResponse{ID: id})
}

// ListInstances возвращает экземпляры с фильтрацией.
// GET /api/v1/instances?status=...&definition_id=...&tenant_id=...&user_id=...&created_from=...&created_to=...&skip=...&take=...
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.InstanceFilter{
		DefinitionID: q.Get("definition_id"),
		TenantID:     q.Get("tenant_id"),
		UserID:       q.Get("user_id"),
		Take:         defaultListLimit,
	}

	if s := q.Get("status"); s != "" {
		status, ok := domain.ParseWorkflowStatus(s)
		if !ok {
			BadRequest(w, "invalid status")
			return
		}
		filter.Status = status
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"created_from", &filter.CreatedFrom},
		{"created_to", &filter.CreatedTo},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			BadRequest(w, "invalid "+p.name)
			return
		}
		*p.dst = &t
	}

	var ok bool
	if filter.Skip, ok = intParam(q.Get("skip"), 0); !ok {
		BadRequest(w, "invalid skip")
		return
	}
	if filter.Take, ok = intParam(q.Get("take"), defaultListLimit); !ok {
		BadRequest(w, "invalid take")
		return
	}

	instances, err := h.engine.ListWorkflows(r.Context(), filter)
	if HandleEngineError(w, r, err, "") {
		return
	}

	result := make([]InstanceResponse, len(instances))
	for i, wf := range instances {
		result[i] = InstanceFromDomain(wf, false)
	}

	List(w, result, len(result))
}

// GetInstance возвращает экземпляр с указателями.
// GET /api/v1/instances/{id}
func (h *Handler) GetInstance(w http.ResponseWriter, r *http.Request) {
	wf, err := h.engine.GetWorkflow(r.Context(), r.PathValue("id"))
	if HandleEngineError(w, r, err, "instance not found") {
		return
	}

	Success(w, InstanceFromDomain(wf, true))
}

// ListInstanceErrors возвращает журнал ошибок экземпляра.
// GET /api/v1/instances/{id}/errors
func (h *Handler) ListInstanceErrors(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Проверяем, что экземпляр существует
	if _, err := h.engine.GetWorkflow(r.Context(), id); HandleEngineError(w, r, err, "instance not found") {
		return
	}

	errs, err := h.engine.GetErrors(r.Context(), id)
	if HandleEngineError(w, r, err, "") {
		return
	}

	result := make([]ExecutionErrorResponse, len(errs))
	for i, e := range errs {
		result[i] = ExecutionErrorResponse{
			PointerID: e.PointerID,
			Time:      e.Time,
			Message:   e.Message,
		}
	}

	List(w, result, len(result))
}

// SuspendInstance приостанавливает экземпляр.
// POST /api/v1/instances/{id}/suspend
func (h *Handler) SuspendInstance(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "suspend", h.engine.SuspendWorkflow)
}

// ResumeInstance возобновляет экземпляр.
// POST /api/v1/instances/{id}/resume
func (h *Handler) ResumeInstance(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "resume", h.engine.ResumeWorkflow)
}

// TerminateInstance останавливает экземпляр.
// POST /api/v1/instances/{id}/terminate
func (h *Handler) TerminateInstance(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "terminate", h.engine.TerminateWorkflow)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, string) (bool, error)) {
	id := r.PathValue("id")

	changed, err := fn(r.Context(), id)
	if HandleEngineError(w, r, err, "instance not found") {
		return
	}

	Success(w, TransitionResponse{ID: id, Operation: op, Changed: changed})
}

// decodeData декодирует данные экземпляра. Если NewData возвращает
// указатель, данные декодируются в него, иначе в any.
func decodeData(raw json.RawMessage, newData func() any) (any, error) {
	if newData != nil {
		if v := newData(); v != nil && reflect.ValueOf(v).Kind() == reflect.Pointer {
			if err := json.Unmarshal(raw, v); err != nil {
				return nil, err
			}
			return v, nil
		}
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// intParam парсит неотрицательный query параметр. Пустая строка — def.
func intParam(s string, def int) (int, bool) {
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
