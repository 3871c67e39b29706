package api

import (
	"net/http"
	"time"
)

// PublishEvent публикует событие.
// POST /api/v1/events
func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	var req PublishEventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	var effective time.Time
	if req.EffectiveTime != nil {
		effective = *req.EffectiveTime
	}

	id, err := h.engine.PublishEvent(r.Context(), req.Name, req.Key, req.Data, effective)
	if HandleEngineError(w, r, err, "") {
		return
	}

	Created(w, PublishEventResponse{ID: id})
}
