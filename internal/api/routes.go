package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		RequestID(h.logger),
		Logging(),
		Recovery(),
	)

	// Definitions
	mux.Handle("GET /api/v1/definitions", chain(http.HandlerFunc(h.ListDefinitions)))
	mux.Handle("POST /api/v1/workflows/{id}/instances", chain(http.HandlerFunc(h.StartInstance)))

	// Instances
	mux.Handle("GET /api/v1/instances", chain(http.HandlerFunc(h.ListInstances)))
	mux.Handle("GET /api/v1/instances/{id}", chain(http.HandlerFunc(h.GetInstance)))
	mux.Handle("GET /api/v1/instances/{id}/errors", chain(http.HandlerFunc(h.ListInstanceErrors)))
	mux.Handle("POST /api/v1/instances/{id}/suspend", chain(http.HandlerFunc(h.SuspendInstance)))
	mux.Handle("POST /api/v1/instances/{id}/resume", chain(http.HandlerFunc(h.ResumeInstance)))
	mux.Handle("POST /api/v1/instances/{id}/terminate", chain(http.HandlerFunc(h.TerminateInstance)))

	// Events
	mux.Handle("POST /api/v1/events", chain(http.HandlerFunc(h.PublishEvent)))
}
