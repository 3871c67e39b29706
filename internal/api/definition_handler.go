package api

import (
	"net/http"
)

// ListDefinitions возвращает зарегистрированные определения.
// GET /api/v1/definitions
func (h *Handler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs := h.engine.Registry().List()

	result := make([]DefinitionResponse, len(defs))
	for i, d := range defs {
		result[i] = DefinitionFromEngine(d)
	}

	List(w, result, len(result))
}
