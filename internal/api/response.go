package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaiso/Durable/internal/engine"
	"github.com/shaiso/Durable/internal/orchestrator"
	"github.com/shaiso/Durable/internal/provider"
	"github.com/shaiso/Durable/internal/telemetry"
)

// maxBodyBytes ограничивает тело запроса.
const maxBodyBytes = 1 << 20

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — ответ с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — код и сообщение ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — успешный ответ.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — ответ со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет 200 с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отправляет 201 с данными.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// List отправляет список.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// BadRequest отправляет 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound отправляет 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict отправляет 409.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, ErrCodeConflict, message)
}

// InternalError логирует ошибку логгером запроса и отправляет 500
// без подробностей.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	telemetry.FromContext(r.Context()).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// decodeBody декодирует JSON тело запроса в v. При ошибке отправляет 400
// и возвращает false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			BadRequest(w, "request body too large")
			return false
		}
		BadRequest(w, "invalid request body")
		return false
	}
	return true
}

// HandleEngineError отправляет ответ по ошибке движка.
// Возвращает false, если err == nil.
func HandleEngineError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, provider.ErrNotFound):
		NotFound(w, notFoundMsg)
	case errors.Is(err, engine.ErrWorkflowNotRegistered):
		NotFound(w, err.Error())
	case errors.Is(err, orchestrator.ErrInstanceLocked),
		errors.Is(err, provider.ErrConcurrentUpdate):
		Conflict(w, err.Error())
	case errors.Is(err, orchestrator.ErrEmptyEventName):
		BadRequest(w, err.Error())
	default:
		InternalError(w, r, err)
	}
	return true
}
