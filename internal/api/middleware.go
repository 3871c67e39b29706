package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Durable/internal/telemetry"
)

// HeaderRequestID — заголовок с ID запроса.
const HeaderRequestID = "X-Request-ID"

// Middleware — функция-обёртка для http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain применяет middleware в порядке слева направо.
// Chain(m1, m2)(handler) = m1(m2(handler))
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// RequestID присваивает запросу ID (из заголовка клиента или новый) и
// кладёт в контекст логгер с request_id.
func RequestID(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)

			ctx := telemetry.WithLogger(r.Context(), logger.With("request_id", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Logging логирует запросы и учитывает их в метриках HTTP.
// Маршрут в метриках — шаблон ServeMux, а не сырой путь.
func Logging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			telemetry.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
			telemetry.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			telemetry.FromContext(r.Context()).Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", elapsed,
			)
		})
	}
}

// Recovery превращает панику обработчика в 500.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					telemetry.FromContext(r.Context()).Error("panic recovered",
						"panic", v,
						"stack", string(debug.Stack()),
					)
					InternalError(w, r, fmt.Errorf("panic: %v", v))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder запоминает код ответа.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}
