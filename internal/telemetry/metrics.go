package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики очередей.
var (
	// QueueDispatched — элементы, переданные в обработку.
	QueueDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "durable_queue_items_dispatched_total",
		Help: "Queue items handed to a worker slot.",
	}, []string{"queue"})

	// QueueRequeued — элементы, возвращённые в очередь (нет свободного слота, конфликт).
	QueueRequeued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "durable_queue_items_requeued_total",
		Help: "Queue items put back on the queue.",
	}, []string{"queue"})

	// QueueFailed — элементы, обработка которых завершилась ошибкой.
	QueueFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "durable_queue_items_failed_total",
		Help: "Queue items whose processing returned an error.",
	}, []string{"queue"})

	// QueueInFlight — элементы в обработке.
	QueueInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "durable_queue_in_flight",
		Help: "Queue items currently being processed.",
	}, []string{"queue"})
)

// Метрики executor.
var (
	// ExecutorPasses — проходы executor по экземплярам.
	ExecutorPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "durable_executor_passes_total",
		Help: "Executor passes over workflow instances.",
	}, []string{"definition"})

	// ExecutorStepErrors — ошибки шагов.
	ExecutorStepErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "durable_executor_step_errors_total",
		Help: "Step errors recorded by the executor.",
	}, []string{"definition"})

	// ExecutorPassDuration — длительность прохода.
	ExecutorPassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "durable_executor_pass_duration_seconds",
		Help:    "Duration of a single executor pass.",
		Buckets: prometheus.DefBuckets,
	})
)

// ControllerOperations — операции контроллера по результату (ok, noop, locked, error).
var ControllerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "durable_controller_operations_total",
	Help: "Controller operations by outcome.",
}, []string{"operation", "result"})

// Метрики HTTP API.
var (
	// HTTPRequests — запросы по шаблону маршрута и коду ответа.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "durable_http_requests_total",
		Help: "HTTP API requests by route and status code.",
	}, []string{"route", "code"})

	// HTTPRequestDuration — длительность обработки запроса.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "durable_http_request_duration_seconds",
		Help:    "HTTP API request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)
