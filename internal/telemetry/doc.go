// Package telemetry содержит observability: structured logging (slog)
// и Prometheus метрики очередей, executor, контроллера и HTTP API.
//
// Метрики регистрируются в prometheus.DefaultRegisterer и отдаются
// через promhttp.Handler() на /metrics.
package telemetry
