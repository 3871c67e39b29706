// Package api содержит HTTP API движка.
//
// Структура:
//   - handler.go            — Handler с DI (Engine, logger)
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — middleware (logging, recovery)
//   - response.go           — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                — Data Transfer Objects (request/response)
//   - instance_handler.go   — обработчики для /instances и запуска
//   - event_handler.go      — обработчики для /events
//   - definition_handler.go — обработчики для /definitions
package api
