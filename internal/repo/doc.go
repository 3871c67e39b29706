// Package repo реализует хранилище движка на PostgreSQL (pgx).
//
// Store реализует provider.PersistenceProvider:
//   - durable_workflows        — экземпляры (указатели и данные в JSONB)
//   - durable_subscriptions    — подписки на события
//   - durable_events           — опубликованные события
//   - durable_execution_errors — журнал ошибок шагов
//
// Схема создаётся EnsureStoreExists при старте Host.
//
// Конкурентные записи одного экземпляра отсекаются колонкой revision:
// UPDATE с устаревшей ревизией не меняет строк, и PersistWorkflow
// возвращает ErrConcurrentUpdate.
package repo
