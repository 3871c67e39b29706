// Package provider описывает контракты внешних ресурсов движка:
// хранилище (PersistenceProvider), очередь (QueueProvider) и
// распределённую блокировку (LockProvider).
//
// Реализации:
//   - provider/memory — в памяти процесса (один узел, тесты)
//   - repo.Store      — PostgreSQL
//   - mq.QueueProvider — RabbitMQ
//   - lock.PostgresLocker, lock.RedisLocker
package provider
