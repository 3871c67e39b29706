// Package lock содержит распределённые блокировки движка.
//
//   - PostgresLocker — advisory locks PostgreSQL на выделенном соединении
//   - RedisLocker    — SET NX PX с токеном владельца
//
// Обе реализации provider.LockProvider неблокирующие: AcquireLock
// возвращает false, если ключ занят, и не ждёт освобождения.
package lock
