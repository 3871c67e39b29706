package repo

import "github.com/shaiso/Durable/internal/provider"

// Общие ошибки хранилища. Совпадают с ошибками provider, чтобы
// вызывающий проверял их через errors.Is независимо от реализации.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = provider.ErrNotFound

	// ErrConcurrentUpdate — ревизия экземпляра устарела.
	ErrConcurrentUpdate = provider.ErrConcurrentUpdate
)
