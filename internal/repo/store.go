package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Durable/internal/provider"
)

// Store — PersistenceProvider на PostgreSQL.
//
// Экземпляр хранится одной строкой: указатели и данные — JSONB.
// Конкурентные записи отсекает колонка revision.
type Store struct {
	pool        *pgxpool.Pool
	dataFactory provider.DataFactory
}

// NewStore создаёт новый Store.
// dataFactory задаёт тип данных экземпляра при чтении (nil — map[string]any).
func NewStore(pool *pgxpool.Pool, dataFactory provider.DataFactory) *Store {
	return &Store{pool: pool, dataFactory: dataFactory}
}

var _ provider.PersistenceProvider = (*Store)(nil)

// EnsureStoreExists создаёт таблицы и индексы, если их нет.
func (s *Store) EnsureStoreExists(ctx context.Context) error {
	return migrate(ctx, s.pool)
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// derefString возвращает "" для NULL.
func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
