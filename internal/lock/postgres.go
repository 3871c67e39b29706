package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Durable/internal/provider"
)

// PostgresLocker — блокировки на pg_try_advisory_lock.
//
// Advisory lock принадлежит сессии, поэтому все блокировки узла берутся
// на одном выделенном соединении. Внутри сессии advisory lock
// реентерабелен, и повторный захват ключа этим же узлом отсекается
// по локальной таблице held.
type PostgresLocker struct {
	pool   *pgxpool.Pool
	conn   *pgxpool.Conn
	held   map[string]struct{}
	mu     sync.Mutex
	logger *slog.Logger
}

// NewPostgresLocker создаёт PostgresLocker. Соединение берётся в Start.
func NewPostgresLocker(pool *pgxpool.Pool, logger *slog.Logger) *PostgresLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresLocker{
		pool:   pool,
		held:   make(map[string]struct{}),
		logger: logger,
	}
}

var _ provider.LockProvider = (*PostgresLocker)(nil)

// Start берёт выделенное соединение из пула.
func (l *PostgresLocker) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		return nil
	}
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire lock connection: %w", err)
	}
	l.conn = conn
	return nil
}

// Stop снимает все блокировки сессии и возвращает соединение в пул.
func (l *PostgresLocker) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return nil
	}
	_, err := l.conn.Exec(ctx, `SELECT pg_advisory_unlock_all()`)
	l.conn.Release()
	l.conn = nil
	l.held = make(map[string]struct{})
	if err != nil {
		return fmt.Errorf("unlock all: %w", err)
	}
	return nil
}

// AcquireLock пытается захватить ключ. Занят — false.
func (l *PostgresLocker) AcquireLock(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return false, ErrNotStarted
	}
	if _, ok := l.held[key]; ok {
		return false, nil
	}

	var acquired bool
	err := l.conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtextextended($1, 0))`, key).Scan(&acquired)
	if err != nil {
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	if acquired {
		l.held[key] = struct{}{}
	}
	return acquired, nil
}

// ReleaseLock освобождает ключ.
func (l *PostgresLocker) ReleaseLock(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return ErrNotStarted
	}
	if _, ok := l.held[key]; !ok {
		return nil
	}

	var released bool
	err := l.conn.QueryRow(ctx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key).Scan(&released)
	if err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	delete(l.held, key)
	if !released {
		l.logger.Warn("advisory lock was not held", "key", key)
	}
	return nil
}
