package memory

import (
	"context"
	"sync"

	"github.com/shaiso/Durable/internal/provider"
)

// Locker — LockProvider в памяти процесса (один узел).
type Locker struct {
	mu    sync.Mutex
	locks map[string]struct{}
}

// NewLocker создаёт Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]struct{})}
}

var _ provider.LockProvider = (*Locker)(nil)

// AcquireLock захватывает ключ, если он свободен.
func (l *Locker) AcquireLock(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.locks[key]; held {
		return false, nil
	}
	l.locks[key] = struct{}{}
	return true, nil
}

// ReleaseLock освобождает ключ.
func (l *Locker) ReleaseLock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, key)
	return nil
}

// IsLocked возвращает true, если ключ захвачен.
func (l *Locker) IsLocked(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, held := l.locks[key]
	return held
}

// Start реализует provider.LockProvider.
func (l *Locker) Start(context.Context) error { return nil }

// Stop реализует provider.LockProvider. Все ключи освобождаются.
func (l *Locker) Stop(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locks = make(map[string]struct{})
	return nil
}
