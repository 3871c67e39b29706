package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Durable/internal/provider"
)

const (
	defaultLockTTL   = 30 * time.Second
	defaultKeyPrefix = "durable:lock:"
)

// releaseScript удаляет ключ, только если он принадлежит вызывающему.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker — блокировки на SET NX PX.
//
// Значение ключа — случайный токен узла; снять блокировку может только
// владелец. TTL ограничивает время жизни блокировки упавшего узла.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string

	tokens map[string]string
	mu     sync.Mutex
	logger *slog.Logger
}

// RedisConfig — конфигурация RedisLocker.
type RedisConfig struct {
	Client redis.UniversalClient

	// TTL — время жизни блокировки (default: 30s).
	TTL time.Duration

	// KeyPrefix — префикс ключей (default: "durable:lock:").
	KeyPrefix string

	// Logger
	Logger *slog.Logger
}

// NewRedisLocker создаёт RedisLocker.
func NewRedisLocker(cfg RedisConfig) *RedisLocker {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RedisLocker{
		client: cfg.Client,
		ttl:    ttl,
		prefix: prefix,
		tokens: make(map[string]string),
		logger: logger,
	}
}

var _ provider.LockProvider = (*RedisLocker)(nil)

// Start проверяет доступность Redis.
func (l *RedisLocker) Start(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Stop снимает блокировки, захваченные этим узлом.
func (l *RedisLocker) Stop(ctx context.Context) error {
	l.mu.Lock()
	keys := make([]string, 0, len(l.tokens))
	for key := range l.tokens {
		keys = append(keys, key)
	}
	l.mu.Unlock()

	for _, key := range keys {
		if err := l.ReleaseLock(ctx, key); err != nil {
			l.logger.Warn("failed to release lock on stop", "key", key, "error", err)
		}
	}
	return nil
}

// AcquireLock пытается захватить ключ. Занят — false.
func (l *RedisLocker) AcquireLock(ctx context.Context, key string) (bool, error) {
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, l.prefix+key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis set nx: %w", err)
	}
	if !acquired {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return true, nil
}

// ReleaseLock освобождает ключ, если он ещё принадлежит узлу.
func (l *RedisLocker) ReleaseLock(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()

	if !ok {
		return nil
	}

	deleted, err := releaseScript.Run(ctx, l.client, []string{l.prefix + key}, token).Int()
	if err != nil {
		return fmt.Errorf("redis release: %w", err)
	}
	if deleted == 0 {
		l.logger.Warn("lock expired before release", "key", key, "ttl", l.ttl)
	}
	return nil
}
