package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Durable/internal/provider"
	"github.com/shaiso/Durable/internal/repo"
)

// lockContract проверяет общее поведение двух узлов с одним бэкендом.
func lockContract(t *testing.T, first, second provider.LockProvider) {
	t.Helper()
	ctx := context.Background()
	key := "wf-" + uuid.NewString()

	acquired, err := first.AcquireLock(ctx, key)
	require.NoError(t, err)
	require.True(t, acquired)

	// повторный захват тем же узлом
	acquired, err = first.AcquireLock(ctx, key)
	require.NoError(t, err)
	assert.False(t, acquired)

	// захват другим узлом
	acquired, err = second.AcquireLock(ctx, key)
	require.NoError(t, err)
	assert.False(t, acquired)

	// чужой ключ не освобождается
	require.NoError(t, second.ReleaseLock(ctx, key))
	acquired, err = second.AcquireLock(ctx, key)
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, first.ReleaseLock(ctx, key))
	acquired, err = second.AcquireLock(ctx, key)
	require.NoError(t, err)
	assert.True(t, acquired)

	// Stop снимает блокировки узла
	require.NoError(t, second.Stop(ctx))
	require.NoError(t, second.Start(ctx))
	acquired, err = first.AcquireLock(ctx, key)
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, first.ReleaseLock(ctx, key))
}

func TestPostgresLocker(t *testing.T) {
	dsn := os.Getenv("DURABLE_TEST_DB_URL")
	if dsn == "" {
		t.Skip("DURABLE_TEST_DB_URL not set")
	}
	ctx := context.Background()

	pool, err := repo.NewPool(ctx, dsn, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	first := NewPostgresLocker(pool, nil)
	second := NewPostgresLocker(pool, nil)
	require.NoError(t, first.Start(ctx))
	require.NoError(t, second.Start(ctx))
	t.Cleanup(func() {
		_ = first.Stop(ctx)
		_ = second.Stop(ctx)
	})

	lockContract(t, first, second)
}

func TestPostgresLocker_NotStarted(t *testing.T) {
	l := NewPostgresLocker(nil, nil)

	_, err := l.AcquireLock(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, l.ReleaseLock(context.Background(), "k"), ErrNotStarted)
	assert.NoError(t, l.Stop(context.Background()))
}

func TestRedisLocker(t *testing.T) {
	url := os.Getenv("DURABLE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("DURABLE_TEST_REDIS_URL not set")
	}
	ctx := context.Background()

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	first := NewRedisLocker(RedisConfig{Client: client, TTL: 5 * time.Second})
	second := NewRedisLocker(RedisConfig{Client: client, TTL: 5 * time.Second})
	require.NoError(t, first.Start(ctx))
	require.NoError(t, second.Start(ctx))
	t.Cleanup(func() {
		_ = first.Stop(ctx)
		_ = second.Stop(ctx)
	})

	lockContract(t, first, second)
}

func TestRedisLocker_Expiry(t *testing.T) {
	url := os.Getenv("DURABLE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("DURABLE_TEST_REDIS_URL not set")
	}
	ctx := context.Background()

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	first := NewRedisLocker(RedisConfig{Client: client, TTL: 50 * time.Millisecond})
	second := NewRedisLocker(RedisConfig{Client: client})
	key := "wf-" + uuid.NewString()

	acquired, err := first.AcquireLock(ctx, key)
	require.NoError(t, err)
	require.True(t, acquired)

	require.Eventually(t, func() bool {
		ok, err := second.AcquireLock(ctx, key)
		return err == nil && ok
	}, 2*time.Second, 20*time.Millisecond)

	// первый узел не снимает чужую блокировку
	require.NoError(t, first.ReleaseLock(ctx, key))
	acquired, err = first.AcquireLock(ctx, key)
	require.NoError(t, err)
	assert.False(t, acquired)
	require.NoError(t, second.ReleaseLock(ctx, key))
}
