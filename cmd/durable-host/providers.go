package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Durable/internal/config"
	"github.com/shaiso/Durable/internal/lock"
	"github.com/shaiso/Durable/internal/mq"
	"github.com/shaiso/Durable/internal/provider"
	"github.com/shaiso/Durable/internal/provider/memory"
	"github.com/shaiso/Durable/internal/repo"
)

// providers — провайдеры хранилища, очереди и блокировок по конфигурации.
type providers struct {
	store provider.PersistenceProvider
	queue provider.QueueProvider
	locks provider.LockProvider

	closers []func() error
}

// buildProviders подключает провайдеры согласно opts.
// При ошибке уже открытые соединения закрываются.
func buildProviders(ctx context.Context, opts config.Options, dataFactory provider.DataFactory, logger *slog.Logger) (_ *providers, err error) {
	p := &providers{}
	defer func() {
		if err != nil {
			err = errors.Join(err, p.Close())
		}
	}()

	var pool *pgxpool.Pool
	switch opts.Store.Driver {
	case config.DriverPostgres:
		pool, err = repo.NewPool(ctx, opts.Store.URL, opts.Store.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		p.closers = append(p.closers, func() error { pool.Close(); return nil })
		p.store = repo.NewStore(pool, dataFactory)
		logger.Info("database connected")
	default:
		p.store = memory.NewStore(dataFactory)
	}

	switch opts.Queue.Driver {
	case config.DriverRabbitMQ:
		conn, err := mq.NewConnection(mq.ConnectionConfig{
			URL:    opts.Queue.URL,
			Logger: logger.With("component", "amqp"),
		})
		if err != nil {
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		p.closers = append(p.closers, conn.Close)
		p.queue = mq.NewQueueProvider(conn, mq.QueueConfig{
			Prefetch: opts.Queue.Prefetch,
			Logger:   logger.With("component", "amqp-queue"),
		})
		logger.Info("rabbitmq connected")
	default:
		p.queue = memory.NewQueue(true)
	}

	switch opts.Locks.Driver {
	case config.DriverPostgres:
		p.locks = lock.NewPostgresLocker(pool, logger.With("component", "pg-locks"))
	case config.DriverRedis:
		redisOpts, err := redis.ParseURL(opts.Locks.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		p.closers = append(p.closers, client.Close)
		p.locks = lock.NewRedisLocker(lock.RedisConfig{
			Client:    client,
			TTL:       opts.LockTimeout,
			KeyPrefix: opts.Locks.KeyPrefix,
			Logger:    logger.With("component", "redis-locks"),
		})
	default:
		p.locks = memory.NewLocker()
	}

	return p, nil
}

// Close закрывает соединения в обратном порядке.
func (p *providers) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i]())
	}
	p.closers = nil
	return errors.Join(errs...)
}
