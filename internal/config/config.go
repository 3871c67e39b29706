package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Значения по умолчанию.
const (
	defaultPollInterval       = 10 * time.Second
	defaultIdleTime           = 100 * time.Millisecond
	defaultErrorRetryInterval = 60 * time.Second
	defaultLockTimeout        = 30 * time.Second
	defaultAddr               = ":8080"
	defaultMaxConns           = 10
	defaultPrefetch           = 10
	defaultLogLevel           = "info"
	defaultLogFormat          = "json"
)

// Драйверы провайдеров.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRabbitMQ = "rabbitmq"
	DriverRedis    = "redis"
)

// Options — конфигурация процесса движка.
type Options struct {
	// PollInterval — интервал poller и горизонт отложенной постановки.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollSchedule — cron-выражение poller вместо PollInterval.
	PollSchedule string `yaml:"poll_schedule"`

	// IdleTime — пауза consumer на пустой неблокирующей очереди.
	IdleTime time.Duration `yaml:"idle_time"`

	// ErrorRetryInterval — задержка повтора шага после ошибки.
	ErrorRetryInterval time.Duration `yaml:"error_retry_interval"`

	MaxConcurrentWorkflows int `yaml:"max_concurrent_workflows"`
	MaxConcurrentEvents    int `yaml:"max_concurrent_events"`

	// LockTimeout — TTL распределённой блокировки (redis).
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// DefinitionsDir — каталог декларативных определений (*.yaml, *.json).
	DefinitionsDir string `yaml:"definitions_dir"`

	Store   StoreConfig   `yaml:"store"`
	Queue   QueueConfig   `yaml:"queue"`
	Locks   LocksConfig   `yaml:"locks"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig — хранилище экземпляров.
type StoreConfig struct {
	// Driver: memory | postgres
	Driver   string `yaml:"driver"`
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

// QueueConfig — очередь движка.
type QueueConfig struct {
	// Driver: memory | rabbitmq
	Driver   string `yaml:"driver"`
	URL      string `yaml:"url"`
	Prefetch int    `yaml:"prefetch"`
}

// LocksConfig — распределённые блокировки.
type LocksConfig struct {
	// Driver: memory | postgres | redis
	Driver    string `yaml:"driver"`
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix"`
}

// HTTPConfig — HTTP API, /healthz и /metrics.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig — уровень и формат логов.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default возвращает Options со значениями по умолчанию.
func Default() Options {
	var o Options
	o.SetDefaults()
	return o
}

// UsePollInterval задаёт интервал poller.
func (o *Options) UsePollInterval(d time.Duration) *Options {
	o.PollInterval = d
	return o
}

// UseErrorRetryInterval задаёт задержку повтора шага после ошибки.
func (o *Options) UseErrorRetryInterval(d time.Duration) *Options {
	o.ErrorRetryInterval = d
	return o
}

// UseIdleTime задаёт паузу consumer на пустой очереди.
func (o *Options) UseIdleTime(d time.Duration) *Options {
	o.IdleTime = d
	return o
}

// UseMaxConcurrentItems задаёт ёмкость обоих consumer.
func (o *Options) UseMaxConcurrentItems(n int) *Options {
	o.MaxConcurrentWorkflows = n
	o.MaxConcurrentEvents = n
	return o
}

// SetDefaults заполняет незаданные поля.
func (o *Options) SetDefaults() {
	if o.PollInterval == 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.IdleTime == 0 {
		o.IdleTime = defaultIdleTime
	}
	if o.ErrorRetryInterval == 0 {
		o.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if o.LockTimeout == 0 {
		o.LockTimeout = defaultLockTimeout
	}
	if o.MaxConcurrentWorkflows == 0 {
		o.MaxConcurrentWorkflows = max(runtime.GOMAXPROCS(0), 2)
	}
	if o.MaxConcurrentEvents == 0 {
		o.MaxConcurrentEvents = max(runtime.GOMAXPROCS(0), 2)
	}

	if o.Store.Driver == "" {
		o.Store.Driver = DriverMemory
	}
	if o.Store.MaxConns == 0 {
		o.Store.MaxConns = defaultMaxConns
	}
	if o.Queue.Driver == "" {
		o.Queue.Driver = DriverMemory
	}
	if o.Queue.Prefetch == 0 {
		o.Queue.Prefetch = defaultPrefetch
	}
	if o.Locks.Driver == "" {
		o.Locks.Driver = DriverMemory
	}

	if o.HTTP.Addr == "" {
		o.HTTP.Addr = defaultAddr
	}
	if o.Logging.Level == "" {
		o.Logging.Level = defaultLogLevel
	}
	if o.Logging.Format == "" {
		o.Logging.Format = defaultLogFormat
	}
}

// Validate проверяет конфигурацию.
func (o *Options) Validate() error {
	if o.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if o.IdleTime <= 0 {
		return errors.New("idle time must be positive")
	}
	if o.ErrorRetryInterval <= 0 {
		return errors.New("error retry interval must be positive")
	}
	if o.LockTimeout <= 0 {
		return errors.New("lock timeout must be positive")
	}
	if o.MaxConcurrentWorkflows <= 0 || o.MaxConcurrentEvents <= 0 {
		return errors.New("max concurrent items must be positive")
	}

	switch o.Store.Driver {
	case DriverMemory, DriverPostgres:
	default:
		return fmt.Errorf("unknown store driver %q", o.Store.Driver)
	}
	switch o.Queue.Driver {
	case DriverMemory, DriverRabbitMQ:
	default:
		return fmt.Errorf("unknown queue driver %q", o.Queue.Driver)
	}
	switch o.Locks.Driver {
	case DriverMemory, DriverRedis:
	case DriverPostgres:
		if o.Store.Driver != DriverPostgres {
			return errors.New("postgres locks require postgres store")
		}
	default:
		return fmt.Errorf("unknown locks driver %q", o.Locks.Driver)
	}

	// память одного процесса не делится с другими узлами
	if o.Store.Driver == DriverMemory && (o.Queue.Driver != DriverMemory || o.Locks.Driver != DriverMemory) {
		return errors.New("memory store cannot be combined with distributed queue or locks")
	}
	return nil
}

// Load читает YAML (если path не пуст), применяет переменные окружения,
// заполняет значения по умолчанию и проверяет результат.
func Load(path string) (Options, error) {
	return load(path, os.Getenv)
}

// LoadFromEnv — Load с путём из DURABLE_CONFIG.
func LoadFromEnv() (Options, error) {
	return Load(os.Getenv("DURABLE_CONFIG"))
}

func load(path string, getenv func(string) string) (Options, error) {
	var o Options

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return o, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(&o); err != nil {
			return o, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := o.applyEnv(getenv); err != nil {
		return o, err
	}

	o.SetDefaults()
	if err := o.Validate(); err != nil {
		return o, fmt.Errorf("invalid config: %w", err)
	}
	return o, nil
}

// applyEnv переопределяет поля из переменных окружения.
// URL без явного драйвера выбирает соответствующий драйвер.
func (o *Options) applyEnv(getenv func(string) string) error {
	if v := getenv("DB_URL"); v != "" {
		o.Store.URL = v
		if o.Store.Driver == "" {
			o.Store.Driver = DriverPostgres
		}
	}
	if v := getenv("RABBITMQ_URL"); v != "" {
		o.Queue.URL = v
		if o.Queue.Driver == "" {
			o.Queue.Driver = DriverRabbitMQ
		}
	}
	if v := getenv("REDIS_URL"); v != "" {
		o.Locks.URL = v
		if o.Locks.Driver == "" {
			o.Locks.Driver = DriverRedis
		}
	}

	if v := getenv("DURABLE_STORE"); v != "" {
		o.Store.Driver = v
	}
	if v := getenv("DURABLE_QUEUE"); v != "" {
		o.Queue.Driver = v
	}
	if v := getenv("DURABLE_LOCKS"); v != "" {
		o.Locks.Driver = v
	}
	if v := getenv("DURABLE_POLL_SCHEDULE"); v != "" {
		o.PollSchedule = v
	}
	if v := getenv("DURABLE_DEFINITIONS"); v != "" {
		o.DefinitionsDir = v
	}
	if v := getenv("HOST_PORT"); v != "" {
		o.HTTP.Addr = ":" + v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		o.Logging.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		o.Logging.Format = v
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"DURABLE_POLL_INTERVAL", &o.PollInterval},
		{"DURABLE_IDLE_TIME", &o.IdleTime},
		{"DURABLE_ERROR_RETRY_INTERVAL", &o.ErrorRetryInterval},
		{"DURABLE_LOCK_TIMEOUT", &o.LockTimeout},
	}
	for _, d := range durations {
		v := getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"DURABLE_MAX_WORKFLOWS", &o.MaxConcurrentWorkflows},
		{"DURABLE_MAX_EVENTS", &o.MaxConcurrentEvents},
	}
	for _, n := range ints {
		v := getenv(n.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", n.key, err)
		}
		*n.dst = parsed
	}
	return nil
}
