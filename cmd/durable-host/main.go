// Durable Host — процесс движка workflow.
//
// Host:
//   - Подключает хранилище, очередь и блокировки по конфигурации
//   - Регистрирует встроенные и декларативные определения
//   - Запускает consumer очередей и poller
//   - Отдаёт HTTP API, /healthz и /metrics
//
// Узлы с общим хранилищем, очередью и блокировками образуют кластер.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Durable/internal/api"
	"github.com/shaiso/Durable/internal/config"
	"github.com/shaiso/Durable/internal/domain"
	"github.com/shaiso/Durable/internal/engine"
	"github.com/shaiso/Durable/internal/orchestrator"
	"github.com/shaiso/Durable/internal/steps"
	"github.com/shaiso/Durable/internal/telemetry"
	"github.com/shaiso/Durable/internal/workflows"
)

const shutdownTimeout = 10 * time.Second

var startTime = time.Now()

func main() {
	opts, err := config.LoadFromEnv()
	if err != nil {
		telemetry.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")).Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.Setup(opts.Logging.Level, opts.Logging.Format)
	logger.Info("starting durable-host",
		"store", opts.Store.Driver,
		"queue", opts.Queue.Driver,
		"locks", opts.Locks.Driver,
	)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := engine.NewRegistry()
	bodies := steps.DefaultRegistry()

	prov, err := buildProviders(ctx, opts, registry.NewData, logger)
	if err != nil {
		logger.Error("failed to connect providers", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := prov.Close(); err != nil {
			logger.Warn("failed to close providers", "error", err)
		}
	}()

	host, err := orchestrator.New(orchestrator.Config{
		Registry:               registry,
		Bodies:                 bodies,
		Store:                  prov.store,
		Queue:                  prov.queue,
		Locks:                  prov.locks,
		PollInterval:           opts.PollInterval,
		PollSchedule:           opts.PollSchedule,
		IdleTime:               opts.IdleTime,
		ErrorRetryInterval:     opts.ErrorRetryInterval,
		MaxConcurrentWorkflows: opts.MaxConcurrentWorkflows,
		MaxConcurrentEvents:    opts.MaxConcurrentEvents,
		Logger:                 logger,
	})
	if err != nil {
		logger.Error("failed to create host", "error", err)
		os.Exit(1)
	}

	if err := registerDefinitions(host, opts.DefinitionsDir, bodies.Has); err != nil {
		logger.Error("failed to register definitions", "error", err)
		os.Exit(1)
	}

	host.OnStepError(func(wf *domain.WorkflowInstance, step *engine.Step, err error) {
		telemetry.WithInstanceID(logger, wf.ID).Warn("step failed",
			"step", step.DisplayName(),
			"error", err,
		)
	})

	if err := host.Start(ctx); err != nil {
		logger.Error("failed to start host", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              opts.HTTP.Addr,
		Handler:           newMux(host, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", opts.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	if err := host.Stop(shutdownCtx); err != nil {
		logger.Error("host shutdown error", "error", err)
	}

	logger.Info("durable-host stopped")
}

// registerDefinitions регистрирует встроенные определения и
// декларативные определения из dir (если задан).
func registerDefinitions(host *orchestrator.Host, dir string, knownType func(string) bool) error {
	if err := workflows.Register(host, workflows.DefaultBatchThrottle); err != nil {
		return err
	}
	if dir == "" {
		return nil
	}

	defs, err := engine.LoadDefinitions(dir, knownType)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := host.RegisterWorkflow(def); err != nil {
			return fmt.Errorf("register %s: %w", def.ID, err)
		}
	}
	return nil
}

// newMux собирает HTTP маршруты: API, /healthz и /metrics.
func newMux(host *orchestrator.Host, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !host.IsRunning() {
			http.Error(w, "host stopped", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("/metrics", promhttp.Handler())

	handler := api.NewHandler(api.Config{
		Engine: host,
		Logger: logger.With("component", "api"),
	})
	handler.RegisterRoutes(mux)

	return mux
}
