package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/Durable/internal/domain"
	"github.com/shaiso/Durable/internal/engine"
	"github.com/shaiso/Durable/internal/orchestrator"
)

// Engine — операции движка, доступные через API.
// Реализуется orchestrator.Host.
type Engine interface {
	Registry() *engine.Registry

	StartWorkflow(ctx context.Context, req orchestrator.StartRequest) (string, error)
	PublishEvent(ctx context.Context, name, key string, data any, effective time.Time) (string, error)
	SuspendWorkflow(ctx context.Context, id string) (bool, error)
	ResumeWorkflow(ctx context.Context, id string) (bool, error)
	TerminateWorkflow(ctx context.Context, id string) (bool, error)

	GetWorkflow(ctx context.Context, id string) (*domain.WorkflowInstance, error)
	ListWorkflows(ctx context.Context, filter domain.InstanceFilter) ([]*domain.WorkflowInstance, error)
	GetErrors(ctx context.Context, id string) ([]domain.ExecutionError, error)
}

var _ Engine = (*orchestrator.Host)(nil)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	engine Engine
	logger *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Engine Engine
	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		engine: cfg.Engine,
		logger: logger,
	}
}
