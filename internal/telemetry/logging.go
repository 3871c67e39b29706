package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Форматы логов.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// ParseLevel парсит имя уровня (debug, info, warn, error) без учёта
// регистра. Неизвестное значение — INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger создаёт логгер, пишущий в w. Формат text — для разработки,
// всё остальное — JSON. На уровне DEBUG в записи добавляется источник.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if strings.EqualFold(format, FormatText) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Setup создаёт логгер процесса в stdout и делает его глобальным.
func Setup(level, format string) *slog.Logger {
	logger := NewLogger(os.Stdout, ParseLevel(level), format)
	slog.SetDefault(logger)
	return logger
}

type ctxKey struct{}

// WithLogger кладёт логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext возвращает логгер из контекста или глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithInstanceID добавляет workflow_id.
func WithInstanceID(logger *slog.Logger, id string) *slog.Logger {
	return logger.With("workflow_id", id)
}

// WithPointerID добавляет pointer_id и step_id.
func WithPointerID(logger *slog.Logger, pointerID string, stepID int) *slog.Logger {
	return logger.With("pointer_id", pointerID, "step_id", stepID)
}

// WithEventID добавляет event_id.
func WithEventID(logger *slog.Logger, id string) *slog.Logger {
	return logger.With("event_id", id)
}

// WithDefinition добавляет definition и version.
func WithDefinition(logger *slog.Logger, id string, version int) *slog.Logger {
	return logger.With("definition", id, "version", version)
}
