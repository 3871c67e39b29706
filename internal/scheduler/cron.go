package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (секунды опциональны, поддерживаются @every и @hourly).
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule возвращает расписание опроса.
// Пустое выражение — фиксированный интервал every.
func ParseSchedule(expr string, every time.Duration) (cron.Schedule, error) {
	if expr == "" {
		return cron.Every(every), nil
	}

	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse poll schedule %q: %w", expr, err)
	}
	return schedule, nil
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(expr string) error {
	_, err := cronParser.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}
