package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shaiso/Durable/internal/domain"
)

// --- Subscriptions ---

// CreateEventSubscription сохраняет подписку. Пустой ID генерируется.
func (s *Store) CreateEventSubscription(ctx context.Context, sub *domain.EventSubscription) (string, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}

	query := `
		INSERT INTO durable_subscriptions
			(id, workflow_id, step_id, pointer_id, event_name, event_key, subscribe_as_of, terminated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, query,
		sub.ID,
		sub.WorkflowID,
		sub.StepID,
		sub.PointerID,
		sub.EventName,
		sub.EventKey,
		sub.SubscribeAs,
		sub.Terminated,
	)
	if err != nil {
		return "", fmt.Errorf("insert subscription: %w", err)
	}
	return sub.ID, nil
}

// GetSubscriptions возвращает активные подписки на (name, key), созданные не позже asOf.
func (s *Store) GetSubscriptions(ctx context.Context, eventName, eventKey string, asOf time.Time) ([]*domain.EventSubscription, error) {
	query := `
		SELECT id, workflow_id, step_id, pointer_id, event_name, event_key, subscribe_as_of, terminated
		FROM durable_subscriptions
		WHERE event_name = $1 AND event_key = $2 AND subscribe_as_of <= $3 AND NOT terminated
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, query, eventName, eventKey, asOf)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var result []*domain.EventSubscription
	for rows.Next() {
		var sub domain.EventSubscription
		err := rows.Scan(
			&sub.ID,
			&sub.WorkflowID,
			&sub.StepID,
			&sub.PointerID,
			&sub.EventName,
			&sub.EventKey,
			&sub.SubscribeAs,
			&sub.Terminated,
		)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.SubscribeAs = sub.SubscribeAs.UTC()
		result = append(result, &sub)
	}
	return result, rows.Err()
}

// TerminateSubscription помечает подписку отработавшей.
func (s *Store) TerminateSubscription(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, `UPDATE durable_subscriptions SET terminated = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("terminate subscription: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Events ---

// CreateEvent сохраняет событие. Пустой ID генерируется.
func (s *Store) CreateEvent(ctx context.Context, evt *domain.Event) (string, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}

	var dataJSON []byte
	if evt.Data != nil {
		var err error
		if dataJSON, err = json.Marshal(evt.Data); err != nil {
			return "", fmt.Errorf("marshal event data: %w", err)
		}
	}

	query := `
		INSERT INTO durable_events (id, name, key, data, time, is_processed)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, query,
		evt.ID,
		evt.Name,
		evt.Key,
		dataJSON,
		evt.Time,
		evt.IsProcessed,
	)
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return evt.ID, nil
}

// GetEvent возвращает событие по ID.
func (s *Store) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	query := `
		SELECT id, name, key, data, time, is_processed
		FROM durable_events
		WHERE id = $1
	`
	var evt domain.Event
	var dataJSON []byte

	err := s.pool.QueryRow(ctx, query, id).Scan(
		&evt.ID,
		&evt.Name,
		&evt.Key,
		&dataJSON,
		&evt.Time,
		&evt.IsProcessed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}

	evt.Time = evt.Time.UTC()
	if dataJSON != nil {
		if err := json.Unmarshal(dataJSON, &evt.Data); err != nil {
			return nil, fmt.Errorf("unmarshal event data: %w", err)
		}
	}
	return &evt, nil
}

// GetRunnableEvents возвращает необработанные события с time <= asAt.
func (s *Store) GetRunnableEvents(ctx context.Context, asAt time.Time) ([]string, error) {
	query := `
		SELECT id
		FROM durable_events
		WHERE NOT is_processed AND time <= $1
		ORDER BY time ASC
	`
	return s.queryIDs(ctx, query, asAt)
}

// GetEvents возвращает ID событий (name, key), опубликованных не раньше asOf.
// processed сужает выборку до (не)обработанных событий.
func (s *Store) GetEvents(ctx context.Context, eventName, eventKey string, asOf time.Time, processed domain.ProcessedFilter) ([]string, error) {
	query := `
		SELECT id
		FROM durable_events
		WHERE name = $1 AND key = $2 AND time >= $3
		  AND ($4::boolean IS NULL OR is_processed = $4)
		ORDER BY time ASC
	`
	return s.queryIDs(ctx, query, eventName, eventKey, asOf, processedArg(processed))
}

// processedArg переводит фильтр в параметр запроса (nil — без фильтра).
func processedArg(f domain.ProcessedFilter) *bool {
	var v bool
	switch f {
	case domain.ProcessedEvents:
		v = true
	case domain.UnprocessedEvents:
		v = false
	default:
		return nil
	}
	return &v
}

// MarkEventProcessed помечает событие обработанным.
func (s *Store) MarkEventProcessed(ctx context.Context, id string) error {
	return s.setProcessed(ctx, id, true)
}

// MarkEventUnprocessed возвращает событие в обработку.
func (s *Store) MarkEventUnprocessed(ctx context.Context, id string) error {
	return s.setProcessed(ctx, id, false)
}

func (s *Store) setProcessed(ctx context.Context, id string, processed bool) error {
	result, err := s.pool.Exec(ctx, `UPDATE durable_events SET is_processed = $2 WHERE id = $1`, id, processed)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
