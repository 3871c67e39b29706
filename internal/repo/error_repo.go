package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shaiso/Durable/internal/domain"
)

// PersistErrors дописывает ошибки в журнал одним batch.
func (s *Store) PersistErrors(ctx context.Context, errs []domain.ExecutionError) error {
	if len(errs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range errs {
		batch.Queue(`
			INSERT INTO durable_execution_errors (workflow_id, pointer_id, time, message)
			VALUES ($1, $2, $3, $4)
		`, e.WorkflowID, e.PointerID, e.Time, e.Message)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert execution errors: %w", err)
	}
	return nil
}

// GetErrors возвращает ошибки экземпляра в порядке записи.
func (s *Store) GetErrors(ctx context.Context, workflowID string) ([]domain.ExecutionError, error) {
	query := `
		SELECT workflow_id, pointer_id, time, message
		FROM durable_execution_errors
		WHERE workflow_id = $1
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list execution errors: %w", err)
	}
	defer rows.Close()

	var result []domain.ExecutionError
	for rows.Next() {
		var e domain.ExecutionError
		if err := rows.Scan(&e.WorkflowID, &e.PointerID, &e.Time, &e.Message); err != nil {
			return nil, fmt.Errorf("scan execution error: %w", err)
		}
		e.Time = e.Time.UTC()
		result = append(result, e)
	}
	return result, rows.Err()
}
