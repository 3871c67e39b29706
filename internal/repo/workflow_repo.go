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
	"github.com/shaiso/Durable/internal/provider"
)

const workflowColumns = `
	id, definition_id, version, tenant_id, description, reference, user_id,
	status, data, execution_pointers, next_execution, create_time,
	complete_time, revision`

// CreateWorkflow сохраняет новый экземпляр с ревизией 1. Пустой ID генерируется.
func (s *Store) CreateWorkflow(ctx context.Context, wf *domain.WorkflowInstance) (string, error) {
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	wf.Revision = 1

	dataJSON, pointersJSON, err := marshalInstance(wf)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO durable_workflows (` + workflowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = s.pool.Exec(ctx, query,
		wf.ID,
		wf.DefinitionID,
		wf.Version,
		wf.TenantID,
		nullString(wf.Description),
		nullString(wf.Reference),
		nullString(wf.UserID),
		wf.Status,
		dataJSON,
		pointersJSON,
		wf.NextExecution,
		wf.CreateTime,
		wf.CompleteTime,
		wf.Revision,
	)
	if err != nil {
		return "", fmt.Errorf("insert workflow: %w", err)
	}
	return wf.ID, nil
}

// PersistWorkflow обновляет экземпляр, если его ревизия не изменилась.
// При успехе wf.Revision увеличивается.
func (s *Store) PersistWorkflow(ctx context.Context, wf *domain.WorkflowInstance) error {
	dataJSON, pointersJSON, err := marshalInstance(wf)
	if err != nil {
		return err
	}

	query := `
		UPDATE durable_workflows
		SET status = $3, data = $4, execution_pointers = $5, next_execution = $6,
		    complete_time = $7, description = $8, reference = $9,
		    revision = revision + 1
		WHERE id = $1 AND revision = $2
	`
	result, err := s.pool.Exec(ctx, query,
		wf.ID,
		wf.Revision,
		wf.Status,
		dataJSON,
		pointersJSON,
		wf.NextExecution,
		wf.CompleteTime,
		nullString(wf.Description),
		nullString(wf.Reference),
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM durable_workflows WHERE id = $1)`, wf.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check workflow: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConcurrentUpdate
	}

	wf.Revision++
	return nil
}

// GetWorkflow возвращает экземпляр по ID.
func (s *Store) GetWorkflow(ctx context.Context, id string) (*domain.WorkflowInstance, error) {
	query := `SELECT ` + workflowColumns + ` FROM durable_workflows WHERE id = $1`

	wf, err := s.scanWorkflow(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return wf, err
}

// GetWorkflowInstances возвращает экземпляры по фильтру, по времени создания.
func (s *Store) GetWorkflowInstances(ctx context.Context, filter domain.InstanceFilter) ([]*domain.WorkflowInstance, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM durable_workflows
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR definition_id = $2)
		  AND ($3::text IS NULL OR tenant_id = $3)
		  AND ($4::text IS NULL OR user_id = $4)
		  AND ($5::timestamptz IS NULL OR create_time >= $5)
		  AND ($6::timestamptz IS NULL OR create_time <= $6)
		ORDER BY create_time ASC, id ASC
		LIMIT $7 OFFSET $8
	`

	var limit *int
	if filter.Take > 0 {
		limit = &filter.Take
	}

	rows, err := s.pool.Query(ctx, query,
		nullString(string(filter.Status)),
		nullString(filter.DefinitionID),
		nullString(filter.TenantID),
		nullString(filter.UserID),
		filter.CreatedFrom,
		filter.CreatedTo,
		limit,
		max(filter.Skip, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	result := []*domain.WorkflowInstance{}
	for rows.Next() {
		wf, err := s.scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, wf)
	}
	return result, rows.Err()
}

// GetRunnableInstances возвращает ID экземпляров RUNNABLE с next_execution <= asAt.
func (s *Store) GetRunnableInstances(ctx context.Context, asAt time.Time) ([]string, error) {
	query := `
		SELECT id
		FROM durable_workflows
		WHERE status = $1 AND next_execution IS NOT NULL AND next_execution <= $2
		ORDER BY next_execution ASC
	`
	return s.queryIDs(ctx, query, domain.WorkflowStatusRunnable, asAt.UnixMilli())
}

// GetWorkflowInstanceIDsByUser возвращает ID незавершённых экземпляров пользователя.
func (s *Store) GetWorkflowInstanceIDsByUser(ctx context.Context, userID, tenantID string) ([]string, error) {
	query := `
		SELECT id
		FROM durable_workflows
		WHERE user_id = $1
		  AND ($2::text IS NULL OR tenant_id = $2)
		  AND status NOT IN ($3, $4)
		ORDER BY create_time ASC, id ASC
	`
	return s.queryIDs(ctx, query, userID, nullString(tenantID),
		domain.WorkflowStatusComplete, domain.WorkflowStatusTerminated)
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect ids: %w", err)
	}
	return ids, nil
}

// scanWorkflow сканирует одну строку в WorkflowInstance.
func (s *Store) scanWorkflow(row pgx.Row) (*domain.WorkflowInstance, error) {
	var wf domain.WorkflowInstance
	var description, reference, userID *string
	var dataJSON, pointersJSON []byte

	err := row.Scan(
		&wf.ID,
		&wf.DefinitionID,
		&wf.Version,
		&wf.TenantID,
		&description,
		&reference,
		&userID,
		&wf.Status,
		&dataJSON,
		&pointersJSON,
		&wf.NextExecution,
		&wf.CreateTime,
		&wf.CompleteTime,
		&wf.Revision,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan workflow: %w", err)
	}

	wf.Description = derefString(description)
	wf.Reference = derefString(reference)
	wf.UserID = derefString(userID)
	wf.CreateTime = wf.CreateTime.UTC()
	if wf.CompleteTime != nil {
		completed := wf.CompleteTime.UTC()
		wf.CompleteTime = &completed
	}

	if err := json.Unmarshal(pointersJSON, &wf.ExecutionPointers); err != nil {
		return nil, fmt.Errorf("unmarshal execution pointers: %w", err)
	}

	wf.Data, err = provider.UnmarshalData(dataJSON, s.dataFactory, &wf)
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

func marshalInstance(wf *domain.WorkflowInstance) (data, pointers []byte, err error) {
	data, err = provider.MarshalData(wf.Data)
	if err != nil {
		return nil, nil, err
	}

	ptrs := wf.ExecutionPointers
	if ptrs == nil {
		ptrs = domain.PointerCollection{}
	}
	pointers, err = json.Marshal(ptrs)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal execution pointers: %w", err)
	}
	return data, pointers, nil
}
