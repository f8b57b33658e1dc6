package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

const workflowColumns = `id, user_id, name, description, workflow_json, status, created_at, updated_at`

func scanWorkflow(row scanner) (*models.Workflow, error) {
	var w models.Workflow
	var body []byte
	if err := row.Scan(&w.ID, &w.UserID, &w.Name, &w.Description, &body,
		&w.Status, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.WorkflowJSON = body
	return &w, nil
}

// CreateWorkflow сохраняет новый рабочий процесс.
func (s *Storage) CreateWorkflow(ctx context.Context, w models.Workflow) (*models.Workflow, error) {
	const op = "storage.CreateWorkflow"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	query := `INSERT INTO workflows (id, user_id, name, description, workflow_json, status)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING ` + workflowColumns
	created, err := scanWorkflow(s.DB.QueryRowContext(ctx, query,
		w.ID, w.UserID, w.Name, w.Description, []byte(w.WorkflowJSON), w.Status))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// ListWorkflows возвращает последние limit рабочих процессов пользователя.
func (s *Storage) ListWorkflows(ctx context.Context, userID string, limit int) ([]*models.Workflow, error) {
	const op = "storage.ListWorkflows"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + workflowColumns + ` FROM workflows
			  WHERE user_id = $1
			  ORDER BY created_at DESC
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.Workflow, 0)
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, w)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetWorkflow возвращает рабочий процесс, если он принадлежит пользователю.
func (s *Storage) GetWorkflow(ctx context.Context, userID, id string) (*models.Workflow, error) {
	const op = "storage.GetWorkflow"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1 AND user_id = $2`
	w, err := scanWorkflow(s.DB.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrWorkflowNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}

// UpdateWorkflow применяет частичное обновление и возвращает новую версию.
func (s *Storage) UpdateWorkflow(ctx context.Context, userID, id string, p models.WorkflowPatch) (*models.Workflow, error) {
	const op = "storage.UpdateWorkflow"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	var body any
	if len(p.WorkflowJSON) > 0 {
		body = []byte(p.WorkflowJSON)
	}
	query := `UPDATE workflows
			  SET name = COALESCE($3, name),
			      description = COALESCE($4, description),
			      workflow_json = COALESCE($5::jsonb, workflow_json),
			      status = COALESCE($6, status),
			      updated_at = NOW()
			  WHERE id = $1 AND user_id = $2
			  RETURNING ` + workflowColumns
	w, err := scanWorkflow(s.DB.QueryRowContext(ctx, query, id, userID,
		p.Name, p.Description, body, p.Status))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrWorkflowNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}

// DeleteWorkflow удаляет рабочий процесс пользователя.
func (s *Storage) DeleteWorkflow(ctx context.Context, userID, id string) error {
	const op = "storage.DeleteWorkflow"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res, models.ErrWorkflowNotFound)
}
