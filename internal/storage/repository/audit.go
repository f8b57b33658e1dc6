package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

// InsertAudit дописывает запись в журнал действий.
func (s *Storage) InsertAudit(ctx context.Context, e models.AuditEntry) error {
	const op = "storage.InsertAudit"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	var metadata any
	if len(e.Metadata) > 0 {
		metadata = []byte(e.Metadata)
	}
	query := `INSERT INTO audit_log (id, user_id, action, entity_type, entity_id, metadata, ip_address)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := s.DB.ExecContext(ctx, query, e.ID, e.UserID, e.Action, e.EntityType,
		e.EntityID, metadata, e.IPAddress); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListAudit возвращает страницу журнала пользователя и общее число записей.
func (s *Storage) ListAudit(ctx context.Context, f models.AuditFilter) ([]*models.AuditEntry, int, error) {
	const op = "storage.ListAudit"
	if err := ctxDone(ctx, op); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE user_id = $1 AND ($2 = '' OR action = $2)`,
		f.UserID, f.Action).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT id, user_id, action, entity_type, entity_id, COALESCE(metadata, 'null'::jsonb),
			      ip_address, created_at
			  FROM audit_log
			  WHERE user_id = $1 AND ($2 = '' OR action = $2)
			  ORDER BY created_at DESC
			  LIMIT $3 OFFSET $4`
	rows, err := s.DB.QueryContext(ctx, query, f.UserID, f.Action, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.AuditEntry, 0, f.Limit)
	for rows.Next() {
		var e models.AuditEntry
		var metadata []byte
		if err = rows.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID,
			&metadata, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		if string(metadata) != "null" {
			e.Metadata = metadata
		}
		result = append(result, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return result, total, nil
}
