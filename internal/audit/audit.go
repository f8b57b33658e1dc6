// Package audit пишет журнал действий пользователей. Запись выполняется
// после успешной операции и её сбой не отменяет операцию.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/workflow-saas/internal/lib/sl"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

// Repository хранилище журнала.
type Repository interface {
	InsertAudit(ctx context.Context, e models.AuditEntry) error
}

// Entry описание действия.
type Entry struct {
	UserID     string
	Action     string
	EntityType string
	EntityID   string
	IP         string
	Metadata   map[string]any
}

// Writer пишет записи, логируя ошибки вместо их возврата.
type Writer struct {
	repo Repository
	log  *slog.Logger
}

// NewWriter создаёт Writer.
func NewWriter(repo Repository, log *slog.Logger) *Writer {
	return &Writer{repo: repo, log: log}
}

// Record сохраняет запись.
func (w *Writer) Record(ctx context.Context, e Entry) {
	var meta json.RawMessage
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			w.log.Warn("failed to encode audit metadata", slog.String("action", e.Action), sl.Err(err))
		} else {
			meta = raw
		}
	}

	var userID *string
	if e.UserID != "" {
		uid := e.UserID
		userID = &uid
	}

	err := w.repo.InsertAudit(ctx, models.AuditEntry{
		ID:         uuid.NewString(),
		UserID:     userID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Metadata:   meta,
		IPAddress:  e.IP,
	})
	if err != nil {
		w.log.Warn("failed to write audit entry", slog.String("action", e.Action), sl.Err(err))
	}
}
