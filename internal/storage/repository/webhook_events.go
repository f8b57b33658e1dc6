package repository

import (
	"context"
	"fmt"
)

// RecordWebhookEvent дописывает полученное событие в журнал.
// Повторная доставка того же события ничего не меняет. Журнал не используется
// для пропуска событий, только для разбора инцидентов.
func (s *Storage) RecordWebhookEvent(ctx context.Context, eventID, eventType, outcome string) error {
	const op = "storage.RecordWebhookEvent"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	if _, err := s.DB.ExecContext(ctx,
		`INSERT INTO webhook_events (id, type, outcome) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO NOTHING`, eventID, eventType, outcome); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
