package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

// GetSettings возвращает настройки пользователя или значения по умолчанию.
func (s *Storage) GetSettings(ctx context.Context, userID string) (models.UserSettings, error) {
	const op = "storage.GetSettings"
	if err := ctxDone(ctx, op); err != nil {
		return models.UserSettings{}, err
	}

	var st models.UserSettings
	err := s.DB.QueryRowContext(ctx,
		`SELECT timezone, email_notifications, weekly_digest FROM user_settings WHERE user_id = $1`,
		userID).Scan(&st.Timezone, &st.EmailNotifications, &st.WeeklyDigest)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultUserSettings(), nil
	}
	if err != nil {
		return models.UserSettings{}, fmt.Errorf("%s: %w", op, err)
	}
	return st, nil
}

// SaveSettings создаёт или перезаписывает настройки пользователя.
func (s *Storage) SaveSettings(ctx context.Context, userID string, st models.UserSettings) error {
	const op = "storage.SaveSettings"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	query := `INSERT INTO user_settings (user_id, timezone, email_notifications, weekly_digest)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (user_id) DO UPDATE
			  SET timezone = EXCLUDED.timezone,
			      email_notifications = EXCLUDED.email_notifications,
			      weekly_digest = EXCLUDED.weekly_digest,
			      updated_at = NOW()`
	if _, err := s.DB.ExecContext(ctx, query, userID, st.Timezone, st.EmailNotifications, st.WeeklyDigest); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
