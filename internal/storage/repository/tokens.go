package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

// CreateResetToken сохраняет токен сброса пароля.
func (s *Storage) CreateResetToken(ctx context.Context, t models.ResetToken) error {
	const op = "storage.CreateResetToken"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	if _, err := s.DB.ExecContext(ctx,
		`INSERT INTO verification_tokens (identifier, token, expires) VALUES ($1, $2, $3)`,
		t.Identifier, t.Token, t.Expires); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindResetToken ищет неистёкший на момент now токен.
func (s *Storage) FindResetToken(ctx context.Context, token string, now time.Time) (*models.ResetToken, error) {
	const op = "storage.FindResetToken"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	var t models.ResetToken
	err := s.DB.QueryRowContext(ctx,
		`SELECT identifier, token, expires FROM verification_tokens WHERE token = $1 AND expires > $2`,
		token, now).Scan(&t.Identifier, &t.Token, &t.Expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidResetToken)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &t, nil
}

// DeleteResetTokens удаляет все токены для identifier.
func (s *Storage) DeleteResetTokens(ctx context.Context, identifier string) error {
	const op = "storage.DeleteResetTokens"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	if _, err := s.DB.ExecContext(ctx,
		`DELETE FROM verification_tokens WHERE identifier = $1`, identifier); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
