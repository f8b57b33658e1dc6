package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

const subscriptionColumns = `id, user_id, status, price_id, current_period_start, current_period_end,
	cancel_at_period_end, trial_end, created_at, updated_at`

func scanSubscription(row scanner) (*models.Subscription, error) {
	var sub models.Subscription
	var trialEnd sql.NullTime
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.Status, &sub.PriceID,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd,
		&trialEnd, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	if trialEnd.Valid {
		sub.TrialEnd = &trialEnd.Time
	}
	return &sub, nil
}

// UpsertSubscription вставляет подписку или перезаписывает существующую с тем же ID.
// Повторная доставка одного события даёт то же состояние.
func (s *Storage) UpsertSubscription(ctx context.Context, sub models.Subscription) error {
	const op = "storage.UpsertSubscription"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	query := `INSERT INTO subscriptions (id, user_id, status, price_id, current_period_start,
			      current_period_end, cancel_at_period_end, trial_end)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  ON CONFLICT (id) DO UPDATE
			  SET status = EXCLUDED.status,
			      price_id = EXCLUDED.price_id,
			      current_period_start = EXCLUDED.current_period_start,
			      current_period_end = EXCLUDED.current_period_end,
			      cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			      trial_end = EXCLUDED.trial_end,
			      updated_at = NOW()`
	if _, err := s.DB.ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.Status, sub.PriceID, sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd, sub.TrialEnd); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateSubscriptionStatus меняет статус подписки и возвращает число затронутых строк.
func (s *Storage) UpdateSubscriptionStatus(ctx context.Context, subscriptionID string, status models.SubscriptionStatus) (int64, error) {
	const op = "storage.UpdateSubscriptionStatus"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE subscriptions SET status = $1, updated_at = NOW() WHERE id = $2`, status, subscriptionID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// SetCancelAtPeriodEnd выставляет флаг отмены в конце периода.
func (s *Storage) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error {
	const op = "storage.SetCancelAtPeriodEnd"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE subscriptions SET cancel_at_period_end = $1, updated_at = NOW() WHERE id = $2`,
		cancel, subscriptionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res, models.ErrNoSubscription)
}

// UpdateSubscriptionPrice меняет ссылку на цену после смены тарифа.
func (s *Storage) UpdateSubscriptionPrice(ctx context.Context, subscriptionID, priceID string) error {
	const op = "storage.UpdateSubscriptionPrice"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE subscriptions SET price_id = $1, updated_at = NOW() WHERE id = $2`, priceID, subscriptionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res, models.ErrNoSubscription)
}

// LatestSubscription возвращает самую новую подписку пользователя в любом статусе.
func (s *Storage) LatestSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "storage.LatestSubscription"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
			  WHERE user_id = $1
			  ORDER BY created_at DESC
			  LIMIT 1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNoSubscription)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// ListEntitlingSubscriptions возвращает подписки пользователя в статусах,
// которые потенциально дают доступ, от новых к старым.
func (s *Storage) ListEntitlingSubscriptions(ctx context.Context, userID string) ([]*models.Subscription, error) {
	const op = "storage.ListEntitlingSubscriptions"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
			  WHERE user_id = $1 AND status IN ('active', 'trialing', 'past_due')
			  ORDER BY created_at DESC`
	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetSubscriptionOwner возвращает владельца подписки.
func (s *Storage) GetSubscriptionOwner(ctx context.Context, subscriptionID string) (*models.User, error) {
	const op = "storage.GetSubscriptionOwner"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT u.id, u.email, u.name, u.hashed_password, u.stripe_customer_id, u.created_at, u.updated_at
			  FROM subscriptions s
			  JOIN users u ON u.id = s.user_id
			  WHERE s.id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, subscriptionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}
