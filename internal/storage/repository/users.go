package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

const userColumns = `id, email, name, hashed_password, stripe_customer_id, created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	var customerID sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &customerID,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if customerID.Valid {
		u.StripeCustomerID = &customerID.String
	}
	return &u, nil
}

// CreateUser сохраняет нового пользователя. Занятый email даёт models.ErrEmailTaken.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.CreateUser"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	query := `INSERT INTO users (id, email, name, hashed_password)
			  VALUES ($1, $2, $3, $4)
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, user.ID, user.Email, user.Name, user.PasswordHash))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrEmailTaken)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUser возвращает пользователя по ID.
func (s *Storage) GetUser(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdateUserName меняет отображаемое имя пользователя.
func (s *Storage) UpdateUserName(ctx context.Context, userID, name string) error {
	const op = "storage.UpdateUserName"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET name = $1, updated_at = NOW() WHERE id = $2`, name, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res, models.ErrUserNotFound)
}

// UpdatePasswordByEmail заменяет хэш пароля.
func (s *Storage) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error {
	const op = "storage.UpdatePasswordByEmail"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET hashed_password = $1, updated_at = NOW() WHERE email = $2`, passwordHash, email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res, models.ErrUserNotFound)
}

// LinkCustomer привязывает пользователя к покупателю провайдера.
func (s *Storage) LinkCustomer(ctx context.Context, userID, customerID string) error {
	const op = "storage.LinkCustomer"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET stripe_customer_id = $1, updated_at = NOW() WHERE id = $2`, customerID, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res, models.ErrUserNotFound)
}

// ClearCustomerByUser снимает привязку к покупателю по ID пользователя.
func (s *Storage) ClearCustomerByUser(ctx context.Context, userID string) (int64, error) {
	const op = "storage.ClearCustomerByUser"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET stripe_customer_id = NULL, updated_at = NOW() WHERE id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return res.RowsAffected()
}

// ClearCustomerByCustomer снимает привязку по идентификатору покупателя.
func (s *Storage) ClearCustomerByCustomer(ctx context.Context, customerID string) (int64, error) {
	const op = "storage.ClearCustomerByCustomer"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET stripe_customer_id = NULL, updated_at = NOW() WHERE stripe_customer_id = $1`, customerID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return res.RowsAffected()
}

// DeleteUser удаляет пользователя и всё, что к нему относится, в одной транзакции.
// Подписки, настройки и рабочие процессы уходят каскадом, записи аудита обезличиваются.
func (s *Storage) DeleteUser(ctx context.Context, userID string) error {
	const op = "storage.DeleteUser"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM verification_tokens
		 WHERE identifier = (SELECT email FROM users WHERE id = $1)`, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = expectAffected(op, res, models.ErrUserNotFound); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func expectAffected(op string, res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, notFound)
	}
	return nil
}
