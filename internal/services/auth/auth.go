// Package services содержит логику бизнес-уровня для регистрации, входа и
// восстановления пароля.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/workflow-saas/internal/audit"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/jwt"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/password"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/sl"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

// ResetTokenTTL время жизни токена сброса пароля.
const ResetTokenTTL = time.Hour

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// CreateUser сохраняет пользователя; занятый email даёт models.ErrEmailTaken.
	CreateUser(ctx context.Context, user models.User) (*models.User, error)

	// GetUserByEmail возвращает пользователя или models.ErrUserNotFound.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error
	CreateResetToken(ctx context.Context, t models.ResetToken) error
	FindResetToken(ctx context.Context, token string, now time.Time) (*models.ResetToken, error)
	DeleteResetTokens(ctx context.Context, identifier string) error
}

// Notifier ставит письмо в очередь.
type Notifier interface {
	Publish(ctx context.Context, n models.Notification) error
}

// AuthService отвечает за регистрацию, вход, сброс пароля и валидацию JWT.
type AuthService struct {
	users    UserRepository
	jwtMaker jwt.Maker
	notifier Notifier
	audit    *audit.Writer
	log      *slog.Logger
	now      func() time.Time
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(log *slog.Logger, users UserRepository, jwtMaker jwt.Maker, notifier Notifier, auditor *audit.Writer) *AuthService {
	return &AuthService{
		users:    users,
		jwtMaker: jwtMaker,
		notifier: notifier,
		audit:    auditor,
		log:      log,
		now:      time.Now,
	}
}

// NormalizeEmail приводит email к виду, в котором он хранится.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup создает пользователя с bcrypt-хэшем пароля. Входные данные должны
// быть провалидированы до вызова.
func (s *AuthService) Signup(ctx context.Context, email, rawPassword, name, ip string) (*models.User, error) {
	const op = "services.auth.Signup"

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.users.CreateUser(ctx, models.User{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(email),
		Name:         strings.TrimSpace(name),
		PasswordHash: hashed,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, models.Notification{Kind: models.NotificationWelcome, Email: user.Email, Name: user.Name})
	s.audit.Record(ctx, audit.Entry{
		UserID:     user.ID,
		Action:     "user.signup",
		EntityType: "user",
		EntityID:   user.ID,
		IP:         ip,
	})
	return user, nil
}

// Login проверяет пароль и выдаёт сессионный JWT. Неизвестный email и
// неверный пароль неразличимы для вызывающего.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (string, *models.User, error) {
	const op = "services.auth.Login"

	user, err := s.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, models.ErrUserNotFound) {
		return "", nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if err = password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return "", nil, models.ErrInvalidCredentials
	}

	token, err := s.jwtMaker.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return token, user, nil
}

// ValidateToken проверяет JWT и возвращает его claims.
func (s *AuthService) ValidateToken(token string) (*jwt.CustomClaims, error) {
	return s.jwtMaker.ParseToken(token)
}

// RequestPasswordReset создаёт токен сброса и отправляет письмо. Для
// неизвестного email ничего не делает и тоже возвращает nil.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email, ip string) error {
	const op = "services.auth.RequestPasswordReset"

	email = NormalizeEmail(email)
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, models.ErrUserNotFound) {
		s.log.Info("password reset for unknown email", slog.String("op", op))
		return nil
	}
	if err != nil {
		return err
	}

	token := uuid.NewString() + "-" + uuid.NewString()
	err = s.users.CreateResetToken(ctx, models.ResetToken{
		Identifier: user.Email,
		Token:      token,
		Expires:    s.now().Add(ResetTokenTTL),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, models.Notification{
		Kind:  models.NotificationPasswordReset,
		Email: user.Email,
		Name:  user.Name,
		Token: token,
	})
	s.audit.Record(ctx, audit.Entry{
		UserID:     user.ID,
		Action:     "user.password_reset_requested",
		EntityType: "user",
		EntityID:   user.ID,
		IP:         ip,
	})
	return nil
}

// ConfirmPasswordReset меняет пароль по действующему токену и гасит все
// токены этого email.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword, ip string) error {
	const op = "services.auth.ConfirmPasswordReset"

	rt, err := s.users.FindResetToken(ctx, token, s.now())
	if err != nil {
		return err
	}
	hashed, err := password.GetHash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = s.users.UpdatePasswordByEmail(ctx, rt.Identifier, hashed); err != nil {
		return err
	}
	if err = s.users.DeleteResetTokens(ctx, rt.Identifier); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.audit.Record(ctx, audit.Entry{
		Action:     "user.password_reset",
		EntityType: "user",
		IP:         ip,
		Metadata:   map[string]any{"email": rt.Identifier},
	})
	return nil
}

func (s *AuthService) publish(ctx context.Context, n models.Notification) {
	if err := s.notifier.Publish(ctx, n); err != nil {
		s.log.Warn("failed to publish notification", slog.String("kind", string(n.Kind)), sl.Err(err))
	}
}
