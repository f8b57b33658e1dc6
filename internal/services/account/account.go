// Package services операции над учётной записью: настройки, выгрузка данных,
// журнал действий и удаление.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/workflow-saas/internal/audit"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/sl"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

// DeleteConfirmation фраза, которой пользователь подтверждает удаление.
const DeleteConfirmation = "DELETE MY ACCOUNT"

const (
	exportWorkflowLimit = 1000
	exportActivityLimit = 1000
)

// Repository хранилище учётных записей.
type Repository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpdateUserName(ctx context.Context, userID, name string) error
	GetSettings(ctx context.Context, userID string) (models.UserSettings, error)
	SaveSettings(ctx context.Context, userID string, st models.UserSettings) error
	ListWorkflows(ctx context.Context, userID string, limit int) ([]*models.Workflow, error)
	ListAudit(ctx context.Context, f models.AuditFilter) ([]*models.AuditEntry, int, error)
	LatestSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	DeleteUser(ctx context.Context, userID string) error
}

// Canceller планирует отмену подписки у провайдера.
type Canceller interface {
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error
}

// Service сервис учётной записи.
type Service struct {
	repo      Repository
	canceller Canceller
	audit     *audit.Writer
	log       *slog.Logger
	now       func() time.Time
}

// New создаёт сервис.
func New(log *slog.Logger, repo Repository, canceller Canceller, auditor *audit.Writer) *Service {
	return &Service{
		repo:      repo,
		canceller: canceller,
		audit:     auditor,
		log:       log,
		now:       time.Now,
	}
}

// Settings возвращает профиль и настройки.
func (s *Service) Settings(ctx context.Context, userID string) (*models.User, models.UserSettings, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, models.UserSettings{}, err
	}
	st, err := s.repo.GetSettings(ctx, userID)
	if err != nil {
		return nil, models.UserSettings{}, err
	}
	return user, st, nil
}

// UpdateSettings применяет частичное обновление профиля и настроек.
func (s *Service) UpdateSettings(ctx context.Context, userID string, p models.SettingsPatch, ip string) (*models.User, models.UserSettings, error) {
	const op = "services.account.UpdateSettings"

	if p.Name != nil {
		if err := s.repo.UpdateUserName(ctx, userID, strings.TrimSpace(*p.Name)); err != nil {
			return nil, models.UserSettings{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	if p.Timezone != nil || p.EmailNotifications != nil || p.WeeklyDigest != nil {
		st, err := s.repo.GetSettings(ctx, userID)
		if err != nil {
			return nil, models.UserSettings{}, fmt.Errorf("%s: %w", op, err)
		}
		if p.Timezone != nil {
			st.Timezone = *p.Timezone
		}
		if p.EmailNotifications != nil {
			st.EmailNotifications = *p.EmailNotifications
		}
		if p.WeeklyDigest != nil {
			st.WeeklyDigest = *p.WeeklyDigest
		}
		if err = s.repo.SaveSettings(ctx, userID, st); err != nil {
			return nil, models.UserSettings{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:     userID,
		Action:     "settings.updated",
		EntityType: "user",
		EntityID:   userID,
		IP:         ip,
	})
	return s.Settings(ctx, userID)
}

// Export собирает все данные пользователя.
func (s *Service) Export(ctx context.Context, userID, ip string) (*models.Export, error) {
	const op = "services.account.Export"

	user, st, err := s.Settings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	workflows, err := s.repo.ListWorkflows(ctx, userID, exportWorkflowLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	activity, _, err := s.repo.ListAudit(ctx, models.AuditFilter{UserID: userID, Limit: exportActivityLimit})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:     userID,
		Action:     "data.exported",
		EntityType: "user",
		EntityID:   userID,
		IP:         ip,
	})
	return &models.Export{
		ExportedAt: s.now().UTC(),
		User:       user,
		Settings:   st,
		Workflows:  workflows,
		Activity:   activity,
	}, nil
}

// Activity страница журнала действий пользователя.
func (s *Service) Activity(ctx context.Context, f models.AuditFilter) ([]*models.AuditEntry, int, error) {
	return s.repo.ListAudit(ctx, f)
}

// Delete удаляет учётную запись. Действующая подписка сначала планируется к
// отмене у провайдера; сбой провайдера не мешает удалению.
func (s *Service) Delete(ctx context.Context, userID, confirm, ip string) error {
	const op = "services.account.Delete"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))

	if confirm != DeleteConfirmation {
		return models.ErrConfirmationRequired
	}

	sub, err := s.repo.LatestSubscription(ctx, userID)
	switch {
	case err == nil:
		if isLive(sub) && !sub.CancelAtPeriodEnd {
			if cErr := s.canceller.SetCancelAtPeriodEnd(ctx, sub.ID, true); cErr != nil {
				log.Warn("failed to cancel subscription before account deletion",
					slog.String("subscription_id", sub.ID), sl.Err(cErr))
			}
		}
	case errors.Is(err, models.ErrNoSubscription):
	default:
		log.Warn("subscription lookup failed before account deletion", sl.Err(err))
	}

	if err = s.repo.DeleteUser(ctx, userID); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:     "account.deleted",
		EntityType: "user",
		EntityID:   userID,
		IP:         ip,
	})
	log.Info("account deleted")
	return nil
}

func isLive(sub *models.Subscription) bool {
	switch sub.Status {
	case models.StatusActive, models.StatusTrialing, models.StatusPastDue:
		return true
	}
	return false
}
