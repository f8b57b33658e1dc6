// Package services проверяет доступ пользователя к платным функциям по
// локальной копии его подписок.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/workflow-saas/internal/lib/sl"
	"github.com/magabrotheeeer/workflow-saas/internal/metrics"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

// DefaultGracePeriod сколько просроченная подписка ещё даёт доступ после конца периода.
const DefaultGracePeriod = 7 * 24 * time.Hour

// Причины отказа и открытого доступа.
const (
	ReasonNoSubscription = "no active subscription"
	ReasonGraceExpired   = "payment past due, grace period expired"
	ReasonFailOpen       = "access check failed, allowing temporarily"
)

// Repository источник подписок.
type Repository interface {
	ListEntitlingSubscriptions(ctx context.Context, userID string) ([]*models.Subscription, error)
}

// Service проверка доступа.
type Service struct {
	repo    Repository
	tiers   models.PlanTiers
	grace   time.Duration
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// New создаёт сервис. grace <= 0 заменяется на DefaultGracePeriod.
func New(log *slog.Logger, repo Repository, tiers models.PlanTiers, grace time.Duration, m *metrics.Metrics) *Service {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Service{
		repo:    repo,
		tiers:   tiers,
		grace:   grace,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// Check возвращает права пользователя. При ошибке хранилища доступ открывается
// (FailOpen), чтобы сбой базы не отключал платящих клиентов.
func (s *Service) Check(ctx context.Context, userID string) models.Access {
	const op = "services.entitlement.Check"

	subs, err := s.repo.ListEntitlingSubscriptions(ctx, userID)
	if err != nil {
		s.log.Error("entitlement check failed, failing open",
			slog.String("op", op), slog.String("user_id", userID), sl.Err(err))
		s.metrics.FailOpen()
		return FailOpen()
	}
	return Evaluate(subs, s.now(), s.grace, s.tiers)
}

// FailOpen ответ при недоступном хранилище.
func FailOpen() models.Access {
	return models.Access{
		HasAccess: true,
		Plan:      models.PlanFree,
		Reason:    ReasonFailOpen,
	}
}

// Evaluate выбирает из подписок (от новых к старым) первую, дающую доступ.
// active и trialing дают доступ всегда, past_due только пока now <= конец периода + grace.
func Evaluate(subs []*models.Subscription, now time.Time, grace time.Duration, tiers models.PlanTiers) models.Access {
	var overdue *models.Subscription
	for _, sub := range subs {
		switch sub.Status {
		case models.StatusActive, models.StatusTrialing:
			return granted(sub, tiers)
		case models.StatusPastDue:
			if !now.After(sub.CurrentPeriodEnd.Add(grace)) {
				return granted(sub, tiers)
			}
			if overdue == nil {
				overdue = sub
			}
		}
	}

	if overdue != nil {
		return models.Access{
			HasAccess:    false,
			Plan:         models.PlanFree,
			Reason:       ReasonGraceExpired,
			Subscription: overdue,
		}
	}
	return models.Access{
		HasAccess: false,
		Plan:      models.PlanFree,
		Reason:    ReasonNoSubscription,
	}
}

func granted(sub *models.Subscription, tiers models.PlanTiers) models.Access {
	return models.Access{
		HasAccess:    true,
		Plan:         tiers.PlanFor(sub.PriceID),
		Subscription: sub,
	}
}
