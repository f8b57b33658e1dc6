package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/workflow-saas/internal/audit"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
	"github.com/magabrotheeeer/workflow-saas/internal/paymentprovider"
)

// Provider операции у платёжного провайдера.
type Provider interface {
	FindOrCreateCustomer(ctx context.Context, email, name, userID string) (string, error)
	CreateCheckoutSession(ctx context.Context, p paymentprovider.CheckoutParams) (*paymentprovider.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error
	CancelNow(ctx context.Context, subscriptionID string) error
	ChangePrice(ctx context.Context, subscriptionID, priceID string) error
}

// ManagerRepository хранилище для пользовательских операций с подпиской.
type ManagerRepository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	LinkCustomer(ctx context.Context, userID, customerID string) error
	LatestSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error
	UpdateSubscriptionStatus(ctx context.Context, subscriptionID string, status models.SubscriptionStatus) (int64, error)
	UpdateSubscriptionPrice(ctx context.Context, subscriptionID, priceID string) error
}

// ManagerConfig параметры оформления подписки.
type ManagerConfig struct {
	Tiers     models.PlanTiers
	AppURL    string
	TrialDays int64
}

// Manager операции пользователя над своей подпиской. Каждое изменение сначала
// выполняется у провайдера, затем отражается локально; следующий вебхук
// приведёт локальное состояние к тому же виду.
type Manager struct {
	repo     ManagerRepository
	provider Provider
	audit    *audit.Writer
	cfg      ManagerConfig
	log      *slog.Logger
}

// NewManager создаёт сервис управления подпиской.
func NewManager(log *slog.Logger, repo ManagerRepository, provider Provider, auditor *audit.Writer, cfg ManagerConfig) *Manager {
	return &Manager{
		repo:     repo,
		provider: provider,
		audit:    auditor,
		cfg:      cfg,
		log:      log,
	}
}

// Summary возвращает последнюю подписку и тариф. Без подписки тариф free, подписка nil.
func (m *Manager) Summary(ctx context.Context, userID string) (*models.Subscription, models.Plan, error) {
	sub, err := m.repo.LatestSubscription(ctx, userID)
	if errors.Is(err, models.ErrNoSubscription) {
		return nil, models.PlanFree, nil
	}
	if err != nil {
		return nil, "", err
	}
	return sub, m.cfg.Tiers.PlanFor(sub.PriceID), nil
}

// Manage выполняет действие над последней подпиской пользователя.
func (m *Manager) Manage(ctx context.Context, userID string, action models.SubscriptionAction, newPriceID, ip string) (*models.Subscription, error) {
	const op = "services.billing.Manage"

	if action == models.ActionChangePlan && newPriceID == "" {
		return nil, models.ErrPriceRequired
	}

	sub, err := m.repo.LatestSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch action {
	case models.ActionCancel:
		if err = m.provider.SetCancelAtPeriodEnd(ctx, sub.ID, true); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err = m.repo.SetCancelAtPeriodEnd(ctx, sub.ID, true); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sub.CancelAtPeriodEnd = true

	case models.ActionCancelImmediately:
		if err = m.provider.CancelNow(ctx, sub.ID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if _, err = m.repo.UpdateSubscriptionStatus(ctx, sub.ID, models.StatusCanceled); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sub.Status = models.StatusCanceled

	case models.ActionReactivate:
		if !sub.CancelAtPeriodEnd {
			return nil, models.ErrNotScheduledToCancel
		}
		if err = m.provider.SetCancelAtPeriodEnd(ctx, sub.ID, false); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err = m.repo.SetCancelAtPeriodEnd(ctx, sub.ID, false); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sub.CancelAtPeriodEnd = false

	case models.ActionChangePlan:
		if err = m.provider.ChangePrice(ctx, sub.ID, newPriceID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err = m.repo.UpdateSubscriptionPrice(ctx, sub.ID, newPriceID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sub.PriceID = newPriceID

	default:
		return nil, fmt.Errorf("%s: unknown action %q", op, action)
	}

	entry := audit.Entry{
		UserID:     userID,
		Action:     "subscription." + string(action),
		EntityType: "subscription",
		EntityID:   sub.ID,
		IP:         ip,
	}
	if newPriceID != "" {
		entry.Metadata = map[string]any{"new_price_id": newPriceID}
	}
	m.audit.Record(ctx, entry)

	m.log.Info("subscription action applied",
		slog.String("op", op), slog.String("user_id", userID),
		slog.String("subscription_id", sub.ID), slog.String("action", string(action)))
	return sub, nil
}

// Checkout создаёт сессию оформления подписки на тариф plan.
func (m *Manager) Checkout(ctx context.Context, userID string, plan models.Plan, ip string) (*paymentprovider.CheckoutSession, error) {
	const op = "services.billing.Checkout"

	priceID, ok := m.cfg.Tiers.PriceFor(plan)
	if !ok {
		return nil, models.ErrUnknownPlan
	}

	customerID, err := m.ensureCustomer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	session, err := m.provider.CreateCheckoutSession(ctx, paymentprovider.CheckoutParams{
		CustomerID: customerID,
		UserID:     userID,
		PriceID:    priceID,
		SuccessURL: m.cfg.AppURL + "/dashboard/billing?success=true",
		CancelURL:  m.cfg.AppURL + "/dashboard/billing?canceled=true",
		TrialDays:  m.cfg.TrialDays,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m.audit.Record(ctx, audit.Entry{
		UserID:     userID,
		Action:     "billing.checkout",
		EntityType: "checkout_session",
		EntityID:   session.ID,
		IP:         ip,
		Metadata:   map[string]any{"plan": string(plan)},
	})
	return session, nil
}

// Portal возвращает ссылку на портал управления оплатой.
func (m *Manager) Portal(ctx context.Context, userID string) (string, error) {
	const op = "services.billing.Portal"

	customerID, err := m.ensureCustomer(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	url, err := m.provider.CreatePortalSession(ctx, customerID, m.cfg.AppURL+"/dashboard/billing")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return url, nil
}

// ensureCustomer возвращает покупателя пользователя, при необходимости
// находя или создавая его у провайдера и сохраняя ссылку локально.
func (m *Manager) ensureCustomer(ctx context.Context, userID string) (string, error) {
	user, err := m.repo.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.HasCustomer() {
		return *user.StripeCustomerID, nil
	}

	customerID, err := m.provider.FindOrCreateCustomer(ctx, user.Email, user.Name, user.ID)
	if err != nil {
		return "", err
	}
	if err = m.repo.LinkCustomer(ctx, user.ID, customerID); err != nil {
		return "", err
	}
	return customerID, nil
}
