// Package services применяет события платёжного провайдера к локальному
// состоянию подписок и реализует пользовательские операции над подпиской.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/workflow-saas/internal/billingevent"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/sl"
	"github.com/magabrotheeeer/workflow-saas/internal/metrics"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

// ReconcilerRepository хранилище, которое меняет обработка событий.
type ReconcilerRepository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	LinkCustomer(ctx context.Context, userID, customerID string) error
	ClearCustomerByUser(ctx context.Context, userID string) (int64, error)
	ClearCustomerByCustomer(ctx context.Context, customerID string) (int64, error)
	UpsertSubscription(ctx context.Context, sub models.Subscription) error
	UpdateSubscriptionStatus(ctx context.Context, subscriptionID string, status models.SubscriptionStatus) (int64, error)
	GetSubscriptionOwner(ctx context.Context, subscriptionID string) (*models.User, error)
	RecordWebhookEvent(ctx context.Context, eventID, eventType, outcome string) error
}

// Notifier ставит письмо в очередь.
type Notifier interface {
	Publish(ctx context.Context, n models.Notification) error
}

// Reconciler применяет проверенные события провайдера. Повтор события
// приводит к тому же состоянию: подписки сохраняются upsert-ом по ID провайдера,
// остальные изменения выставляют значение, а не накапливают его.
// Порядок событий не проверяется: применяется последнее пришедшее.
type Reconciler struct {
	repo     ReconcilerRepository
	notifier Notifier
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewReconciler создаёт обработчик событий.
func NewReconciler(log *slog.Logger, repo ReconcilerRepository, notifier Notifier, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		log:      log,
	}
}

var _ billingevent.Handler = (*Reconciler)(nil)

// Process разбирает и применяет событие, затем записывает его исход в журнал
// вебхуков. Ошибка означает, что событие известно, но применить его не удалось.
func (r *Reconciler) Process(ctx context.Context, env billingevent.Envelope) error {
	const op = "services.billing.Process"
	log := r.log.With(slog.String("op", op), slog.String("event_id", env.ID), slog.String("event_type", env.Type))

	ev, err := billingevent.Parse(env)
	if err == nil {
		err = billingevent.Dispatch(ctx, ev, r)
	}

	outcome := metrics.OutcomeApplied
	switch {
	case errors.Is(err, billingevent.ErrSkipped):
		outcome = metrics.OutcomeIgnored
		err = nil
	case err != nil:
		outcome = metrics.OutcomeFailed
	}

	if recErr := r.repo.RecordWebhookEvent(ctx, env.ID, env.Type, outcome); recErr != nil {
		log.Warn("failed to record webhook event", sl.Err(recErr))
	}
	r.metrics.WebhookProcessed(env.Type, outcome)

	if err != nil {
		log.Error("failed to process webhook event", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("webhook event processed", slog.String("outcome", outcome))
	return nil
}

// CheckoutCompleted связывает покупателя провайдера с пользователем.
func (r *Reconciler) CheckoutCompleted(ctx context.Context, e billingevent.CheckoutCompleted) error {
	if e.UserID == "" || e.CustomerID == "" {
		r.log.Warn("checkout completed without user or customer",
			slog.String("user_id", e.UserID), slog.String("customer_id", e.CustomerID))
		return billingevent.ErrSkipped
	}
	return r.repo.LinkCustomer(ctx, e.UserID, e.CustomerID)
}

// SubscriptionChanged сохраняет подписку целиком. Новая активная подписка
// дополнительно порождает письмо владельцу.
func (r *Reconciler) SubscriptionChanged(ctx context.Context, e billingevent.SubscriptionChanged) error {
	sub := e.Subscription
	if sub.UserID == "" {
		r.log.Warn("subscription event without user metadata", slog.String("subscription_id", sub.ID))
		return billingevent.ErrSkipped
	}
	if err := r.repo.UpsertSubscription(ctx, sub); err != nil {
		return err
	}

	if e.Created && sub.Status == models.StatusActive {
		r.notifyUser(ctx, sub.UserID, models.Notification{
			Kind:     models.NotificationSubscriptionCreated,
			PlanName: e.PlanName,
		})
	}
	return nil
}

// SubscriptionDeleted переводит подписку в canceled.
func (r *Reconciler) SubscriptionDeleted(ctx context.Context, e billingevent.SubscriptionDeleted) error {
	return r.setStatus(ctx, e.SubscriptionID, models.StatusCanceled)
}

// InvoicePaymentFailed переводит подписку в past_due и предупреждает владельца.
func (r *Reconciler) InvoicePaymentFailed(ctx context.Context, e billingevent.InvoicePaymentFailed) error {
	if err := r.setStatus(ctx, e.SubscriptionID, models.StatusPastDue); err != nil {
		return err
	}

	owner, err := r.repo.GetSubscriptionOwner(ctx, e.SubscriptionID)
	if err != nil {
		r.log.Warn("payment failed owner lookup failed",
			slog.String("subscription_id", e.SubscriptionID), sl.Err(err))
		return nil
	}
	r.notify(ctx, owner, models.Notification{Kind: models.NotificationPaymentFailed})
	return nil
}

// InvoicePaymentSucceeded возвращает подписку в active.
func (r *Reconciler) InvoicePaymentSucceeded(ctx context.Context, e billingevent.InvoicePaymentSucceeded) error {
	return r.setStatus(ctx, e.SubscriptionID, models.StatusActive)
}

// CustomerDeleted отвязывает покупателя от пользователя.
func (r *Reconciler) CustomerDeleted(ctx context.Context, e billingevent.CustomerDeleted) error {
	var (
		n   int64
		err error
	)
	if e.UserID != "" {
		n, err = r.repo.ClearCustomerByUser(ctx, e.UserID)
	} else {
		n, err = r.repo.ClearCustomerByCustomer(ctx, e.CustomerID)
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return billingevent.ErrSkipped
	}
	return nil
}

// Unrecognized ничего не меняет.
func (r *Reconciler) Unrecognized(_ context.Context, e billingevent.Unrecognized) error {
	r.log.Info("unhandled webhook event type", slog.String("event_type", e.Type))
	return billingevent.ErrSkipped
}

func (r *Reconciler) setStatus(ctx context.Context, subscriptionID string, status models.SubscriptionStatus) error {
	if subscriptionID == "" {
		return billingevent.ErrSkipped
	}
	n, err := r.repo.UpdateSubscriptionStatus(ctx, subscriptionID, status)
	if err != nil {
		return err
	}
	if n == 0 {
		r.log.Warn("status change for unknown subscription",
			slog.String("subscription_id", subscriptionID), slog.String("status", string(status)))
		return billingevent.ErrSkipped
	}
	return nil
}

func (r *Reconciler) notifyUser(ctx context.Context, userID string, n models.Notification) {
	user, err := r.repo.GetUser(ctx, userID)
	if err != nil {
		r.log.Warn("notification recipient lookup failed", slog.String("user_id", userID), sl.Err(err))
		return
	}
	r.notify(ctx, user, n)
}

func (r *Reconciler) notify(ctx context.Context, user *models.User, n models.Notification) {
	n.Email = user.Email
	n.Name = user.Name
	if err := r.notifier.Publish(ctx, n); err != nil {
		r.log.Warn("failed to publish notification",
			slog.String("kind", string(n.Kind)), slog.String("user_id", user.ID), sl.Err(err))
	}
}
