// Package billingevent разбирает события платёжного провайдера в закрытый набор
// вариантов и раздаёт их обработчику.
//
// Набор вариантов закрыт: Event нельзя реализовать вне пакета, а Handler требует
// метод на каждый вариант, поэтому новый вид события ломает сборку всех
// обработчиков, пока они его не учтут.
package billingevent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

// Типы событий провайдера, которые приложение понимает.
const (
	TypeCheckoutCompleted       = "checkout.session.completed"
	TypeSubscriptionCreated     = "customer.subscription.created"
	TypeSubscriptionUpdated     = "customer.subscription.updated"
	TypeSubscriptionDeleted     = "customer.subscription.deleted"
	TypeInvoicePaymentFailed    = "invoice.payment_failed"
	TypeInvoicePaymentSucceeded = "invoice.payment_succeeded"
	TypeCustomerDeleted         = "customer.deleted"
)

// MetadataUserID ключ метаданных, в котором провайдер возвращает ID пользователя.
const MetadataUserID = "userId"

// DefaultPlanName отображаемое имя плана, если у цены нет nickname.
const DefaultPlanName = "Pro"

// ErrSkipped возвращается обработчиком, если событие корректно, но применять нечего.
var ErrSkipped = errors.New("event skipped")

// Envelope проверенное подписью событие до разбора объекта.
type Envelope struct {
	ID      string
	Type    string
	Created time.Time
	Object  json.RawMessage
}

// Event один из вариантов ниже.
type Event interface {
	billingEvent()
}

// CheckoutCompleted оформление подписки завершено; связывает покупателя с пользователем.
type CheckoutCompleted struct {
	UserID     string
	CustomerID string
}

// SubscriptionChanged подписка создана или изменена. Subscription.UserID пуст,
// если провайдер не вернул метаданные пользователя.
type SubscriptionChanged struct {
	Created      bool
	Subscription models.Subscription
	PlanName     string
}

// SubscriptionDeleted подписка окончательно отменена.
type SubscriptionDeleted struct {
	SubscriptionID string
}

// InvoicePaymentFailed списание по счёту не прошло.
type InvoicePaymentFailed struct {
	SubscriptionID string
}

// InvoicePaymentSucceeded счёт оплачен.
type InvoicePaymentSucceeded struct {
	SubscriptionID string
}

// CustomerDeleted покупатель удалён у провайдера.
type CustomerDeleted struct {
	CustomerID string
	UserID     string
}

// Unrecognized событие, которое приложение не обрабатывает.
type Unrecognized struct {
	Type string
}

func (CheckoutCompleted) billingEvent()       {}
func (SubscriptionChanged) billingEvent()     {}
func (SubscriptionDeleted) billingEvent()     {}
func (InvoicePaymentFailed) billingEvent()    {}
func (InvoicePaymentSucceeded) billingEvent() {}
func (CustomerDeleted) billingEvent()         {}
func (Unrecognized) billingEvent()            {}

// Handler применяет события. Каждый метод возвращает ErrSkipped, если событие
// не изменило состояние.
type Handler interface {
	CheckoutCompleted(ctx context.Context, e CheckoutCompleted) error
	SubscriptionChanged(ctx context.Context, e SubscriptionChanged) error
	SubscriptionDeleted(ctx context.Context, e SubscriptionDeleted) error
	InvoicePaymentFailed(ctx context.Context, e InvoicePaymentFailed) error
	InvoicePaymentSucceeded(ctx context.Context, e InvoicePaymentSucceeded) error
	CustomerDeleted(ctx context.Context, e CustomerDeleted) error
	Unrecognized(ctx context.Context, e Unrecognized) error
}

// Dispatch вызывает метод h, соответствующий варианту e.
func Dispatch(ctx context.Context, e Event, h Handler) error {
	switch ev := e.(type) {
	case CheckoutCompleted:
		return h.CheckoutCompleted(ctx, ev)
	case SubscriptionChanged:
		return h.SubscriptionChanged(ctx, ev)
	case SubscriptionDeleted:
		return h.SubscriptionDeleted(ctx, ev)
	case InvoicePaymentFailed:
		return h.InvoicePaymentFailed(ctx, ev)
	case InvoicePaymentSucceeded:
		return h.InvoicePaymentSucceeded(ctx, ev)
	case CustomerDeleted:
		return h.CustomerDeleted(ctx, ev)
	case Unrecognized:
		return h.Unrecognized(ctx, ev)
	default:
		return fmt.Errorf("billingevent.Dispatch: unexpected event %T", e)
	}
}

// Parse разбирает объект события по его типу. Ошибка декодирования
// известного типа возвращается как есть; неизвестный тип даёт Unrecognized.
func Parse(env Envelope) (Event, error) {
	const op = "billingevent.Parse"

	switch env.Type {
	case TypeCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(env.Object, &s); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, env.Type, err)
		}
		e := CheckoutCompleted{UserID: s.Metadata[MetadataUserID]}
		if s.Customer != nil {
			e.CustomerID = s.Customer.ID
		}
		return e, nil

	case TypeSubscriptionCreated, TypeSubscriptionUpdated:
		var s stripe.Subscription
		if err := json.Unmarshal(env.Object, &s); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, env.Type, err)
		}
		sub, plan := subscriptionFromStripe(&s)
		return SubscriptionChanged{
			Created:      env.Type == TypeSubscriptionCreated,
			Subscription: sub,
			PlanName:     plan,
		}, nil

	case TypeSubscriptionDeleted:
		var s stripe.Subscription
		if err := json.Unmarshal(env.Object, &s); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, env.Type, err)
		}
		return SubscriptionDeleted{SubscriptionID: s.ID}, nil

	case TypeInvoicePaymentFailed, TypeInvoicePaymentSucceeded:
		var inv stripe.Invoice
		if err := json.Unmarshal(env.Object, &inv); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, env.Type, err)
		}
		var subID string
		if inv.Subscription != nil {
			subID = inv.Subscription.ID
		}
		if env.Type == TypeInvoicePaymentFailed {
			return InvoicePaymentFailed{SubscriptionID: subID}, nil
		}
		return InvoicePaymentSucceeded{SubscriptionID: subID}, nil

	case TypeCustomerDeleted:
		var c stripe.Customer
		if err := json.Unmarshal(env.Object, &c); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, env.Type, err)
		}
		return CustomerDeleted{CustomerID: c.ID, UserID: c.Metadata[MetadataUserID]}, nil

	default:
		return Unrecognized{Type: env.Type}, nil
	}
}

func subscriptionFromStripe(s *stripe.Subscription) (models.Subscription, string) {
	sub := models.Subscription{
		ID:                 s.ID,
		UserID:             s.Metadata[MetadataUserID],
		Status:             models.NormalizeStatus(string(s.Status)),
		CurrentPeriodStart: unix(s.CurrentPeriodStart),
		CurrentPeriodEnd:   unix(s.CurrentPeriodEnd),
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
	}
	if s.TrialEnd != 0 {
		t := unix(s.TrialEnd)
		sub.TrialEnd = &t
	}

	plan := DefaultPlanName
	if s.Items != nil && len(s.Items.Data) > 0 && s.Items.Data[0].Price != nil {
		price := s.Items.Data[0].Price
		sub.PriceID = price.ID
		if price.Nickname != "" {
			plan = price.Nickname
		}
	}
	return sub, plan
}

func unix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
