// Package paymentprovider обёртка над SDK платёжного провайдера (Stripe):
// проверка подписи вебхуков, покупатели, сессии оплаты и управление подписками.
package paymentprovider

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/magabrotheeeer/workflow-saas/internal/billingevent"
)

// Client клиент провайдера.
type Client struct {
	api *client.API
}

// NewClient создаёт клиент с секретным ключом. backends == nil означает боевые адреса провайдера.
func NewClient(secretKey string, backends *stripe.Backends) *Client {
	return &Client{api: client.New(secretKey, backends)}
}

// CheckoutParams параметры сессии оформления подписки.
type CheckoutParams struct {
	CustomerID string
	UserID     string
	PriceID    string
	SuccessURL string
	CancelURL  string
	TrialDays  int64
}

// CheckoutSession созданная сессия оплаты.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// FindOrCreateCustomer ищет покупателя по email, иначе создаёт нового.
// Найденному покупателю без ссылки на пользователя проставляет её в метаданных,
// существующая ссылка не переписывается.
func (c *Client) FindOrCreateCustomer(ctx context.Context, email, name, userID string) (string, error) {
	const op = "paymentprovider.FindOrCreateCustomer"

	listParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)

	it := c.api.Customers.List(listParams)
	if it.Next() {
		cust := it.Customer()
		if cust.Metadata[billingevent.MetadataUserID] == "" {
			upd := &stripe.CustomerParams{}
			upd.Context = ctx
			upd.AddMetadata(billingevent.MetadataUserID, userID)
			if _, err := c.api.Customers.Update(cust.ID, upd); err != nil {
				return "", fmt.Errorf("%s: update metadata: %w", op, err)
			}
		}
		return cust.ID, nil
	}
	if err := it.Err(); err != nil {
		return "", fmt.Errorf("%s: list: %w", op, err)
	}

	params := &stripe.CustomerParams{Email: stripe.String(email)}
	if name != "" {
		params.Name = stripe.String(name)
	}
	params.Context = ctx
	params.AddMetadata(billingevent.MetadataUserID, userID)
	cust, err := c.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: create: %w", op, err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession создаёт сессию оформления подписки с пробным периодом.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	const op = "paymentprovider.CreateCheckoutSession"

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(p.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:               stripe.String(p.SuccessURL),
		CancelURL:                stripe.String(p.CancelURL),
		AllowPromotionCodes:      stripe.Bool(true),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionAuto)),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{billingevent.MetadataUserID: p.UserID},
		},
	}
	if p.TrialDays > 0 {
		params.SubscriptionData.TrialPeriodDays = stripe.Int64(p.TrialDays)
	}
	params.Context = ctx
	params.AddMetadata(billingevent.MetadataUserID, p.UserID)

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// CreatePortalSession возвращает ссылку на портал управления оплатой.
func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	const op = "paymentprovider.CreatePortalSession"

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	s, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return s.URL, nil
}

// SetCancelAtPeriodEnd планирует отмену в конце периода или снимает её.
func (c *Client) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error {
	const op = "paymentprovider.SetCancelAtPeriodEnd"

	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(cancel)}
	params.Context = ctx
	if _, err := c.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CancelNow отменяет подписку немедленно.
func (c *Client) CancelNow(ctx context.Context, subscriptionID string) error {
	const op = "paymentprovider.CancelNow"

	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := c.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ChangePrice меняет цену первой позиции подписки с пересчётом остатка.
func (c *Client) ChangePrice(ctx context.Context, subscriptionID, priceID string) error {
	const op = "paymentprovider.ChangePrice"

	getParams := &stripe.SubscriptionParams{}
	getParams.Context = ctx
	sub, err := c.api.Subscriptions.Get(subscriptionID, getParams)
	if err != nil {
		return fmt.Errorf("%s: get: %w", op, err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return fmt.Errorf("%s: subscription %s has no items", op, subscriptionID)
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{ID: stripe.String(sub.Items.Data[0].ID), Price: stripe.String(priceID)},
		},
		ProrationBehavior: stripe.String("create_prorations"),
	}
	params.Context = ctx
	if _, err = c.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("%s: update: %w", op, err)
	}
	return nil
}
