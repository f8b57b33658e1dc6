package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/workflow-saas/internal/audit"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
	"github.com/magabrotheeeer/workflow-saas/internal/paymentprovider"
)

type ManagerRepoMock struct{ mock.Mock }

func (m *ManagerRepoMock) GetUser(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *ManagerRepoMock) LinkCustomer(ctx context.Context, userID, customerID string) error {
	return m.Called(ctx, userID, customerID).Error(0)
}

func (m *ManagerRepoMock) LatestSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(*models.Subscription)
	return s, args.Error(1)
}

func (m *ManagerRepoMock) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error {
	return m.Called(ctx, subscriptionID, cancel).Error(0)
}

func (m *ManagerRepoMock) UpdateSubscriptionStatus(ctx context.Context, subscriptionID string, status models.SubscriptionStatus) (int64, error) {
	args := m.Called(ctx, subscriptionID, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ManagerRepoMock) UpdateSubscriptionPrice(ctx context.Context, subscriptionID, priceID string) error {
	return m.Called(ctx, subscriptionID, priceID).Error(0)
}

func (m *ManagerRepoMock) InsertAudit(ctx context.Context, e models.AuditEntry) error {
	return m.Called(ctx, e).Error(0)
}

type ProviderMock struct{ mock.Mock }

func (m *ProviderMock) FindOrCreateCustomer(ctx context.Context, email, name, userID string) (string, error) {
	args := m.Called(ctx, email, name, userID)
	return args.String(0), args.Error(1)
}

func (m *ProviderMock) CreateCheckoutSession(ctx context.Context, p paymentprovider.CheckoutParams) (*paymentprovider.CheckoutSession, error) {
	args := m.Called(ctx, p)
	s, _ := args.Get(0).(*paymentprovider.CheckoutSession)
	return s, args.Error(1)
}

func (m *ProviderMock) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	args := m.Called(ctx, customerID, returnURL)
	return args.String(0), args.Error(1)
}

func (m *ProviderMock) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error {
	return m.Called(ctx, subscriptionID, cancel).Error(0)
}

func (m *ProviderMock) CancelNow(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *ProviderMock) ChangePrice(ctx context.Context, subscriptionID, priceID string) error {
	return m.Called(ctx, subscriptionID, priceID).Error(0)
}

var testTiers = models.PlanTiers{StarterPriceID: "price_starter", ProPriceID: "price_pro", EnterprisePriceID: "price_enterprise"}

func newTestManager() (*Manager, *ManagerRepoMock, *ProviderMock) {
	repo := new(ManagerRepoMock)
	provider := new(ProviderMock)
	repo.On("InsertAudit", mock.Anything, mock.Anything).Return(nil).Maybe()
	m := NewManager(newNoopLogger(), repo, provider, audit.NewWriter(repo, newNoopLogger()), ManagerConfig{
		Tiers:     testTiers,
		AppURL:    "https://app.example",
		TrialDays: 14,
	})
	return m, repo, provider
}

func TestManager_Summary(t *testing.T) {
	t.Run("нет подписки", func(t *testing.T) {
		m, repo, _ := newTestManager()
		repo.On("LatestSubscription", mock.Anything, "user-1").Return(nil, models.ErrNoSubscription)

		sub, plan, err := m.Summary(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Nil(t, sub)
		assert.Equal(t, models.PlanFree, plan)
	})

	t.Run("есть подписка", func(t *testing.T) {
		m, repo, _ := newTestManager()
		repo.On("LatestSubscription", mock.Anything, "user-1").
			Return(&models.Subscription{ID: "sub_1", PriceID: "price_enterprise"}, nil)

		sub, plan, err := m.Summary(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, "sub_1", sub.ID)
		assert.Equal(t, models.PlanEnterprise, plan)
	})

	t.Run("ошибка хранилища", func(t *testing.T) {
		m, repo, _ := newTestManager()
		repo.On("LatestSubscription", mock.Anything, "user-1").Return(nil, errors.New("db down"))

		_, _, err := m.Summary(context.Background(), "user-1")
		assert.Error(t, err)
	})
}

func TestManager_Manage(t *testing.T) {
	ctx := context.Background()

	t.Run("cancel", func(t *testing.T) {
		m, repo, provider := newTestManager()
		repo.On("LatestSubscription", mock.Anything, "user-1").Return(&models.Subscription{ID: "sub_1", Status: models.StatusActive}, nil)
		provider.On("SetCancelAtPeriodEnd", mock.Anything, "sub_1", true).Return(nil)
		repo.On("SetCancelAtPeriodEnd", mock.Anything, "sub_1", true).Return(nil)

		sub, err := m.Manage(ctx, "user-1", models.ActionCancel, "", "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, sub.CancelAtPeriodEnd)
		provider.AssertExpectations(t)
		repo.AssertCalled(t, "InsertAudit", mock.Anything, mock.MatchedBy(func(e models.AuditEntry) bool {
			return e.Action == "subscription.cancel" && e.EntityID == "sub_1"
		}))
	})

	t.Run("cancel_immediately", func(t *testing.T) {
		m, repo, provider := newTestManager()
		repo.On("LatestSubscription", mock.Anything, "user-1").Return(&models.Subscription{ID: "sub_1", Status: models.StatusActive}, nil)
		provider.On("CancelNow", mock.Anything, "sub_1").Return(nil)
		repo.On("UpdateSubscriptionStatus", mock.Anything, "sub_1", models.StatusCanceled).Return(int64(1), nil)

		sub, err := m.Manage(ctx, "user-1", models.ActionCancelImmediately, "", "")
		require.NoError(t, err)
		assert.Equal(t, models.StatusCanceled, sub.Status)
	})

	t.Run("reactivate", func(t *testing.T) {
		m, repo, provider := newTestManager()
		repo.On("LatestSubscription", mock.Anything, "user-1").Return(&models.Subscription{ID: "sub_1", CancelAtPeriodEnd: true}, nil)
		provider.On("SetCancelAtPeriodEnd", mock.Anything, "sub_1", false).Return(nil)
		repo.On("SetCancelAtPeriodEnd", mock.Anything, "sub_1", false).Return(nil)

		sub, err := m.Manage(ctx, "user-1", models.ActionReactivate, "", "")
		require.NoError(t, err)
		assert.False(t, sub.CancelAtPeriodEnd)
	})

	t.Run("reactivate без запланированной отмены", func(t *testing.T) {
		m, repo, provider := newTestManager()
		repo.On("LatestSubscription", mock.Anything, "user-1").Return(&models.Subscription{ID: "sub_1"}, nil)

		_, err := m.Manage(ctx, "user-1", models.ActionReactivate, "", "")
		assert.ErrorIs(t, err, models.ErrNotScheduledToCancel)
		provider.AssertNotCalled(t, "SetCancelAtPeriodEnd", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("change_plan", func(t *testing.T) {
		m, repo, provider := newTestManager()
		repo.On("LatestSubscription", mock.Anything, "user-1").Return(&models.Subscription{ID: "sub_1", PriceID: "price_starter"}, nil)
		provider.On("ChangePrice", mock.Anything, "sub_1", "price_pro").Return(nil)
		repo.On("UpdateSubscriptionPrice", mock.Anything, "sub_1", "price_pro").Return(nil)

		sub, err := m.Manage(ctx, "user-1", models.ActionChangePlan, "price_pro", "")
		require.NoError(t, err)
		assert.Equal(t, "price_pro", sub.PriceID)
	})

	t.Run("change_plan без цены", func(t *testing.T) {
		m, repo, _ := newTestManager()

		_, err := m.Manage(ctx, "user-1", models.ActionChangePlan, "", "")
		assert.ErrorIs(t, err, models.ErrPriceRequired)
		repo.AssertNotCalled(t, "LatestSubscription", mock.Anything, mock.Anything)
	})

	t.Run("нет подписки", func(t *testing.T) {
		m, repo, _ := newTestManager()
		repo.On("LatestSubscription", mock.Anything, "user-1").Return(nil, models.ErrNoSubscription)

		_, err := m.Manage(ctx, "user-1", models.ActionCancel, "", "")
		assert.ErrorIs(t, err, models.ErrNoSubscription)
	})

	t.Run("ошибка провайдера не меняет локальное состояние", func(t *testing.T) {
		m, repo, provider := newTestManager()
		repo.On("LatestSubscription", mock.Anything, "user-1").Return(&models.Subscription{ID: "sub_1"}, nil)
		provider.On("CancelNow", mock.Anything, "sub_1").Return(errors.New("provider unavailable"))

		_, err := m.Manage(ctx, "user-1", models.ActionCancelImmediately, "", "")
		assert.Error(t, err)
		repo.AssertNotCalled(t, "UpdateSubscriptionStatus", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestManager_Checkout(t *testing.T) {
	ctx := context.Background()

	t.Run("создаёт покупателя и сессию", func(t *testing.T) {
		m, repo, provider := newTestManager()
		repo.On("GetUser", mock.Anything, "user-1").Return(&models.User{ID: "user-1", Email: "a@example.com", Name: "Ann"}, nil)
		provider.On("FindOrCreateCustomer", mock.Anything, "a@example.com", "Ann", "user-1").Return("cus_1", nil)
		repo.On("LinkCustomer", mock.Anything, "user-1", "cus_1").Return(nil)
		provider.On("CreateCheckoutSession", mock.Anything, paymentprovider.CheckoutParams{
			CustomerID: "cus_1",
			UserID:     "user-1",
			PriceID:    "price_pro",
			SuccessURL: "https://app.example/dashboard/billing?success=true",
			CancelURL:  "https://app.example/dashboard/billing?canceled=true",
			TrialDays:  14,
		}).Return(&paymentprovider.CheckoutSession{ID: "cs_1", URL: "https://checkout"}, nil)

		s, err := m.Checkout(ctx, "user-1", models.PlanPro, "")
		require.NoError(t, err)
		assert.Equal(t, "cs_1", s.ID)
		provider.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("уже привязанный покупатель", func(t *testing.T) {
		m, repo, provider := newTestManager()
		cus := "cus_existing"
		repo.On("GetUser", mock.Anything, "user-1").Return(&models.User{ID: "user-1", StripeCustomerID: &cus}, nil)
		provider.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p paymentprovider.CheckoutParams) bool {
			return p.CustomerID == "cus_existing" && p.PriceID == "price_starter"
		})).Return(&paymentprovider.CheckoutSession{ID: "cs_2"}, nil)

		_, err := m.Checkout(ctx, "user-1", models.PlanStarter, "")
		require.NoError(t, err)
		provider.AssertNotCalled(t, "FindOrCreateCustomer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("неизвестный план", func(t *testing.T) {
		m, repo, _ := newTestManager()
		_, err := m.Checkout(ctx, "user-1", models.Plan("platinum"), "")
		assert.ErrorIs(t, err, models.ErrUnknownPlan)
		repo.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
	})
}

func TestManager_Portal(t *testing.T) {
	m, repo, provider := newTestManager()
	cus := "cus_1"
	repo.On("GetUser", mock.Anything, "user-1").Return(&models.User{ID: "user-1", StripeCustomerID: &cus}, nil)
	provider.On("CreatePortalSession", mock.Anything, "cus_1", "https://app.example/dashboard/billing").Return("https://portal", nil)

	url, err := m.Portal(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "https://portal", url)
}
