package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/workflow-saas/internal/http/middlewarectx"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
	"github.com/magabrotheeeer/workflow-saas/internal/paymentprovider"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Checkout(ctx context.Context, userID string, plan models.Plan, ip string) (*paymentprovider.CheckoutSession, error) {
	args := m.Called(ctx, userID, plan, ip)
	s, _ := args.Get(0).(*paymentprovider.CheckoutSession)
	return s, args.Error(1)
}

func TestCheckoutHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		body       string
		setupMock  func(*ServiceMock)
		wantStatus int
		wantBody   string
	}{
		{
			name: "сессия создана",
			body: `{"plan_id":"pro"}`,
			setupMock: func(m *ServiceMock) {
				m.On("Checkout", mock.Anything, "u1", models.PlanPro, "unknown").
					Return(&paymentprovider.CheckoutSession{ID: "cs_1", URL: "https://pay.example/cs_1"}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"url":"https://pay.example/cs_1"`,
		},
		{
			name: "неизвестный тариф",
			body: `{"plan_id":"gold"}`,
			setupMock: func(m *ServiceMock) {
				m.On("Checkout", mock.Anything, "u1", models.Plan("gold"), "unknown").
					Return(nil, models.ErrUnknownPlan).Once()
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   models.ErrUnknownPlan.Error(),
		},
		{
			name:       "без тарифа",
			body:       `{}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "field PlanID is a required field",
		},
		{
			name: "провайдер недоступен",
			body: `{"plan_id":"starter"}`,
			setupMock: func(m *ServiceMock) {
				m.On("Checkout", mock.Anything, "u1", models.PlanStarter, "unknown").
					Return(nil, errors.New("stripe: 503")).Once()
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.setupMock != nil {
				tt.setupMock(svc)
			}
			req := httptest.NewRequest(http.MethodPost, "/billing/checkout", strings.NewReader(tt.body))
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, "u1"))
			rec := httptest.NewRecorder()

			New(logger, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}
