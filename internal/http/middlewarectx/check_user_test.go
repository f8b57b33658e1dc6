package middlewarectx_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/workflow-saas/internal/http/middlewarectx"
	"github.com/magabrotheeeer/workflow-saas/internal/http/response"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

type AccessCheckerMock struct {
	mock.Mock
}

func (m *AccessCheckerMock) Check(ctx context.Context, userID string) models.Access {
	return m.Called(ctx, userID).Get(0).(models.Access)
}

func TestRequireEntitlement(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		access     *models.Access
		wantStatus int
		wantCalled bool
		wantError  string
	}{
		{
			name:       "нет пользователя в контексте",
			wantStatus: http.StatusUnauthorized,
			wantError:  "user identification missing",
		},
		{
			name:       "нет подписки",
			userID:     "u1",
			access:     &models.Access{HasAccess: false, Plan: models.PlanFree, Reason: "no active subscription"},
			wantStatus: http.StatusForbidden,
			wantError:  "no active subscription",
		},
		{
			name:       "активная подписка",
			userID:     "u1",
			access:     &models.Access{HasAccess: true, Plan: models.PlanPro},
			wantStatus: http.StatusOK,
			wantCalled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := new(AccessCheckerMock)
			if tt.access != nil {
				checker.On("Check", mock.Anything, tt.userID).Return(*tt.access).Once()
			}
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/workflows", nil)
			if tt.userID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, tt.userID))
			}
			rec := httptest.NewRecorder()
			middlewarectx.RequireEntitlement(newNoopLogger(), checker)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCalled, called)
			if tt.wantError != "" {
				var body response.ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.wantError, body.Error)
			}
			checker.AssertExpectations(t)
		})
	}
}
