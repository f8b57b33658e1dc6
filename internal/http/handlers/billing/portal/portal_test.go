package portal

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/workflow-saas/internal/http/middlewarectx"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Portal(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func TestPortalHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		url        string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"ссылка выдана", "https://billing.example/p/1", nil, http.StatusOK, `"url":"https://billing.example/p/1"`},
		{"пользователь удалён", "", models.ErrUserNotFound, http.StatusNotFound, models.ErrUserNotFound.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			svc.On("Portal", mock.Anything, "u1").Return(tt.url, tt.err).Once()

			req := httptest.NewRequest(http.MethodPost, "/billing/portal", nil)
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, "u1"))
			rec := httptest.NewRecorder()
			New(logger, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestPortalHandler_Unauthorized(t *testing.T) {
	rec := httptest.NewRecorder()
	New(slog.New(slog.NewTextHandler(io.Discard, nil)), new(ServiceMock)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/billing/portal", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
