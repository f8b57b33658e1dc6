package login

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/workflow-saas/internal/http/response"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	args := m.Called(ctx, email, password)
	user, _ := args.Get(1).(*models.User)
	return args.String(0), user, args.Error(2)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestLoginHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		setupMock      func(*AuthServiceMock)
		wantStatusCode int
		wantToken      string
		wantError      string
	}{
		{
			name:        "valid login",
			requestBody: Request{Email: "user1@example.com", Password: "password123"},
			setupMock: func(m *AuthServiceMock) {
				m.On("Login", mock.Anything, "user1@example.com", "password123").
					Return("tok", &models.User{ID: "u1", Email: "user1@example.com"}, nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantToken:      "tok",
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
		},
		{
			name:           "validation error - missing password",
			requestBody:    Request{Email: "user1@example.com"},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "field Password is a required field",
		},
		{
			name:        "wrong password",
			requestBody: Request{Email: "user1@example.com", Password: "wrong"},
			setupMock: func(m *AuthServiceMock) {
				m.On("Login", mock.Anything, "user1@example.com", "wrong").
					Return("", nil, models.ErrInvalidCredentials).Once()
			},
			wantStatusCode: http.StatusUnauthorized,
			wantError:      models.ErrInvalidCredentials.Error(),
		},
		{
			name:        "service failure",
			requestBody: Request{Email: "user1@example.com", Password: "password123"},
			setupMock: func(m *AuthServiceMock) {
				m.On("Login", mock.Anything, mock.Anything, mock.Anything).
					Return("", nil, errors.New("db down")).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
			wantError:      response.InternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(AuthServiceMock)
			if tt.setupMock != nil {
				tt.setupMock(svc)
			}

			var bodyBytes []byte
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				var err error
				bodyBytes, err = json.Marshal(v)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(bodyBytes))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "test-request-id"))
			rec := httptest.NewRecorder()

			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var resp response.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			if tt.wantError != "" {
				assert.Equal(t, response.StatusError, resp.Status)
				assert.Equal(t, tt.wantError, resp.Error)
			} else {
				assert.Equal(t, response.StatusOK, resp.Status)
				data, ok := resp.Data.(map[string]any)
				require.True(t, ok)
				assert.Equal(t, tt.wantToken, data["token"])
			}
			svc.AssertExpectations(t)
		})
	}
}
