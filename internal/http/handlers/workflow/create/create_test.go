package create

import (
	"context"
	"encoding/json"
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
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, userID, name, description string, body json.RawMessage, ip string) (*models.Workflow, error) {
	args := m.Called(ctx, userID, name, description, body, ip)
	if res := args.Get(0); res != nil {
		return res.(*models.Workflow), args.Error(1)
	}
	return nil, args.Error(1)
}

type accessStub struct{ access models.Access }

func (a accessStub) Check(context.Context, string) models.Access { return a.access }

func TestCreateHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "процесс создан",
			body: `{"name":"Deploy","description":"ship it","workflow_json":{"steps":[1,2]}}`,
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "u1", "Deploy", "ship it", json.RawMessage(`{"steps":[1,2]}`), "unknown").
					Return(&models.Workflow{ID: "w1", Name: "Deploy", Status: models.WorkflowDraft}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"status":"draft"`,
		},
		{
			name:           "без имени",
			body:           `{"description":"x"}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   "field Name is a required field",
		},
		{
			name: "ошибка хранилища",
			body: `{"name":"Deploy"}`,
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "u1", "Deploy", "", mock.Anything, "unknown").
					Return(nil, errors.New("db error")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/workflows", strings.NewReader(tt.body))
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, "u1"))
			w := httptest.NewRecorder()
			New(logger, svc).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestCreateHandler_GatedByEntitlement(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := new(MockService)
	gate := middlewarectx.RequireEntitlement(logger, accessStub{models.Access{
		HasAccess: false,
		Plan:      models.PlanFree,
		Reason:    "no active subscription",
	}})

	req := httptest.NewRequest(http.MethodPost, "/workflows", strings.NewReader(`{"name":"Deploy"}`))
	req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, "u1"))
	w := httptest.NewRecorder()
	gate(New(logger, svc)).ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "no active subscription")
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
