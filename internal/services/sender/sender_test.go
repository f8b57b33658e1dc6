package services

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/workflow-saas/internal/lib/smtp"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect() (smtp.Client, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) From() string {
	args := m.Called()
	return args.String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	args := m.Called(from)
	return args.Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	args := m.Called(to)
	return args.Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSMTPClient) Quit() error {
	args := m.Called()
	return args.Error(0)
}

type MockSMTPWriter struct {
	mock.Mock
}

func (m *MockSMTPWriter) Write(p []byte) (n int, err error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockSMTPWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func expectDelivery(tr *MockTransport, rcpt string, buf *bytes.Buffer) {
	mockClient := new(MockSMTPClient)
	mockWriter := new(MockSMTPWriter)

	tr.On("From").Return("sender@example.com")
	tr.On("Connect").Return(mockClient, nil).Once()
	mockClient.On("Mail", "sender@example.com").Return(nil).Once()
	mockClient.On("Rcpt", rcpt).Return(nil).Once()
	mockClient.On("Data").Return(mockWriter, nil).Once()
	mockWriter.On("Write", mock.AnythingOfType("[]uint8")).
		Run(func(args mock.Arguments) { buf.Write(args.Get(0).([]byte)) }).
		Return(100, nil).Once()
	mockWriter.On("Close").Return(nil).Once()
	mockClient.On("Quit").Return(nil).Once()
	mockClient.On("Close").Return(nil).Once()
}

func TestSenderService_Send(t *testing.T) {
	tests := []struct {
		name        string
		body        []byte
		deliver     bool
		connectErr  error
		wantErr     error
		wantInEmail []string
	}{
		{
			name:        "welcome",
			body:        []byte(`{"kind":"welcome","email":"test@example.com","name":"Neo"}`),
			deliver:     true,
			wantInEmail: []string{"To: test@example.com", "Subject: Welcome to WorkflowDebugger", "Hi Neo"},
		},
		{
			name:        "password reset",
			body:        []byte(`{"kind":"password_reset","email":"test@example.com","token":"abc-def"}`),
			deliver:     true,
			wantInEmail: []string{"https://app.example/reset-password?token=abc-def", "Hi there"},
		},
		{
			name:        "subscription created",
			body:        []byte(`{"kind":"subscription_created","email":"test@example.com","plan_name":"Pro Monthly"}`),
			deliver:     true,
			wantInEmail: []string{"Your Pro Monthly plan is now active"},
		},
		{
			name:        "payment failed",
			body:        []byte(`{"kind":"payment_failed","email":"test@example.com"}`),
			deliver:     true,
			wantInEmail: []string{"Subject: Payment failed", "https://app.example/dashboard/billing"},
		},
		{
			name:    "invalid JSON",
			body:    []byte(`invalid json`),
			wantErr: ErrMalformed,
		},
		{
			name:    "unknown kind",
			body:    []byte(`{"kind":"newsletter","email":"test@example.com"}`),
			wantErr: ErrMalformed,
		},
		{
			name:    "no recipient",
			body:    []byte(`{"kind":"welcome"}`),
			wantErr: ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockTransport)
			var buf bytes.Buffer
			if tt.deliver {
				expectDelivery(transport, "test@example.com", &buf)
			}
			service := NewSenderService(newNoopLogger(), transport, "WorkflowDebugger", "https://app.example/")

			err := service.Send(tt.body)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				transport.AssertNotCalled(t, "Connect")
				return
			}
			require.NoError(t, err)
			for _, want := range tt.wantInEmail {
				assert.Contains(t, buf.String(), want)
			}
			transport.AssertExpectations(t)
		})
	}
}

func TestSenderService_Send_ConnectionError(t *testing.T) {
	transport := new(MockTransport)
	transport.On("From").Return("sender@example.com")
	transport.On("Connect").Return(nil, errors.New("connection error")).Once()

	service := NewSenderService(newNoopLogger(), transport, "WorkflowDebugger", "https://app.example")
	err := service.Send([]byte(`{"kind":"welcome","email":"test@example.com"}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "connection error")
}

func TestSenderService_Render_AllKinds(t *testing.T) {
	service := NewSenderService(newNoopLogger(), new(MockTransport), "App", "https://app.example")
	kinds := []models.NotificationKind{
		models.NotificationWelcome,
		models.NotificationPasswordReset,
		models.NotificationSubscriptionCreated,
		models.NotificationPaymentFailed,
	}
	for _, k := range kinds {
		subject, body, err := service.Render(models.Notification{Kind: k, Email: "x@example.com"})
		require.NoError(t, err, k)
		assert.NotEmpty(t, subject)
		assert.NotEmpty(t, body)
	}
}
