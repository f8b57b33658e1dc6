package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/workflow-saas/internal/audit"
	customjwt "github.com/magabrotheeeer/workflow-saas/internal/lib/jwt"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/password"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
	services "github.com/magabrotheeeer/workflow-saas/internal/services/auth"
)

// Мок для UserRepository
type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	args := m.Called(ctx, user)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error {
	return m.Called(ctx, email, passwordHash).Error(0)
}

func (m *UserRepoMock) CreateResetToken(ctx context.Context, t models.ResetToken) error {
	return m.Called(ctx, t).Error(0)
}

func (m *UserRepoMock) FindResetToken(ctx context.Context, token string, now time.Time) (*models.ResetToken, error) {
	args := m.Called(ctx, token, now)
	t, _ := args.Get(0).(*models.ResetToken)
	return t, args.Error(1)
}

func (m *UserRepoMock) DeleteResetTokens(ctx context.Context, identifier string) error {
	return m.Called(ctx, identifier).Error(0)
}

func (m *UserRepoMock) InsertAudit(ctx context.Context, e models.AuditEntry) error {
	return m.Called(ctx, e).Error(0)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) Publish(ctx context.Context, n models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService() (*services.AuthService, *UserRepoMock, *NotifierMock, *customjwt.MakerImpl) {
	repo := new(UserRepoMock)
	repo.On("InsertAudit", mock.Anything, mock.Anything).Return(nil).Maybe()
	notifier := new(NotifierMock)
	maker := customjwt.NewJWTMaker("test-secret", time.Hour)
	s := services.NewAuthService(newNoopLogger(), repo, maker, notifier, audit.NewWriter(repo, newNoopLogger()))
	return s, repo, notifier, maker
}

func TestAuthService_Signup(t *testing.T) {
	s, repo, notifier, _ := newTestService()

	repo.On("CreateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
		return u.ID != "" &&
			u.Email == "new@example.com" &&
			u.Name == "Neo" &&
			password.CompareHash(u.PasswordHash, "s3cretpass") == nil
	})).Return(&models.User{ID: "user-1", Email: "new@example.com", Name: "Neo"}, nil)
	notifier.On("Publish", mock.Anything, models.Notification{
		Kind: models.NotificationWelcome, Email: "new@example.com", Name: "Neo",
	}).Return(errors.New("broker down"))

	user, err := s.Signup(context.Background(), "  New@Example.com ", "s3cretpass", " Neo ", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestAuthService_Signup_Duplicate(t *testing.T) {
	s, repo, notifier, _ := newTestService()
	repo.On("CreateUser", mock.Anything, mock.Anything).Return(nil, models.ErrEmailTaken)

	_, err := s.Signup(context.Background(), "dup@example.com", "s3cretpass", "", "")
	assert.ErrorIs(t, err, models.ErrEmailTaken)
	notifier.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestAuthService_Login(t *testing.T) {
	hash, err := password.GetHash("correct-horse")
	require.NoError(t, err)

	tests := []struct {
		name     string
		setup    func(repo *UserRepoMock)
		password string
		wantErr  error
	}{
		{
			name: "успешный вход",
			setup: func(repo *UserRepoMock) {
				repo.On("GetUserByEmail", mock.Anything, "a@example.com").
					Return(&models.User{ID: "user-1", Email: "a@example.com", PasswordHash: hash}, nil)
			},
			password: "correct-horse",
		},
		{
			name: "неверный пароль",
			setup: func(repo *UserRepoMock) {
				repo.On("GetUserByEmail", mock.Anything, "a@example.com").
					Return(&models.User{ID: "user-1", Email: "a@example.com", PasswordHash: hash}, nil)
			},
			password: "wrong-horse",
			wantErr:  models.ErrInvalidCredentials,
		},
		{
			name: "неизвестный email",
			setup: func(repo *UserRepoMock) {
				repo.On("GetUserByEmail", mock.Anything, "a@example.com").Return(nil, models.ErrUserNotFound)
			},
			password: "correct-horse",
			wantErr:  models.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, repo, _, maker := newTestService()
			tt.setup(repo)

			token, user, err := s.Login(context.Background(), "A@example.com", tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, token)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "user-1", user.ID)

			claims, err := maker.ParseToken(token)
			require.NoError(t, err)
			assert.Equal(t, "user-1", claims.UserID())
			assert.Equal(t, "a@example.com", claims.Email)

			parsed, err := s.ValidateToken(token)
			require.NoError(t, err)
			assert.Equal(t, "user-1", parsed.UserID())
		})
	}
}

func TestAuthService_RequestPasswordReset(t *testing.T) {
	t.Run("известный email", func(t *testing.T) {
		s, repo, notifier, _ := newTestService()
		repo.On("GetUserByEmail", mock.Anything, "a@example.com").
			Return(&models.User{ID: "user-1", Email: "a@example.com", Name: "Ann"}, nil)

		var saved models.ResetToken
		repo.On("CreateResetToken", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { saved = args.Get(1).(models.ResetToken) }).
			Return(nil)
		notifier.On("Publish", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
			return n.Kind == models.NotificationPasswordReset && n.Token != "" && n.Email == "a@example.com"
		})).Return(nil)

		require.NoError(t, s.RequestPasswordReset(context.Background(), "A@Example.com", ""))

		assert.Equal(t, "a@example.com", saved.Identifier)
		assert.Len(t, strings.Split(saved.Token, "-"), 10)
		assert.WithinDuration(t, time.Now().Add(services.ResetTokenTTL), saved.Expires, 5*time.Second)
		notifier.AssertExpectations(t)
	})

	t.Run("неизвестный email", func(t *testing.T) {
		s, repo, notifier, _ := newTestService()
		repo.On("GetUserByEmail", mock.Anything, "ghost@example.com").Return(nil, models.ErrUserNotFound)

		require.NoError(t, s.RequestPasswordReset(context.Background(), "ghost@example.com", ""))
		repo.AssertNotCalled(t, "CreateResetToken", mock.Anything, mock.Anything)
		notifier.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})
}

func TestAuthService_ConfirmPasswordReset(t *testing.T) {
	t.Run("действующий токен", func(t *testing.T) {
		s, repo, _, _ := newTestService()
		repo.On("FindResetToken", mock.Anything, "tok", mock.Anything).
			Return(&models.ResetToken{Identifier: "a@example.com", Token: "tok"}, nil)
		repo.On("UpdatePasswordByEmail", mock.Anything, "a@example.com", mock.MatchedBy(func(h string) bool {
			return password.CompareHash(h, "brand-new-pass") == nil
		})).Return(nil)
		repo.On("DeleteResetTokens", mock.Anything, "a@example.com").Return(nil)

		require.NoError(t, s.ConfirmPasswordReset(context.Background(), "tok", "brand-new-pass", ""))
		repo.AssertExpectations(t)
	})

	t.Run("недействительный токен", func(t *testing.T) {
		s, repo, _, _ := newTestService()
		repo.On("FindResetToken", mock.Anything, "bad", mock.Anything).Return(nil, models.ErrInvalidResetToken)

		err := s.ConfirmPasswordReset(context.Background(), "bad", "brand-new-pass", "")
		assert.ErrorIs(t, err, models.ErrInvalidResetToken)
		repo.AssertNotCalled(t, "UpdatePasswordByEmail", mock.Anything, mock.Anything, mock.Anything)
	})
}
