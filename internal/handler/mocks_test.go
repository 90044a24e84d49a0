package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"hr-auth-server/config"
	"hr-auth-server/internal/handler"
	"hr-auth-server/internal/model"
	"hr-auth-server/internal/security"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, email, password string, name *string, meta model.ClientMeta) (*model.TokenPair, error) {
	args := m.Called(ctx, email, password, name, meta)
	pair, _ := args.Get(0).(*model.TokenPair)
	return pair, args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string, meta model.ClientMeta) (*model.TokenPair, error) {
	args := m.Called(ctx, email, password, meta)
	pair, _ := args.Get(0).(*model.TokenPair)
	return pair, args.Error(1)
}

func (m *MockAuthService) LoginWithGoogle(ctx context.Context, idToken string, meta model.ClientMeta) (*model.TokenPair, error) {
	args := m.Called(ctx, idToken, meta)
	pair, _ := args.Get(0).(*model.TokenPair)
	return pair, args.Error(1)
}

func (m *MockAuthService) LoginWithGoogleCode(ctx context.Context, code string, meta model.ClientMeta) (*model.TokenPair, error) {
	args := m.Called(ctx, code, meta)
	pair, _ := args.Get(0).(*model.TokenPair)
	return pair, args.Error(1)
}

func (m *MockAuthService) GoogleAuthURL(state string) string {
	return m.Called(state).String(0)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string, meta model.ClientMeta) (*model.TokenPair, error) {
	args := m.Called(ctx, refreshToken, meta)
	pair, _ := args.Get(0).(*model.TokenPair)
	return pair, args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, refreshToken string, meta model.ClientMeta) error {
	return m.Called(ctx, refreshToken, meta).Error(0)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) GetProfile(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

type stubHealth struct {
	err error
}

func (s stubHealth) HealthCheck(context.Context) error { return s.err }

// ===== ОБЩИЕ ХЕЛПЕРЫ =====

const (
	frontendURL = "https://hr.example.com"
	basePath    = "/api/v1"
)

var testCookies = handler.CookieSettings{
	Path:     basePath + "/auth",
	Secure:   true,
	SameSite: http.SameSiteStrictMode,
}

func testPair() *model.TokenPair {
	return &model.TokenPair{
		AccessToken:      "access-token",
		RefreshToken:     "refresh-token",
		CSRFToken:        "csrf-token",
		RefreshExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}
}

func newTestCodec(t *testing.T) *security.TokenCodec {
	t.Helper()
	codec, err := security.NewTokenCodec(&config.JWTConfig{
		AccessSecret:        "access-secret-access-secret-access-secret",
		RefreshSecret:       "refresh-secret-refresh-secret-refresh-secret",
		AccessTokenTTL:      "15m",
		RefreshTokenTTLDays: 7,
		Issuer:              "hr-auth-server",
	})
	require.NoError(t, err)
	return codec
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

var anyMeta = mock.AnythingOfType("model.ClientMeta")
