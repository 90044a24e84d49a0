package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"hr-auth-server/internal/audit"
	"hr-auth-server/internal/errs"
	"hr-auth-server/internal/model"
	"hr-auth-server/internal/security"
	"hr-auth-server/internal/service"
	"hr-auth-server/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const strongPassword = "Str0ng!Passw0rd"

type authHarness struct {
	svc       *service.AuthenticationService
	users     *memoryUsers
	tokens    *memoryTokens
	codec     *security.TokenCodec
	audit     *memoryAudit
	google    *MockIdentityVerifier
	exchanger *MockCodeExchanger
	cache     *MockCache
}

func newAuthHarness(t *testing.T) *authHarness {
	t.Helper()

	h := &authHarness{
		users:     newMemoryUsers(),
		tokens:    newMemoryTokens(),
		codec:     newTestCodec(t),
		audit:     &memoryAudit{},
		google:    new(MockIdentityVerifier),
		exchanger: new(MockCodeExchanger),
		cache:     new(MockCache),
	}
	h.svc = service.NewAuthenticationService(service.AuthenticationDeps{
		Users:     h.users,
		Tokens:    h.tokens,
		Codec:     h.codec,
		Sessions:  service.NewSessionIssuer(h.codec, h.tokens),
		Google:    h.google,
		Exchanger: h.exchanger,
		Cache:     h.cache,
		Audit:     h.audit,
		Log:       zap.NewNop(),
	})
	return h
}

func (h *authHarness) register(t *testing.T, email string) *model.TokenPair {
	t.Helper()
	pair, err := h.svc.Register(context.Background(), email, strongPassword, nil, testMeta)
	require.NoError(t, err)
	return pair
}

// ===== REGISTER / LOGIN =====

func TestRegisterThenLogin(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	name := "  Jane Doe "

	pair, err := h.svc.Register(ctx, "Jane@Example.com", strongPassword, &name, testMeta)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEmpty(t, pair.CSRFToken)

	user, err := h.users.FindByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.ProviderLocal, user.Provider)
	assert.False(t, user.EmailVerified)
	assert.Equal(t, model.DefaultRole, user.Role)
	assert.Equal(t, "Jane Doe", user.DisplayName())

	claims, err := h.codec.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, "jane@example.com", claims.Email)
	assert.Equal(t, "Jane Doe", claims.Name)

	loginPair, err := h.svc.Login(ctx, "  JANE@example.com", strongPassword, testMeta)
	require.NoError(t, err)

	claims, err = h.codec.VerifyAccess(loginPair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)

	refreshClaims, err := h.codec.VerifyRefresh(loginPair.RefreshToken)
	require.NoError(t, err)
	record, err := h.tokens.FindByHash(ctx, util.HashTokenID(refreshClaims.ID))
	require.NoError(t, err)
	assert.Equal(t, user.ID, record.UserID)
	require.NotNil(t, record.IPAddress)
	assert.Equal(t, "10.0.0.1", *record.IPAddress)

	// новая сессия = новое семейство
	first, _ := h.codec.VerifyRefresh(pair.RefreshToken)
	assert.NotEqual(t, first.FamilyID, refreshClaims.FamilyID)

	assert.Equal(t, []audit.EventType{audit.EventUserRegistered, audit.EventLoginSucceeded}, h.audit.types())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h := newAuthHarness(t)
	h.register(t, "jane@example.com")

	_, err := h.svc.Register(context.Background(), "JANE@Example.COM ", strongPassword, nil, testMeta)
	assert.ErrorIs(t, err, errs.ErrConflict)
	assert.Equal(t, 1, h.users.count())
}

func TestRegister_ConcurrentDuplicate(t *testing.T) {
	h := newAuthHarness(t)

	const workers = 4
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Register(context.Background(), "race@example.com", strongPassword, nil, testMeta)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, errs.ErrConflict)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, h.users.count())
}

func TestRegister_Validation(t *testing.T) {
	longName := strings.Repeat("я", 101)

	tests := []struct {
		name     string
		email    string
		password string
		userName *string
	}{
		{name: "слабый пароль", email: "a@example.com", password: "short1!A"},
		{name: "пароль без символа", email: "a@example.com", password: "Abcdefghijk1"},
		{name: "пустой email", email: "  ", password: strongPassword},
		{name: "email без @", email: "not-an-email", password: strongPassword},
		{name: "email с display name", email: "Jane <jane@example.com>", password: strongPassword},
		{name: "email без домена верхнего уровня", email: "jane@localhost", password: strongPassword},
		{name: "длинное имя", email: "a@example.com", password: strongPassword, userName: &longName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAuthHarness(t)
			_, err := h.svc.Register(context.Background(), tt.email, tt.password, tt.userName, testMeta)
			assert.ErrorIs(t, err, errs.ErrInvalidRequest)
			assert.Equal(t, 0, h.users.count())
		})
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	h.register(t, "jane@example.com")

	googleID := "google-sub"
	_, err := h.users.CreateUser(ctx, &model.User{
		ID: "google-only", Email: "oauth@example.com", Provider: model.ProviderGoogle,
		GoogleID: &googleID, EmailVerified: true, Role: model.DefaultRole,
	})
	require.NoError(t, err)

	_, errUnknown := h.svc.Login(ctx, "nobody@example.com", strongPassword, testMeta)
	_, errWrong := h.svc.Login(ctx, "jane@example.com", "Wr0ng!Password", testMeta)
	_, errNoHash := h.svc.Login(ctx, "oauth@example.com", strongPassword, testMeta)

	for _, err := range []error{errUnknown, errWrong, errNoHash} {
		assert.ErrorIs(t, err, errs.ErrInvalidCredentials)
		assert.Equal(t, errs.ErrInvalidCredentials.Error(), err.Error())
	}

	failed := 0
	for _, eventType := range h.audit.types() {
		if eventType == audit.EventLoginFailed {
			failed++
		}
	}
	assert.Equal(t, 3, failed)
}

func TestLogin_StoreUnavailable(t *testing.T) {
	users := new(MockUserRepository)
	svc := service.NewAuthenticationService(service.AuthenticationDeps{
		Users: users,
		Codec: newTestCodec(t),
	})

	users.On("FindByEmail", mock.Anything, "jane@example.com").Return(nil, errs.ErrServiceUnavailable)

	_, err := svc.Login(context.Background(), "jane@example.com", strongPassword, testMeta)
	assert.ErrorIs(t, err, errs.ErrServiceUnavailable)
	assert.NotErrorIs(t, err, errs.ErrUnauthorized)
	users.AssertExpectations(t)
}

// ===== REFRESH =====

func TestRefresh_RotatesAndDetectsReuse(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	first := h.register(t, "jane@example.com")

	second, err := h.svc.Refresh(ctx, first.RefreshToken, testMeta)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.CSRFToken, second.CSRFToken)

	firstClaims, _ := h.codec.VerifyRefresh(first.RefreshToken)
	secondClaims, err := h.codec.VerifyRefresh(second.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, firstClaims.FamilyID, secondClaims.FamilyID)

	old, err := h.tokens.FindByHash(ctx, util.HashTokenID(firstClaims.ID))
	require.NoError(t, err)
	assert.True(t, old.Revoked())
	require.NotNil(t, old.ReplacedByHash)
	assert.Equal(t, util.HashTokenID(secondClaims.ID), *old.ReplacedByHash)

	// повторное предъявление уже потраченного токена
	_, err = h.svc.Refresh(ctx, first.RefreshToken, testMeta)
	assert.ErrorIs(t, err, errs.ErrTokenReuse)
	assert.Equal(t, 0, h.tokens.activeInFamily(firstClaims.FamilyID))

	// и всё семейство больше не работает
	_, err = h.svc.Refresh(ctx, second.RefreshToken, testMeta)
	assert.ErrorIs(t, err, errs.ErrTokenReuse)

	assert.Contains(t, h.audit.types(), audit.EventTokenReuseDetected)
}

func TestRefresh_ConcurrentSingleWinner(t *testing.T) {
	h := newAuthHarness(t)
	pair := h.register(t, "jane@example.com")

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.svc.Refresh(context.Background(), pair.RefreshToken, testMeta)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else {
				failures = append(failures, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	for _, err := range failures {
		assert.True(t,
			errors.Is(err, errs.ErrRotationConflict) || errors.Is(err, errs.ErrTokenReuse),
			"неожиданная ошибка: %v", err)
		assert.ErrorIs(t, err, errs.ErrUnauthorized)
	}
}

func TestRefresh_InvalidTokens(t *testing.T) {
	h := newAuthHarness(t)
	pair := h.register(t, "jane@example.com")

	// подпись верна, но записи в хранилище нет
	orphan, _, err := h.codec.SignRefresh("user-x", "unknown-jti", "family-x")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "мусор", token: "not-a-jwt"},
		{name: "пустой", token: ""},
		{name: "access вместо refresh", token: pair.AccessToken},
		{name: "нет записи", token: orphan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Refresh(context.Background(), tt.token, testMeta)
			assert.ErrorIs(t, err, errs.ErrInvalidToken)
		})
	}
}

func TestRefresh_ExpiredRecord(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	token, _, err := h.codec.SignRefresh("user-1", "jti-1", "family-1")
	require.NoError(t, err)
	require.NoError(t, h.tokens.Create(ctx, &model.RefreshToken{
		ID:        "rt-1",
		UserID:    "user-1",
		JTIHash:   util.HashTokenID("jti-1"),
		FamilyID:  "family-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	_, err = h.svc.Refresh(ctx, token, testMeta)
	assert.ErrorIs(t, err, errs.ErrInvalidToken)
	assert.NotErrorIs(t, err, errs.ErrTokenReuse)
}

func TestRefresh_UserDeleted(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	token, _, err := h.codec.SignRefresh("deleted-user", "jti-1", "family-1")
	require.NoError(t, err)
	require.NoError(t, h.tokens.Create(ctx, &model.RefreshToken{
		ID:        "rt-1",
		UserID:    "deleted-user",
		JTIHash:   util.HashTokenID("jti-1"),
		FamilyID:  "family-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	_, err = h.svc.Refresh(ctx, token, testMeta)
	assert.ErrorIs(t, err, errs.ErrInvalidToken)
}

func TestRefresh_RotationConflictFromStore(t *testing.T) {
	codec := newTestCodec(t)
	users := newMemoryUsers()
	store := new(MockRefreshTokenStore)
	svc := service.NewAuthenticationService(service.AuthenticationDeps{
		Users:    users,
		Tokens:   store,
		Codec:    codec,
		Sessions: service.NewSessionIssuer(codec, store),
	})

	user, err := users.CreateUser(context.Background(), &model.User{ID: "user-1", Email: "jane@example.com", Role: model.RoleHRAdmin})
	require.NoError(t, err)

	token, _, err := codec.SignRefresh(user.ID, "jti-1", "family-1")
	require.NoError(t, err)

	store.On("FindByHash", mock.Anything, util.HashTokenID("jti-1")).Return(&model.RefreshToken{
		ID: "rt-1", UserID: user.ID, FamilyID: "family-1", ExpiresAt: time.Now().Add(time.Hour),
	}, nil)
	store.On("Rotate", mock.Anything, "rt-1", mock.MatchedBy(func(next *model.RefreshToken) bool {
		return next.FamilyID == "family-1" && next.UserID == user.ID
	})).Return(errs.ErrRotationConflict)

	_, err = svc.Refresh(context.Background(), token, testMeta)
	assert.ErrorIs(t, err, errs.ErrRotationConflict)
	assert.ErrorIs(t, err, errs.ErrInvalidToken)
	store.AssertNotCalled(t, "RevokeFamily", mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

// ===== LOGOUT =====

func TestLogout(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	pair := h.register(t, "jane@example.com")

	assert.NoError(t, h.svc.Logout(ctx, "", testMeta))
	assert.NoError(t, h.svc.Logout(ctx, "garbage", testMeta))
	assert.NoError(t, h.svc.Logout(ctx, pair.AccessToken, testMeta))

	require.NoError(t, h.svc.Logout(ctx, pair.RefreshToken, testMeta))
	// повторный logout тем же токеном
	require.NoError(t, h.svc.Logout(ctx, pair.RefreshToken, testMeta))

	claims, _ := h.codec.VerifyRefresh(pair.RefreshToken)
	assert.Equal(t, 0, h.tokens.activeInFamily(claims.FamilyID))

	_, err := h.svc.Refresh(ctx, pair.RefreshToken, testMeta)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	assert.Contains(t, h.audit.types(), audit.EventSessionLogout)
}

func TestLogout_AuditCarriesClientMeta(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	pair := h.register(t, "jane@example.com")

	meta := model.ClientMeta{IPAddress: "198.51.100.4", UserAgent: "curl/8.0"}
	require.NoError(t, h.svc.Logout(ctx, pair.RefreshToken, meta))

	claims, err := h.codec.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)

	event, ok := h.audit.find(audit.EventSessionLogout)
	require.True(t, ok)
	assert.Equal(t, claims.Subject, event.UserID)
	assert.Equal(t, claims.FamilyID, event.FamilyID)
	assert.Equal(t, "198.51.100.4", event.IP)
	assert.Equal(t, "curl/8.0", event.UserAgent)
}

func TestLogout_StoreError(t *testing.T) {
	codec := newTestCodec(t)
	store := new(MockRefreshTokenStore)
	svc := service.NewAuthenticationService(service.AuthenticationDeps{Tokens: store, Codec: codec})

	token, _, err := codec.SignRefresh("user-1", "jti-1", "family-1")
	require.NoError(t, err)
	store.On("RevokeByHash", mock.Anything, util.HashTokenID("jti-1")).Return(errs.ErrServiceUnavailable)

	assert.ErrorIs(t, svc.Logout(context.Background(), token, testMeta), errs.ErrServiceUnavailable)
}

// ===== GOOGLE =====

func googleIdentity(subject, email string) *model.ExternalIdentity {
	return &model.ExternalIdentity{Subject: subject, Email: email, EmailVerified: true, Name: "Jane Google"}
}

func TestLoginWithGoogle_CreatesUser(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	h.google.On("VerifyExternalIdentity", mock.Anything, "id-token").Return(googleIdentity("g-1", "new@example.com"), nil)

	pair, err := h.svc.LoginWithGoogle(ctx, "id-token", testMeta)
	require.NoError(t, err)

	user, err := h.users.FindByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.ProviderGoogle, user.Provider)
	assert.True(t, user.EmailVerified)
	require.NotNil(t, user.GoogleID)
	assert.Equal(t, "g-1", *user.GoogleID)
	assert.False(t, user.HasPassword())
	assert.Equal(t, "Jane Google", user.DisplayName())

	claims, err := h.codec.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)

	// второй вход тем же аккаунтом
	_, err = h.svc.LoginWithGoogle(ctx, "id-token", testMeta)
	require.NoError(t, err)
	assert.Equal(t, 1, h.users.count())
	assert.Contains(t, h.audit.types(), audit.EventLoginGoogle)
}

func TestLoginWithGoogle_LinksLocalAccount(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	h.register(t, "a@x.com")

	local, err := h.users.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)

	h.google.On("VerifyExternalIdentity", mock.Anything, "id-token").Return(googleIdentity("g-42", "a@x.com"), nil)
	h.cache.On("DeleteUser", mock.Anything, local.ID).Return(nil).Once()

	pair, err := h.svc.LoginWithGoogle(ctx, "id-token", testMeta)
	require.NoError(t, err)

	assert.Equal(t, 1, h.users.count())
	linked, err := h.users.FindByID(ctx, local.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProviderGoogle, linked.Provider)
	assert.True(t, linked.EmailVerified)
	require.NotNil(t, linked.GoogleID)
	assert.Equal(t, "g-42", *linked.GoogleID)

	claims, err := h.codec.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, local.ID, claims.Subject)
	h.cache.AssertExpectations(t)
}

func TestLoginWithGoogle_Rejections(t *testing.T) {
	t.Run("токен не прошёл проверку", func(t *testing.T) {
		h := newAuthHarness(t)
		h.google.On("VerifyExternalIdentity", mock.Anything, "bad").Return(nil, errs.ErrInvalidToken)

		_, err := h.svc.LoginWithGoogle(context.Background(), "bad", testMeta)
		assert.ErrorIs(t, err, errs.ErrInvalidToken)
		assert.Equal(t, 0, h.users.count())
	})

	t.Run("email привязан к другому Google аккаунту", func(t *testing.T) {
		h := newAuthHarness(t)
		h.google.On("VerifyExternalIdentity", mock.Anything, "first").Return(googleIdentity("g-1", "a@x.com"), nil)
		h.google.On("VerifyExternalIdentity", mock.Anything, "second").Return(googleIdentity("g-2", "a@x.com"), nil)

		_, err := h.svc.LoginWithGoogle(context.Background(), "first", testMeta)
		require.NoError(t, err)

		_, err = h.svc.LoginWithGoogle(context.Background(), "second", testMeta)
		assert.ErrorIs(t, err, errs.ErrConflict)
	})

	t.Run("Google не настроен", func(t *testing.T) {
		svc := service.NewAuthenticationService(service.AuthenticationDeps{Codec: newTestCodec(t)})

		_, err := svc.LoginWithGoogle(context.Background(), "id-token", testMeta)
		assert.ErrorIs(t, err, errs.ErrServiceUnavailable)

		_, err = svc.LoginWithGoogleCode(context.Background(), "code", testMeta)
		assert.ErrorIs(t, err, errs.ErrServiceUnavailable)
		assert.Empty(t, svc.GoogleAuthURL("state"))
	})
}

func TestLoginWithGoogleCode(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	h.exchanger.On("Exchange", mock.Anything, "auth-code").Return("id-token", nil)
	h.exchanger.On("Exchange", mock.Anything, "bad-code").Return("", errs.ErrInvalidToken)
	h.google.On("VerifyExternalIdentity", mock.Anything, "id-token").Return(googleIdentity("g-1", "jane@example.com"), nil)

	pair, err := h.svc.LoginWithGoogleCode(ctx, "auth-code", testMeta)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshToken)

	_, err = h.svc.LoginWithGoogleCode(ctx, "bad-code", testMeta)
	assert.ErrorIs(t, err, errs.ErrInvalidToken)

	h.exchanger.AssertExpectations(t)
	h.google.AssertExpectations(t)
}

func TestGoogleAuthURL(t *testing.T) {
	h := newAuthHarness(t)
	h.exchanger.On("AuthCodeURL", "state-1").Return("https://accounts.google.com/o/oauth2/auth?state=state-1")

	assert.Equal(t, "https://accounts.google.com/o/oauth2/auth?state=state-1", h.svc.GoogleAuthURL("state-1"))
}
