package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"hr-auth-server/config"
	"hr-auth-server/internal/audit"
	"hr-auth-server/internal/errs"
	"hr-auth-server/internal/model"
	"hr-auth-server/internal/security"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ===== IN-MEMORY ХРАНИЛИЩА =====

// memoryUsers : уникальность email и google_id как в БД
type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: make(map[string]*model.User)}
}

func (m *memoryUsers) CreateUser(_ context.Context, user *model.User) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == user.Email {
			return nil, errs.ErrConflict
		}
		if user.GoogleID != nil && existing.GoogleID != nil && *existing.GoogleID == *user.GoogleID {
			return nil, errs.ErrConflict
		}
	}

	stored := *user
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.users[user.ID] = &stored

	out := stored
	return &out, nil
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user, ok := m.users[id]; ok {
		out := *user
		return &out, nil
	}
	return nil, errs.ErrNotFound
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = model.NormalizeEmail(email)
	for _, user := range m.users {
		if user.Email == email {
			out := *user
			return &out, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *memoryUsers) FindByGoogleIDOrEmail(_ context.Context, googleID, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = model.NormalizeEmail(email)
	var byEmail *model.User
	for _, user := range m.users {
		if user.GoogleID != nil && *user.GoogleID == googleID {
			out := *user
			return &out, nil
		}
		if user.Email == email {
			byEmail = user
		}
	}
	if byEmail != nil {
		out := *byEmail
		return &out, nil
	}
	return nil, errs.ErrNotFound
}

func (m *memoryUsers) LinkGoogle(_ context.Context, userID, googleID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	user.Provider = model.ProviderGoogle
	user.GoogleID = &googleID
	user.EmailVerified = true
	user.UpdatedAt = time.Now()

	out := *user
	return &out, nil
}

func (m *memoryUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// memoryTokens : Rotate повторяет условный UPDATE ... WHERE revoked_at IS NULL + INSERT
type memoryTokens struct {
	mu      sync.Mutex
	records map[string]*model.RefreshToken // по jti_hash
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{records: make(map[string]*model.RefreshToken)}
}

func (m *memoryTokens) Create(_ context.Context, token *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(token)
}

func (m *memoryTokens) insert(token *model.RefreshToken) error {
	if _, ok := m.records[token.JTIHash]; ok {
		return errs.ErrConflict
	}
	stored := *token
	stored.CreatedAt = time.Now()
	m.records[token.JTIHash] = &stored
	return nil
}

func (m *memoryTokens) FindByHash(_ context.Context, jtiHash string) (*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record, ok := m.records[jtiHash]; ok {
		out := *record
		return &out, nil
	}
	return nil, errs.ErrNotFound
}

func (m *memoryTokens) Rotate(_ context.Context, oldID string, next *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var old *model.RefreshToken
	for _, record := range m.records {
		if record.ID == oldID && record.RevokedAt == nil {
			old = record
		}
	}
	if old == nil {
		return errs.ErrRotationConflict
	}
	if err := m.insert(next); err != nil {
		return err
	}

	now := time.Now()
	old.RevokedAt = &now
	replacedBy := next.JTIHash
	old.ReplacedByHash = &replacedBy
	return nil
}

func (m *memoryTokens) RevokeFamily(_ context.Context, familyID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	now := time.Now()
	for _, record := range m.records {
		if record.FamilyID == familyID && record.RevokedAt == nil {
			record.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (m *memoryTokens) RevokeByHash(_ context.Context, jtiHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record, ok := m.records[jtiHash]; ok && record.RevokedAt == nil {
		now := time.Now()
		record.RevokedAt = &now
	}
	return nil
}

func (m *memoryTokens) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for hash, record := range m.records {
		if record.ExpiresAt.Before(before) {
			delete(m.records, hash)
			n++
		}
	}
	return n, nil
}

func (m *memoryTokens) activeInFamily(familyID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, record := range m.records {
		if record.FamilyID == familyID && record.RevokedAt == nil {
			n++
		}
	}
	return n
}

func (m *memoryTokens) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// memoryAudit : собирает события
type memoryAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *memoryAudit) Record(_ context.Context, event audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memoryAudit) types() []audit.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]audit.EventType, 0, len(m.events))
	for _, event := range m.events {
		out = append(out, event.Type)
	}
	return out
}

func (m *memoryAudit) find(eventType audit.EventType) (audit.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, event := range m.events {
		if event.Type == eventType {
			return event, true
		}
	}
	return audit.Event{}, false
}

// ===== MOCKS =====

type MockIdentityVerifier struct {
	mock.Mock
}

func (m *MockIdentityVerifier) VerifyExternalIdentity(ctx context.Context, credential string) (*model.ExternalIdentity, error) {
	args := m.Called(ctx, credential)
	if identity, ok := args.Get(0).(*model.ExternalIdentity); ok {
		return identity, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockCodeExchanger struct {
	mock.Mock
}

func (m *MockCodeExchanger) AuthCodeURL(state string) string {
	return m.Called(state).String(0)
}

func (m *MockCodeExchanger) Exchange(ctx context.Context, code string) (string, error) {
	args := m.Called(ctx, code)
	return args.String(0), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) SetUser(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockCache) GetUser(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if user, ok := args.Get(0).(*model.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCache) DeleteUser(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	args := m.Called(ctx, user)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) FindByGoogleIDOrEmail(ctx context.Context, googleID, email string) (*model.User, error) {
	args := m.Called(ctx, googleID, email)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) LinkGoogle(ctx context.Context, userID, googleID string) (*model.User, error) {
	args := m.Called(ctx, userID, googleID)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockRefreshTokenStore struct {
	mock.Mock
}

func (m *MockRefreshTokenStore) Create(ctx context.Context, token *model.RefreshToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockRefreshTokenStore) FindByHash(ctx context.Context, jtiHash string) (*model.RefreshToken, error) {
	args := m.Called(ctx, jtiHash)
	if t, ok := args.Get(0).(*model.RefreshToken); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRefreshTokenStore) Rotate(ctx context.Context, oldID string, next *model.RefreshToken) error {
	return m.Called(ctx, oldID, next).Error(0)
}

func (m *MockRefreshTokenStore) RevokeFamily(ctx context.Context, familyID string) (int64, error) {
	args := m.Called(ctx, familyID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRefreshTokenStore) RevokeByHash(ctx context.Context, jtiHash string) error {
	return m.Called(ctx, jtiHash).Error(0)
}

func (m *MockRefreshTokenStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// ===== HELPERS =====

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

var testMeta = model.ClientMeta{IPAddress: "10.0.0.1", UserAgent: "Mozilla/5.0"}
