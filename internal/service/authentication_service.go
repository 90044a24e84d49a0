package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"hr-auth-server/internal/audit"
	"hr-auth-server/internal/errs"
	"hr-auth-server/internal/model"
	"hr-auth-server/internal/ports"
	"hr-auth-server/internal/security"
	"hr-auth-server/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxNameLength = 100

// подменяется в тестах
var timeNow = time.Now

// AuthenticationDeps : зависимости AuthenticationService. Google и Exchanger могут быть nil,
// тогда соответствующие входы отвечают 503
type AuthenticationDeps struct {
	Users     ports.UserRepository
	Tokens    ports.RefreshTokenStore
	Codec     ports.TokenCodec
	Sessions  ports.SessionIssuer
	Google    ports.IdentityVerifier
	Exchanger ports.CodeExchanger
	Cache     ports.CacheRepository
	Audit     audit.Recorder
	Log       *zap.Logger
}

type AuthenticationService struct {
	users     ports.UserRepository
	tokens    ports.RefreshTokenStore
	codec     ports.TokenCodec
	sessions  ports.SessionIssuer
	google    ports.IdentityVerifier
	exchanger ports.CodeExchanger
	cache     ports.CacheRepository
	audit     audit.Recorder
	log       *zap.Logger
}

func NewAuthenticationService(deps AuthenticationDeps) *AuthenticationService {
	s := &AuthenticationService{
		users:     deps.Users,
		tokens:    deps.Tokens,
		codec:     deps.Codec,
		sessions:  deps.Sessions,
		google:    deps.Google,
		exchanger: deps.Exchanger,
		cache:     deps.Cache,
		audit:     deps.Audit,
		log:       deps.Log,
	}
	if s.audit == nil {
		s.audit = audit.Nop{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Register создаёт LOCAL пользователя и сразу выдаёт сессию.
// Гонка двух регистраций решается уникальным индексом по email (errs.ErrConflict)
func (s *AuthenticationService) Register(ctx context.Context, email, password string, name *string, meta model.ClientMeta) (*model.TokenPair, error) {
	email = model.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := security.ValidatePasswordPolicy(password); err != nil {
		return nil, err
	}
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	_, err = s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: email уже используется", errs.ErrConflict)
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, util.LogError("[AuthenticationService] не удалось создать хэш пароля", err)
	}

	user, err := s.users.CreateUser(ctx, &model.User{
		ID:            uuid.NewString(),
		Email:         email,
		Name:          name,
		PasswordHash:  &hash,
		Provider:      model.ProviderLocal,
		EmailVerified: false,
		Role:          model.DefaultRole,
	})
	if err != nil {
		return nil, err
	}

	pair, err := s.sessions.Issue(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	s.record(ctx, eventFor(audit.EventUserRegistered, user.ID, meta))
	return pair, nil
}

// Login : неизвестный email, OAuth-аккаунт без пароля и неверный пароль
// дают одну и ту же ошибку errs.ErrInvalidCredentials
func (s *AuthenticationService) Login(ctx context.Context, email, password string, meta model.ClientMeta) (*model.TokenPair, error) {
	email = model.NormalizeEmail(email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	if user == nil || !user.HasPassword() {
		// выравниваем время ответа с веткой проверки пароля
		security.CheckPassword(password, dummyPasswordHash())
		s.loginFailed(ctx, "", email, meta)
		return nil, errs.ErrInvalidCredentials
	}

	if !security.CheckPassword(password, *user.PasswordHash) {
		s.loginFailed(ctx, user.ID, email, meta)
		return nil, errs.ErrInvalidCredentials
	}

	pair, err := s.sessions.Issue(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	s.record(ctx, eventFor(audit.EventLoginSucceeded, user.ID, meta))
	return pair, nil
}

// LoginWithGoogle : вход по Google ID token (one-tap / GSI)
func (s *AuthenticationService) LoginWithGoogle(ctx context.Context, idToken string, meta model.ClientMeta) (*model.TokenPair, error) {
	if s.google == nil {
		return nil, fmt.Errorf("%w: вход через Google не настроен", errs.ErrServiceUnavailable)
	}

	identity, err := s.google.VerifyExternalIdentity(ctx, idToken)
	if err != nil {
		s.log.Info("Google ID token отклонён", zap.Error(err))
		return nil, err
	}

	return s.loginExternal(ctx, identity, meta)
}

// LoginWithGoogleCode : redirect-вариант, code из callback меняется на id_token,
// дальше та же проверка и привязка аккаунта
func (s *AuthenticationService) LoginWithGoogleCode(ctx context.Context, code string, meta model.ClientMeta) (*model.TokenPair, error) {
	if s.exchanger == nil || s.google == nil {
		return nil, fmt.Errorf("%w: вход через Google не настроен", errs.ErrServiceUnavailable)
	}

	idToken, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	return s.LoginWithGoogle(ctx, idToken, meta)
}

// GoogleAuthURL : адрес страницы согласия Google, пустая строка если OAuth не настроен
func (s *AuthenticationService) GoogleAuthURL(state string) string {
	if s.exchanger == nil {
		return ""
	}
	return s.exchanger.AuthCodeURL(state)
}

func (s *AuthenticationService) loginExternal(ctx context.Context, identity *model.ExternalIdentity, meta model.ClientMeta) (*model.TokenPair, error) {
	user, err := s.findOrCreateGoogleUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	pair, err := s.sessions.Issue(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	s.record(ctx, eventFor(audit.EventLoginGoogle, user.ID, meta))
	return pair, nil
}

// findOrCreateGoogleUser : поиск по google_id или email. LOCAL аккаунт с тем же email
// повышается до GOOGLE на месте, второй строки не появляется
func (s *AuthenticationService) findOrCreateGoogleUser(ctx context.Context, identity *model.ExternalIdentity) (*model.User, error) {
	user, err := s.users.FindByGoogleIDOrEmail(ctx, identity.Subject, identity.Email)
	if errors.Is(err, errs.ErrNotFound) {
		created, createErr := s.users.CreateUser(ctx, &model.User{
			ID:            uuid.NewString(),
			Email:         identity.Email,
			Name:          optional(truncate(identity.Name, maxNameLength)),
			Provider:      model.ProviderGoogle,
			GoogleID:      &identity.Subject,
			EmailVerified: true,
			Role:          model.DefaultRole,
		})
		if createErr == nil {
			return created, nil
		}
		if !errors.Is(createErr, errs.ErrConflict) {
			return nil, createErr
		}
		// параллельный первый вход того же аккаунта
		user, err = s.users.FindByGoogleIDOrEmail(ctx, identity.Subject, identity.Email)
	}
	if err != nil {
		return nil, err
	}

	if user.GoogleID != nil {
		return s.checkLinkedSubject(user, identity)
	}

	linked, err := s.users.LinkGoogle(ctx, user.ID, identity.Subject)
	if err != nil {
		return nil, err
	}
	s.invalidateProfile(ctx, linked.ID)
	s.log.Info("LOCAL аккаунт привязан к Google", zap.String("user_id", linked.ID))

	return linked, nil
}

// checkLinkedSubject : email совпал с аккаунтом, уже привязанным к другому Google subject
func (s *AuthenticationService) checkLinkedSubject(user *model.User, identity *model.ExternalIdentity) (*model.User, error) {
	if *user.GoogleID != identity.Subject {
		s.log.Warn("email привязан к другому Google аккаунту", zap.String("user_id", user.ID))
		return nil, fmt.Errorf("%w: аккаунт привязан к другому Google аккаунту", errs.ErrConflict)
	}
	return user, nil
}

// Refresh : refresh токены одноразовые. Повторное предъявление уже ротированного
// токена отзывает всё семейство
func (s *AuthenticationService) Refresh(ctx context.Context, refreshToken string, meta model.ClientMeta) (*model.TokenPair, error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	record, err := s.tokens.FindByHash(ctx, util.HashTokenID(claims.ID))
	if errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("%w: refresh запись не найдена", errs.ErrInvalidToken)
	} else if err != nil {
		return nil, err
	}

	if record.UserID != claims.Subject || record.FamilyID != claims.FamilyID {
		return nil, fmt.Errorf("%w: claims не совпадают с записью", errs.ErrInvalidToken)
	}
	if record.Expired(timeNow()) {
		return nil, fmt.Errorf("%w: refresh токен истёк", errs.ErrInvalidToken)
	}

	if record.Revoked() {
		revoked, err := s.tokens.RevokeFamily(ctx, record.FamilyID)
		if err != nil {
			return nil, err
		}

		s.log.Warn("повторное использование refresh токена, семейство отозвано",
			zap.String("user_id", record.UserID),
			zap.String("family_id", record.FamilyID),
			zap.Int64("revoked", revoked),
			zap.String("ip", meta.IPAddress),
		)
		event := eventFor(audit.EventTokenReuseDetected, record.UserID, meta)
		event.FamilyID = record.FamilyID
		s.record(ctx, event)

		return nil, errs.ErrTokenReuse
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("%w: пользователь удалён", errs.ErrInvalidToken)
	} else if err != nil {
		return nil, err
	}

	pair, err := s.sessions.Rotate(ctx, user, record, meta)
	if errors.Is(err, errs.ErrRotationConflict) {
		s.log.Info("конкурентная ротация refresh токена",
			zap.String("user_id", record.UserID),
			zap.String("family_id", record.FamilyID),
		)
		return nil, err
	} else if err != nil {
		return nil, err
	}

	event := eventFor(audit.EventTokenRefreshed, user.ID, meta)
	event.FamilyID = record.FamilyID
	s.record(ctx, event)

	return pair, nil
}

// Logout отзывает запись предъявленного refresh токена.
// Отсутствующий или невалидный токен ошибкой не считается
func (s *AuthenticationService) Logout(ctx context.Context, refreshToken string, meta model.ClientMeta) error {
	if refreshToken == "" {
		return nil
	}

	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		s.log.Debug("logout с невалидным refresh токеном", zap.Error(err))
		return nil
	}

	if err := s.tokens.RevokeByHash(ctx, util.HashTokenID(claims.ID)); err != nil {
		return err
	}

	event := eventFor(audit.EventSessionLogout, claims.Subject, meta)
	event.FamilyID = claims.FamilyID
	s.record(ctx, event)

	return nil
}

func (s *AuthenticationService) loginFailed(ctx context.Context, userID, email string, meta model.ClientMeta) {
	event := eventFor(audit.EventLoginFailed, userID, meta)
	event.Detail = map[string]string{"email": email}
	s.record(ctx, event)
}

func (s *AuthenticationService) record(ctx context.Context, event audit.Event) {
	if err := s.audit.Record(ctx, event); err != nil {
		s.log.Warn("ошибка записи события аудита", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func (s *AuthenticationService) invalidateProfile(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteUser(ctx, userID); err != nil {
		s.log.Warn("не удалось сбросить профиль из кэша", zap.String("user_id", userID), zap.Error(err))
	}
}

func eventFor(eventType audit.EventType, userID string, meta model.ClientMeta) audit.Event {
	event := audit.NewEvent(eventType, userID)
	event.IP = meta.IPAddress
	event.UserAgent = meta.UserAgent
	return event
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", errs.ErrInvalidRequest)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return fmt.Errorf("%w: email is not valid", errs.ErrInvalidRequest)
	}
	return nil
}

func normalizeName(name *string) (*string, error) {
	if name == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil, nil
	}
	if len([]rune(trimmed)) > maxNameLength {
		return nil, fmt.Errorf("%w: name must be at most %d characters", errs.ErrInvalidRequest, maxNameLength)
	}
	return &trimmed, nil
}

func truncate(value string, max int) string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) > max {
		return string(runes[:max])
	}
	return string(runes)
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// dummyPasswordHash : хэш для сравнения, когда пользователя нет
func dummyPasswordHash() string {
	dummyHashOnce.Do(func() {
		hash, err := security.HashPassword(uuid.NewString())
		if err == nil {
			dummyHash = hash
		}
	})
	return dummyHash
}
