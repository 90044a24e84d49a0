package security

import (
	"fmt"
	"time"

	"hr-auth-server/config"
	"hr-auth-server/internal/errs"
	"hr-auth-server/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// AccessClaims : снимок пользователя на момент выдачи access токена
type AccessClaims struct {
	Email string     `json:"email"`
	Name  string     `json:"name,omitempty"`
	Role  model.Role `json:"role"`
	Type  string     `json:"type"`
	jwt.RegisteredClaims
}

// RefreshClaims : идентификатор токена и его семейство
type RefreshClaims struct {
	FamilyID string `json:"familyId"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

// TokenCodec подписывает и проверяет access/refresh токены.
// У каждого типа свой секрет и своё время жизни
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

type CodecOption func(*TokenCodec)

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) { c.now = now }
}

func NewTokenCodec(cfg *config.JWTConfig, opts ...CodecOption) (*TokenCodec, error) {
	accessTTL, err := time.ParseDuration(cfg.AccessTokenTTL)
	if err != nil || accessTTL <= 0 {
		return nil, fmt.Errorf("некорректный access_token_ttl %q", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTLDays <= 0 {
		return nil, fmt.Errorf("некорректный refresh_token_ttl_days %d", cfg.RefreshTokenTTLDays)
	}
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("секреты для подписи токенов не заданы")
	}

	codec := &TokenCodec{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    time.Duration(cfg.RefreshTokenTTLDays) * 24 * time.Hour,
		issuer:        cfg.Issuer,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(codec)
	}

	return codec, nil
}

func (c *TokenCodec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

// SignAccess подписывает access токен для пользователя. Возвращает токен и время истечения
func (c *TokenCodec) SignAccess(userID, email, name string, role model.Role) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.accessTTL)

	claims := AccessClaims{
		Email: email,
		Name:  name,
		Role:  role,
		Type:  TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("ошибка подписи access токена: %w", err)
	}
	return token, expiresAt, nil
}

// SignRefresh подписывает refresh токен с идентификатором jti и семейством familyID
func (c *TokenCodec) SignRefresh(userID, jti, familyID string) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.refreshTTL)

	claims := RefreshClaims{
		FamilyID: familyID,
		Type:     TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("ошибка подписи refresh токена: %w", err)
	}
	return token, expiresAt, nil
}

// VerifyAccess проверяет подпись, срок, тип и обязательные claims access токена
func (c *TokenCodec) VerifyAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(tokenStr, claims, c.accessSecret); err != nil {
		return nil, err
	}

	if claims.Type != TokenTypeAccess {
		return nil, fmt.Errorf("%w: неверный тип токена %q", errs.ErrInvalidToken, claims.Type)
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: отсутствуют обязательные claims", errs.ErrInvalidToken)
	}
	role, err := model.ParseRole(string(claims.Role))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}
	claims.Role = role

	return claims, nil
}

// VerifyRefresh проверяет подпись, срок, тип и обязательные claims refresh токена
func (c *TokenCodec) VerifyRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(tokenStr, claims, c.refreshSecret); err != nil {
		return nil, err
	}

	if claims.Type != TokenTypeRefresh {
		return nil, fmt.Errorf("%w: неверный тип токена %q", errs.ErrInvalidToken, claims.Type)
	}
	if claims.Subject == "" || claims.ID == "" || claims.FamilyID == "" {
		return nil, fmt.Errorf("%w: отсутствуют обязательные claims", errs.ErrInvalidToken)
	}

	return claims, nil
}

func (c *TokenCodec) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	parser := jwt.NewParser(opts...)

	token, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}
	if !token.Valid {
		return errs.ErrInvalidToken
	}
	return nil
}
