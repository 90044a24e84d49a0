// Package oauth : проверка внешней личности Google (ID token и redirect-вариант с кодом).
package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hr-auth-server/config"
	"hr-auth-server/internal/errs"
	"hr-auth-server/internal/model"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

var googleIssuers = map[string]struct{}{
	"accounts.google.com":         {},
	"https://accounts.google.com": {},
}

// ValidateFunc : сигнатура idtoken.Validate, подменяется в тестах
type ValidateFunc func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

// GoogleVerifier проверяет подпись ID token по JWKS Google, audience и issuer
type GoogleVerifier struct {
	clientID string
	validate ValidateFunc
}

func NewGoogleVerifier(cfg *config.GoogleConfig) *GoogleVerifier {
	return &GoogleVerifier{clientID: cfg.ClientID, validate: idtoken.Validate}
}

// NewGoogleVerifierWithValidator : для тестов и нестандартных валидаторов
func NewGoogleVerifierWithValidator(clientID string, validate ValidateFunc) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, validate: validate}
}

func (v *GoogleVerifier) VerifyExternalIdentity(ctx context.Context, credential string) (*model.ExternalIdentity, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("%w: пустой Google ID token", errs.ErrInvalidToken)
	}

	payload, err := v.validate(ctx, credential, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: Google ID token не прошёл проверку: %v", errs.ErrInvalidToken, err)
	}
	if payload.Audience != v.clientID {
		return nil, fmt.Errorf("%w: чужой audience", errs.ErrInvalidToken)
	}
	if _, ok := googleIssuers[payload.Issuer]; !ok {
		return nil, fmt.Errorf("%w: неизвестный issuer %q", errs.ErrInvalidToken, payload.Issuer)
	}
	if payload.Subject == "" {
		return nil, fmt.Errorf("%w: нет subject", errs.ErrInvalidToken)
	}

	email := model.NormalizeEmail(claimString(payload.Claims, "email"))
	if email == "" {
		return nil, fmt.Errorf("%w: email Google аккаунта недоступен", errs.ErrInvalidToken)
	}
	if !claimBool(payload.Claims, "email_verified") {
		return nil, fmt.Errorf("%w: email Google аккаунта не подтверждён", errs.ErrInvalidToken)
	}

	return &model.ExternalIdentity{
		Subject:       payload.Subject,
		Email:         email,
		EmailVerified: true,
		Name:          claimString(payload.Claims, "name"),
	}, nil
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// email_verified приходит то bool, то строкой
func claimBool(claims map[string]interface{}, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}

// GoogleCodeExchanger : redirect-вариант, меняет authorization code на id_token
type GoogleCodeExchanger struct {
	config *oauth2.Config
}

func NewGoogleCodeExchanger(cfg *config.GoogleConfig) *GoogleCodeExchanger {
	return &GoogleCodeExchanger{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
	}
}

// NewGoogleCodeExchangerWithEndpoint : для тестов против httptest сервера
func NewGoogleCodeExchangerWithEndpoint(cfg *config.GoogleConfig, endpoint oauth2.Endpoint) *GoogleCodeExchanger {
	exchanger := NewGoogleCodeExchanger(cfg)
	exchanger.config.Endpoint = endpoint
	return exchanger
}

func (e *GoogleCodeExchanger) AuthCodeURL(state string) string {
	return e.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

func (e *GoogleCodeExchanger) Exchange(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("%w: authorization code is missing", errs.ErrInvalidRequest)
	}

	token, err := e.config.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", fmt.Errorf("%w: Google отклонил code: %v", errs.ErrInvalidToken, err)
		}
		return "", fmt.Errorf("%w: обмен code не удался: %v", errs.ErrServiceUnavailable, err)
	}

	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return "", fmt.Errorf("%w: в ответе Google нет id_token", errs.ErrInvalidToken)
	}
	return idToken, nil
}
