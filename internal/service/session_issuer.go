package service

import (
	"context"
	"fmt"

	"hr-auth-server/internal/model"
	"hr-auth-server/internal/ports"
	"hr-auth-server/internal/util"

	"github.com/google/uuid"
)

const csrfTokenBytes = 32

// SessionIssuer выдаёт тройку access/refresh/csrf и ведёт refresh-записи.
// CSRF токен не сохраняется: источник истины сама cookie
type SessionIssuer struct {
	codec  ports.TokenCodec
	tokens ports.RefreshTokenStore
}

func NewSessionIssuer(codec ports.TokenCodec, tokens ports.RefreshTokenStore) *SessionIssuer {
	return &SessionIssuer{codec: codec, tokens: tokens}
}

// Issue : новая сессия с новым семейством
func (s *SessionIssuer) Issue(ctx context.Context, user *model.User, meta model.ClientMeta) (*model.TokenPair, error) {
	jti := uuid.NewString()
	familyID := uuid.NewString()

	refreshToken, record, err := s.signRefresh(user.ID, jti, familyID, meta)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("ошибка сохранения refresh токена: %w", err)
	}

	return s.pair(user, refreshToken, record)
}

// Rotate : следующая сессия того же семейства. current отзывается атомарно
// вместе со вставкой новой записи
func (s *SessionIssuer) Rotate(ctx context.Context, user *model.User, current *model.RefreshToken, meta model.ClientMeta) (*model.TokenPair, error) {
	refreshToken, record, err := s.signRefresh(user.ID, uuid.NewString(), current.FamilyID, meta)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Rotate(ctx, current.ID, record); err != nil {
		return nil, err
	}

	return s.pair(user, refreshToken, record)
}

func (s *SessionIssuer) signRefresh(userID, jti, familyID string, meta model.ClientMeta) (string, *model.RefreshToken, error) {
	refreshToken, expiresAt, err := s.codec.SignRefresh(userID, jti, familyID)
	if err != nil {
		return "", nil, err
	}

	record := &model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		JTIHash:   util.HashTokenID(jti),
		FamilyID:  familyID,
		ExpiresAt: expiresAt,
		IPAddress: optional(meta.IPAddress),
		UserAgent: optional(meta.UserAgent),
	}
	return refreshToken, record, nil
}

func (s *SessionIssuer) pair(user *model.User, refreshToken string, record *model.RefreshToken) (*model.TokenPair, error) {
	accessToken, _, err := s.codec.SignAccess(user.ID, user.Email, user.DisplayName(), user.Role)
	if err != nil {
		return nil, err
	}

	csrfToken, err := util.GenerateRandomToken(csrfTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации csrf токена: %w", err)
	}

	return &model.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		CSRFToken:        csrfToken,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
