package ports

import (
	"context"
	"time"

	"hr-auth-server/internal/model"
	"hr-auth-server/internal/security"
)

// RefreshTokenStore : SQL слой refresh-записей
type RefreshTokenStore interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByHash(ctx context.Context, jtiHash string) (*model.RefreshToken, error)
	// Rotate отзывает oldID и вставляет next одной транзакцией.
	// errs.ErrRotationConflict, если oldID уже отозван
	Rotate(ctx context.Context, oldID string, next *model.RefreshToken) error
	RevokeFamily(ctx context.Context, familyID string) (int64, error)
	RevokeByHash(ctx context.Context, jtiHash string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type TokenCodec interface {
	SignAccess(userID, email, name string, role model.Role) (string, time.Time, error)
	SignRefresh(userID, jti, familyID string) (string, time.Time, error)
	VerifyAccess(tokenStr string) (*security.AccessClaims, error)
	VerifyRefresh(tokenStr string) (*security.RefreshClaims, error)
}
