package ports

import (
	"context"

	"hr-auth-server/internal/model"
)

type AuthenticationService interface {
	Register(ctx context.Context, email, password string, name *string, meta model.ClientMeta) (*model.TokenPair, error)
	Login(ctx context.Context, email, password string, meta model.ClientMeta) (*model.TokenPair, error)
	LoginWithGoogle(ctx context.Context, idToken string, meta model.ClientMeta) (*model.TokenPair, error)
	LoginWithGoogleCode(ctx context.Context, code string, meta model.ClientMeta) (*model.TokenPair, error)
	GoogleAuthURL(state string) string
	Refresh(ctx context.Context, refreshToken string, meta model.ClientMeta) (*model.TokenPair, error)
	Logout(ctx context.Context, refreshToken string, meta model.ClientMeta) error
}

// SessionIssuer : выдача новой сессии и ротация существующей
type SessionIssuer interface {
	Issue(ctx context.Context, user *model.User, meta model.ClientMeta) (*model.TokenPair, error)
	Rotate(ctx context.Context, user *model.User, current *model.RefreshToken, meta model.ClientMeta) (*model.TokenPair, error)
}
