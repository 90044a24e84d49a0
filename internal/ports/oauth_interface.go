package ports

import (
	"context"

	"hr-auth-server/internal/model"
)

// IdentityVerifier : проверка credential внешнего провайдера
type IdentityVerifier interface {
	VerifyExternalIdentity(ctx context.Context, credential string) (*model.ExternalIdentity, error)
}

// CodeExchanger : redirect-вариант OAuth
type CodeExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (idToken string, err error)
}
