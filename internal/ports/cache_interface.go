package ports

import (
	"context"

	"hr-auth-server/internal/model"
)

// CacheRepository : Redis слой
type CacheRepository interface {
	SetUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
}
