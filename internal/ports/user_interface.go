package ports

import (
	"context"

	"hr-auth-server/internal/model"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByGoogleIDOrEmail(ctx context.Context, googleID, email string) (*model.User, error)
	LinkGoogle(ctx context.Context, userID, googleID string) (*model.User, error)
}

type UserService interface {
	GetProfile(ctx context.Context, id string) (*model.User, error)
}
