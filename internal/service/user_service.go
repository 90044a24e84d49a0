package service

import (
	"context"

	"hr-auth-server/internal/model"
	"hr-auth-server/internal/ports"

	"go.uber.org/zap"
)

// UserService : профиль текущего пользователя. Кэш необязателен,
// его ошибки только логируются
type UserService struct {
	userRepository ports.UserRepository
	cache          ports.CacheRepository
	log            *zap.Logger
}

func NewUserService(userRepository ports.UserRepository, cache ports.CacheRepository, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{
		userRepository: userRepository,
		cache:          cache,
		log:            log,
	}
}

func (s *UserService) GetProfile(ctx context.Context, id string) (*model.User, error) {
	if s.cache != nil {
		cached, err := s.cache.GetUser(ctx, id)
		if err != nil {
			s.log.Warn("[UserService] кэш недоступен", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	user, err := s.userRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetUser(ctx, user); err != nil {
			s.log.Warn("[UserService] не удалось положить профиль в кэш", zap.String("user_id", id), zap.Error(err))
		}
	}

	return user, nil
}
