package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hr-auth-server/internal/model"
	"hr-auth-server/internal/util"

	"github.com/redis/go-redis/v9"
)

// CacheRepository : Redis кэш профилей для GET /users/me
type CacheRepository struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewCacheRepository(rdb redis.Cmdable, ttl time.Duration) *CacheRepository {
	return &CacheRepository{rdb, ttl}
}

func (r *CacheRepository) SetUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(cachedUserFromModel(user))
	if err != nil {
		return util.LogError("ошибка сериализации пользователя", err)
	}

	cmd := r.client.Set(ctx, r.key(user.ID), data, r.ttl)
	if err = cmd.Err(); err != nil {
		return util.LogError("ошибка сохранения в Redis", err)
	}
	if cmd.Val() != "OK" {
		return fmt.Errorf("неожиданный ответ Redis: %s", cmd.Val())
	}

	return nil
}

func (r *CacheRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	val, err := r.client.Get(ctx, r.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil // нет в кэше
	} else if err != nil {
		return nil, util.LogError("ошибка получения пользователя из Redis", err)
	}

	var cached cachedUser
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		return nil, util.LogError("ошибка десериализации пользователя из кэша", err)
	}
	return cached.toModel(), nil
}

func (r *CacheRepository) DeleteUser(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return util.LogError("ошибка удаления пользователя из Redis", err)
	}
	return nil
}

func (r *CacheRepository) key(id string) string {
	return fmt.Sprintf("user:%s", id)
}

// cachedUser : то, что кладём в Redis. Хэш пароля и google_id в кэш не попадают
type cachedUser struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          *string   `json:"name,omitempty"`
	Provider      string    `json:"provider"`
	EmailVerified bool      `json:"emailVerified"`
	Role          string    `json:"role"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func cachedUserFromModel(user *model.User) cachedUser {
	return cachedUser{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		Provider:      string(user.Provider),
		EmailVerified: user.EmailVerified,
		Role:          string(user.Role),
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

func (c cachedUser) toModel() *model.User {
	return &model.User{
		ID:            c.ID,
		Email:         c.Email,
		Name:          c.Name,
		Provider:      model.Provider(c.Provider),
		EmailVerified: c.EmailVerified,
		Role:          model.Role(c.Role),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}
