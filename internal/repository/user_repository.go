package repository

import (
	"context"

	"hr-auth-server/config"
	"hr-auth-server/internal/model"
	"hr-auth-server/internal/util"

	"github.com/jmoiron/sqlx"
)

const userColumns = `id, email, name, password_hash, provider, google_id, email_verified, role, created_at, updated_at`

type UserRepository struct {
	*config.Database
}

func NewUserRepository(database *config.Database) *UserRepository {
	return &UserRepository{database}
}

// CreateUser : сохраняет нового пользователя. Занятый email -> errs.ErrConflict
func (r *UserRepository) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `
	INSERT INTO users (id, email, name, password_hash, provider, google_id, email_verified, role)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING ` + userColumns

	createdUser := &model.User{}
	err := r.DB.QueryRowxContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Provider,
		user.GoogleID,
		user.EmailVerified,
		user.Role,
	).StructScan(createdUser)

	if err != nil {
		return nil, util.LogError("[UserRepo] ошибка вставки данных в БД", translateError(err))
	}

	return createdUser, nil
}

// FindByID : ищет пользователя по id
func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	var user model.User
	if err := sqlx.GetContext(ctx, r.DB, &user, query, id); err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// FindByEmail : ищет пользователя по нормализованному email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	var user model.User
	if err := sqlx.GetContext(ctx, r.DB, &user, query, model.NormalizeEmail(email)); err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// FindByGoogleIDOrEmail : сначала совпадение по google_id, затем по email
func (r *UserRepository) FindByGoogleIDOrEmail(ctx context.Context, googleID, email string) (*model.User, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `
	SELECT ` + userColumns + `
	FROM users
	WHERE google_id = $1 OR email = $2
	ORDER BY (google_id = $1) DESC NULLS LAST
	LIMIT 1`

	var user model.User
	if err := sqlx.GetContext(ctx, r.DB, &user, query, googleID, model.NormalizeEmail(email)); err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// LinkGoogle : привязывает Google-аккаунт к существующему пользователю
func (r *UserRepository) LinkGoogle(ctx context.Context, userID, googleID string) (*model.User, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `
	UPDATE users
	SET provider = 'GOOGLE', google_id = $2, email_verified = TRUE, updated_at = NOW()
	WHERE id = $1
	RETURNING ` + userColumns

	var user model.User
	if err := sqlx.GetContext(ctx, r.DB, &user, query, userID, googleID); err != nil {
		return nil, util.LogError("[UserRepo] не удалось привязать Google аккаунт", translateError(err))
	}
	return &user, nil
}
