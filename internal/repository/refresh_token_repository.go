package repository

import (
	"context"
	"fmt"
	"time"

	"hr-auth-server/config"
	"hr-auth-server/internal/errs"
	"hr-auth-server/internal/model"
	"hr-auth-server/internal/util"

	"github.com/jmoiron/sqlx"
)

const refreshTokenColumns = `id, user_id, jti_hash, family_id, expires_at, revoked_at, replaced_by_hash, ip_address, user_agent, created_at`

type RefreshTokenRepository struct {
	*config.Database
}

func NewRefreshTokenRepository(database *config.Database) *RefreshTokenRepository {
	return &RefreshTokenRepository{database}
}

// Create сохраняет новую текущую запись семейства.
// Возвращает ошибку, если операция не удалась
func (r *RefreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	if err := insertRefreshToken(ctx, r.DB, token); err != nil {
		return util.LogError("ошибка вставки refresh токена в БД", translateError(err))
	}
	return nil
}

// FindByHash ищет запись по sha256(jti).
// Если записи нет - errs.ErrNotFound
func (r *RefreshTokenRepository) FindByHash(ctx context.Context, jtiHash string) (*model.RefreshToken, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE jti_hash = $1`

	refreshToken := &model.RefreshToken{}
	if err := sqlx.GetContext(ctx, r.DB, refreshToken, query, jtiHash); err != nil {
		return nil, translateError(err)
	}

	return refreshToken, nil
}

// Rotate в одной транзакции отзывает старую запись и вставляет следующую в том же семействе.
// Отзыв условный: если запись уже отозвана конкурентным запросом, затронуто 0 строк,
// транзакция откатывается и возвращается errs.ErrRotationConflict
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldID string, next *model.RefreshToken) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return util.LogError("не удалось начать транзакцию ротации", translateError(err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `UPDATE refresh_tokens SET revoked_at = NOW(), replaced_by_hash = $2 WHERE id = $1 AND revoked_at IS NULL`

	result, err := tx.ExecContext(ctx, query, oldID, next.JTIHash)
	if err != nil {
		return util.LogError("не удалось отозвать refresh токен", translateError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return util.LogError("не удалось проверить, отозван ли токен", translateError(err))
	}
	if rowsAffected != 1 {
		return fmt.Errorf("запись %s уже отозвана: %w", oldID, errs.ErrRotationConflict)
	}

	if err := insertRefreshToken(ctx, tx, next); err != nil {
		return util.LogError("ошибка вставки следующего refresh токена", translateError(err))
	}

	if err := tx.Commit(); err != nil {
		return util.LogError("не удалось зафиксировать ротацию", translateError(err))
	}

	return nil
}

// RevokeFamily отзывает все ещё активные записи семейства. Возвращает число отозванных
func (r *RefreshTokenRepository) RevokeFamily(ctx context.Context, familyID string) (int64, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `UPDATE refresh_tokens SET revoked_at = NOW() WHERE family_id = $1 AND revoked_at IS NULL`

	result, err := r.DB.ExecContext(ctx, query, familyID)
	if err != nil {
		return 0, util.LogError("не удалось отозвать семейство refresh токенов", translateError(err))
	}

	revoked, err := result.RowsAffected()
	if err != nil {
		return 0, util.LogError("не удалось получить число отозванных токенов", translateError(err))
	}
	return revoked, nil
}

// RevokeByHash отзывает одну запись. Идемпотентна: отсутствие или повторный отзыв не ошибка
func (r *RefreshTokenRepository) RevokeByHash(ctx context.Context, jtiHash string) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `UPDATE refresh_tokens SET revoked_at = NOW() WHERE jti_hash = $1 AND revoked_at IS NULL`

	if _, err := r.DB.ExecContext(ctx, query, jtiHash); err != nil {
		return util.LogError("не удалось отозвать refresh токен", translateError(err))
	}
	return nil
}

// DeleteExpired удаляет записи, истёкшие раньше before
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := `DELETE FROM refresh_tokens WHERE expires_at < $1`

	result, err := r.DB.ExecContext(ctx, query, before)
	if err != nil {
		return 0, util.LogError("не удалось удалить истёкшие refresh токены", translateError(err))
	}
	return result.RowsAffected()
}

func insertRefreshToken(ctx context.Context, exec sqlx.ExecerContext, token *model.RefreshToken) error {
	query := `INSERT INTO refresh_tokens (id, user_id, jti_hash, family_id, expires_at, ip_address, user_agent)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := exec.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.JTIHash,
		token.FamilyID,
		token.ExpiresAt,
		token.IPAddress,
		token.UserAgent,
	)
	return err
}
