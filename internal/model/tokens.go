package model

import "time"

// RefreshToken : запись о выданном refresh-токене.
// Хранится только sha256 от jti, сам jti в БД не попадает
type RefreshToken struct {
	ID             string     `db:"id"`
	UserID         string     `db:"user_id"`
	JTIHash        string     `db:"jti_hash"`
	FamilyID       string     `db:"family_id"`
	ExpiresAt      time.Time  `db:"expires_at"`
	RevokedAt      *time.Time `db:"revoked_at"`
	ReplacedByHash *string    `db:"replaced_by_hash"`
	IPAddress      *string    `db:"ip_address"`
	UserAgent      *string    `db:"user_agent"`
	CreatedAt      time.Time  `db:"created_at"`
}

func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokenPair : результат выдачи сессии, в БД не сохраняется
// swagger:model
type TokenPair struct {
	// Access токен (JWT)
	// example: eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9...
	AccessToken string `json:"accessToken"`

	// Refresh токен, уходит только в httpOnly cookie
	RefreshToken string `json:"-"`

	// CSRF токен для double-submit
	CSRFToken string `json:"-"`

	RefreshExpiresAt time.Time `json:"-"`
}

// ClientMeta : данные клиента на момент выдачи токена
type ClientMeta struct {
	IPAddress string
	UserAgent string
}
