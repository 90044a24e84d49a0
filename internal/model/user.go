package model

import (
	"fmt"
	"strings"
	"time"
)

// Provider : способ, которым пользователь был создан
type Provider string

const (
	ProviderLocal  Provider = "LOCAL"
	ProviderGoogle Provider = "GOOGLE"
)

// Role : закрытый набор бизнес-ролей. Значения вне набора отклоняются в ParseRole
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleHRAdmin    Role = "HR_ADMIN"
	RoleHRManager  Role = "HR_MANAGER"
)

// DefaultRole назначается при самостоятельной регистрации и первом входе через Google
const DefaultRole = RoleHRManager

func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleSuperAdmin, RoleHRAdmin, RoleHRManager:
		return Role(value), nil
	default:
		return "", fmt.Errorf("неизвестная роль %q", value)
	}
}

type User struct {
	ID            string    `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	Name          *string   `db:"name" json:"name,omitempty"`
	PasswordHash  *string   `db:"password_hash" json:"-"`
	Provider      Provider  `db:"provider" json:"provider"`
	GoogleID      *string   `db:"google_id" json:"-"`
	EmailVerified bool      `db:"email_verified" json:"emailVerified"`
	Role          Role      `db:"role" json:"role"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// DisplayName : имя пользователя или пустая строка
func (u *User) DisplayName() string {
	if u.Name == nil {
		return ""
	}
	return *u.Name
}

// HasPassword : у OAuth-пользователей хэша пароля может не быть
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// NormalizeEmail приводит email к виду, в котором он хранится в БД
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ExternalIdentity : проверенная личность от внешнего провайдера (Google)
type ExternalIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}
