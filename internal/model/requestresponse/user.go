package requestresponse

import (
	"time"

	"hr-auth-server/internal/model"
)

// ErrorDetail : детальная информация об ошибке
type ErrorDetail struct {
	Code int    `json:"code" example:"401"`
	Text string `json:"text" example:"Invalid credentials"`
}

// ErrorResponse : стандартная структура ошибки
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// UserProfile : публичные поля пользователя
type UserProfile struct {
	ID            string    `json:"id" example:"123e4567-e89b-12d3-a456-426614174000"`
	Email         string    `json:"email" example:"jane.doe@example.com"`
	Name          *string   `json:"name,omitempty" example:"Jane Doe"`
	Provider      string    `json:"provider" example:"LOCAL"`
	Role          string    `json:"role" example:"HR_MANAGER"`
	EmailVerified bool      `json:"emailVerified" example:"false"`
	CreatedAt     time.Time `json:"createdAt" example:"2025-08-23T12:34:56Z"`
}

// CurrentUserResponse : ответ GET /users/me
type CurrentUserResponse struct {
	User UserProfile `json:"user"`
}

// UserProfileFromModel : конвертирует model.User в UserProfile
func UserProfileFromModel(user *model.User) UserProfile {
	return UserProfile{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		Provider:      string(user.Provider),
		Role:          string(user.Role),
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
	}
}

// HealthResponse : ответ /healthz
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}
