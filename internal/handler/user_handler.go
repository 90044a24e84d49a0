package handler

import (
	"errors"
	"net/http"

	"hr-auth-server/internal/errs"
	"hr-auth-server/internal/model/requestresponse"
	"hr-auth-server/internal/ports"
	"hr-auth-server/internal/security"

	"go.uber.org/zap"
)

type UserHandler struct {
	ports.UserService
	log *zap.Logger
}

func NewUserHandler(userService ports.UserService, log *zap.Logger) *UserHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserHandler{UserService: userService, log: log.Named("user_handler")}
}

// GetCurrentUser godoc
// @Summary Текущий пользователь
// @Description Профиль владельца access токена
// @Tags Users
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} requestresponse.CurrentUserResponse "Профиль"
// @Failure 401 {object} requestresponse.ErrorResponse "Нет или невалидный access токен"
// @Failure 503 {object} requestresponse.ErrorResponse "Хранилище недоступно"
// @Router /users/me [get]
func (h *UserHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	identity, err := security.IdentityFromContext(r.Context())
	if err != nil {
		sendErrorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.GetProfile(r.Context(), identity.UserID)
	if err != nil {
		// токен ещё жив, а пользователя уже нет
		if errors.Is(err, errs.ErrNotFound) {
			sendErrorResponse(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		handleServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, requestresponse.CurrentUserResponse{
		User: requestresponse.UserProfileFromModel(user),
	})
}
