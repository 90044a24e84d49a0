package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"hr-auth-server/internal/errs"
	"hr-auth-server/internal/model/requestresponse"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// errorStatus : ошибки сервисов -> статус и короткое сообщение для клиента.
// Порядок важен, более узкие ошибки раньше
var errorStatus = []struct {
	err     error
	status  int
	message string
}{
	{errs.ErrTokenReuse, http.StatusUnauthorized, "Refresh token reuse detected"},
	{errs.ErrRotationConflict, http.StatusUnauthorized, "Refresh token already used"},
	{errs.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{errs.ErrInvalidToken, http.StatusUnauthorized, "Invalid or expired token"},
	{errs.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	{errs.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{errs.ErrConflict, http.StatusConflict, "Email already in use"},
	{errs.ErrNotFound, http.StatusNotFound, "Not found"},
	{errs.ErrRateLimited, http.StatusTooManyRequests, "Too many requests, please try again later"},
	{errs.ErrServiceUnavailable, http.StatusServiceUnavailable, "Service temporarily unavailable"},
}

// handleServiceError пишет ответ по ошибке сервиса. Неизвестные ошибки логируются
// целиком и отдаются клиенту как 500 без деталей
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	if errors.Is(err, errs.ErrInvalidRequest) {
		sendErrorResponse(w, http.StatusBadRequest, invalidRequestMessage(err))
		return
	}

	for _, mapping := range errorStatus {
		if errors.Is(err, mapping.err) {
			if mapping.status >= http.StatusInternalServerError {
				log.Error("хранилище недоступно", zap.Error(err))
			} else {
				log.Debug("запрос отклонён", zap.Int("status", mapping.status), zap.Error(err))
			}
			sendErrorResponse(w, mapping.status, mapping.message)
			return
		}
	}

	log.Error("необработанная ошибка", zap.Error(err))
	sendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
}

// invalidRequestMessage : текст после "invalid request: ", он пишется для клиента
func invalidRequestMessage(err error) string {
	prefix := errs.ErrInvalidRequest.Error() + ": "
	msg := err.Error()
	if idx := strings.Index(msg, prefix); idx >= 0 {
		return msg[idx+len(prefix):]
	}
	return "Invalid request"
}

// sendErrorResponse отправляет ответ об ошибке JSON с указанным кодом статуса и сообщением
func sendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, requestresponse.ErrorResponse{
		Error: requestresponse.ErrorDetail{
			Code: statusCode,
			Text: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeJSON обрабатывает декодирование JSON и возвращает ответ об ошибке, если декодирование не удалось.
func decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(target); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return err
	}
	return nil
}
