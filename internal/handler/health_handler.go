package handler

import (
	"context"
	"net/http"

	"hr-auth-server/internal/model/requestresponse"

	"go.uber.org/zap"
)

// HealthChecker : config.Database
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db  HealthChecker
	log *zap.Logger
}

func NewHealthHandler(db HealthChecker, log *zap.Logger) *HealthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HealthHandler{db: db, log: log}
}

// Health godoc
// @Summary Проверка живости
// @Tags Health
// @Produce json
// @Success 200 {object} requestresponse.HealthResponse
// @Failure 503 {object} requestresponse.HealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.HealthCheck(r.Context()); err != nil {
		h.log.Error("health check не пройден", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, requestresponse.HealthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, requestresponse.HealthResponse{Status: "ok"})
}
