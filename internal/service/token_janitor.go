package service

import (
	"context"
	"time"

	"hr-auth-server/internal/ports"

	"go.uber.org/zap"
)

// TokenJanitor периодически удаляет refresh-записи, истёкшие больше retain назад.
// Пока запись жива, она нужна для обнаружения повторного использования
type TokenJanitor struct {
	tokens   ports.RefreshTokenStore
	interval time.Duration
	retain   time.Duration
	log      *zap.Logger
}

func NewTokenJanitor(tokens ports.RefreshTokenStore, interval, retain time.Duration, log *zap.Logger) *TokenJanitor {
	return &TokenJanitor{tokens: tokens, interval: interval, retain: retain, log: log}
}

// Run блокируется до отмены ctx
func (j *TokenJanitor) Run(ctx context.Context) {
	if j.interval <= 0 {
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
				j.log.Warn("очистка refresh токенов не удалась", zap.Error(err))
			}
		}
	}
}

func (j *TokenJanitor) RunOnce(ctx context.Context) (int64, error) {
	deleted, err := j.tokens.DeleteExpired(ctx, timeNow().Add(-j.retain))
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		j.log.Info("удалены истёкшие refresh токены", zap.Int64("count", deleted))
	}
	return deleted, nil
}
