package util

import (
	"fmt"

	"go.uber.org/zap"
)

// LogError пишет ошибку в глобальный zap-логгер и возвращает её обёрнутой сообщением
func LogError(message string, err error) error {
	zap.L().WithOptions(zap.AddCallerSkip(1)).Error(message, zap.Error(err))
	return fmt.Errorf("%s: %w", message, err)
}
