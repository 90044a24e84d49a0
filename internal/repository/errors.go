package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"hr-auth-server/internal/errs"

	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// translateError переводит ошибки драйвера в sentinel-ошибки из errs.
// Исходная ошибка остаётся в цепочке для логов
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", errs.ErrNotFound, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == pqUniqueViolation {
			return fmt.Errorf("%w: %v", errs.ErrConflict, err)
		}
		// класс 08 - ошибки соединения, 57P - сервер останавливается
		if strings.HasPrefix(string(pqErr.Code), "08") || strings.HasPrefix(string(pqErr.Code), "57P") {
			return fmt.Errorf("%w: %v", errs.ErrServiceUnavailable, err)
		}
		return err
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", errs.ErrServiceUnavailable, err)
	}

	return err
}
