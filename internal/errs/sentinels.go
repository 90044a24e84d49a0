// Package errs содержит sentinel-ошибки, общие для repository/service/handler слоёв.
// Хендлеры отображают их в HTTP-статусы через errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized : отсутствующие или невалидные учётные данные (401)
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials : неверная пара email/пароль. Не раскрывает, какое поле неверно
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)

	// ErrInvalidToken : подпись, срок действия, тип или состав claims не прошли проверку
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrUnauthorized)

	// ErrTokenReuse : повторное предъявление уже ротированного refresh-токена, семейство отозвано
	ErrTokenReuse = fmt.Errorf("%w: refresh token reuse detected", ErrUnauthorized)

	// ErrRotationConflict : конкурентный refresh уже ротировал этот токен
	ErrRotationConflict = fmt.Errorf("%w: refresh token already rotated", ErrInvalidToken)

	ErrForbidden = errors.New("forbidden")

	// ErrConflict : нарушение уникальности (email уже занят)
	ErrConflict = errors.New("already exists")

	ErrInvalidRequest = errors.New("invalid request")

	ErrNotFound = errors.New("not found")

	// ErrServiceUnavailable : хранилище недоступно
	ErrServiceUnavailable = errors.New("service unavailable")

	ErrRateLimited = errors.New("rate limited")
)
