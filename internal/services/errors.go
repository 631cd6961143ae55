package services

import "errors"

var (
	// ErrValidation — не передано обязательное поле (email, token, новый пароль).
	ErrValidation = errors.New("validation error")

	ErrTokenNotFound    = errors.New("reset token not found")
	ErrTokenAlreadyUsed = errors.New("reset token already used")
	ErrTokenExpired     = errors.New("reset token expired")

	// ErrPersistence — сбой записи/чтения таблицы токенов; всегда 500.
	ErrPersistence = errors.New("persistence error")
	// ErrCredentialUpdate — не удалось заменить пароль; токен при этом не считается использованным.
	ErrCredentialUpdate = errors.New("credential update error")
)

// IsTokenError — любая из трёх причин отказа по токену.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenAlreadyUsed) ||
		errors.Is(err, ErrTokenExpired)
}
