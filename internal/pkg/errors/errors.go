package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок авторизации (неверный токен, неверные учетные данные).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда у пользователя недостаточно прав для действия.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrConflict используется для конфликтов состояния (дубликат email, уже существующая запись слияния).
	ErrConflict = errors.New("resource state conflict")

	// ErrStorageUnavailable означает, что ни один из каналов хранения временной личности недоступен.
	ErrStorageUnavailable = errors.New("identity storage unavailable")

	// ErrInvalidIdentity используется, когда значение не проходит проверку формата временной личности.
	ErrInvalidIdentity = errors.New("invalid identity format")

	// ErrUpgradeRequired возвращается, когда действие требует постоянного аккаунта.
	ErrUpgradeRequired = errors.New("account upgrade required")
)
