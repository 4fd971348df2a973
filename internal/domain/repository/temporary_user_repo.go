package repository

import "context"

// TemporaryUserRepository хранит серверные регистрации временных личностей
type TemporaryUserRepository interface {
	Register(ctx context.Context, tempID string) error
	Touch(ctx context.Context, tempID string) error
}
