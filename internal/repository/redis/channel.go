package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	apperrors "github.com/yourusername/proptrack-api/internal/pkg/errors"
)

// keyPrefix отделяет ключи личности от прочих данных в Redis
const keyPrefix = "identity:"

// Channel - основной канал хранения временной личности со сроком жизни
type Channel struct {
	client redis.UniversalClient
}

// NewChannel создает канал и возвращает ошибку при отсутствии клиента
func NewChannel(client redis.UniversalClient) (*Channel, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil for identity channel")
	}
	return &Channel{client: client}, nil
}

// Read получает значение из Redis
func (c *Channel) Read(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.ErrNotFound
		}
		return "", err
	}
	return val, nil
}

// Write сохраняет значение; ttl <= 0 означает бессрочное хранение
func (c *Channel) Write(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return c.client.Set(ctx, keyPrefix+key, value, ttl).Err()
}

// Remove удаляет значение
func (c *Channel) Remove(ctx context.Context, key string) error {
	return c.client.Del(ctx, keyPrefix+key).Err()
}
