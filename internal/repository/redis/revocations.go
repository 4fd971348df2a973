package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const revokedPrefix = "jwt:revoked:"

// Revocations хранит отозванные токены в Redis с истечением по сроку токена
type Revocations struct {
	client redis.UniversalClient
}

// NewRevocations создает хранилище отзывов
func NewRevocations(client redis.UniversalClient) (*Revocations, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil for token revocations")
	}
	return &Revocations{client: client}, nil
}

// Revoke отмечает токен отозванным до момента until
func (r *Revocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedPrefix+tokenID, 1, ttl).Err()
}

// IsRevoked сообщает, отозван ли токен
func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
