package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/proptrack-api/internal/domain/entity"
)

type brokenRevocations struct{}

func (brokenRevocations) Revoke(context.Context, string, time.Time) error {
	return errors.New("down")
}

func (brokenRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("down")
}

func TestJWTService_GenerateAndParse(t *testing.T) {
	svc, err := NewJWTService("secret", "", 1, nil)
	require.NoError(t, err)

	token, expiresAt, err := svc.GenerateToken(&entity.User{ID: 7, Email: "a@b.c", Role: entity.RoleAdmin})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.ParseToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, entity.RoleAdmin, claims.Role)
	assert.Equal(t, "7", claims.Subject)
	assert.Equal(t, "proptrack-api", claims.Issuer)
}

func TestJWTService_RejectsForeignSignature(t *testing.T) {
	a, _ := NewJWTService("secret-a", "", 1, nil)
	b, _ := NewJWTService("secret-b", "", 1, nil)
	token, _, err := a.GenerateToken(&entity.User{ID: 1})
	require.NoError(t, err)

	_, err = b.ParseToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = b.ParseToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestJWTService_Expired(t *testing.T) {
	svc, _ := NewJWTService("secret", "", 1, nil)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.GenerateToken(&entity.User{ID: 1})
	require.NoError(t, err)

	_, err = svc.ParseToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestJWTService_Revoke(t *testing.T) {
	ctx := context.Background()
	svc, _ := NewJWTService("secret", "", 1, nil)
	token, _, _ := svc.GenerateToken(&entity.User{ID: 1})

	require.NoError(t, svc.RevokeToken(ctx, token))
	_, err := svc.ParseToken(ctx, token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	assert.NoError(t, svc.RevokeToken(ctx, token), "Повторный отзыв не должен быть ошибкой")
}

func TestJWTService_RevocationStoreDownFailsOpen(t *testing.T) {
	svc, _ := NewJWTService("secret", "", 1, brokenRevocations{})
	token, _, _ := svc.GenerateToken(&entity.User{ID: 3})

	claims, err := svc.ParseToken(context.Background(), token)

	require.NoError(t, err)
	assert.Equal(t, uint(3), claims.UserID)
}

func TestNewJWTService_RequiresSecret(t *testing.T) {
	_, err := NewJWTService("", "", 1, nil)
	assert.Error(t, err)
}
