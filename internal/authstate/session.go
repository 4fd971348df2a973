package authstate

import (
	"context"
	"time"
)

// Session - постоянная сессия, выданная провайдером аутентификации
type Session struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	Role        string    `json:"-"`
	AccessToken string    `json:"access_token,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Credentials - данные для регистрации и входа
type Credentials struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name"`
}

// SessionProvider - провайдер постоянных сессий
type SessionProvider interface {
	SignUp(ctx context.Context, creds Credentials) (*Session, error)
	SignIn(ctx context.Context, creds Credentials) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	CurrentSession(ctx context.Context, accessToken string) (*Session, error)
}

// SessionEventType - тип события провайдера сессий
type SessionEventType string

const (
	SessionSignedIn  SessionEventType = "SIGNED_IN"
	SessionSignedOut SessionEventType = "SIGNED_OUT"
)

// SessionEvent - уведомление провайдера об изменении сессии
type SessionEvent struct {
	Type    SessionEventType `json:"type"`
	Session *Session         `json:"session,omitempty"`
}
