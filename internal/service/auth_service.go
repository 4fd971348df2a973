package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/proptrack-api/internal/authstate"
	"github.com/yourusername/proptrack-api/internal/domain/entity"
	"github.com/yourusername/proptrack-api/internal/domain/repository"
	apperrors "github.com/yourusername/proptrack-api/internal/pkg/errors"
	"github.com/yourusername/proptrack-api/internal/pkg/logger"
	"github.com/yourusername/proptrack-api/pkg/auth"
)

const welcomeEmailTimeout = 30 * time.Second

// AuthService - провайдер постоянных сессий на основе пользователей и JWT
type AuthService struct {
	userRepo   repository.UserRepository
	jwtService *auth.JWTService
	email      EmailService

	wg  sync.WaitGroup
	log *zap.SugaredLogger
}

var _ authstate.SessionProvider = (*AuthService)(nil)

// NewAuthService создает сервис аутентификации и возвращает ошибку при проблемах
func NewAuthService(userRepo repository.UserRepository, jwtService *auth.JWTService, email EmailService) (*AuthService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("UserRepository is required for AuthService")
	}
	if jwtService == nil {
		return nil, fmt.Errorf("JWTService is required for AuthService")
	}
	if email == nil {
		email = NoopEmailService{}
	}
	return &AuthService{
		userRepo:   userRepo,
		jwtService: jwtService,
		email:      email,
		log:        logger.For("AuthService"),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp создает пользователя и выдает сессию
func (s *AuthService) SignUp(ctx context.Context, creds authstate.Credentials) (*authstate.Session, error) {
	email := normalizeEmail(creds.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", apperrors.ErrValidation)
	}
	if len(creds.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", apperrors.ErrValidation)
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", apperrors.ErrConflict)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	user := &entity.User{
		Email:       email,
		Password:    creds.Password,
		DisplayName: strings.TrimSpace(creds.DisplayName),
		Role:        entity.RoleUser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("%w: email already registered", apperrors.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.log.Infow("Пользователь зарегистрирован", "user_id", user.ID)

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.sendWelcome(user)
	return session, nil
}

// SignIn проверяет пароль и выдает сессию
func (s *AuthService) SignIn(ctx context.Context, creds authstate.Credentials) (*authstate.Session, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(creds.Email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.CheckPassword(creds.Password) {
		s.log.Infow("Неверный пароль", "user_id", user.ID)
		return nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
	}
	return s.issue(user)
}

// SignOut отзывает токен доступа. Пустой токен не является ошибкой
func (s *AuthService) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	if err := s.jwtService.RevokeToken(ctx, accessToken); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// CurrentSession восстанавливает сессию по токену доступа
func (s *AuthService) CurrentSession(ctx context.Context, accessToken string) (*authstate.Session, error) {
	claims, err := s.jwtService.ParseToken(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
	}
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: user no longer exists", apperrors.ErrUnauthorized)
		}
		return nil, err
	}
	return &authstate.Session{
		UserID:      user.PermanentID(),
		Email:       user.Email,
		Role:        user.Role,
		AccessToken: accessToken,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// Wait дожидается отправки фоновых писем
func (s *AuthService) Wait() {
	s.wg.Wait()
}

func (s *AuthService) issue(user *entity.User) (*authstate.Session, error) {
	token, expiresAt, err := s.jwtService.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &authstate.Session{
		UserID:      user.PermanentID(),
		Email:       user.Email,
		Role:        user.Role,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *AuthService) sendWelcome(user *entity.User) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), welcomeEmailTimeout)
		defer cancel()
		key := "welcome-" + user.PermanentID()
		if err := s.email.SendWelcome(ctx, user.Email, user.DisplayName, key); err != nil {
			s.log.Warnw("Не удалось отправить приветственное письмо", "user_id", user.ID, "error", err)
		}
	}()
}
