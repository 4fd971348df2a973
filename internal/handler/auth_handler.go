package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/proptrack-api/internal/authstate"
	"github.com/yourusername/proptrack-api/internal/middleware"
	apperrors "github.com/yourusername/proptrack-api/internal/pkg/errors"
	"github.com/yourusername/proptrack-api/internal/pkg/logger"
)

// CookieConfig - параметры cookie токена доступа
type CookieConfig struct {
	Domain string
	Secure bool
}

// AuthHandler обрабатывает регистрацию, вход и выход
type AuthHandler struct {
	sessions authstate.SessionProvider
	cookies  CookieConfig
	log      *zap.SugaredLogger
}

// NewAuthHandler создает новый обработчик аутентификации
func NewAuthHandler(sessions authstate.SessionProvider, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{sessions: sessions, cookies: cookies, log: logger.For("AuthHandler")}
}

// SessionEventRequest - уведомление клиента о смене сессии вне этого API
type SessionEventRequest struct {
	Type        authstate.SessionEventType `json:"type" binding:"required,oneof=SIGNED_IN SIGNED_OUT"`
	AccessToken string                     `json:"access_token"`
}

// SignUp обрабатывает запрос на регистрацию
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req authstate.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := middleware.ControllerFrom(c).SignUp(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	h.respondAuth(c, http.StatusCreated, result)
}

// SignIn обрабатывает запрос на вход
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req authstate.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := middleware.ControllerFrom(c).SignIn(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	h.respondAuth(c, http.StatusOK, result)
}

// SignOut завершает сессию устройства
func (h *AuthHandler) SignOut(c *gin.Context) {
	if err := middleware.ControllerFrom(c).SignOut(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	h.setAccessCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// SessionEvent применяет смену сессии, о которой сообщил клиент
func (h *AuthHandler) SessionEvent(c *gin.Context) {
	var req SessionEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	ev := authstate.SessionEvent{Type: req.Type}
	if req.Type == authstate.SessionSignedIn {
		session, err := h.sessions.CurrentSession(ctx, req.AccessToken)
		if err != nil {
			handleError(c, fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err))
			return
		}
		ev.Session = session
	}

	result, err := middleware.ControllerFrom(c).HandleSessionEvent(ctx, ev)
	if err != nil {
		handleError(c, err)
		return
	}
	if result == nil {
		h.setAccessCookie(c, "", -1)
		c.JSON(http.StatusOK, gin.H{"state": authstate.StateAnonymous})
		return
	}
	h.respondAuth(c, http.StatusOK, result)
}

func (h *AuthHandler) respondAuth(c *gin.Context, status int, result *authstate.AuthResult) {
	maxAge := int(time.Until(result.Session.ExpiresAt).Seconds())
	h.setAccessCookie(c, result.Session.AccessToken, maxAge)
	if result.Merge != nil && !result.Merge.Success {
		h.log.Warnw("Слияние завершилось частично", "user_id", result.Session.UserID, "failures", result.Merge.Failures)
	}
	c.JSON(status, gin.H{
		"session":       result.Session,
		"merge":         result.Merge,
		"merge_pending": result.MergePending,
		"token_type":    "Bearer",
	})
}

func (h *AuthHandler) setAccessCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessCookieName, token, maxAge, "/", h.cookies.Domain, h.cookies.Secure, true)
}
