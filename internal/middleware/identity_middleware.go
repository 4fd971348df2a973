package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/proptrack-api/internal/authstate"
	"github.com/yourusername/proptrack-api/internal/pkg/logger"
)

// Имена cookie, заголовков и ключей контекста gin
const (
	DeviceCookieName = "device_id"
	DeviceHeader     = "X-Device-ID"
	AccessCookieName = "access_token"

	ctxDevice     = "device_id"
	ctxSession    = "session"
	ctxController = "identity_controller"
	ctxToken      = "access_token"
)

const activityTimeout = 2 * time.Second

// ActivityRecorder обновляет активность временной личности
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, tempID string)
}

// IdentityConfig - параметры cookie устройства
type IdentityConfig struct {
	CookieMaxAge time.Duration
	CookieDomain string
	Secure       bool
}

// IdentityMiddleware восстанавливает устройство, сессию и состояние личности для каждого запроса
type IdentityMiddleware struct {
	factory  *authstate.Factory
	sessions authstate.SessionProvider
	activity ActivityRecorder
	cfg      IdentityConfig
	log      *zap.SugaredLogger
}

// NewIdentityMiddleware создает middleware личности
func NewIdentityMiddleware(factory *authstate.Factory, sessions authstate.SessionProvider, activity ActivityRecorder, cfg IdentityConfig) *IdentityMiddleware {
	return &IdentityMiddleware{
		factory:  factory,
		sessions: sessions,
		activity: activity,
		cfg:      cfg,
		log:      logger.For("IdentityMiddleware"),
	}
}

// Device определяет идентификатор устройства из cookie или заголовка, выдавая новый при отсутствии
func (m *IdentityMiddleware) Device() gin.HandlerFunc {
	return func(c *gin.Context) {
		device := ""
		if v, err := c.Cookie(DeviceCookieName); err == nil && isDeviceID(v) {
			device = v
		} else if v := c.GetHeader(DeviceHeader); isDeviceID(v) {
			device = v
		}
		if device == "" {
			device = uuid.NewString()
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(DeviceCookieName, device, int(m.cfg.CookieMaxAge.Seconds()), "/", m.cfg.CookieDomain, m.cfg.Secure, true)
		c.Set(ctxDevice, device)
		c.Next()
	}
}

// Session восстанавливает постоянную сессию по токену, если он передан.
// Недействительный токен не прерывает запрос: посетитель остается без сессии.
func (m *IdentityMiddleware) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.Next()
			return
		}
		session, err := m.sessions.CurrentSession(c.Request.Context(), token)
		if err != nil {
			m.log.Debugw("Токен не восстановил сессию", "error", err)
			c.Next()
			return
		}
		c.Set(ctxToken, token)
		c.Set(ctxSession, session)
		c.Next()
	}
}

// Controller создает контроллер состояния для устройства и отмечает активность временной личности
func (m *IdentityMiddleware) Controller() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ctrl := m.factory.Resolve(ctx, DeviceFrom(c), SessionFrom(c))
		c.Set(ctxController, ctrl)

		// Временная личность, оставшаяся рядом с сессией, сливается при первом же запросе
		if outcome, pending := ctrl.MergeUnmerged(ctx); pending {
			m.log.Infow("Слияние оставшейся временной личности продолжается в фоне", "device_id", ctrl.Device())
		} else if outcome != nil && !outcome.Success {
			m.log.Warnw("Слияние оставшейся временной личности завершилось частично", "device_id", ctrl.Device(), "failures", outcome.Failures)
		}

		if ctrl.IsTemporary() && m.activity != nil {
			actx, cancel := context.WithTimeout(ctx, activityTimeout)
			m.activity.RecordActivity(actx, ctrl.EffectiveIdentity().Value)
			cancel()
		}
		c.Next()
	}
}

// RequireSession пропускает только запросы с постоянной сессией
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if SessionFrom(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
			return
		}
		c.Next()
	}
}

// AdminOnly пропускает только администраторов
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := SessionFrom(c)
		if session == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
			return
		}
		if session.Role != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin rights required", "error_type": "forbidden"})
			return
		}
		c.Next()
	}
}

// DeviceFrom возвращает идентификатор устройства запроса
func DeviceFrom(c *gin.Context) string {
	return c.GetString(ctxDevice)
}

// SessionFrom возвращает постоянную сессию запроса или nil
func SessionFrom(c *gin.Context) *authstate.Session {
	v, ok := c.Get(ctxSession)
	if !ok {
		return nil
	}
	s, _ := v.(*authstate.Session)
	return s
}

// ControllerFrom возвращает контроллер состояния запроса
func ControllerFrom(c *gin.Context) *authstate.Controller {
	v, ok := c.Get(ctxController)
	if !ok {
		return nil
	}
	ctrl, _ := v.(*authstate.Controller)
	return ctrl
}

func extractToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if v, err := c.Cookie(AccessCookieName); err == nil {
		return v
	}
	return ""
}

func isDeviceID(v string) bool {
	if v == "" {
		return false
	}
	_, err := uuid.Parse(v)
	return err == nil
}
