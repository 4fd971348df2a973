package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/yourusername/proptrack-api/internal/pkg/logger"
)

// RateLimitConfig содержит настройки rate limiting
type RateLimitConfig struct {
	// MaxRequests - максимальное количество запросов за Window
	MaxRequests int
	// Window - временное окно для подсчёта запросов
	Window time.Duration
	// KeyPrefix - префикс для ключей в Redis
	KeyPrefix string
}

// AuthRateLimitConfig - лимит для входа и регистрации (защита от перебора)
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{MaxRequests: 10, Window: time.Minute, KeyPrefix: "rl:auth"}
}

// DeviceRateLimitConfig - общий лимит записей для одного устройства
func DeviceRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{MaxRequests: 120, Window: time.Minute, KeyPrefix: "rl:device"}
}

// RateLimiter - middleware ограничения частоты на основе счетчиков Redis
type RateLimiter struct {
	redisClient redis.UniversalClient
	log         *zap.SugaredLogger
}

// NewRateLimiter создает новый RateLimiter
func NewRateLimiter(redisClient redis.UniversalClient) *RateLimiter {
	return &RateLimiter{redisClient: redisClient, log: logger.For("RateLimiter")}
}

// Limit ограничивает запросы по IP и маршруту
func (rl *RateLimiter) Limit(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		rl.apply(c, cfg, fmt.Sprintf("%s:%s:%s", cfg.KeyPrefix, c.ClientIP(), path))
	}
}

// LimitByDevice ограничивает запросы по устройству; без устройства используется IP
func (rl *RateLimiter) LimitByDevice(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := DeviceFrom(c)
		if subject == "" {
			subject = c.ClientIP()
		}
		rl.apply(c, cfg, fmt.Sprintf("%s:%s", cfg.KeyPrefix, subject))
	}
}

func (rl *RateLimiter) apply(c *gin.Context, cfg RateLimitConfig, key string) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	count, err := rl.redisClient.Incr(ctx, key).Result()
	if err != nil {
		// При ошибке Redis запрос пропускается
		rl.log.Warnw("Ошибка Redis, запрос пропущен без лимита", "key", key, "error", err)
		c.Next()
		return
	}
	if count == 1 {
		if err := rl.redisClient.Expire(ctx, key, cfg.Window).Err(); err != nil {
			rl.log.Warnw("Не удалось установить TTL", "key", key, "error", err)
		}
	}

	remaining := max(cfg.MaxRequests-int(count), 0)
	ttl, _ := rl.redisClient.TTL(ctx, key).Result()
	retryAfter := int(ttl.Seconds())
	if retryAfter < 0 {
		retryAfter = int(cfg.Window.Seconds())
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.Itoa(retryAfter))

	if int(count) > cfg.MaxRequests {
		rl.log.Infow("Превышен лимит запросов", "key", key, "count", count, "limit", cfg.MaxRequests)
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "Too many requests. Please try again later.",
			"error_type":  "rate_limited",
			"retry_after": retryAfter,
		})
		return
	}
	c.Next()
}
