package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yourusername/proptrack-api/internal/pkg/errors"
	"github.com/yourusername/proptrack-api/internal/pkg/logger"
)

// handleError переводит ошибку сервиса в HTTP-ответ со стабильным error_type
func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrUpgradeRequired):
		c.JSON(http.StatusForbidden, gin.H{"error": "Для этого действия нужен аккаунт", "error_type": "upgrade_required"})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Ошибка аутентификации или неверные данные", "error_type": "unauthorized"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Доступ запрещен", "error_type": "forbidden"})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Запрашиваемый ресурс не найден", "error_type": "not_found"})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Конфликт данных", "error_type": "conflict"})
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrInvalidIdentity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
	case errors.Is(err, apperrors.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Хранилище личности недоступно", "error_type": "storage_unavailable"})
	default:
		logger.For("Handler").Errorw("Необработанная ошибка", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера", "error_type": "internal_server_error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error(), "error_type": "validation_error"})
}
