package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/proptrack-api/internal/middleware"
	"github.com/yourusername/proptrack-api/internal/service"
)

// IdentityHandler отдает текущую личность устройства и решения политики
type IdentityHandler struct {
	gate *service.GateService
}

// NewIdentityHandler создает обработчик личности
func NewIdentityHandler(gate *service.GateService) *IdentityHandler {
	return &IdentityHandler{gate: gate}
}

// GetIdentity возвращает эффективную личность, создавая временную для нового посетителя
func (h *IdentityHandler) GetIdentity(c *gin.Context) {
	ctrl := middleware.ControllerFrom(c)
	id, err := ctrl.RequireIdentity(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":            ctrl.State(),
		"identity":         id.Value,
		"kind":             id.Kind,
		"is_authenticated": id.IsAuthenticated(),
		"is_temporary":     id.IsTemporary(),
	})
}

// CheckGate сообщает, требует ли действие постоянного аккаунта
func (h *IdentityHandler) CheckGate(c *gin.Context) {
	action := c.Param("action")
	ctrl := middleware.ControllerFrom(c)
	needs, err := h.gate.NeedsUpgrade(c.Request.Context(), ctrl.EffectiveIdentity(), action)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"action": action, "needs_upgrade": needs})
}
