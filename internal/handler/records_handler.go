package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/proptrack-api/internal/identity"
	"github.com/yourusername/proptrack-api/internal/middleware"
	"github.com/yourusername/proptrack-api/internal/service"
)

// RecordIDKey - ключ контекста для числового идентификатора записи
const RecordIDKey = "recordID"

// CreatePinRequest - запрос на отметку объявления
type CreatePinRequest struct {
	ListingID string `json:"listing_id" binding:"required,max=100"`
	Note      string `json:"note" binding:"max=500"`
}

// CreateCollectionRequest - запрос на создание подборки
type CreateCollectionRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=500"`
}

// RecordsHandler обрабатывает отметки и подборки текущей личности
type RecordsHandler struct {
	pins        *service.PinService
	collections *service.CollectionService
}

// NewRecordsHandler создает обработчик записей
func NewRecordsHandler(pins *service.PinService, collections *service.CollectionService) *RecordsHandler {
	return &RecordsHandler{pins: pins, collections: collections}
}

// requireIdentity возвращает личность для записи; новый посетитель получает временную
func requireIdentity(c *gin.Context) (identity.Identity, bool) {
	id, err := middleware.ControllerFrom(c).RequireIdentity(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return id, false
	}
	return id, true
}

// CreatePin отмечает объявление
func (h *RecordsHandler) CreatePin(c *gin.Context) {
	var req CreatePinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	pin, err := h.pins.Create(c.Request.Context(), id, req.ListingID, req.Note)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pin)
}

// ListPins возвращает отметки; у анонимного посетителя их нет
func (h *RecordsHandler) ListPins(c *gin.Context) {
	id := middleware.ControllerFrom(c).EffectiveIdentity()
	if id.IsAnonymous() {
		c.JSON(http.StatusOK, gin.H{"items": []interface{}{}})
		return
	}
	pins, err := h.pins.List(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": pins})
}

// DeletePin удаляет отметку
func (h *RecordsHandler) DeletePin(c *gin.Context) {
	id := middleware.ControllerFrom(c).EffectiveIdentity()
	if err := h.pins.Delete(c.Request.Context(), id, c.MustGet(RecordIDKey).(uint)); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateCollection создает подборку
func (h *RecordsHandler) CreateCollection(c *gin.Context) {
	var req CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	collection, err := h.collections.Create(c.Request.Context(), id, req.Name, req.Description)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, collection)
}

// ListCollections возвращает подборки
func (h *RecordsHandler) ListCollections(c *gin.Context) {
	id := middleware.ControllerFrom(c).EffectiveIdentity()
	if id.IsAnonymous() {
		c.JSON(http.StatusOK, gin.H{"items": []interface{}{}})
		return
	}
	collections, err := h.collections.List(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": collections})
}

// DeleteCollection удаляет подборку
func (h *RecordsHandler) DeleteCollection(c *gin.Context) {
	id := middleware.ControllerFrom(c).EffectiveIdentity()
	if err := h.collections.Delete(c.Request.Context(), id, c.MustGet(RecordIDKey).(uint)); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
