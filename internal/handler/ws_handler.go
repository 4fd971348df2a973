package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/proptrack-api/internal/middleware"
	"github.com/yourusername/proptrack-api/internal/pkg/logger"
	"github.com/yourusername/proptrack-api/internal/websocket"
)

// WSHandler подключает устройства к уведомлениям о смене состояния
type WSHandler struct {
	hub        *websocket.Hub
	upgrader   gorillaws.Upgrader
	sendBuffer int
	log        *zap.SugaredLogger
}

// NewWSHandler создает обработчик WebSocket. Пустой Origin (мобильные клиенты) разрешен
func NewWSHandler(hub *websocket.Hub, allowedOrigins []string, sendBuffer int) *WSHandler {
	h := &WSHandler{hub: hub, sendBuffer: sendBuffer, log: logger.For("WSHandler")}
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	h.upgrader = gorillaws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowed[origin]; ok {
				return true
			}
			h.log.Warnw("WebSocket: отклонен неразрешенный origin", "origin", origin)
			return false
		},
	}
	return h
}

// HandleConnection обрабатывает входящее WebSocket соединение
func (h *WSHandler) HandleConnection(c *gin.Context) {
	device := middleware.DeviceFrom(c)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже записал ответ об ошибке
		h.log.Warnw("Ошибка установки WebSocket соединения", "device_id", device, "error", err)
		return
	}
	client := websocket.NewClient(h.hub, conn, device, h.sendBuffer)
	h.log.Debugw("WebSocket подключен", "device_id", device, "conn_id", client.ConnectionID)
	client.Run()
}
