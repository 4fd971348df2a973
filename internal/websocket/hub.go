// Package websocket доставляет устройствам уведомления о смене состояния аутентификации.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/proptrack-api/internal/authstate"
	"github.com/yourusername/proptrack-api/internal/pkg/logger"
)

// MessageTypeIdentityState - тип сообщения о смене состояния
const MessageTypeIdentityState = "identity_state"

// Message - сообщение, отправляемое клиенту
type Message struct {
	Type string                `json:"type"`
	Data authstate.StateChange `json:"data"`
}

// ClusterMessage - конверт для пересылки между экземплярами
type ClusterMessage struct {
	InstanceID string          `json:"instance_id"`
	Device     string          `json:"device_id"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Hub хранит локальные соединения по устройствам и пересылает уведомления
// другим экземплярам через PubSubProvider.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{}
	provider   PubSubProvider
	channel    string
	instanceID string

	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *zap.SugaredLogger
}

// NewHub создает хаб; nil provider означает автономный режим
func NewHub(provider PubSubProvider, channel string) *Hub {
	if provider == nil {
		provider = NoOpPubSub{}
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		provider:   provider,
		channel:    channel,
		instanceID: uuid.NewString(),
		log:        logger.For("WSHub"),
	}
}

// InstanceID возвращает идентификатор экземпляра
func (h *Hub) InstanceID() string {
	return h.instanceID
}

// Start подписывается на кластерный канал
func (h *Hub) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	msgCh, err := h.provider.Subscribe(ctx, h.channel)
	if err != nil {
		cancel()
		return err
	}
	h.cancel = cancel

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for data := range msgCh {
			var msg ClusterMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				h.log.Warnw("Не удалось разобрать кластерное сообщение", "error", err)
				continue
			}
			if msg.InstanceID == h.instanceID {
				continue
			}
			h.deliverLocal(msg.Device, msg.Payload)
		}
	}()
	h.log.Infow("Хаб запущен", "instance_id", h.instanceID, "channel", h.channel)
	return nil
}

// Stop отписывается и закрывает все локальные соединения
func (h *Hub) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()

	h.mu.Lock()
	for device, set := range h.clients {
		for c := range set {
			c.close()
		}
		delete(h.clients, device)
	}
	h.mu.Unlock()
}

// Register добавляет соединение
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.Device]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.Device] = set
	}
	set[c] = struct{}{}
}

// Unregister удаляет соединение и закрывает его очередь отправки
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.Device]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.Device)
		}
	}
	h.mu.Unlock()
	c.close()
}

// ClientCount возвращает количество локальных соединений
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// OnStateChange отправляет уведомление соединениям устройства на всех экземплярах
func (h *Hub) OnStateChange(device string, change authstate.StateChange) {
	payload, err := json.Marshal(Message{Type: MessageTypeIdentityState, Data: change})
	if err != nil {
		h.log.Errorw("Не удалось сериализовать уведомление", "device_id", device, "error", err)
		return
	}
	h.deliverLocal(device, payload)

	data, err := json.Marshal(ClusterMessage{
		InstanceID: h.instanceID,
		Device:     device,
		Payload:    payload,
		Timestamp:  time.Now(),
	})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.provider.Publish(ctx, h.channel, data); err != nil {
		h.log.Warnw("Не удалось опубликовать уведомление в кластер", "device_id", device, "error", err)
	}
}

func (h *Hub) deliverLocal(device string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[device] {
		if !c.trySend(payload) {
			h.log.Warnw("Очередь отправки клиента переполнена, сообщение отброшено", "device_id", device, "conn_id", c.ConnectionID)
		}
	}
}
