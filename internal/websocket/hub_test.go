package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/proptrack-api/internal/authstate"
	"github.com/yourusername/proptrack-api/internal/identity"
)

// memoryPubSub - общая шина для нескольких хабов в одном процессе
type memoryPubSub struct {
	mu   sync.Mutex
	subs []chan []byte
}

func (p *memoryPubSub) Publish(_ context.Context, _ string, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		ch <- message
	}
	return nil
}

func (p *memoryPubSub) Subscribe(ctx context.Context, _ string) (<-chan []byte, error) {
	in := make(chan []byte, 16)
	out := make(chan []byte, 16)
	p.mu.Lock()
	p.subs = append(p.subs, in)
	p.mu.Unlock()
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-in:
				out <- m
			}
		}
	}()
	return out, nil
}

func (p *memoryPubSub) Close() error { return nil }

func newTestClient(h *Hub, device string) *Client {
	return &Client{Device: device, ConnectionID: device + "-conn", hub: h, send: make(chan []byte, 4)}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case raw := <-c.send:
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("Сообщение не доставлено")
		return Message{}
	}
}

func TestHub_DeliversToDeviceOnly(t *testing.T) {
	// Arrange
	h := NewHub(nil, "identity_state_events")
	target := newTestClient(h, "device-a")
	other := newTestClient(h, "device-b")
	h.Register(target)
	h.Register(other)

	// Act
	h.OnStateChange("device-a", authstate.StateChange{
		From:     authstate.StateAnonymous,
		To:       authstate.StateTemporary,
		Identity: identity.Temporary("temp_x"),
	})

	// Assert
	msg := receive(t, target)
	assert.Equal(t, MessageTypeIdentityState, msg.Type)
	assert.Equal(t, authstate.StateTemporary, msg.Data.To)
	assert.Equal(t, "temp_x", msg.Data.Identity.Value)
	assert.Empty(t, other.send, "Другое устройство не должно получать уведомление")
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	h := NewHub(nil, "ch")
	c := newTestClient(h, "device-a")
	h.Register(c)
	require.Equal(t, 1, h.ClientCount())

	h.Unregister(c)
	h.Unregister(c)

	assert.Equal(t, 0, h.ClientCount())
	_, ok := <-c.send
	assert.False(t, ok, "Очередь отправки должна быть закрыта")
	assert.NotPanics(t, func() {
		h.OnStateChange("device-a", authstate.StateChange{To: authstate.StateAnonymous})
	})
}

func TestHub_FullQueueDropsMessage(t *testing.T) {
	h := NewHub(nil, "ch")
	c := &Client{Device: "d", hub: h, send: make(chan []byte, 1)}
	h.Register(c)

	h.OnStateChange("d", authstate.StateChange{To: authstate.StateTemporary})
	assert.NotPanics(t, func() {
		h.OnStateChange("d", authstate.StateChange{To: authstate.StateAuthenticated})
	})
	assert.Len(t, c.send, 1)
}

func TestHub_ClusterFanOut(t *testing.T) {
	// Arrange: два экземпляра на общей шине
	bus := &memoryPubSub{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewHub(bus, "identity_state_events")
	b := NewHub(bus, "identity_state_events")
	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))
	defer a.Stop()
	defer b.Stop()

	onA := newTestClient(a, "device-a")
	onB := newTestClient(b, "device-a")
	a.Register(onA)
	b.Register(onB)

	// Act
	a.OnStateChange("device-a", authstate.StateChange{From: authstate.StateTemporary, To: authstate.StateAuthenticated, Identity: identity.Permanent("42")})

	// Assert
	msgB := receive(t, onB)
	assert.Equal(t, "42", msgB.Data.Identity.Value)
	msgA := receive(t, onA)
	assert.Equal(t, authstate.StateAuthenticated, msgA.Data.To)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, onA.send, "Экземпляр не должен повторно доставлять свое сообщение")
}
