package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/yourusername/proptrack-api/internal/pkg/logger"
)

// PubSubProvider определяет интерфейс для провайдеров публикации/подписки
type PubSubProvider interface {
	// Publish публикует сообщение в указанный канал
	Publish(ctx context.Context, channel string, message []byte) error

	// Subscribe подписывается на канал; канал сообщений закрывается при отмене ctx
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)

	// Close закрывает все подписки
	Close() error
}

// NoOpPubSub используется в автономном режиме, без кластера
type NoOpPubSub struct{}

// Publish ничего не делает
func (NoOpPubSub) Publish(context.Context, string, []byte) error { return nil }

// Subscribe возвращает канал, который закрывается при отмене ctx
func (NoOpPubSub) Subscribe(ctx context.Context, _ string) (<-chan []byte, error) {
	msgCh := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(msgCh)
	}()
	return msgCh, nil
}

// Close ничего не делает
func (NoOpPubSub) Close() error { return nil }

// RedisPubSub реализует PubSubProvider поверх Redis
type RedisPubSub struct {
	client redis.UniversalClient
	mu     sync.Mutex
	subs   []*redis.PubSub
	log    *zap.SugaredLogger
}

// NewRedisPubSub создает провайдер, используя существующий клиент
func NewRedisPubSub(client redis.UniversalClient) (*RedisPubSub, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil for RedisPubSub")
	}
	return &RedisPubSub{client: client, log: logger.For("RedisPubSub")}, nil
}

// Publish публикует сообщение в канал
func (p *RedisPubSub) Publish(ctx context.Context, channel string, message []byte) error {
	if err := p.client.Publish(ctx, channel, message).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe подписывается на канал
func (p *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := p.client.Subscribe(ctx, channel)
	// Ждем подтверждения подписки
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to Redis channel %s: %w", channel, err)
	}

	p.mu.Lock()
	p.subs = append(p.subs, pubsub)
	p.mu.Unlock()
	p.log.Infow("Подписка на канал оформлена", "channel", channel)

	msgCh := make(chan []byte, 100)
	go func() {
		defer close(msgCh)
		defer pubsub.Close()
		redisCh := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					p.log.Warnw("Канал Redis закрыт", "channel", channel)
					return
				}
				select {
				case msgCh <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return msgCh, nil
}

// Close закрывает все подписки
func (p *RedisPubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for _, s := range p.subs {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.subs = nil
	return errors.Join(errs...)
}
