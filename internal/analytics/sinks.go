package analytics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/yourusername/proptrack-api/internal/pkg/logger"
)

// LogSink пишет события в структурированный лог
type LogSink struct {
	log *zap.SugaredLogger
}

// NewLogSink создает приемник-лог
func NewLogSink() *LogSink {
	return &LogSink{log: logger.For("AnalyticsEvent")}
}

// Record логирует событие
func (s *LogSink) Record(_ context.Context, ev Event) error {
	s.log.Infow(string(ev.Type), "metadata", ev.Metadata, "occurred_at", ev.OccurredAt)
	return nil
}

// RedisSink публикует события в канал Redis в виде JSON
type RedisSink struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisSink создает приемник, публикующий в указанный канал
func NewRedisSink(client redis.UniversalClient, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

// Record публикует событие
func (s *RedisSink) Record(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics event %s: %w", ev.Type, err)
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish analytics event to %s: %w", s.channel, err)
	}
	return nil
}
