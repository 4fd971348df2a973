// Package analytics записывает события жизненного цикла личности и конверсии.
// Трекер работает как побочный канал: ошибки приемников логируются и никогда
// не возвращаются вызывающему коду.
package analytics

import (
	"context"
	"time"
)

// EventType - тип аналитического события
type EventType string

const (
	EventTempUserCreated            EventType = "temp_user_created"
	EventTempUserRegistrationFailed EventType = "temp_user_registration_failed"
	EventActionGated                EventType = "action_gated"
	EventTempDataMerged             EventType = "temp_data_merged"
	EventSignedUp                   EventType = "signed_up"
	EventSignedIn                   EventType = "signed_in"
	EventSignedOut                  EventType = "signed_out"
)

// Metadata - произвольные атрибуты события
type Metadata map[string]interface{}

// Event - запись, которая доставляется приемникам
type Event struct {
	Type       EventType `json:"type"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventTracker принимает события. Track никогда не блокирует надолго и не возвращает ошибок.
type EventTracker interface {
	Track(ctx context.Context, eventType EventType, metadata Metadata)
}

// Sink - приемник событий (лог, Redis, метрики)
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// NopTracker игнорирует все события
type NopTracker struct{}

// Track ничего не делает
func (NopTracker) Track(context.Context, EventType, Metadata) {}

func cloneMetadata(m Metadata) Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
