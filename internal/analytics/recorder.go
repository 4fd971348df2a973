package analytics

import (
	"context"
	"sync"
)

// Recorder синхронно сохраняет события в памяти. Используется в тестах.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Track сохраняет событие
func (r *Recorder) Track(_ context.Context, eventType EventType, metadata Metadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Type: eventType, Metadata: cloneMetadata(metadata)})
}

// Events возвращает копию всех сохраненных событий
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType возвращает события указанного типа
func (r *Recorder) OfType(t EventType) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
