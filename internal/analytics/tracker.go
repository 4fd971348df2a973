package analytics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/proptrack-api/internal/pkg/logger"
)

const sinkTimeout = 5 * time.Second

// Tracker доставляет события приемникам в фоне через ограниченную очередь.
// При переполнении очереди событие отбрасывается.
type Tracker struct {
	queue   chan Event
	sinks   []Sink
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Int64
	now     func() time.Time
	log     *zap.SugaredLogger
}

// NewTracker создает трекер и запускает воркер доставки
func NewTracker(queueSize int, sinks ...Sink) *Tracker {
	if queueSize <= 0 {
		queueSize = 1024
	}
	t := &Tracker{
		queue: make(chan Event, queueSize),
		sinks: sinks,
		now:   time.Now,
		log:   logger.For("Analytics"),
	}
	t.wg.Add(1)
	go t.run()
	return t
}

// Track ставит событие в очередь
func (t *Tracker) Track(_ context.Context, eventType EventType, metadata Metadata) {
	ev := Event{Type: eventType, Metadata: cloneMetadata(metadata), OccurredAt: t.now().UTC()}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	select {
	case t.queue <- ev:
	default:
		n := t.dropped.Add(1)
		t.log.Warnw("Очередь аналитики переполнена, событие отброшено", "type", eventType, "dropped_total", n)
	}
}

// Dropped возвращает количество отброшенных событий
func (t *Tracker) Dropped() int64 {
	return t.dropped.Load()
}

// Close прекращает прием событий и дожидается доставки уже поставленных в очередь
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.queue)
	t.mu.Unlock()

	t.wg.Wait()
}

func (t *Tracker) run() {
	defer t.wg.Done()
	for ev := range t.queue {
		for _, sink := range t.sinks {
			t.deliver(sink, ev)
		}
	}
}

func (t *Tracker) deliver(sink Sink, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Errorw("Паника в приемнике аналитики", "type", ev.Type, "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := sink.Record(ctx, ev); err != nil {
		t.log.Warnw("Приемник не принял событие", "type", ev.Type, "error", err)
	}
}
