package authstate

import (
	"context"
	"sync"
	"time"

	"github.com/yourusername/proptrack-api/internal/analytics"
	"github.com/yourusername/proptrack-api/internal/merge"
	"github.com/yourusername/proptrack-api/internal/pkg/logger"
)

// DefaultMergeTimeout ограничивает слияние, продолженное в фоне
const DefaultMergeTimeout = time.Minute

// Factory создает контроллеры с общими зависимостями
type Factory struct {
	store        IdentityStore
	provider     SessionProvider
	merger       merge.Merger
	tracker      analytics.EventTracker
	observer     Observer
	mergeTimeout time.Duration
	merges       sync.WaitGroup
}

// NewFactory создает фабрику контроллеров
func NewFactory(store IdentityStore, provider SessionProvider, merger merge.Merger, tracker analytics.EventTracker, observer Observer, mergeTimeout time.Duration) *Factory {
	if tracker == nil {
		tracker = analytics.NopTracker{}
	}
	if mergeTimeout <= 0 {
		mergeTimeout = DefaultMergeTimeout
	}
	return &Factory{
		store:        store,
		provider:     provider,
		merger:       merger,
		tracker:      tracker,
		observer:     observer,
		mergeTimeout: mergeTimeout,
	}
}

// Resolve восстанавливает состояние устройства: постоянная сессия важнее временной личности.
// Временная личность не создается, пока она не понадобится.
func (f *Factory) Resolve(ctx context.Context, device string, session *Session) *Controller {
	c := &Controller{
		device:       device,
		store:        f.store,
		provider:     f.provider,
		merger:       f.merger,
		tracker:      f.tracker,
		observer:     f.observer,
		mergeTimeout: f.mergeTimeout,
		merges:       &f.merges,
		log:          logger.For("AuthState"),
	}

	initial := StateAnonymous
	switch {
	case session != nil:
		c.session = session
		initial = StateAuthenticated
		// Сессия могла появиться в обход этого устройства, а данные остались у временной личности
		if id, ok := f.store.Get(ctx, device); ok {
			c.unmergedTempID = id
		}
	default:
		if id, ok := f.store.Get(ctx, device); ok {
			c.tempID = id
			initial = StateTemporary
		}
	}
	c.initMachine(initial)
	return c
}

// Wait дожидается слияний, которые продолжаются в фоне
func (f *Factory) Wait() {
	f.merges.Wait()
}
