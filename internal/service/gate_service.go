package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourusername/proptrack-api/internal/analytics"
	"github.com/yourusername/proptrack-api/internal/domain/entity"
	"github.com/yourusername/proptrack-api/internal/gating"
	"github.com/yourusername/proptrack-api/internal/identity"
	apperrors "github.com/yourusername/proptrack-api/internal/pkg/errors"
	"github.com/yourusername/proptrack-api/internal/pkg/logger"
)

// Счетчики, на которые ссылаются пороги политики
const (
	CounterPins        = "pins"
	CounterCollections = "collections"
)

// OwnerCounter считает записи владельца
type OwnerCounter interface {
	CountByOwner(ctx context.Context, owner entity.Owner) (int64, error)
}

// GateService применяет политику отложенных действий к текущей личности
type GateService struct {
	policy   *gating.Policy
	tracker  analytics.EventTracker
	counters map[string]OwnerCounter
	log      *zap.SugaredLogger
}

// NewGateService создает сервис. counters сопоставляет имя счетчика с источником значений
func NewGateService(policy *gating.Policy, tracker analytics.EventTracker, counters map[string]OwnerCounter) *GateService {
	if policy == nil {
		policy = gating.DefaultPolicy()
	}
	if tracker == nil {
		tracker = analytics.NopTracker{}
	}
	return &GateService{
		policy:   policy,
		tracker:  tracker,
		counters: counters,
		log:      logger.For("GateService"),
	}
}

// OwnerFor возвращает ссылку на владельца для личности
func OwnerFor(id identity.Identity) (entity.Owner, error) {
	switch id.Kind {
	case identity.KindTemporary:
		return entity.Owner{OwnerID: id.Value, OwnerKind: entity.OwnerTemporary}, nil
	case identity.KindPermanent:
		return entity.Owner{OwnerID: id.Value, OwnerKind: entity.OwnerPermanent}, nil
	default:
		return entity.Owner{}, fmt.Errorf("%w: no identity", apperrors.ErrUnauthorized)
	}
}

// NeedsUpgrade сообщает, требует ли действие постоянного аккаунта, не записывая событие
func (s *GateService) NeedsUpgrade(ctx context.Context, id identity.Identity, action string) (bool, error) {
	counts, err := s.countsFor(ctx, id, action)
	if err != nil {
		return false, err
	}
	return s.policy.NeedsUpgradeWithCounts(id, action, counts), nil
}

// Check возвращает ErrUpgradeRequired и записывает action_gated, если действие нужно отложить
func (s *GateService) Check(ctx context.Context, id identity.Identity, action string) error {
	needs, err := s.NeedsUpgrade(ctx, id, action)
	if err != nil {
		return err
	}
	if !needs {
		return nil
	}
	s.tracker.Track(ctx, analytics.EventActionGated, analytics.Metadata{
		"action":        action,
		"identity_kind": string(id.Kind),
	})
	s.log.Debugw("Действие отложено до регистрации", "action", action, "identity_kind", id.Kind)
	return fmt.Errorf("%w: %s", apperrors.ErrUpgradeRequired, action)
}

func (s *GateService) countsFor(ctx context.Context, id identity.Identity, action string) (gating.Counts, error) {
	if id.IsAuthenticated() {
		return nil, nil
	}
	th, ok := s.policy.ThresholdFor(action)
	if !ok {
		return nil, nil
	}
	counter, ok := s.counters[th.Counter]
	if !ok {
		s.log.Warnw("Для порога не задан источник счетчика", "action", action, "counter", th.Counter)
		return nil, nil
	}
	owner, err := OwnerFor(id)
	if err != nil {
		// Анонимный посетитель не владеет записями
		return gating.Counts{}, nil
	}
	n, err := counter.CountByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", th.Counter, err)
	}
	return gating.Counts{th.Counter: int(n)}, nil
}
