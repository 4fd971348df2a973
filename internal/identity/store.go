package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yourusername/proptrack-api/internal/analytics"
	apperrors "github.com/yourusername/proptrack-api/internal/pkg/errors"
	"github.com/yourusername/proptrack-api/internal/pkg/logger"
)

// Registration запускает фоновую регистрацию новой временной личности.
// Forget снимает личность с ожидания повторной регистрации.
type Registration interface {
	Register(tempID string)
	Forget(tempID string)
}

// StoreConfig содержит параметры хранилища временной личности
type StoreConfig struct {
	KeyPrefix  string
	PrimaryTTL time.Duration
}

// Store хранит временную личность устройства в двух каналах:
// основном (со сроком жизни) и резервном (бессрочном).
type Store struct {
	primary      Channel
	fallback     Channel
	memory       *MemoryChannel
	registration Registration
	tracker      analytics.EventTracker
	cfg          StoreConfig
	group        singleflight.Group
	log          *zap.SugaredLogger
}

// NewStore создает хранилище
func NewStore(primary, fallback Channel, registration Registration, tracker analytics.EventTracker, cfg StoreConfig) *Store {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "temp_user_id"
	}
	if tracker == nil {
		tracker = analytics.NopTracker{}
	}
	return &Store{
		primary:      primary,
		fallback:     fallback,
		memory:       NewMemoryChannel(),
		registration: registration,
		tracker:      tracker,
		cfg:          cfg,
		log:          logger.For("IdentityStore"),
	}
}

func (s *Store) key(device string) string {
	return s.cfg.KeyPrefix + ":" + device
}

// readValid читает значение из канала. Возвращает (значение, найдено, ошибка канала).
// Значение неверного формата считается отсутствующим.
func (s *Store) readValid(ctx context.Context, ch Channel, name, key string) (string, bool, error) {
	v, err := ch.Read(ctx, key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", false, nil
		}
		s.log.Warnw("Канал хранения недоступен при чтении", "channel", name, "key", key, "error", err)
		return "", false, err
	}
	if !IsValidTemporaryID(v) {
		s.log.Warnw("Значение в канале имеет неверный формат, игнорируется", "channel", name, "key", key)
		return "", false, nil
	}
	return v, true, nil
}

// Get возвращает временную личность устройства, если она есть.
// Значение, найденное только в резервном канале, записывается обратно в основной.
func (s *Store) Get(ctx context.Context, device string) (string, bool) {
	key := s.key(device)

	if v, ok, _ := s.readValid(ctx, s.primary, "primary", key); ok {
		return v, true
	}

	v, ok, _ := s.readValid(ctx, s.fallback, "fallback", key)
	if ok {
		if err := s.primary.Write(ctx, key, v, s.cfg.PrimaryTTL); err != nil {
			s.log.Warnw("Не удалось восстановить значение в основном канале", "key", key, "error", err)
		} else {
			s.log.Infow("Значение восстановлено в основном канале из резервного", "temp_user_id", v)
		}
		return v, true
	}

	// Личность, созданная при недоступности обоих каналов, живет только в памяти
	if v, ok, _ := s.readValid(ctx, s.memory, "memory", key); ok {
		return v, true
	}
	return "", false
}

// Ensure возвращает существующую временную личность или создает новую.
// Одновременные вызовы для одного устройства создают не более одной личности.
func (s *Store) Ensure(ctx context.Context, device string) (string, error) {
	if device == "" {
		return "", fmt.Errorf("%w: device id is empty", apperrors.ErrValidation)
	}
	v, err, _ := s.group.Do(device, func() (interface{}, error) {
		if id, ok := s.Get(ctx, device); ok {
			return id, nil
		}
		return s.create(ctx, device), nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Store) create(ctx context.Context, device string) string {
	key := s.key(device)
	id := NewTemporaryID()

	primaryErr := s.primary.Write(ctx, key, id, s.cfg.PrimaryTTL)
	fallbackErr := s.fallback.Write(ctx, key, id, 0)

	storage := "persistent"
	switch {
	case primaryErr != nil && fallbackErr != nil:
		storage = "memory"
		_ = s.memory.Write(ctx, key, id, s.cfg.PrimaryTTL)
		s.log.Errorw("Оба канала хранения недоступны, временная личность хранится только в памяти",
			"temp_user_id", id,
			"error", fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, errors.Join(primaryErr, fallbackErr)),
		)
	case primaryErr != nil:
		s.log.Warnw("Не удалось записать временную личность в основной канал", "temp_user_id", id, "error", primaryErr)
	case fallbackErr != nil:
		s.log.Warnw("Не удалось записать временную личность в резервный канал", "temp_user_id", id, "error", fallbackErr)
	}

	s.log.Infow("Создана временная личность", "temp_user_id", id, "storage", storage)
	s.tracker.Track(ctx, analytics.EventTempUserCreated, analytics.Metadata{
		"temp_user_id": id,
		"storage":      storage,
	})
	if s.registration != nil {
		s.registration.Register(id)
	}
	return id
}

// Clear удаляет временную личность устройства из всех каналов. Повторный вызов безопасен.
func (s *Store) Clear(ctx context.Context, device string) error {
	return s.clear(ctx, device, "")
}

// ClearIf удаляет временную личность устройства только из тех каналов,
// где хранится именно expected. Личность, созданная позже, не затрагивается.
func (s *Store) ClearIf(ctx context.Context, device, expected string) error {
	if expected == "" {
		return nil
	}
	return s.clear(ctx, device, expected)
}

func (s *Store) clear(ctx context.Context, device, expected string) error {
	key := s.key(device)
	var errs []error
	forgotten := make(map[string]struct{})
	for name, ch := range map[string]Channel{"primary": s.primary, "fallback": s.fallback, "memory": s.memory} {
		current, err := ch.Read(ctx, key)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			continue
		case err != nil && expected != "":
			// Без чтения нельзя убедиться, что в канале та же личность
			s.log.Warnw("Канал недоступен, временная личность не удалена", "channel", name, "key", key, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		case err == nil && expected != "" && current != expected:
			continue
		}
		if err := ch.Remove(ctx, key); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			s.log.Warnw("Не удалось удалить временную личность из канала", "channel", name, "key", key, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if current != "" {
			forgotten[current] = struct{}{}
		}
	}
	if s.registration != nil {
		for id := range forgotten {
			s.registration.Forget(id)
		}
	}
	return errors.Join(errs...)
}
