package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/yourusername/proptrack-api/internal/analytics"
	apperrors "github.com/yourusername/proptrack-api/internal/pkg/errors"
	"github.com/yourusername/proptrack-api/internal/pkg/logger"
)

// RegistrationRepository сохраняет временных пользователей на сервере
type RegistrationRepository interface {
	// Register идемпотентно создает запись о временном пользователе
	Register(ctx context.Context, tempID string) error
	// Touch обновляет время последней активности; ErrNotFound, если запись не создана
	Touch(ctx context.Context, tempID string) error
}

// RetryPolicy задает ограниченный экспоненциальный повтор регистрации
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy: 500мс, удвоение, не более 30с, 5 попыток
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     5,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     30 * time.Second,
}

// Registrar регистрирует временные личности в фоне.
// После исчерпания попыток личность остается в ожидании и повторно регистрируется
// при следующем обновлении активности.
type Registrar struct {
	repo    RegistrationRepository
	tracker analytics.EventTracker
	policy  RetryPolicy

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	pending  map[string]struct{}
	inFlight map[string]struct{}

	log *zap.SugaredLogger
}

// NewRegistrar создает регистратор
func NewRegistrar(repo RegistrationRepository, tracker analytics.EventTracker, policy RetryPolicy) *Registrar {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if tracker == nil {
		tracker = analytics.NopTracker{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registrar{
		repo:     repo,
		tracker:  tracker,
		policy:   policy,
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[string]struct{}),
		inFlight: make(map[string]struct{}),
		log:      logger.For("Registrar"),
	}
}

func (r *Registrar) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.Multiplier = 2
	b.MaxInterval = r.policy.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.policy.MaxAttempts-1)), r.ctx)
}

// Register запускает регистрацию в фоне и сразу возвращает управление
func (r *Registrar) Register(tempID string) {
	r.mu.Lock()
	if _, busy := r.inFlight[tempID]; busy {
		r.mu.Unlock()
		return
	}
	r.inFlight[tempID] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.registerWithRetry(tempID)
	}()
}

func (r *Registrar) registerWithRetry(tempID string) {
	attempt := 0
	op := func() error {
		attempt++
		return r.repo.Register(r.ctx, tempID)
	}
	notify := func(err error, next time.Duration) {
		r.log.Warnw("Ошибка регистрации временного пользователя, повтор",
			"temp_user_id", tempID, "attempt", attempt, "next_in", next, "error", err)
	}

	err := backoff.RetryNotify(op, r.newBackOff(), notify)

	r.mu.Lock()
	_, tracked := r.inFlight[tempID]
	delete(r.inFlight, tempID)
	if err != nil && tracked {
		r.pending[tempID] = struct{}{}
	} else {
		delete(r.pending, tempID)
	}
	r.mu.Unlock()

	if err != nil {
		r.log.Errorw("Регистрация временного пользователя не удалась, отложена до следующей активности",
			"temp_user_id", tempID, "attempts", attempt, "error", err)
		r.tracker.Track(r.ctx, analytics.EventTempUserRegistrationFailed, analytics.Metadata{
			"temp_user_id": tempID,
			"attempts":     attempt,
		})
		return
	}
	r.log.Infow("Временный пользователь зарегистрирован", "temp_user_id", tempID, "attempts", attempt)
}

// IsPending сообщает, ожидает ли личность повторной регистрации
func (r *Registrar) IsPending(tempID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[tempID]
	return ok
}

// Forget снимает личность с ожидания. Вызывается, когда личность удалена с устройства:
// после слияния или выхода она больше не получит активности.
func (r *Registrar) Forget(tempID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, tempID)
	delete(r.inFlight, tempID)
}

// RecordActivity обновляет время активности временного пользователя.
// Для личности в ожидании сначала выполняется одна попытка регистрации.
// Ошибки только логируются.
func (r *Registrar) RecordActivity(ctx context.Context, tempID string) {
	if r.IsPending(tempID) {
		if err := r.repo.Register(ctx, tempID); err != nil {
			r.log.Warnw("Повторная регистрация при активности не удалась", "temp_user_id", tempID, "error", err)
			return
		}
		r.mu.Lock()
		delete(r.pending, tempID)
		r.mu.Unlock()
		r.log.Infow("Временный пользователь зарегистрирован при активности", "temp_user_id", tempID)
	}

	if err := r.repo.Touch(ctx, tempID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			r.log.Debugw("Активность незарегистрированного временного пользователя", "temp_user_id", tempID)
			return
		}
		r.log.Warnw("Не удалось обновить активность", "temp_user_id", tempID, "error", err)
	}
}

// Wait дожидается завершения всех фоновых регистраций
func (r *Registrar) Wait() {
	r.wg.Wait()
}

// Stop прерывает повторы и дожидается фоновых регистраций
func (r *Registrar) Stop() {
	r.cancel()
	r.wg.Wait()
}
