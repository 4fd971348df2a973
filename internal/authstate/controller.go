// Package authstate выводит эффективную личность устройства из постоянной сессии
// и временной личности и управляет переходами между ними.
package authstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/yourusername/proptrack-api/internal/analytics"
	"github.com/yourusername/proptrack-api/internal/identity"
	"github.com/yourusername/proptrack-api/internal/merge"
	apperrors "github.com/yourusername/proptrack-api/internal/pkg/errors"
)

// State - состояние аутентификации устройства
type State string

const (
	StateAnonymous     State = "anonymous"
	StateTemporary     State = "temporary"
	StateAuthenticated State = "authenticated"
)

const (
	eventResolveTemporary = "resolve_temporary"
	eventSignIn           = "sign_in"
	eventSignOut          = "sign_out"
)

// IdentityStore - хранилище временной личности устройства
type IdentityStore interface {
	Get(ctx context.Context, device string) (string, bool)
	Ensure(ctx context.Context, device string) (string, error)
	Clear(ctx context.Context, device string) error
	ClearIf(ctx context.Context, device, expected string) error
}

// StateChange описывает переход или завершение слияния
type StateChange struct {
	From     State             `json:"from"`
	To       State             `json:"to"`
	Identity identity.Identity `json:"identity"`
	Merge    *merge.Outcome    `json:"merge,omitempty"`
}

// Observer получает уведомления о смене состояния устройства.
// Вызывается синхронно и не должен обращаться к контроллеру.
type Observer interface {
	OnStateChange(device string, change StateChange)
}

// AuthResult - результат входа или регистрации.
// Merge пуст, если слияние не требовалось или вызывающий перестал ждать.
type AuthResult struct {
	Session      *Session       `json:"session"`
	Merge        *merge.Outcome `json:"merge,omitempty"`
	MergePending bool           `json:"merge_pending"`
}

// Controller - состояние аутентификации одного устройства
type Controller struct {
	device       string
	machine      *fsm.FSM
	mu           sync.RWMutex
	tempID       string
	session      *Session
	store        IdentityStore
	provider     SessionProvider
	merger       merge.Merger
	tracker      analytics.EventTracker
	observer     Observer
	mergeTimeout time.Duration
	merges       *sync.WaitGroup
	log          *zap.SugaredLogger

	// временная личность, найденная рядом с уже установленной сессией
	unmergedTempID string
	lastMerge      *merge.Outcome
}

func (c *Controller) initMachine(initial State) {
	c.machine = fsm.NewFSM(
		string(initial),
		fsm.Events{
			{Name: eventResolveTemporary, Src: []string{string(StateAnonymous)}, Dst: string(StateTemporary)},
			{Name: eventSignIn, Src: []string{string(StateAnonymous), string(StateTemporary), string(StateAuthenticated)}, Dst: string(StateAuthenticated)},
			{Name: eventSignOut, Src: []string{string(StateAuthenticated)}, Dst: string(StateAnonymous)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				to := State(e.Dst)
				c.log.Infow("Смена состояния аутентификации", "device_id", c.device, "from", e.Src, "to", e.Dst, "event", e.Event)
				c.notify(StateChange{From: State(e.Src), To: to, Identity: c.effectiveLocked(to)})
			},
		},
	)
}

func (c *Controller) notify(change StateChange) {
	if c.observer != nil {
		c.observer.OnStateChange(c.device, change)
	}
}

// fire выполняет переход; переход в текущее состояние не считается ошибкой.
// Переход не зависит от отмены запроса.
func (c *Controller) fire(ctx context.Context, event string) error {
	err := c.machine.Event(context.WithoutCancel(ctx), event)
	var noTransition fsm.NoTransitionError
	if err == nil || errors.As(err, &noTransition) {
		return nil
	}
	return fmt.Errorf("auth state transition %s: %w", event, err)
}

func (c *Controller) stateLocked() State {
	return State(c.machine.Current())
}

func (c *Controller) effectiveLocked(s State) identity.Identity {
	switch s {
	case StateAuthenticated:
		if c.session != nil {
			return identity.Permanent(c.session.UserID)
		}
	case StateTemporary:
		if c.tempID != "" {
			return identity.Temporary(c.tempID)
		}
	}
	return identity.Anonymous()
}

// Device возвращает идентификатор устройства
func (c *Controller) Device() string {
	return c.device
}

// State возвращает текущее состояние
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

// EffectiveIdentity возвращает личность, от имени которой выполняется доступ к данным
func (c *Controller) EffectiveIdentity() identity.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.effectiveLocked(c.stateLocked())
}

// IsAuthenticated сообщает, есть ли постоянная сессия
func (c *Controller) IsAuthenticated() bool {
	return c.State() == StateAuthenticated
}

// IsTemporary сообщает, действует ли устройство от имени временной личности
func (c *Controller) IsTemporary() bool {
	return c.State() == StateTemporary
}

// Session возвращает текущую постоянную сессию или nil
func (c *Controller) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// RequireIdentity возвращает эффективную личность, создавая временную при необходимости
func (c *Controller) RequireIdentity(ctx context.Context) (identity.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s := c.stateLocked(); s != StateAnonymous {
		return c.effectiveLocked(s), nil
	}

	id, err := c.store.Ensure(ctx, c.device)
	if err != nil {
		return identity.Anonymous(), err
	}
	c.tempID = id
	if err := c.fire(ctx, eventResolveTemporary); err != nil {
		return identity.Anonymous(), err
	}
	return identity.Temporary(id), nil
}

// SignUp создает постоянный аккаунт и переводит устройство в состояние authenticated
func (c *Controller) SignUp(ctx context.Context, creds Credentials) (*AuthResult, error) {
	session, err := c.provider.SignUp(ctx, creds)
	if err != nil {
		return nil, err
	}
	c.tracker.Track(ctx, analytics.EventSignedUp, analytics.Metadata{"user_id": session.UserID})
	return c.completeSignIn(ctx, session)
}

// SignIn выполняет вход и переводит устройство в состояние authenticated
func (c *Controller) SignIn(ctx context.Context, creds Credentials) (*AuthResult, error) {
	session, err := c.provider.SignIn(ctx, creds)
	if err != nil {
		return nil, err
	}
	c.tracker.Track(ctx, analytics.EventSignedIn, analytics.Metadata{"user_id": session.UserID})
	return c.completeSignIn(ctx, session)
}

// SignOut завершает постоянную сессию. Следующее обращение создаст новую временную личность.
func (c *Controller) SignOut(ctx context.Context) error {
	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()

	if session != nil {
		if err := c.provider.SignOut(ctx, session.AccessToken); err != nil {
			c.log.Warnw("Провайдер не подтвердил выход, сессия завершается локально", "device_id", c.device, "error", err)
		}
	}
	if err := c.signOutLocal(ctx); err != nil {
		return err
	}
	if session != nil {
		c.tracker.Track(ctx, analytics.EventSignedOut, analytics.Metadata{"user_id": session.UserID})
	}
	return nil
}

// HandleSessionEvent применяет изменение сессии, пришедшее от провайдера
func (c *Controller) HandleSessionEvent(ctx context.Context, ev SessionEvent) (*AuthResult, error) {
	switch ev.Type {
	case SessionSignedIn:
		if ev.Session == nil || ev.Session.UserID == "" {
			return nil, fmt.Errorf("%w: SIGNED_IN event without session", apperrors.ErrValidation)
		}
		c.mu.RLock()
		same := c.session != nil && c.session.UserID == ev.Session.UserID
		c.mu.RUnlock()
		if same {
			outcome, pending := c.MergeUnmerged(ctx)
			return &AuthResult{Session: ev.Session, Merge: outcome, MergePending: pending}, nil
		}
		return c.completeSignIn(ctx, ev.Session)
	case SessionSignedOut:
		return nil, c.signOutLocal(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown session event %q", apperrors.ErrValidation, ev.Type)
	}
}

func (c *Controller) signOutLocal(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked() != StateAuthenticated {
		return nil
	}
	c.session = nil
	c.tempID = ""
	c.unmergedTempID = ""
	// Оставшаяся временная личность не должна переиспользоваться после выхода
	if err := c.store.Clear(ctx, c.device); err != nil {
		c.log.Warnw("Не удалось очистить временную личность при выходе", "device_id", c.device, "error", err)
	}
	return c.fire(ctx, eventSignOut)
}

func (c *Controller) completeSignIn(ctx context.Context, session *Session) (*AuthResult, error) {
	c.mu.Lock()
	tempID := ""
	if c.stateLocked() == StateTemporary {
		tempID = c.tempID
	}
	if tempID == "" {
		tempID = c.unmergedTempID
	}
	c.unmergedTempID = ""
	c.session = session
	c.tempID = ""
	err := c.fire(ctx, eventSignIn)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	result := &AuthResult{Session: session}
	if tempID == "" {
		return result, nil
	}
	result.Merge = c.runMerge(ctx, tempID, session.UserID)
	result.MergePending = result.Merge == nil
	return result, nil
}

// MergeUnmerged сливает временную личность, которая осталась на устройстве,
// хотя сессия пришла вместе с запросом. Слияние запускается не больше одного
// раза на контроллер, повторный вызов возвращает прежний результат.
// pending сообщает, что вызывающий перестал ждать и слияние идет в фоне.
func (c *Controller) MergeUnmerged(ctx context.Context) (outcome *merge.Outcome, pending bool) {
	c.mu.Lock()
	tempID := c.unmergedTempID
	c.unmergedTempID = ""
	session := c.session
	if tempID == "" || session == nil {
		outcome = c.lastMerge
		c.mu.Unlock()
		return outcome, false
	}
	c.mu.Unlock()

	c.log.Infow("Временная личность найдена при активной сессии, запускается слияние",
		"device_id", c.device, "temp_user_id", tempID, "user_id", session.UserID)
	outcome = c.runMerge(ctx, tempID, session.UserID)

	c.mu.Lock()
	c.lastMerge = outcome
	c.mu.Unlock()
	return outcome, outcome == nil
}

// runMerge запускает слияние на отвязанном контексте. Временная личность
// удаляется после завершения слияния, в том числе частично неудачного,
// если за это время на устройстве не появилась другая.
// Возвращает nil, если контекст вызывающего завершился раньше.
func (c *Controller) runMerge(ctx context.Context, tempID, permanentID string) *merge.Outcome {
	done := make(chan *merge.Outcome, 1)
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.mergeTimeout)

	if c.merges != nil {
		c.merges.Add(1)
	}
	go func() {
		defer cancel()
		if c.merges != nil {
			defer c.merges.Done()
		}
		outcome, err := c.merger.Merge(mctx, tempID, permanentID)
		if err != nil {
			c.log.Errorw("Слияние отклонено", "temp_user_id", tempID, "permanent_id", permanentID, "error", err)
			outcome = &merge.Outcome{MergedCounts: map[string]int{}, Failures: []string{}}
		}
		if err := c.store.ClearIf(mctx, c.device, tempID); err != nil {
			c.log.Warnw("Не удалось удалить временную личность после слияния", "temp_user_id", tempID, "error", err)
		}
		c.notify(StateChange{
			From:     StateAuthenticated,
			To:       StateAuthenticated,
			Identity: identity.Permanent(permanentID),
			Merge:    outcome,
		})
		done <- outcome
	}()

	select {
	case outcome := <-done:
		return outcome
	case <-ctx.Done():
		c.log.Infow("Вызывающий перестал ждать слияния, оно продолжается в фоне", "temp_user_id", tempID)
		return nil
	}
}
