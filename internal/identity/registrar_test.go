package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/yourusername/proptrack-api/internal/analytics"
	apperrors "github.com/yourusername/proptrack-api/internal/pkg/errors"
)

type MockRegistrationRepository struct {
	mock.Mock
}

func (m *MockRegistrationRepository) Register(ctx context.Context, tempID string) error {
	args := m.Called(ctx, tempID)
	return args.Error(0)
}

func (m *MockRegistrationRepository) Touch(ctx context.Context, tempID string) error {
	args := m.Called(ctx, tempID)
	return args.Error(0)
}

var fastPolicy = RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

func TestRegistrar_SucceedsAfterRetries(t *testing.T) {
	// Arrange
	repo := new(MockRegistrationRepository)
	repo.On("Register", mock.Anything, "temp_a").Return(errors.New("db down")).Twice()
	repo.On("Register", mock.Anything, "temp_a").Return(nil).Once()
	events := &analytics.Recorder{}
	r := NewRegistrar(repo, events, fastPolicy)

	// Act
	r.Register("temp_a")
	r.Wait()

	// Assert
	repo.AssertNumberOfCalls(t, "Register", 3)
	assert.False(t, r.IsPending("temp_a"))
	assert.Empty(t, events.OfType(analytics.EventTempUserRegistrationFailed))
}

func TestRegistrar_ExhaustedAttemptsLeavePending(t *testing.T) {
	repo := new(MockRegistrationRepository)
	repo.On("Register", mock.Anything, "temp_b").Return(errors.New("db down"))
	events := &analytics.Recorder{}
	r := NewRegistrar(repo, events, fastPolicy)

	r.Register("temp_b")
	r.Wait()

	repo.AssertNumberOfCalls(t, "Register", fastPolicy.MaxAttempts)
	assert.True(t, r.IsPending("temp_b"), "После исчерпания попыток личность должна ожидать повторной регистрации")
	failed := events.OfType(analytics.EventTempUserRegistrationFailed)
	if assert.Len(t, failed, 1) {
		assert.Equal(t, "temp_b", failed[0].Metadata["temp_user_id"])
	}
}

func TestRegistrar_RecordActivityRetriesPending(t *testing.T) {
	// Arrange: первая серия попыток провалена
	repo := new(MockRegistrationRepository)
	repo.On("Register", mock.Anything, "temp_c").Return(errors.New("db down")).Times(fastPolicy.MaxAttempts)
	r := NewRegistrar(repo, nil, fastPolicy)
	r.Register("temp_c")
	r.Wait()

	repo.On("Register", mock.Anything, "temp_c").Return(nil).Once()
	repo.On("Touch", mock.Anything, "temp_c").Return(nil).Once()

	// Act
	r.RecordActivity(context.Background(), "temp_c")

	// Assert
	assert.False(t, r.IsPending("temp_c"))
	repo.AssertExpectations(t)
}

func TestRegistrar_RecordActivityIgnoresUnregistered(t *testing.T) {
	repo := new(MockRegistrationRepository)
	repo.On("Touch", mock.Anything, "temp_d").Return(apperrors.ErrNotFound).Once()
	r := NewRegistrar(repo, nil, fastPolicy)

	assert.NotPanics(t, func() {
		r.RecordActivity(context.Background(), "temp_d")
	})
	repo.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestRegistrar_StopInterruptsRetries(t *testing.T) {
	repo := new(MockRegistrationRepository)
	repo.On("Register", mock.Anything, "temp_e").Return(errors.New("db down"))
	r := NewRegistrar(repo, nil, RetryPolicy{MaxAttempts: 100, InitialInterval: 50 * time.Millisecond, MaxInterval: time.Second})

	r.Register("temp_e")
	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop должен прерывать повторы")
	}
	assert.True(t, r.IsPending("temp_e"))
}

func TestRegistrar_ForgetDropsPending(t *testing.T) {
	// Arrange
	repo := new(MockRegistrationRepository)
	repo.On("Register", mock.Anything, "temp_f").Return(errors.New("db down"))
	r := NewRegistrar(repo, nil, fastPolicy)
	r.Register("temp_f")
	r.Wait()
	assert.True(t, r.IsPending("temp_f"))

	// Act
	r.Forget("temp_f")

	// Assert
	assert.False(t, r.IsPending("temp_f"), "Удаленная с устройства личность не должна ожидать регистрации")
	repo.On("Touch", mock.Anything, "temp_f").Return(apperrors.ErrNotFound).Once()
	r.RecordActivity(context.Background(), "temp_f")
	repo.AssertNumberOfCalls(t, "Register", fastPolicy.MaxAttempts)
}

func TestRegistrar_ForgetDuringRetriesLeavesNothingPending(t *testing.T) {
	repo := new(MockRegistrationRepository)
	started := make(chan struct{})
	release := make(chan struct{})
	repo.On("Register", mock.Anything, "temp_g").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(errors.New("db down")).Once()
	r := NewRegistrar(repo, nil, RetryPolicy{MaxAttempts: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond})

	r.Register("temp_g")
	<-started
	r.Forget("temp_g")
	close(release)
	r.Wait()

	assert.False(t, r.IsPending("temp_g"))
}
