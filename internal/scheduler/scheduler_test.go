package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cfa-prep/study-service/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPracticeService struct {
	services.PracticeService
	mock.Mock
}

func (m *mockPracticeService) EvictIdle(idle time.Duration) int {
	args := m.Called(idle)
	return args.Int(0)
}

type mockReconcileService struct {
	mock.Mock
}

func (m *mockReconcileService) Run(ctx context.Context) (*services.ReconcileResult, error) {
	args := m.Called(ctx)
	result, _ := args.Get(0).(*services.ReconcileResult)
	return result, args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEvictInterval(t *testing.T) {
	assert.Equal(t, 30*time.Minute, Settings{RunIdleTimeout: 2 * time.Hour}.EvictInterval())
	assert.Equal(t, time.Minute, Settings{RunIdleTimeout: 90 * time.Second}.EvictInterval())
}

func TestEvictIdleRunsUsesIdleTimeout(t *testing.T) {
	practice := &mockPracticeService{}
	practice.On("EvictIdle", 2*time.Hour).Return(3).Once()

	s := New(practice, &mockReconcileService{}, Settings{RunIdleTimeout: 2 * time.Hour}, testLogger())
	s.evictIdleRuns()

	practice.AssertExpectations(t)
}

func TestReconcileSessionsSwallowsErrors(t *testing.T) {
	reconcile := &mockReconcileService{}
	reconcile.On("Run", mock.Anything).Return(nil, errors.New("database unavailable")).Once()

	s := New(&mockPracticeService{}, reconcile, Settings{}, testLogger())
	assert.NotPanics(t, s.reconcileSessions)

	reconcile.AssertExpectations(t)
}

func TestStartRegistersJobs(t *testing.T) {
	practice := &mockPracticeService{}
	practice.On("EvictIdle", mock.Anything).Return(0).Maybe()
	reconcile := &mockReconcileService{}
	reconcile.On("Run", mock.Anything).Return(&services.ReconcileResult{}, nil).Maybe()

	s := New(practice, reconcile, Settings{ReconcileInterval: time.Hour, RunIdleTimeout: time.Hour}, testLogger())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Len(t, s.scheduler.Jobs(), 2)
}

func TestStartSkipsDisabledJobs(t *testing.T) {
	s := New(&mockPracticeService{}, &mockReconcileService{}, Settings{}, testLogger())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Empty(t, s.scheduler.Jobs())
}
