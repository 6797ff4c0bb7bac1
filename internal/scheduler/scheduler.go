package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cfa-prep/study-service/internal/services"
	"github.com/go-co-op/gocron"
)

const (
	minEvictInterval = time.Minute
	reconcileTimeout = 2 * time.Minute
)

// Settings controls how often the housekeeping jobs run
type Settings struct {
	ReconcileInterval time.Duration
	RunIdleTimeout    time.Duration
}

// EvictInterval checks for idle runs four times per idle timeout, but no
// more than once a minute.
func (s Settings) EvictInterval() time.Duration {
	interval := s.RunIdleTimeout / 4
	if interval < minEvictInterval {
		interval = minEvictInterval
	}
	return interval
}

// Scheduler runs session reconciliation and idle run eviction
type Scheduler struct {
	scheduler *gocron.Scheduler
	practice  services.PracticeService
	reconcile services.ReconcileService
	settings  Settings
	logger    *slog.Logger
}

func New(practice services.PracticeService, reconcile services.ReconcileService, settings Settings, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		practice:  practice,
		reconcile: reconcile,
		settings:  settings,
		logger:    logger.With("component", "scheduler"),
	}
}

// Start registers the jobs and runs them in the background
func (s *Scheduler) Start() error {
	if s.settings.ReconcileInterval > 0 {
		if _, err := s.scheduler.Every(s.settings.ReconcileInterval).SingletonMode().Do(s.reconcileSessions); err != nil {
			return fmt.Errorf("failed to schedule session reconciliation: %w", err)
		}
	}
	if s.settings.RunIdleTimeout > 0 {
		if _, err := s.scheduler.Every(s.settings.EvictInterval()).WaitForSchedule().SingletonMode().Do(s.evictIdleRuns); err != nil {
			return fmt.Errorf("failed to schedule idle run eviction: %w", err)
		}
	}

	s.scheduler.StartAsync()
	s.logger.Info("Scheduler started",
		"reconcile_interval", s.settings.ReconcileInterval.String(),
		"evict_interval", s.settings.EvictInterval().String(),
		"jobs", len(s.scheduler.Jobs()))
	return nil
}

// Stop terminates all scheduled jobs
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) reconcileSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	if _, err := s.reconcile.Run(ctx); err != nil {
		s.logger.Error("Session reconciliation failed", "error", err)
	}
}

func (s *Scheduler) evictIdleRuns() {
	s.practice.EvictIdle(s.settings.RunIdleTimeout)
}
