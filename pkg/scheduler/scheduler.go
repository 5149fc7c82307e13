// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/config"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/services"
)

// Sweeper is the job run on schedule.
type Sweeper interface {
	Sweep(ctx context.Context, at time.Time) (*services.SweepResult, error)
}

// QualificationScheduler recomputes qualification status on a cron schedule.
type QualificationScheduler struct {
	sweeper Sweeper
	config  config.SchedulerConfig
	logger  *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	timeout time.Duration
}

// NewQualificationScheduler creates a scheduler for sweeper.
func NewQualificationScheduler(sweeper Sweeper, cfg config.SchedulerConfig, logger *zap.Logger) *QualificationScheduler {
	return &QualificationScheduler{
		sweeper: sweeper,
		config:  cfg,
		logger:  logger.Named("scheduler"),
		timeout: 30 * time.Minute,
	}
}

// normalizeSchedule accepts standard 5-field cron expressions as well as
// the 6-field form with seconds.
func normalizeSchedule(schedule string) string {
	if strings.TrimSpace(schedule) == "" {
		return "0 30 2 * * *"
	}
	if len(strings.Fields(schedule)) == 5 {
		return "0 " + schedule
	}
	return schedule
}

// Start registers the sweep and starts the cron loop. It is a no-op when
// the sweep is disabled or already running.
func (s *QualificationScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if !s.config.QualificationSweepEnabled {
		s.logger.Info("Qualification sweep is disabled")
		return nil
	}

	s.cron = cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))
	schedule := normalizeSchedule(s.config.QualificationSweepSchedule)
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		s.logger.Error("Failed to schedule qualification sweep", zap.String("schedule", schedule), zap.Error(err))
		return err
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("Qualification sweep scheduled",
		zap.String("schedule", schedule),
		zap.Int("expiring_within_days", s.config.ExpiringWithinDays))
	return nil
}

// Stop waits for a running sweep to finish.
func (s *QualificationScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("Qualification sweep stopped")
}

// RunNow performs one sweep synchronously.
func (s *QualificationScheduler) RunNow(ctx context.Context) (*services.SweepResult, error) {
	return s.sweeper.Sweep(ctx, time.Now().UTC())
}

// NextRun returns the next scheduled run, or zero when not running.
func (s *QualificationScheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.cron == nil {
		return time.Time{}
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *QualificationScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if _, err := s.RunNow(ctx); err != nil {
		s.logger.Error("Qualification sweep failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	}
}
