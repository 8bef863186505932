package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"gardencast/internal/errorutil"
	"gardencast/internal/logger"
)

const (
	defaultPurgeInterval  = time.Hour
	defaultRefreshTimeout = 30 * time.Second
)

// Purger removes expired cache entries
type Purger interface {
	Purge() int
}

// RefreshFunc warms the cache for the last searched city
type RefreshFunc func(ctx context.Context) error

// Config holds job intervals. A zero RefreshInterval disables the refresh job.
type Config struct {
	PurgeInterval   time.Duration
	RefreshInterval time.Duration
	RefreshTimeout  time.Duration
}

// Scheduler runs cache maintenance in the background. Each job runs in
// singleton mode, so a slow run is never overlapped by the next one.
type Scheduler struct {
	cron    *gocron.Scheduler
	purger  Purger
	refresh RefreshFunc
	config  Config
}

// New creates a scheduler. refresh may be nil.
func New(purger Purger, refresh RefreshFunc, config Config) *Scheduler {
	if config.PurgeInterval <= 0 {
		config.PurgeInterval = defaultPurgeInterval
	}
	if config.RefreshTimeout <= 0 {
		config.RefreshTimeout = defaultRefreshTimeout
	}

	cron := gocron.NewScheduler(time.UTC)
	cron.SingletonModeAll()

	return &Scheduler{
		cron:    cron,
		purger:  purger,
		refresh: refresh,
		config:  config,
	}
}

// Start schedules the jobs and starts the underlying scheduler
func (s *Scheduler) Start() error {
	if _, err := s.cron.Every(s.config.PurgeInterval).Tag("purge").Do(s.RunPurge); err != nil {
		return err
	}
	logger.Info("Scheduled cache purge every %s", s.config.PurgeInterval)

	if s.refresh != nil && s.config.RefreshInterval > 0 {
		_, err := s.cron.Every(s.config.RefreshInterval).WaitForSchedule().Tag("refresh").Do(s.RunRefresh)
		if err != nil {
			return err
		}
		logger.Info("Scheduled last-city refresh every %s", s.config.RefreshInterval)
	}

	s.cron.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// JobCount reports how many jobs are scheduled
func (s *Scheduler) JobCount() int {
	return s.cron.Len()
}

// RunPurge removes expired cache entries once
func (s *Scheduler) RunPurge() {
	if s.purger == nil {
		return
	}
	_ = errorutil.ExecuteWithLogging(logger.Get().Logger, "cache purge", func() error {
		removed := s.purger.Purge()
		logger.Debug("Cache purge job removed %d entries", removed)
		return nil
	})
}

// RunRefresh reloads the last city once, bounded by the refresh timeout
func (s *Scheduler) RunRefresh() {
	if s.refresh == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.RefreshTimeout)
	defer cancel()

	// failures are logged; the next tick retries
	_ = errorutil.ExecuteWithLogging(logger.Get().Logger, "last city refresh", func() error {
		return s.refresh(ctx)
	}, slog.Duration("timeout", s.config.RefreshTimeout))
}
