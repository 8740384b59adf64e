package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/langcenter-api/pkg/cache"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
)

type globalPopulator interface {
	PopulateGlobal(ctx context.Context, now time.Time) (*GlobalPopulationResult, error)
	RemoveParallelWaiting(ctx context.Context, courseIDs []string, now time.Time) (*ParallelCleanupResult, error)
}

type runLock interface {
	Acquire(ctx context.Context) (func(context.Context) error, error)
}

// SchedulerConfig configures periodic population runs.
type SchedulerConfig struct {
	Spec     string
	Location *time.Location
	Timeout  time.Duration
}

// PopulationScheduler triggers PopulateGlobal on a cron schedule. The lock keeps
// several API instances from running the engine at the same time.
type PopulationScheduler struct {
	cron      *cron.Cron
	populator globalPopulator
	lock      runLock
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewPopulationScheduler registers the population job; Start must be called to begin.
func NewPopulationScheduler(populator globalPopulator, lock runLock, cfg SchedulerConfig, logger *zap.Logger) (*PopulationScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Spec == "" {
		cfg.Spec = "*/15 * * * *"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	s := &PopulationScheduler{
		cron:      cron.New(cron.WithLocation(cfg.Location)),
		populator: populator,
		lock:      lock,
		timeout:   cfg.Timeout,
		logger:    logger,
		now:       time.Now,
	}
	if _, err := s.cron.AddFunc(cfg.Spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("register population schedule %q: %w", cfg.Spec, err)
	}
	return s, nil
}

// Start begins the cron loop in its own goroutine.
func (s *PopulationScheduler) Start() {
	s.cron.Start()
	s.logger.Info("population scheduler started")
}

// Stop halts scheduling and waits for a running job to finish or ctx to expire.
func (s *PopulationScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("population scheduler stop timed out")
	}
}

// RunOnce performs one scheduled run and reports whether the engine executed.
func (s *PopulationScheduler) RunOnce(ctx context.Context) bool {
	result, err := s.Trigger(ctx)
	switch {
	case errors.Is(err, appErrors.ErrPopulationRunning):
		s.logger.Debug("population run skipped, another run holds the lock")
		return false
	case err != nil:
		s.logger.Error("scheduled population run failed", zap.Error(err))
		return result != nil
	}
	s.logger.Info("scheduled population run finished",
		zap.Int("random_accepted", result.Random.Accepted),
		zap.Int("fcfs_accepted", result.FCFS.Accepted),
		zap.Int("waiting_lists_changed", result.WaitingListsChanged),
	)
	return true
}

// Trigger runs PopulateGlobal under the distributed lock.
func (s *PopulationScheduler) Trigger(ctx context.Context) (result *GlobalPopulationResult, err error) {
	err = s.locked(ctx, func(ctx context.Context) error {
		result, err = s.populator.PopulateGlobal(ctx, s.now())
		return err
	})
	return result, err
}

// RemoveParallelWaiting runs the parallel-course cleanup under the same lock as population runs.
func (s *PopulationScheduler) RemoveParallelWaiting(ctx context.Context, courseIDs []string) (result *ParallelCleanupResult, err error) {
	err = s.locked(ctx, func(ctx context.Context) error {
		result, err = s.populator.RemoveParallelWaiting(ctx, courseIDs, s.now())
		return err
	})
	return result, err
}

func (s *PopulationScheduler) locked(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.lock != nil {
		release, err := s.lock.Acquire(ctx)
		if err != nil {
			if errors.Is(err, cache.ErrLockHeld) {
				return appErrors.ErrPopulationRunning
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire population lock")
		}
		defer func() {
			if relErr := release(context.Background()); relErr != nil {
				s.logger.Warn("release population lock", zap.Error(relErr))
			}
		}()
	}
	return fn(ctx)
}
