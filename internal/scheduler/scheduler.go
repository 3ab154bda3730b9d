package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/salesledger/internal/clock"
	obscontext "github.com/smallbiznis/salesledger/internal/observability/context"
	obsmetrics "github.com/smallbiznis/salesledger/internal/observability/metrics"
	processingdomain "github.com/smallbiznis/salesledger/internal/processing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrInvalidConfig = errors.New("invalid_scheduler_config")
	// ErrRunInProgress reports that another instance holds the run lock.
	ErrRunInProgress = errors.New("run_in_progress")
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Processing processingdomain.Service
	Locker     *Locker                     `optional:"true"`
	Metrics    *obsmetrics.PipelineMetrics `optional:"true"`
	Config     Config                      `optional:"true"`
}

// Scheduler runs the processing pipeline periodically. Mutual exclusion
// across instances comes from the redis lock; the pipeline itself never locks.
type Scheduler struct {
	log        *zap.Logger
	clock      clock.Clock
	cfg        Config
	processing processingdomain.Service
	locker     *Locker
	metrics    *obsmetrics.PipelineMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Processing == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler"),
		clock:      p.Clock,
		cfg:        p.Config.withDefaults(),
		processing: p.Processing,
		locker:     p.Locker,
		metrics:    p.Metrics,
	}, nil
}

// RunOnce runs the pipeline if no other instance holds the lock. A held lock
// is not an error.
func (s *Scheduler) RunOnce(parent context.Context) error {
	start := s.clock.Now()
	result, err := s.Trigger(parent, "scheduler", processingdomain.RunRequest{})
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.metrics.IncSchedulerTick(obsmetrics.SchedulerTickSkipped)
		s.log.Info("scheduler.run.skipped", zap.String("lock_key", s.cfg.LockKey))
		return nil
	case err != nil:
		s.metrics.IncSchedulerTick(obsmetrics.SchedulerTickFailed)
		return err
	}

	s.metrics.IncSchedulerTick(obsmetrics.SchedulerTickRan)
	s.log.Info("scheduler.run.done",
		zap.String("run_id", result.RunID),
		zap.Int("committed", result.Committed),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", s.clock.Now().Sub(start)),
	)
	return nil
}

// Trigger runs the pipeline once under the run lock, tagging the context
// with trigger. It returns ErrRunInProgress when the lock is held elsewhere.
func (s *Scheduler) Trigger(parent context.Context, trigger string, req processingdomain.RunRequest) (processingdomain.RunResult, error) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.RunTimeout)
	defer cancel()
	ctx = obscontext.WithTrigger(ctx, trigger)

	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, s.cfg.LockKey, s.cfg.LockTTL)
		if err != nil {
			return processingdomain.RunResult{}, err
		}
		if !ok {
			return processingdomain.RunResult{}, ErrRunInProgress
		}
		defer func() {
			releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer releaseCancel()
			if err := s.locker.Release(releaseCtx, s.cfg.LockKey, token); err != nil {
				s.log.Warn("scheduler.lock.release_failed", zap.Error(err))
			}
		}()
	}

	return s.processing.Run(ctx, req)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
