// Package scheduler drives the background sweeps: moving elapsed
// confirmed gigs into escrow and releasing escrowed fees whose clearing
// deadline has passed. Both sweeps only re-derive work from persistent
// state, so a missed tick delays settlement and never loses it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/stagewire/stagewire/internal/booking/domain"
	"github.com/stagewire/stagewire/internal/clock"
	gigdomain "github.com/stagewire/stagewire/internal/gig/domain"
	obsmetrics "github.com/stagewire/stagewire/internal/observability/metrics"
	"github.com/stagewire/stagewire/internal/recurrence"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sweepLockKey = "stagewire:scheduler:sweep"

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       gigdomain.Repository
	BookingSvc bookingdomain.Service
	Locker     *Locker `optional:"true"`
	Config     Config  `optional:"true"`
}

type Scheduler struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	repo       gigdomain.Repository
	bookingSvc bookingdomain.Service
	locker     *Locker
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.Repo == nil || p.BookingSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:         p.DB,
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		bookingSvc: p.BookingSvc,
		locker:     p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		schedMetrics.IncJobTimeout(name)
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	schedMetrics.IncJobError(name)
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes one sweep pass. When a locker is configured only one
// instance runs the pass; losing the lock race is not an error.
func (s *Scheduler) RunOnce(parent context.Context) error {
	token, ok, err := s.locker.TryLock(parent, sweepLockKey, s.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("sweep lock: %w", err)
	}
	if !ok {
		s.log.Debug("sweep lock held elsewhere, skipping pass")
		return nil
	}
	defer func() {
		if relErr := s.locker.Release(parent, sweepLockKey, token); relErr != nil {
			s.log.Warn("sweep lock release failed", zap.Error(relErr))
		}
	}()

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{"mark_performed", s.isJobEnabled("mark_performed"), func(ctx context.Context) error {
			return s.runJob(ctx, "mark_performed", s.cfg.BatchSize, 30*time.Second, s.MarkPerformedJob)
		}},
		{"clear_fees", s.isJobEnabled("clear_fees"), func(ctx context.Context) error {
			return s.runJob(ctx, "clear_fees", s.cfg.MaxClearBatchSize, 30*time.Second, s.ClearFeesJob)
		}},
	}

	var runErr error
	for _, job := range jobs {
		if job.Enabled {
			runErr = errors.Join(runErr, job.Run(parent))
		}
	}
	return runErr
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

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty EnabledJobs list enables everything (monolith mode).
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// MarkPerformedJob sweeps confirmed gigs dated on or before today in the
// reference timezone. Gigs whose performance window has not elapsed yet
// are skipped, not failed: the booking service owns the exact check.
func (s *Scheduler) MarkPerformedJob(ctx context.Context) error {
	run := s.newJobRun("mark_performed", s.cfg.BatchSize)
	s.logJobStart(run)
	defer s.logJobFinish(run)

	loc, err := time.LoadLocation(recurrence.ReferenceZone)
	if err != nil {
		return err
	}
	today := s.clock.Now().In(loc).Format("2006-01-02")
	schedMetrics := obsmetrics.Scheduler()
	var jobErr error

	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		gigs, err := s.repo.FindConfirmedOnOrBefore(ctx, s.db, today, s.cfg.BatchSize)
		if err != nil {
			s.logSchedulerError(run, "scheduler.gig.fetch.failed", "mark_performed", 0, err)
			return errors.Join(jobErr, err)
		}
		if len(gigs) == 0 {
			break
		}

		processed := 0
		for _, gig := range gigs {
			if ctx.Err() != nil {
				return errors.Join(jobErr, ctx.Err())
			}

			err := s.bookingSvc.MarkPerformed(ctx, gig.ID.String())
			switch {
			case err == nil:
				processed++
				run.AddProcessed(1)
				schedMetrics.IncBatchItem("mark_performed", "escrowed")
			case errors.Is(err, bookingdomain.ErrNotPerformedYet):
				schedMetrics.IncBatchItem("mark_performed", "not_due")
			case errors.Is(err, bookingdomain.ErrNotConfirmed):
				// Lost a race with a cancel or another sweep instance.
				schedMetrics.IncBatchItem("mark_performed", "skipped")
			default:
				jobErr = errors.Join(jobErr, err)
				s.logSchedulerError(run, "scheduler.gig.process.failed", "mark_performed", gig.ID, err)
				schedMetrics.IncBatchItem("mark_performed", "error")
			}
		}

		// Not-due gigs stay confirmed, so an exhausted batch with no
		// progress means the rest of today's gigs are still running.
		if processed == 0 || len(gigs) < s.cfg.BatchSize {
			break
		}
	}

	return jobErr
}

// ClearFeesJob releases pending fees whose 48h clearing deadline has
// passed. Conflicts mean another actor already settled or disputed the
// fee; those are skips, not errors.
func (s *Scheduler) ClearFeesJob(ctx context.Context) error {
	run := s.newJobRun("clear_fees", s.cfg.MaxClearBatchSize)
	s.logJobStart(run)
	defer s.logJobFinish(run)

	schedMetrics := obsmetrics.Scheduler()
	var jobErr error

	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		fees, err := s.fetchDueFeesForWork(ctx, s.clock.Now(), s.cfg.MaxClearBatchSize)
		if err != nil {
			s.logSchedulerError(run, "scheduler.fee.fetch.failed", "clear_fees", 0, err)
			return errors.Join(jobErr, err)
		}
		if len(fees) == 0 {
			break
		}

		processed := 0
		for _, fee := range fees {
			if ctx.Err() != nil {
				return errors.Join(jobErr, ctx.Err())
			}

			err := s.bookingSvc.ClearFee(ctx, fee.GigID.String())
			switch {
			case err == nil:
				processed++
				run.AddProcessed(1)
				schedMetrics.IncBatchItem("clear_fees", "cleared")
			case errors.Is(err, bookingdomain.ErrFeeConflict),
				errors.Is(err, bookingdomain.ErrFeeNotDue),
				errors.Is(err, bookingdomain.ErrFeeNotFound):
				schedMetrics.IncBatchItem("clear_fees", "skipped")
			default:
				jobErr = errors.Join(jobErr, err)
				s.logSchedulerError(run, "scheduler.fee.process.failed", "clear_fees", fee.GigID, err,
					zap.String("performer_id", idString(fee.PerformerID)),
				)
				schedMetrics.IncBatchItem("clear_fees", "error")
			}
		}

		if processed == 0 || len(fees) < s.cfg.MaxClearBatchSize {
			break
		}
	}

	return jobErr
}
