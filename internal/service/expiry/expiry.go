// Package expiry runs the card expiry sweep on a cron schedule.
package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nkiryanov/bankcards/internal/logger"
)

// Daily at midnight UTC
const DefaultSchedule = "0 0 * * *"

type sweeper interface {
	SweepExpired(ctx context.Context, today time.Time) (int, error)
}

type Scheduler struct {
	cron    *cron.Cron
	sweeper sweeper
	logger  logger.Logger

	// Context of running scheduler, jobs are cancelled with it
	ctx context.Context
	now func() time.Time
}

// New validates schedule in standard 5 field cron format (descriptors like @daily are allowed too)
func New(schedule string, sweeper sweeper, l logger.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	cronLogger := cron.PrintfLogger(logger.StdLogger(l))
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	s := &Scheduler{
		cron:    c,
		sweeper: sweeper,
		logger:  l,
		ctx:     context.Background(),
		now:     time.Now,
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid expiry schedule %q: %w", schedule, err)
	}
	if _, err := c.AddFunc(schedule, func() { s.Sweep(s.ctx) }); err != nil {
		return nil, fmt.Errorf("error while scheduling expiry sweep. Err: %w", err)
	}

	return s, nil
}

// Sweep expires cards once for the current UTC date
func (s *Scheduler) Sweep(ctx context.Context) {
	today := s.now().UTC()

	n, err := s.sweeper.SweepExpired(ctx, today)
	if err != nil {
		s.logger.Error("Expiry sweep failed", "error", err)
		return
	}

	s.logger.Info("Expiry sweep done", "date", today.Format(time.DateOnly), "expired", n)
}

// Run starts the schedule and stops it when ctx is done.
// Returned channel is closed when running job (if any) finished.
func (s *Scheduler) Run(ctx context.Context) <-chan struct{} {
	idle := make(chan struct{})

	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("Expiry scheduler started", "entries", len(s.cron.Entries()))

	go func() {
		defer close(idle)
		<-ctx.Done()
		<-s.cron.Stop().Done()
		s.logger.Debug("Expiry scheduler stopped")
	}()

	return idle
}
