// Package scheduler drives the periodic jobs of the market core: exchange
// rate refresh, ranking recompute and investor persistence. Each job is an
// independent ticker loop; all of them stop cleanly when the context is
// cancelled.
package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type ratesRefresher interface {
	UpdateAll(ctx context.Context) error
	UpdateCurrent(ctx context.Context) error
	ErrorOccurred() bool
}

type rankingRefresher interface {
	Refresh(ctx context.Context) error
}

type investorFlusher interface {
	FlushAll(ctx context.Context) error
}

// Intervals configures the job periods.
type Intervals struct {
	Rates   time.Duration
	Ranking time.Duration
	Flush   time.Duration
}

// Scheduler owns the periodic jobs.
type Scheduler struct {
	rates     ratesRefresher
	ranking   rankingRefresher
	investors investorFlusher
	intervals Intervals
	logger    *zap.Logger
	now       func() time.Time
}

// New builds a scheduler; all three collaborators are required.
func New(rates ratesRefresher, ranking rankingRefresher, investors investorFlusher,
	intervals Intervals, logger *zap.Logger) (*Scheduler, error) {
	if rates == nil || ranking == nil || investors == nil {
		return nil, errors.New("rates, ranking and investors jobs are all required")
	}
	if intervals.Rates <= 0 || intervals.Ranking <= 0 || intervals.Flush <= 0 {
		return nil, errors.New("all job intervals must be positive")
	}
	return &Scheduler{
		rates:     rates,
		ranking:   ranking,
		investors: investors,
		intervals: intervals,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Run starts the jobs and blocks until ctx is cancelled. In-flight job runs
// finish (or observe the cancellation themselves) before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.ratesLoop(ctx) })
	g.Go(func() error { return s.loop(ctx, "ranking", s.intervals.Ranking, s.ranking.Refresh) })
	g.Go(func() error { return s.loop(ctx, "flush", s.intervals.Flush, s.investors.FlushAll) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ratesLoop refreshes exchange rates. The first run is aligned so that one
// run lands just after midnight UTC, when a new daily closing price becomes
// available. A cycle that previously failed is retried in full; a healthy
// one only refreshes today's rates.
func (s *Scheduler) ratesLoop(ctx context.Context) error {
	delay := nextRatesDelay(s.now().UTC(), s.intervals.Rates)
	s.logger.Info("rates job scheduled",
		zap.Duration("first_run_in", delay), zap.Duration("period", s.intervals.Rates))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	ticker := time.NewTicker(s.intervals.Rates)
	defer ticker.Stop()
	for {
		s.runRates(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runRates(ctx context.Context) {
	var err error
	if s.rates.ErrorOccurred() {
		s.logger.Info("previous refresh failed, updating all rates")
		err = s.rates.UpdateAll(ctx)
	} else {
		err = s.rates.UpdateCurrent(ctx)
	}
	if err != nil && ctx.Err() == nil {
		s.logger.Error("rates refresh failed", zap.Error(err))
	}
}

func (s *Scheduler) loop(ctx context.Context, name string, period time.Duration,
	run func(ctx context.Context) error) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := run(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("job failed", zap.String("job", name), zap.Error(err))
			}
		}
	}
}

// nextRatesDelay returns how long to wait before the first rates run so
// that, stepping by period, one run falls at 00:01 the next day.
func nextRatesDelay(now time.Time, period time.Duration) time.Duration {
	tomorrow := time.Date(now.Year(), now.Month(), now.Day(), 0, 1, 0, 0, now.Location()).AddDate(0, 0, 1)
	return tomorrow.Sub(now) % period
}
