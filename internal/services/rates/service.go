// Package rates fetches, caches and serves coin exchange rates. One Service
// owns the per-day rate tables, the refresh error flags and the provider
// request quota; every other component reads rates through it.
package rates

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/epconsortium/cryptomarket/internal/domain"
)

// Service caches exchange rates per calendar day and tracks refresh health.
// Days are reckoned in UTC. All shared state sits behind one mutex; readers
// always receive a fully built table, never one a refresh is merging into.
type Service struct {
	provider  PriceProvider
	limiter   *RequestLimiter
	cache     rateCache
	logger    *zap.Logger
	coins     []string
	freshness time.Duration

	// refreshMu serializes refresh cycles: overlapping triggers coalesce
	// instead of double-fetching and fighting over the error flags.
	refreshMu sync.Mutex

	mu             sync.Mutex
	tables         map[domain.Day]*domain.RateTable
	lastFetched    map[string]time.Time
	lastCurrentDay domain.Day
	currentError   bool
	dailyError     bool

	now func() time.Time
}

// NewService builds a rate service for the tracked coins. cache may be nil,
// in which case fetched rates only live in memory.
func NewService(provider PriceProvider, limiter *RequestLimiter, cache rateCache,
	coins []string, freshness time.Duration, logger *zap.Logger) (*Service, error) {
	if provider == nil {
		return nil, errors.New("price provider is required")
	}
	if limiter == nil {
		return nil, errors.New("request limiter is required")
	}
	if len(coins) == 0 {
		return nil, errors.New("at least one coin must be tracked")
	}

	s := &Service{
		provider:    provider,
		limiter:     limiter,
		cache:       cache,
		logger:      logger,
		coins:       coins,
		freshness:   freshness,
		tables:      make(map[domain.Day]*domain.RateTable),
		lastFetched: make(map[string]time.Time),
		now:         time.Now,
	}
	s.lastCurrentDay = domain.DayOf(s.now().UTC())
	return s, nil
}

// Warm restores previously fetched rates from the local cache so a restart
// does not start with empty tables. Entries fetched within the freshness
// window also postpone the next fetch of their coin.
func (s *Service) Warm() {
	if s.cache == nil {
		return
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, coin := range s.coins {
		entries, err := s.cache.Load(coin)
		if err != nil {
			s.logger.Warn("failed to load cached rates", zap.String("coin", coin), zap.Error(err))
			continue
		}
		for day, entry := range entries {
			s.mergeLocked(day, coin, entry.Value)
			if day == domain.DayOf(now.UTC()) && entry.Fresh(s.freshness, now) {
				s.lastFetched[coin] = entry.LastUpdated
			}
		}
		if len(entries) > 0 {
			s.logger.Info("restored cached rates", zap.String("coin", coin), zap.Int("days", len(entries)))
		}
	}
}

// UpdateAll refreshes today's rates and the daily history for every tracked
// coin. Both error flags are reset first and settle once every coin has been
// attempted. A cycle already in flight absorbs the call.
func (s *Service) UpdateAll(ctx context.Context) error {
	if !s.refreshMu.TryLock() {
		s.logger.Debug("refresh already running, coalescing update request")
		return nil
	}
	defer s.refreshMu.Unlock()

	s.mu.Lock()
	s.currentError = false
	s.dailyError = false
	s.mu.Unlock()

	if err := s.updateCurrent(ctx); err != nil {
		return err
	}
	return s.updateHistory(ctx)
}

// UpdateCurrent refreshes only today's rates.
func (s *Service) UpdateCurrent(ctx context.Context) error {
	if !s.refreshMu.TryLock() {
		s.logger.Debug("refresh already running, coalescing update request")
		return nil
	}
	defer s.refreshMu.Unlock()

	return s.updateCurrent(ctx)
}

func (s *Service) updateCurrent(ctx context.Context) error {
	failed := false
	for _, coin := range s.coins {
		if s.recentlyFetched(coin) {
			s.logger.Debug("cached rate still fresh, skipping fetch", zap.String("coin", coin))
			continue
		}
		if err := s.limiter.Acquire(ctx); err != nil {
			s.setCurrentError(true)
			return err
		}

		today := domain.DayOf(s.now().UTC())
		price, err := s.provider.FetchCurrent(ctx, coin)
		if err != nil {
			if ctx.Err() != nil {
				s.setCurrentError(true)
				return ctx.Err()
			}
			s.logger.Warn("failed to fetch current rate", zap.String("coin", coin), zap.Error(err))
			failed = true
			continue
		}

		s.mu.Lock()
		s.mergeLocked(today, coin, price)
		s.lastFetched[coin] = s.now()
		s.lastCurrentDay = today
		s.mu.Unlock()

		s.persist(coin, map[domain.Day]decimal.Decimal{today: price})
	}
	s.setCurrentError(failed)
	return nil
}

// UpdateHistory backfills past days' closing rates for every tracked coin.
func (s *Service) UpdateHistory(ctx context.Context) error {
	if !s.refreshMu.TryLock() {
		s.logger.Debug("refresh already running, coalescing update request")
		return nil
	}
	defer s.refreshMu.Unlock()

	return s.updateHistory(ctx)
}

func (s *Service) updateHistory(ctx context.Context) error {
	failed := false
	for _, coin := range s.coins {
		if err := s.limiter.Acquire(ctx); err != nil {
			s.setDailyError(true)
			return err
		}

		history, err := s.provider.FetchHistory(ctx, coin)
		if err != nil {
			if ctx.Err() != nil {
				s.setDailyError(true)
				return ctx.Err()
			}
			s.logger.Warn("failed to fetch rate history", zap.String("coin", coin), zap.Error(err))
			failed = true
			continue
		}

		// merge the whole series under one lock hold so a cancelled cycle
		// leaves later coins unmerged rather than a day half filled
		s.mu.Lock()
		for day, price := range history {
			s.mergeLocked(day, coin, price)
		}
		s.mu.Unlock()

		s.persist(coin, history)
	}
	s.setDailyError(failed)
	return nil
}

// RateFor returns the rate table of the given day, or nil when no data is
// known for it. Days after today (UTC) are rejected. Observing that the
// calendar moved past the last refreshed day flips the current-error flag:
// it means a scheduled refresh was missed, e.g. the process was suspended.
func (s *Service) RateFor(day domain.Day) (*domain.RateTable, error) {
	today := domain.DayOf(s.now().UTC())
	if day.After(today) {
		return nil, errors.Wrap(domain.ErrInvalidArgument, "date cannot be after today")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if today.After(s.lastCurrentDay) {
		s.currentError = true
		s.lastCurrentDay = today
	}
	return s.tables[day], nil
}

// Current returns today's rate table, or nil when no data is known yet.
func (s *Service) Current() (*domain.RateTable, error) {
	return s.RateFor(domain.DayOf(s.now().UTC()))
}

// ErrorOccurred reports whether any fetch failed in the last refresh cycle
// or a scheduled refresh was missed. Callers should not trust conversions
// while it is set.
func (s *Service) ErrorOccurred() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailyError || s.currentError
}

// MinutesToUpdate estimates how long a full refresh takes: two requests per
// coin against the provider quota.
func (s *Service) MinutesToUpdate() int {
	requestsPerWindow := float64(s.limiter.limit)
	return int(math.Ceil(float64(len(s.coins)) * 2 / requestsPerWindow))
}

// Coins returns the tracked coin symbols.
func (s *Service) Coins() []string {
	out := make([]string, len(s.coins))
	copy(out, s.coins)
	return out
}

func (s *Service) mergeLocked(day domain.Day, coin string, price decimal.Decimal) {
	table := s.tables[day]
	if table == nil {
		table = domain.NewRateTable(day)
	}
	s.tables[day] = table.WithValue(coin, price)
}

func (s *Service) recentlyFetched(coin string) bool {
	if s.freshness <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastFetched[coin]
	return ok && last.Add(s.freshness).After(s.now())
}

func (s *Service) persist(coin string, prices map[domain.Day]decimal.Decimal) {
	if s.cache == nil {
		return
	}
	now := s.now()
	entries := make(map[domain.Day]domain.CachedRate, len(prices))
	for day, price := range prices {
		entries[day] = domain.CachedRate{Value: price, LastUpdated: now}
	}
	if err := s.cache.Save(coin, entries); err != nil {
		s.logger.Warn("failed to persist rates", zap.String("coin", coin), zap.Error(err))
	}
}

func (s *Service) setCurrentError(v bool) {
	s.mu.Lock()
	s.currentError = v
	s.mu.Unlock()
}

func (s *Service) setDailyError(v bool) {
	s.mu.Lock()
	s.dailyError = v
	s.mu.Unlock()
}
