// Package ranking maintains the leaderboard of investors by converted net
// worth. The list is recomputed wholesale by a scheduled job; readers always
// get the last finished snapshot.
package ranking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/epconsortium/cryptomarket/internal/domain"
)

// investorLister yields every known investor, loaded or not.
type investorLister interface {
	ListAll(ctx context.Context) ([]*domain.Investor, error)
}

// rateSource yields today's rate table.
type rateSource interface {
	Current() (*domain.RateTable, error)
}

type ranked struct {
	investor *domain.Investor
	worth    decimal.Decimal
}

// Cache holds the last computed leaderboard snapshot.
type Cache struct {
	lister investorLister
	rates  rateSource
	logger *zap.Logger
	now    func() time.Time

	mu           sync.RWMutex
	ordered      []ranked
	total        decimal.Decimal
	lastComputed time.Time
}

// New builds an empty ranking cache; call Refresh to populate it.
func New(lister investorLister, rates rateSource, logger *zap.Logger) (*Cache, error) {
	if lister == nil {
		return nil, errors.New("investor lister is required")
	}
	if rates == nil {
		return nil, errors.New("rate source is required")
	}
	return &Cache{lister: lister, rates: rates, logger: logger, now: time.Now, total: decimal.Zero}, nil
}

// Refresh recomputes the whole leaderboard from the repository and today's
// rates. Without a current rate table the snapshot is emptied rather than
// published with every investor at worth zero. Ties on net worth order by
// investor id so the ranking is deterministic.
func (c *Cache) Refresh(ctx context.Context) error {
	investors, err := c.lister.ListAll(ctx)
	if err != nil {
		return errors.Wrap(err, "list investors")
	}

	table, err := c.rates.Current()
	if err != nil {
		return errors.Wrap(err, "resolve current rates")
	}

	var ordered []ranked
	total := decimal.Zero
	if table != nil {
		ordered = make([]ranked, 0, len(investors))
		for _, investor := range investors {
			worth := investor.ConvertedPatrimony(table)
			ordered = append(ordered, ranked{investor: investor, worth: worth})
			total = total.Add(worth)
		}
		sort.Slice(ordered, func(i, j int) bool {
			if !ordered[i].worth.Equal(ordered[j].worth) {
				return ordered[i].worth.GreaterThan(ordered[j].worth)
			}
			return ordered[i].investor.ID() < ordered[j].investor.ID()
		})
	} else {
		c.logger.Warn("no current rate table, publishing empty ranking")
	}

	c.mu.Lock()
	c.ordered = ordered
	c.total = total
	c.lastComputed = c.now()
	c.mu.Unlock()

	c.logger.Debug("ranking recomputed",
		zap.Int("investors", len(ordered)), zap.String("total", total.String()))
	return nil
}

// TopInvestors returns the richest investors, best first, at most max of
// them. max of zero means all. The slice is a copy of the snapshot; calling
// again before the next Refresh yields the identical ranking.
func (c *Cache) TopInvestors(max int) ([]*domain.Investor, error) {
	if max < 0 {
		return nil, errors.Wrap(domain.ErrInvalidArgument, "max cannot be negative")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if max == 0 || max > len(c.ordered) {
		max = len(c.ordered)
	}
	top := make([]*domain.Investor, 0, max)
	for _, r := range c.ordered[:max] {
		top = append(top, r.investor)
	}
	return top, nil
}

// TotalInvestments returns the aggregate net worth of all investors at the
// last recompute, zero when no rate table was available.
func (c *Cache) TotalInvestments() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total
}

// LastComputed returns when the snapshot was produced; zero before the first
// Refresh. Readers decide for themselves whether that is stale enough to ask
// for a manual refresh.
func (c *Cache) LastComputed() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastComputed
}
