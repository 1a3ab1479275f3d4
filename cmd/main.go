package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/epconsortium/cryptomarket/config"
	"github.com/epconsortium/cryptomarket/internal/scheduler"
	"github.com/epconsortium/cryptomarket/internal/services/ledger"
	"github.com/epconsortium/cryptomarket/internal/services/providers"
	"github.com/epconsortium/cryptomarket/internal/services/ranking"
	"github.com/epconsortium/cryptomarket/internal/services/rates"
	"github.com/epconsortium/cryptomarket/internal/services/registry"
	"github.com/epconsortium/cryptomarket/internal/services/wallet"
	"github.com/epconsortium/cryptomarket/internal/storage/auditlog"
	"github.com/epconsortium/cryptomarket/internal/storage/investors"
	"github.com/epconsortium/cryptomarket/internal/storage/ratecache"
)

const shutdownGrace = 10 * time.Second

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Get()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		// an unusable investor store means an unusable ledger; refuse to run
		logger.Fatal("startup failed", zap.Error(err))
	}

	if err := app.run(ctx); err != nil {
		logger.Error("market stopped with error", zap.Error(err))
	}
	app.shutdown(logger)
}

// app wires the market services together for the lifetime of the process.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *investors.Store
	audit     *auditlog.WALStore
	rates     *rates.Service
	registry  *registry.Registry
	ledger    *ledger.Ledger
	ranking   *ranking.Cache
	scheduler *scheduler.Scheduler
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	store, err := investors.Open(ctx, filepath.Join(cfg.DataDir, "investors.db"), logger)
	if err != nil {
		return nil, errors.Wrap(err, "open investor store")
	}

	cache, err := ratecache.New(filepath.Join(cfg.DataDir, "cache"), logger)
	if err != nil {
		return nil, errors.Wrap(err, "open rate cache")
	}

	audit, err := auditlog.NewWALStore(filepath.Join(cfg.DataDir, "wal", "audit"))
	if err != nil {
		return nil, errors.Wrap(err, "open audit log")
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}

	limiter := rates.NewRequestLimiter(cfg.RequestLimit, cfg.RequestWindow)
	rateSvc, err := rates.NewService(provider, limiter, cache, cfg.Coins, cfg.Freshness, logger)
	if err != nil {
		return nil, errors.Wrap(err, "build rate service")
	}
	rateSvc.Warm()

	reg, err := registry.New(store, logger)
	if err != nil {
		return nil, errors.Wrap(err, "build investor registry")
	}

	led, err := ledger.New(wallet.NewInMemory(), rateSvc, audit, logger)
	if err != nil {
		return nil, errors.Wrap(err, "build ledger")
	}

	rank, err := ranking.New(store, rateSvc, logger)
	if err != nil {
		return nil, errors.Wrap(err, "build ranking cache")
	}

	sched, err := scheduler.New(rateSvc, rank, reg, scheduler.Intervals{
		Rates:   cfg.RatesInterval,
		Ranking: cfg.RankingInterval,
		Flush:   cfg.FlushInterval,
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "build scheduler")
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		audit:     audit,
		rates:     rateSvc,
		registry:  reg,
		ledger:    led,
		ranking:   rank,
		scheduler: sched,
	}, nil
}

func buildProvider(cfg config.Config) (rates.PriceProvider, error) {
	switch cfg.Provider {
	case "alphavantage":
		return providers.NewAlphaVantage(cfg.APIKey, cfg.PhysicalCurrency), nil
	case "binance":
		return providers.NewBinance(binance.NewClient("", ""), cfg.PhysicalCurrency), nil
	case "bybit":
		return providers.NewBybit(bybit.NewClient(), cfg.PhysicalCurrency), nil
	default:
		return nil, errors.Errorf("unknown provider %q", cfg.Provider)
	}
}

func (a *app) run(ctx context.Context) error {
	a.logger.Info("market starting",
		zap.Strings("coins", a.cfg.Coins),
		zap.String("provider", a.cfg.Provider),
		zap.Int("minutes_to_update", a.rates.MinutesToUpdate()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// initial full refresh, then a first leaderboard
		if err := a.rates.UpdateAll(ctx); err != nil {
			return err
		}
		return a.ranking.Refresh(ctx)
	})
	g.Go(func() error { return a.scheduler.Run(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) shutdown(logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := a.registry.FlushAll(ctx); err != nil {
		logger.Error("failed to flush investors on shutdown", zap.Error(err))
	}
	if err := a.audit.Close(); err != nil {
		logger.Error("failed to close audit log", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		logger.Error("failed to close investor store", zap.Error(err))
	}
	logger.Info("market stopped")
}
