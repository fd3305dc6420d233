// Package app assembles storage, price feeds, notifiers and services from
// configuration. Both the HTTP server and the CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fundme-labs/fundme/internal/config"
	"github.com/fundme-labs/fundme/internal/funding"
	"github.com/fundme-labs/fundme/internal/identity"
	"github.com/fundme-labs/fundme/internal/infra"
	"github.com/fundme-labs/fundme/internal/ledger"
	"github.com/fundme-labs/fundme/internal/notification"
	"github.com/fundme-labs/fundme/internal/pricefeed"
	"github.com/fundme-labs/fundme/internal/wallet"
)

// App holds the wired components of one process.
type App struct {
	Cfg    config.Config
	Logger *slog.Logger
	DB     *pgxpool.Pool
	Cache  *redis.Client

	Store      ledger.Store
	Feeds      pricefeed.Admin
	Notifier   notification.Notifier
	Identities *identity.Service
	Wallets    *wallet.Service
	Funding    *funding.Service

	closers []func() error
}

// Build connects to the configured backends and constructs every service.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Cfg: cfg, Logger: logger}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Cfg

	if cfg.RedisURL != "" {
		cache, err := infra.NewRedisClient(ctx, cfg.RedisURL, cfg.AppName)
		if err != nil {
			return err
		}
		a.Cache = cache
		a.closers = append(a.closers, cache.Close)
	}

	var identityRepo identity.Repository
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.AppName)
		if err != nil {
			return err
		}
		a.DB = pool
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		store := ledger.NewPostgresStore(pool)
		repo := identity.NewPostgresRepository(pool)
		if err := infra.Migrate(ctx, store, repo); err != nil {
			return err
		}
		a.Store, identityRepo = store, repo
	case config.DriverSQLite:
		store, err := ledger.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store.Close)
		repo, err := identity.NewSQLiteRepository(ctx, store.DB())
		if err != nil {
			return fmt.Errorf("apply identity schema: %w", err)
		}
		a.Store, identityRepo = store, repo
	default:
		a.Store = ledger.NewInMemory()
		identityRepo = identity.NewMemoryRepository()
	}

	if a.Cache != nil {
		a.Feeds = pricefeed.NewRedisFeeds(a.Cache)
	} else {
		a.Feeds = pricefeed.NewRegistry()
	}
	if err := a.provisionFeeds(ctx); err != nil {
		return err
	}

	notifiers := notification.Multi{notification.NewLoggerNotifier(a.Logger)}
	if len(cfg.KafkaBrokers) > 0 {
		kafka := notification.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		notifiers = append(notifiers, kafka)
		a.closers = append(a.closers, kafka.Close)
	}
	a.Notifier = notifiers

	a.Identities = identity.NewService(identityRepo, a.Store)
	a.Wallets = wallet.NewService(a.Store, cfg.FaucetEnabled)
	a.Funding = funding.NewService(a.Store, a.Feeds, a.Notifier, a.Logger, cfg.MinimumUSD)
	return nil
}

// provisionFeeds deploys the default mock feed on development environments
// and every feed listed in FEEDS_FILE. Existing feeds keep their answer.
func (a *App) provisionFeeds(ctx context.Context) error {
	specs := append([]config.FeedSpec(nil), a.Cfg.Feeds...)
	if a.Cfg.IsDevelopment() {
		specs = append([]config.FeedSpec{a.Cfg.DefaultFeed}, specs...)
	}
	for _, spec := range specs {
		answer, err := decimal.NewFromString(spec.Answer)
		if err != nil {
			return fmt.Errorf("feed %s: %w", spec.Ref, err)
		}
		if _, err := a.Feeds.Create(ctx, spec.Ref, spec.Decimals, answer); err != nil {
			if errors.Is(err, pricefeed.ErrFeedExists) {
				continue
			}
			return fmt.Errorf("provision feed %s: %w", spec.Ref, err)
		}
		a.Logger.Info("price feed provisioned",
			slog.String("ref", spec.Ref),
			slog.Int("decimals", int(spec.Decimals)),
			slog.String("answer", spec.Answer),
		)
	}
	return nil
}

// Close releases backends in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.Logger != nil {
			a.Logger.Warn("close resource", slog.String("error", err.Error()))
		}
	}
	a.closers = nil
}
