// Package app wires the optional stores, the market data provider and the
// analysis service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockadvisor/internal/config"
	"stockadvisor/internal/database"
	"stockadvisor/internal/events"
	"stockadvisor/internal/marketdata"
	"stockadvisor/internal/marketdata/alpaca"
	"stockadvisor/internal/marketdata/alphavantage"
	"stockadvisor/internal/redis"
	"stockadvisor/internal/service"
	"stockadvisor/internal/usage"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type App struct {
	Repo     *database.Repo
	Cache    *redis.Client
	Events   *events.Publisher
	Tracker  *usage.Tracker
	Fetcher  *service.Fetcher
	Analyzer *service.Analyzer

	db  *sqlx.DB
	log *logrus.Logger
}

// New connects whatever cfg enables. Postgres failures are fatal because the
// operator asked for history; Redis and Kafka failures only disable the cache
// and the event stream.
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{log: log, Tracker: usage.NewTracker(cfg.Billing, reg)}

	if cfg.Database.URL != "" {
		db, err := initDB(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("db connect failed: %w", err)
		}
		a.db = db
		if err := runMigrations(cfg.Database.MigrationsPath, cfg.Database.URL, log); err != nil {
			db.Close()
			return nil, err
		}
		a.Repo = database.New(db, log)

		totals, err := a.Repo.GetUsageTotals(ctx)
		if err != nil {
			log.Warnf("could not restore usage totals: %v", err)
		} else {
			a.Tracker.Restore(totals.PortfoliosAnalyzed, totals.AdviceGenerated, totals.TotalBill)
			log.Infof("restored usage: %d portfolios, bill %s", totals.PortfoliosAnalyzed, totals.TotalBill.StringFixed(2))
		}
	} else {
		log.Info("POSTGRES_URL not set; running without snapshot history or analysis log")
	}

	if cfg.Redis.Addr != "" {
		c, err := redis.New(cfg.Redis)
		if err != nil {
			log.Warnf("redis unavailable, snapshot cache disabled: %v", err)
		} else {
			a.Cache = c
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		a.Events = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		log.Infof("publishing analyses to kafka topic %s", cfg.Kafka.Topic)
	}

	var (
		cache    service.SnapshotCache
		snapshot service.SnapshotStore
		store    service.AnalysisStore
		pub      service.EventPublisher
		source   service.SnapshotSource
	)
	if a.Cache != nil {
		cache = a.Cache
	}
	if a.Repo != nil {
		snapshot = a.Repo
		store = a.Repo
	}
	if a.Events != nil {
		pub = a.Events
	}
	if p := NewProvider(cfg.MarketData, log); p != nil {
		a.Fetcher = service.NewFetcher(p, cache, snapshot, cfg.MarketData.StaleAfter, log)
		source = a.Fetcher
	} else {
		log.Warnf("market data provider %q is not configured; /analyse will answer 503", cfg.MarketData.Provider)
	}
	a.Analyzer = service.NewAnalyzer(source, a.Tracker, store, pub, log)
	return a, nil
}

// NewProvider returns nil when the selected provider has no credentials.
func NewProvider(cfg config.MarketDataConfig, log *logrus.Logger) marketdata.Provider {
	if !cfg.Configured() {
		return nil
	}
	switch cfg.Provider {
	case "alpaca":
		return alpaca.NewProvider(cfg.AlpacaAPIKey, cfg.AlpacaAPISecret)
	case "alphavantage":
	default:
		log.Warnf("unknown MARKET_DATA_PROVIDER %q, using alphavantage", cfg.Provider)
	}
	return alphavantage.New(cfg.AlphaVantageAPIKey, cfg.AlphaVantageBaseURL, log)
}

func (a *App) Close() {
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.log.Warnf("error closing kafka writer: %v", err)
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.log.Warnf("error closing redis: %v", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

func initDB(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return db, nil
}

func runMigrations(source, dsn string, log *logrus.Logger) error {
	m, err := migrate.New(source, dsn)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer m.Close()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("no migrations to apply; database is up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	log.Info("migrations applied")
	return nil
}
