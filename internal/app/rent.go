package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	jobmetrics "github.com/odyssey-erp/rentroll/internal/jobs"
	"github.com/odyssey-erp/rentroll/internal/platform/cache"
	"github.com/odyssey-erp/rentroll/internal/platform/db"
	"github.com/odyssey-erp/rentroll/internal/rent"
	rentsqlite "github.com/odyssey-erp/rentroll/internal/rent/sqlite"
	"github.com/odyssey-erp/rentroll/internal/shared"
	"github.com/odyssey-erp/rentroll/jobs"
)

// RentStore is the storage surface shared by the PostgreSQL and SQLite drivers.
type RentStore interface {
	rent.LeaseSource
	rent.InvoiceStore
	rent.InvoiceLifecycle
	ListPeriod(ctx context.Context, period rent.Period) ([]rent.Invoice, error)
}

// RentStack holds the wired rent generator for one process.
type RentStack struct {
	Store     RentStore
	Runner    *rent.Runner
	Lifecycle *rent.Lifecycle
	Job       *jobs.RentGenerateJob
	Pool      *pgxpool.Pool
	Redis     *redis.Client

	closers []func()
}

// OpenRent connects the configured store and Redis and builds the generator.
// Redis is optional: without it reminders are only stored in the database.
func OpenRent(ctx context.Context, cfg *Config, logger *slog.Logger, metrics *jobmetrics.Metrics) (*RentStack, error) {
	if logger == nil {
		logger = slog.Default()
	}
	stack := &RentStack{}
	var (
		notifiers []rent.Notifier
		auditor   rent.Auditor
	)

	switch cfg.RentStore {
	case StoreSQLite:
		store, err := rentsqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store.WithLocation(cfg.Location())
		stack.closers = append(stack.closers, func() { _ = store.Close() })
		stack.Store = store
		notifiers = append(notifiers, store)
		auditor = store
	case StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.WithMaxConns(cfg.PGMaxConns), db.WithApplicationName("rentroll"))
		if err != nil {
			return nil, err
		}
		stack.closers = append(stack.closers, pool.Close)
		stack.Pool = pool
		stack.Store = rent.NewRepository(pool).WithLocation(cfg.Location())
		notifiers = append(notifiers, rent.NewNotificationRepository(pool))
		auditor = rent.NewAuditTrail(shared.NewAuditLogger(pool))
	default:
		return nil, fmt.Errorf("app: unknown rent store %q", cfg.RentStore)
	}

	if cfg.RedisAddr != "" {
		client, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			logger.Warn("redis unavailable, reminders stored only", slog.Any("error", err))
		} else {
			stack.closers = append(stack.closers, func() { _ = client.Close() })
			stack.Redis = client
			notifiers = append(notifiers, rent.NewRedisNotifier(client, cfg.RentNotifyChannel))
		}
	}

	service := rent.NewService(rent.ServiceConfig{
		Store:       stack.Store,
		Notifier:    rent.Notifiers(notifiers...),
		Auditor:     auditor,
		Formatter:   rent.NewFormatter(cfg.RentCurrencySymbol, cfg.RentLocale),
		Logger:      logger,
		EmitTimeout: cfg.RentEmitTimeout,
	})
	stack.Runner = rent.NewRunner(rent.RunnerConfig{
		Leases:   stack.Store,
		Creator:  service,
		Logger:   logger,
		Metrics:  metrics,
		Workers:  cfg.RentWorkers,
		Timeout:  cfg.RentRunTimeout,
		Location: cfg.Location(),
	})
	stack.Lifecycle = rent.NewLifecycle(stack.Store, auditor, logger)
	stack.Job = jobs.NewRentGenerateJob(stack.Runner, logger, metrics)
	return stack, nil
}

// Close releases connections in reverse order of opening.
func (s *RentStack) Close() {
	if s == nil {
		return
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
