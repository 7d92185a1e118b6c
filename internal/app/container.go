package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledger-core/internal/accounting/chart"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journal"
	"github.com/odyssey-erp/ledger-core/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-core/internal/inventory"
	"github.com/odyssey-erp/ledger-core/internal/observability"
	"github.com/odyssey-erp/ledger-core/internal/platform/cache"
	"github.com/odyssey-erp/ledger-core/internal/platform/db"
	"github.com/odyssey-erp/ledger-core/internal/platform/events"
	"github.com/odyssey-erp/ledger-core/internal/posting"
	"github.com/odyssey-erp/ledger-core/internal/shared"
	"github.com/odyssey-erp/ledger-core/internal/store/memory"
)

// Container holds the wired services of one process.
type Container struct {
	Config  *Config
	Logger  *slog.Logger
	Metrics *observability.Metrics

	Pool  *pgxpool.Pool
	Redis *redis.Client

	Chart     *chart.Service
	Journal   *journal.Service
	Inventory *inventory.Service
	Posting   *posting.Service
	Reports   *reports.Service

	Outbox    events.Store
	Publisher events.Publisher

	closers []func() error
}

type repositories struct {
	chart     chart.RepositoryPort
	journal   journal.RepositoryPort
	inventory inventory.RepositoryPort
	posting   posting.RepositoryPort
	reports   reports.RepositoryPort
}

// auditor is satisfied by both the database and the log audit sinks.
type auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// idempotency is satisfied by both idempotency stores.
type idempotency interface {
	CheckAndInsert(ctx context.Context, key, module, fingerprint string) error
	Delete(ctx context.Context, key, module string) error
}

// NewContainer connects the configured store, cache and event publisher and
// builds every service on top of them.
func NewContainer(ctx context.Context, cfg *Config, logger *slog.Logger, metrics *observability.Metrics) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{Config: cfg, Logger: logger, Metrics: metrics}

	var (
		repos repositories
		audit auditor
		idem  idempotency
	)
	switch cfg.StoreDriver {
	case StoreMemory:
		store := memory.New()
		repos = repositories{
			chart:     store.Chart(),
			journal:   store.Journal(),
			inventory: store.Inventory(),
			posting:   store.Posting(),
			reports:   store.Reports(),
		}
		audit = shared.NewLogAuditor(logger)
		idem = shared.NewMemoryIdempotencyStore()
		c.Outbox = store
		logger.Warn("using in-memory store, data is lost on exit")
	default:
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, MaxConnLifetime: 30 * time.Minute})
		if err != nil {
			return nil, err
		}
		c.Pool = pool
		c.closers = append(c.closers, func() error { pool.Close(); return nil })
		if cfg.MigrateOnStart {
			applied, err := db.Migrate(ctx, pool)
			if err != nil {
				c.Close()
				return nil, fmt.Errorf("app: migrate: %w", err)
			}
			logger.Info("migrations applied", slog.Any("versions", applied))
		}
		repos = repositories{
			chart:     chart.NewRepository(pool),
			journal:   journal.NewRepository(pool),
			inventory: inventory.NewRepository(pool),
			posting:   posting.NewRepository(pool),
			reports:   reports.NewRepository(pool),
		}
		audit = shared.NewAuditLogger(pool)
		idem = shared.NewIdempotencyStore(pool)
		c.Outbox = events.NewOutbox(pool)
	}

	var reportCache *reports.Cache
	if cfg.RedisAddr != "" {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, reports are not cached", slog.Any("error", err))
		} else {
			c.Redis = client
			c.closers = append(c.closers, client.Close)
			reportCache = reports.NewCache(client, cfg.ReportCacheTTL)
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		c.Publisher = events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}, logger)
	} else {
		c.Publisher = events.NewLogPublisher(logger)
	}
	c.closers = append(c.closers, c.Publisher.Close)

	c.Chart = chart.NewService(repos.chart, audit)
	c.Journal = journal.NewService(repos.journal, audit)
	c.Inventory = inventory.NewService(repos.inventory, audit)
	c.Reports = reports.NewService(repos.reports, reportCache, logger)
	postingCfg := posting.Config{
		Audit:       audit,
		Idempotency: idem,
		Cache:       c.Reports,
		Logger:      logger,
	}
	if metrics != nil {
		postingCfg.Metrics = metrics
	}
	c.Posting = posting.NewService(repos.posting, postingCfg)
	return c, nil
}

// Relay builds an outbox relay over the container's store and publisher.
func (c *Container) Relay(batch int) *events.Relay {
	return events.NewRelay(c.Outbox, c.Publisher, batch, c.Logger)
}

// Close releases connections in reverse order of acquisition.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
