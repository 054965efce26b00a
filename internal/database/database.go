package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/fx"

	"github.com/osfiler/osfiler/internal/config"
	"github.com/osfiler/osfiler/pkg/logger"
	"github.com/osfiler/osfiler/pkg/metrics"
)

var Module = fx.Module("database",
	fx.Provide(
		NewPool,
		NewBunDB,
		func(db *bun.DB) bun.IDB { return db },
	),
)

const applicationName = "osfiler"

// NewPool opens the pgx pool that backs every repository. Startup fails
// when the database cannot be reached within ConnectTimeout.
func NewPool(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	dc := cfg.Database
	log = log.With(logger.Scope("database"))

	poolConfig, err := pgxpool.ParseConfig(dc.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	poolConfig.MaxConns = int32(dc.MaxOpenConns)
	poolConfig.MinConns = int32(dc.MaxIdleConns)
	poolConfig.MaxConnIdleTime = dc.MaxIdleTime
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	ctx, cancel := context.WithTimeout(context.Background(), dc.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s:%d: %w", dc.Host, dc.Port, err)
	}

	log.Info("connected to postgres",
		slog.String("host", dc.Host),
		slog.String("database", dc.Database),
		slog.Int("max_conns", dc.MaxOpenConns),
	)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			log.Info("closing database pool")
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

// NewBunDB exposes the pool through bun with query instrumentation attached.
func NewBunDB(lc fx.Lifecycle, pool *pgxpool.Pool, cfg *config.Config, log *slog.Logger) *bun.DB {
	db := bun.NewDB(stdlib.OpenDBFromPool(pool), pgdialect.New())
	Instrument(db, log.With(logger.Scope("bun")), cfg.Database)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return db.Close() },
	})
	return db
}

// Instrument attaches the query hook to db. Latency and errors are always
// recorded; individual statements are logged only with QueryDebug.
func Instrument(db *bun.DB, log *slog.Logger, dc config.DatabaseConfig) {
	slow := dc.SlowQueryThreshold
	if slow <= 0 {
		slow = 3 * time.Second
	}
	db.AddQueryHook(&queryHook{log: log, slow: slow, verbose: dc.QueryDebug})
}

type queryHook struct {
	log     *slog.Logger
	slow    time.Duration
	verbose bool
}

func (h *queryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	op := operation(event)
	metrics.DBQueryDuration.WithLabelValues(op).Observe(elapsed.Seconds())

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		metrics.DBQueryErrors.WithLabelValues(op).Inc()
		h.log.Error("query failed",
			slog.String("operation", op),
			slog.String("query", event.Query),
			logger.Error(event.Err))
	case elapsed > h.slow:
		h.log.Warn("slow query",
			slog.String("operation", op),
			slog.Duration("elapsed", elapsed),
			slog.String("query", event.Query))
	case h.verbose:
		h.log.Debug("query",
			slog.Duration("elapsed", elapsed),
			slog.String("query", event.Query))
	}
}

// operation names the SQL verb of event.
func operation(event *bun.QueryEvent) string {
	if op := strings.ToUpper(event.Operation()); op != "" {
		return op
	}
	return "UNKNOWN"
}

// SafeTx wraps a bun.Tx so Rollback is a no-op after a successful Commit,
// which lets callers always defer Rollback.
type SafeTx struct {
	bun.Tx
	committed bool
}

// BeginSafeTx starts a transaction on db.
func BeginSafeTx(ctx context.Context, db bun.IDB) (*SafeTx, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &SafeTx{Tx: tx}, nil
}

func (tx *SafeTx) Commit() error {
	if tx.committed {
		return nil
	}
	if err := tx.Tx.Commit(); err != nil {
		return err
	}
	tx.committed = true
	return nil
}

func (tx *SafeTx) Rollback() error {
	if tx.committed {
		return nil
	}
	return tx.Tx.Rollback()
}
