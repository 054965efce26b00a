// Command migrate manages the OSFiler database schema and the system
// taxonomy outside the server process.
//
//	migrate [-dsn postgres://...] up|down|status|version|seed-types
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/osfiler/osfiler/domain/taxonomy"
	"github.com/osfiler/osfiler/internal/config"
	"github.com/osfiler/osfiler/internal/migrate"
	"github.com/osfiler/osfiler/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "PostgreSQL connection string (defaults to POSTGRES_* settings)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: migrate [-dsn <url>] up|down|status|version|seed-types")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	log := logger.NewLogger()
	if err := run(context.Background(), log, *dsn, flag.Arg(0)); err != nil {
		log.Error("migrate failed", slog.String("command", flag.Arg(0)), logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, dsn, command string) error {
	if dsn == "" {
		cfg, err := config.NewConfig(log)
		if err != nil {
			return err
		}
		dsn = cfg.Database.DSN()
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	zapLog, err := logger.NewZapLogger()
	if err != nil {
		return err
	}
	defer func() { _ = zapLog.Sync() }()
	m := migrate.NewMigrator(db, zapLog)

	switch command {
	case "up":
		return m.Up(ctx)
	case "down":
		return m.Down(ctx)
	case "status":
		return m.Status(ctx)
	case "version":
		v, err := m.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	case "seed-types":
		catalog, err := taxonomy.LoadCatalog()
		if err != nil {
			return err
		}
		svc := taxonomy.NewService(taxonomy.NewRepository(db, log), log)
		created, err := svc.SeedSystemTypes(ctx, catalog)
		if err != nil {
			return err
		}
		log.Info("system types seeded", slog.Int("created", created))
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
