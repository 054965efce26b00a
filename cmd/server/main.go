// Package main provides the entry point for the OSFiler graph API server.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/osfiler/osfiler/domain/graph"
	"github.com/osfiler/osfiler/domain/graphquery"
	"github.com/osfiler/osfiler/domain/health"
	"github.com/osfiler/osfiler/domain/investigations"
	"github.com/osfiler/osfiler/domain/reconciliation"
	"github.com/osfiler/osfiler/domain/taxonomy"
	"github.com/osfiler/osfiler/domain/tracing"
	"github.com/osfiler/osfiler/internal/config"
	"github.com/osfiler/osfiler/internal/database"
	"github.com/osfiler/osfiler/internal/migrate"
	"github.com/osfiler/osfiler/internal/server"
	"github.com/osfiler/osfiler/pkg/auth"
	"github.com/osfiler/osfiler/pkg/logger"
)

func main() {
	// .env fills unset variables; .env.local overrides everything.
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		server.Module,
		tracing.Module,
		auth.Module,

		// Migrations must run before the taxonomy seeder starts.
		migrate.Module,

		// Domain modules
		health.Module,
		taxonomy.Module,
		reconciliation.Module,
		investigations.Module,
		graph.Module,
		graphquery.Module,
	).Run()
}
