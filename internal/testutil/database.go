package testutil

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/osfiler/osfiler/internal/config"
	"github.com/osfiler/osfiler/internal/database"
)

//go:embed schema.sql
var schemaSQL string

// NewTestDB opens a private in-memory SQLite database with the graph schema
// applied. Repositories run against it unchanged through bun.
//
// The pool is pinned to a single connection so the in-memory database
// lives exactly as long as the returned handle.
func NewTestDB(t testing.TB) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	sqldb, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	database.Instrument(db, Logger(), config.DatabaseConfig{QueryDebug: os.Getenv("TEST_QUERY_DEBUG") != ""})

	_, err = db.Exec(schemaSQL)
	require.NoError(t, err, "apply test schema")

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Logger returns a quiet logger for tests. TEST_LOG_LEVEL=debug makes it chatty.
func Logger() *slog.Logger {
	level := slog.LevelWarn
	if os.Getenv("TEST_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
