// api/db/sqlite.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"go.uber.org/zap"

	"github.com/veritas-grc/veritas/api/config"
	logger "github.com/veritas-grc/veritas/api/logging"
)

var SQLiteDB *sql.DB

func InitSQLite() error {
	path := config.GetString("sqlite.path")
	logger.Info("Opening audit ledger database", zap.String("path", path))

	var err error
	SQLiteDB, err = sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// The appender is the single writer; one connection keeps the driver
	// from interleaving writes and sidesteps SQLITE_BUSY under load.
	SQLiteDB.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := SQLiteDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := SQLiteDB.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	logger.Info("Successfully opened audit ledger database")
	return nil
}

func CloseSQLite() {
	if SQLiteDB != nil {
		if err := SQLiteDB.Close(); err != nil {
			logger.Error("Error closing sqlite database", zap.Error(err))
		}
	}
}
