package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate applies pending goose migrations from dir. Goose wants *sql.DB, so
// the pool is bridged through the pgx stdlib adapter for the duration of the
// run.
func Migrate(ctx context.Context, pool *Pool, dir string, logger *slog.Logger) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool.Pool)
	defer db.Close()

	before, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	after, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}

	if after != before {
		logger.Info("migrations applied", "from", before, "to", after)
	} else {
		logger.Info("migrations up to date", "version", after)
	}
	return nil
}
