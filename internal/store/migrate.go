package store

import (
	"context"
	"embed"
	"io/fs"
	"path"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gazetteer/internal/db"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationLockID = 8675311

const createMigrationTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		id         SERIAL PRIMARY KEY,
		filename   TEXT NOT NULL UNIQUE,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// migratePostgres brings the schema up to date under a session advisory
// lock, so concurrent processes apply each file once.
func migratePostgres(ctx context.Context, pool db.Pool) error {
	log := zap.L().With(zap.String("component", "store.migrate"))

	if _, err := pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return eris.Wrap(err, "postgres: acquire migration advisory lock")
	}
	defer func() {
		if _, err := pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			log.Warn("postgres: failed to release migration advisory lock", zap.Error(err))
		}
	}()

	if _, err := pool.Exec(ctx, createMigrationTable); err != nil {
		return eris.Wrap(err, "postgres: ensure migration table")
	}

	pending, err := pendingMigrations(ctx, pool)
	if err != nil {
		return err
	}
	for _, name := range pending {
		log.Info("applying migration", zap.String("file", name))
		if err := applyMigration(ctx, pool, name); err != nil {
			return err
		}
	}

	log.Debug("schema up to date", zap.Int("applied", len(pending)))
	return nil
}

// pendingMigrations returns the embedded migration files that are not yet
// recorded, in lexicographic order.
func pendingMigrations(ctx context.Context, pool db.Pool) ([]string, error) {
	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return nil, err
	}

	files, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list migrations")
	}

	var pending []string
	for _, f := range files {
		if name := path.Base(f); !applied[name] {
			pending = append(pending, name)
		}
	}
	sort.Strings(pending)
	return pending, nil
}

// applyMigration runs one file and records it in the same transaction.
func applyMigration(ctx context.Context, pool db.Pool, name string) error {
	data, err := migrationFS.ReadFile(path.Join("migrations", name))
	if err != nil {
		return eris.Wrapf(err, "postgres: read migration %s", name)
	}

	return db.InTx(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "postgres: apply migration %s", name)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (filename) VALUES ($1)", name); err != nil {
			return eris.Wrapf(err, "postgres: record migration %s", name)
		}
		return nil
	})
}

func appliedMigrations(ctx context.Context, pool db.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan migration row")
		}
		applied[name] = true
	}
	return applied, rows.Err()
}
