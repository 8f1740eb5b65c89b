// Package history persists migration runs to Postgres so repeated runs against
// the same destination can be audited later. The store is optional: it is only
// wired when a DATABASE_URL is configured.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contentforge/newsmigrate/internal/model"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the history tables if needed. Having the migration in
// code keeps the tool self-contained against a fresh database.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS migration_runs (
	id TEXT PRIMARY KEY,
	input_path TEXT NOT NULL,
	total_items INT NOT NULL,
	processed_items INT NOT NULL,
	succeeded_items INT NOT NULL,
	failed_items INT NOT NULL,
	folders_created INT NOT NULL,
	assets_uploaded INT NOT NULL,
	contents_created INT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS migration_run_items (
	run_id TEXT NOT NULL REFERENCES migration_runs(id),
	position INT NOT NULL,
	title TEXT NOT NULL,
	source_url TEXT,
	success BOOLEAN NOT NULL,
	state TEXT NOT NULL,
	message TEXT,
	content_id BIGINT,
	error TEXT,
	elapsed_ms BIGINT NOT NULL,
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS idx_migration_run_items_success ON migration_run_items(run_id, success);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Store records finished runs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a store over an already connected pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// SaveRun persists one finished run and its per-item results inside a single
// transaction and returns the generated run id.
func (s *Store) SaveRun(ctx context.Context, inputPath string, stats model.RunStatistics, results []model.MigrationResult) (string, error) {
	runID := uuid.NewString()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO migration_runs
			(id, input_path, total_items, processed_items, succeeded_items, failed_items,
			 folders_created, assets_uploaded, contents_created, started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, runID, inputPath, stats.TotalItems, stats.ProcessedItems, stats.SucceededItems,
		stats.FailedItems, stats.FoldersCreated, stats.AssetsUploaded, stats.ContentsCreated,
		stats.StartTime, stats.EndTime)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, res := range results {
		var contentID *int64
		if res.ContentID != 0 {
			id := res.ContentID
			contentID = &id
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO migration_run_items
				(run_id, position, title, source_url, success, state, message, content_id, error, elapsed_ms)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, runID, i, res.Title, res.SourceURL, res.Success, string(res.State),
			res.Message, contentID, res.Error, res.Elapsed.Milliseconds())
		if err != nil {
			return "", fmt.Errorf("insert run item %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}
