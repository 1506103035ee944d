package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upSearchVector, downSearchVector)
}

func upSearchVector(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `
ALTER TABLE submissions ADD COLUMN IF NOT EXISTS search_vector tsvector
GENERATED ALWAYS AS (
    setweight(to_tsvector('english', coalesce(title, '')), 'A') ||
    setweight(to_tsvector('english', coalesce(abstract, '')), 'B') ||
    setweight(to_tsvector('english', coalesce(keywords::text, '')), 'C')
) STORED
`); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_submissions_search ON submissions USING GIN (search_vector)
`)
	return err
}

func downSearchVector(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DROP INDEX IF EXISTS idx_submissions_search`); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `ALTER TABLE submissions DROP COLUMN IF EXISTS search_vector`)
	return err
}
