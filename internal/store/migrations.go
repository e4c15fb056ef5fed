package store

import (
	"context"
	"database/sql"
)

// runMigrations creates the dataset schema.
func runMigrations(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		// One row per sample; id order is dataset order
		`CREATE TABLE IF NOT EXISTS samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			label TEXT NOT NULL CHECK(label <> ''),
			features BLOB NOT NULL
		)`,

		// Container metadata such as the feature dimension
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_samples_label ON samples(label)`,
	}

	for _, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return err
		}
	}

	return nil
}
