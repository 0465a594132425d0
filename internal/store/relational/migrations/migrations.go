// Package migrations holds the ordered, idempotent schema migrations applied
// after relational.Store.EnsureSchema, for changes that can't simply be
// expressed as an "IF NOT EXISTS" DDL statement (adding a column to a table
// that predates it, backfilling a default). Grounded directly on the
// teacher's internal/storage/dolt/migrations.go: a named, ordered []Migration
// list, each entry idempotent and independently retriable.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one named, idempotent schema change.
type Migration struct {
	Name string
	Func func(context.Context, *sql.DB) error
}

// All is the ordered list of migrations to run during `bimatlasd migrate`.
var All = []Migration{
	{"diagnostics_column", migrateDiagnosticsColumn},
	{"revision_label_index", migrateRevisionLabelIndex},
}

// Run executes every migration in order, idempotently.
func Run(ctx context.Context, db *sql.DB) error {
	for _, m := range All {
		if err := m.Func(ctx, db); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
	}
	return nil
}

// migrateDiagnosticsColumn adds a diagnostics JSON column to revisions so
// the extraction-time notes described in spec.md §4.1 (tessellation
// failures, dangling edges) survive past the ingestion call for later
// inspection, without requiring a new table. EnsureSchema already creates
// this column on a fresh database; this migration only backfills a
// deployment whose revisions table predates it.
func migrateDiagnosticsColumn(ctx context.Context, db *sql.DB) error {
	exists, err := columnExists(ctx, db, "revisions", "diagnostics")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = db.ExecContext(ctx, `ALTER TABLE revisions ADD COLUMN diagnostics TEXT NOT NULL DEFAULT '[]'`)
	if err != nil {
		return fmt.Errorf("adding revisions.diagnostics: %w", err)
	}
	return nil
}

// migrateRevisionLabelIndex adds an index on revisions(branch_id, label),
// the optional human label that `ingest --label` records on a revision.
func migrateRevisionLabelIndex(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_revisions_label ON revisions(branch_id, label)`)
	if err != nil {
		return fmt.Errorf("creating idx_revisions_label: %w", err)
	}
	return nil
}

// columnExists checks column presence for both dialects relational.Store
// supports: it queries SQLite's pragma_table_info table function first and,
// if that query fails, falls back to Postgres's information_schema.columns.
func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?
	`, table, column).Scan(&count)
	if err != nil {
		// Fall back to information_schema for Postgres, which has no
		// pragma_table_info table function.
		err2 := db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM information_schema.columns
			WHERE table_name = $1 AND column_name = $2
		`, table, column).Scan(&count)
		if err2 != nil {
			return false, fmt.Errorf("checking column %s.%s: %w", table, column, err)
		}
	}
	return count > 0, nil
}
