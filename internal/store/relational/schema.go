package relational

import (
	"context"
	"fmt"
)

// schemaStatements returns the ordered CREATE TABLE/INDEX statements for the
// persisted layout in spec.md §6, in the dialect's native DDL. Every
// statement is idempotent (IF NOT EXISTS) so EnsureSchema can run on every
// startup, the way the teacher runs its migration list unconditionally.
func schemaStatements(dialect Dialect) []string {
	serial := "SERIAL"
	timestamp := "TIMESTAMPTZ"
	blob := "BYTEA"
	if dialect == DialectSQLite {
		serial = "INTEGER" // SQLite INTEGER PRIMARY KEY is itself an alias for rowid/autoincrement
		timestamp = "DATETIME"
		blob = "BLOB"
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id          ` + serial + ` PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT,
			created_at  ` + timestamp + ` NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS branches (
			id          ` + serial + ` PRIMARY KEY,
			project_id  INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			name        TEXT NOT NULL,
			created_at  ` + timestamp + ` NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(project_id, name)
		)`,

		`CREATE TABLE IF NOT EXISTS revisions (
			id              ` + serial + ` PRIMARY KEY,
			branch_id       INTEGER NOT NULL REFERENCES branches(id) ON DELETE CASCADE,
			label           TEXT,
			source_filename TEXT NOT NULL,
			created_at      ` + timestamp + ` NOT NULL DEFAULT CURRENT_TIMESTAMP,
			diagnostics     TEXT NOT NULL DEFAULT '[]'
		)`,

		`CREATE TABLE IF NOT EXISTS ifc_products (
			id             ` + serial + ` PRIMARY KEY,
			branch_id      INTEGER NOT NULL REFERENCES branches(id) ON DELETE CASCADE,
			global_id      TEXT NOT NULL,
			ifc_class      TEXT NOT NULL,
			name           TEXT NOT NULL DEFAULT '',
			description    TEXT NOT NULL DEFAULT '',
			object_type    TEXT NOT NULL DEFAULT '',
			tag            TEXT NOT NULL DEFAULT '',
			contained_in   TEXT,
			vertices       ` + blob + `,
			normals        ` + blob + `,
			faces          ` + blob + `,
			matrix         ` + blob + `,
			content_hash   TEXT NOT NULL,
			valid_from_rev INTEGER NOT NULL,
			valid_to_rev   INTEGER,
			UNIQUE(branch_id, global_id, valid_from_rev)
		)`,

		// Open products by (branch_id, global_id): the Diff Engine's primary
		// access path, and the uniqueness check for the open-window invariant.
		`CREATE INDEX IF NOT EXISTS idx_products_open_by_global
			ON ifc_products(branch_id, global_id) WHERE valid_to_rev IS NULL`,

		// Open products by (branch_id, ifc_class): Query Layer class filters.
		`CREATE INDEX IF NOT EXISTS idx_products_by_class
			ON ifc_products(branch_id, ifc_class, valid_to_rev)`,

		// Products by (branch_id, contained_in): Query Layer spatial_tree / contained_elements.
		`CREATE INDEX IF NOT EXISTS idx_products_by_container
			ON ifc_products(branch_id, contained_in)`,

		// Products by validity window: revision_diff and time-travel point queries.
		`CREATE INDEX IF NOT EXISTS idx_products_by_window
			ON ifc_products(branch_id, valid_from_rev, valid_to_rev)`,
	}
}

// EnsureSchema creates every table and index from schemaStatements if it
// does not already exist. Safe to call on every process startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.dialect) {
		if _, err := s.exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema statement: %w", err)
		}
	}
	return nil
}
