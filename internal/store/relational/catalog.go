package relational

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/bimatlas/core/internal/types"
)

// CreateProject inserts a project row and its "main" branch in a single
// transaction (spec.md §3: "Creating a project atomically creates a branch
// named 'main'").
func (s *Store) CreateProject(ctx context.Context, name string, description *string) (types.Project, types.Branch, error) {
	var project types.Project
	var branch types.Branch

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		row := s.queryRowTx(ctx, tx, `
			INSERT INTO projects (name, description, created_at) VALUES ($1, $2, $3)
			RETURNING id, name, description, created_at`, name, description, now)
		if err := row.Scan(&project.ID, &project.Name, &project.Description, &project.CreatedAt); err != nil {
			return types.WrapStoreError("insert project", err)
		}

		row = s.queryRowTx(ctx, tx, `
			INSERT INTO branches (project_id, name, created_at) VALUES ($1, 'main', $2)
			RETURNING id, project_id, name, created_at`, project.ID, now)
		if err := row.Scan(&branch.ID, &branch.ProjectID, &branch.Name, &branch.CreatedAt); err != nil {
			return types.WrapStoreError("insert main branch", err)
		}
		return nil
	})
	if err != nil {
		return types.Project{}, types.Branch{}, err
	}
	return project, branch, nil
}

// CreateBranch inserts a new, empty branch (spec.md §4.7): no revisions, no
// products, no graph nodes. Fails with ErrDuplicateName on a
// (project_id, name) conflict.
func (s *Store) CreateBranch(ctx context.Context, projectID int64, name string) (types.Branch, error) {
	var exists int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM branches WHERE project_id = $1 AND name = $2`, projectID, name).Scan(&exists); err != nil {
		return types.Branch{}, types.WrapStoreError("check branch uniqueness", err)
	}
	if exists > 0 {
		return types.Branch{}, types.ErrDuplicateName
	}

	var branch types.Branch
	now := time.Now().UTC()
	row := s.queryRow(ctx, `
		INSERT INTO branches (project_id, name, created_at) VALUES ($1, $2, $3)
		RETURNING id, project_id, name, created_at`, projectID, name, now)
	if err := row.Scan(&branch.ID, &branch.ProjectID, &branch.Name, &branch.CreatedAt); err != nil {
		return types.Branch{}, types.WrapStoreError("insert branch", err)
	}
	return branch, nil
}

// DeleteProject cascades to branches, revisions, and products via the
// ON DELETE CASCADE foreign keys in the schema. Graph nodes/edges are left
// for the background sweeper (SPEC_FULL.md §9, Open Question resolution).
func (s *Store) DeleteProject(ctx context.Context, projectID int64) error {
	res, err := s.exec(ctx, `DELETE FROM projects WHERE id = $1`, projectID)
	if err != nil {
		return types.WrapStoreError("delete project", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.WrapStoreError("delete project", err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// LiveBranchIDs returns every branch id currently present in the relational
// store, across all projects. The graph sweeper (SPEC_FULL.md §9) diffs this
// list against the branch ids it finds mirrored in the property graph to
// find orphans left behind by a cascaded project delete.
func (s *Store) LiveBranchIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.query(ctx, `SELECT id FROM branches`)
	if err != nil {
		return nil, types.WrapStoreError("list live branch ids", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, types.WrapStoreError("scan branch id", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// GetBranch looks up a branch by id.
func (s *Store) GetBranch(ctx context.Context, branchID int64) (types.Branch, error) {
	var b types.Branch
	row := s.queryRow(ctx, `SELECT id, project_id, name, created_at FROM branches WHERE id = $1`, branchID)
	if err := row.Scan(&b.ID, &b.ProjectID, &b.Name, &b.CreatedAt); err != nil {
		return types.Branch{}, types.WrapStoreError("get branch", err)
	}
	return b, nil
}

// CreateRevision inserts a new revision row bound to branchID. The generated
// id is the new globally-monotonic revision R (spec.md §4.3 step 2). Must be
// called inside the same transaction that will write the SCD2 delta.
func (s *Store) CreateRevision(ctx context.Context, tx *sql.Tx, branchID int64, label *string, sourceFilename string) (types.Revision, error) {
	var rev types.Revision
	var diagJSON string
	now := time.Now().UTC()
	row := s.queryRowTx(ctx, tx, `
		INSERT INTO revisions (branch_id, label, source_filename, created_at) VALUES ($1, $2, $3, $4)
		RETURNING id, branch_id, label, source_filename, created_at, diagnostics`, branchID, label, sourceFilename, now)
	if err := row.Scan(&rev.ID, &rev.BranchID, &rev.Label, &rev.SourceFilename, &rev.CreatedAt, &diagJSON); err != nil {
		return types.Revision{}, types.WrapStoreError("insert revision", err)
	}
	_ = json.Unmarshal([]byte(diagJSON), &rev.Diagnostics.Notes)
	return rev, nil
}

// UpdateRevisionDiagnostics persists the final Diagnostics value accumulated
// over the course of one Ingest call (extraction notes plus any graph-mirror
// failures recorded after the relational delta committed) onto its revision
// row, so a later read of Revisions sees the whole picture rather than just
// what was known when the row was first inserted.
func (s *Store) UpdateRevisionDiagnostics(ctx context.Context, revisionID int64, diagnostics types.Diagnostics) error {
	notes := diagnostics.Notes
	if notes == nil {
		notes = []types.DiagnosticNote{}
	}
	encoded, err := json.Marshal(notes)
	if err != nil {
		return types.WrapStoreError("encode revision diagnostics", err)
	}
	_, err = s.exec(ctx, `UPDATE revisions SET diagnostics = $1 WHERE id = $2`, string(encoded), revisionID)
	if err != nil {
		return types.WrapStoreError("update revision diagnostics", err)
	}
	return nil
}

// Revisions returns every revision bound to branchID, ordered by id (spec.md
// §4.5, "revisions").
func (s *Store) Revisions(ctx context.Context, branchID int64) ([]types.Revision, error) {
	rows, err := s.query(ctx, `
		SELECT id, branch_id, label, source_filename, created_at, diagnostics
		FROM revisions WHERE branch_id = $1 ORDER BY id ASC`, branchID)
	if err != nil {
		return nil, types.WrapStoreError("list revisions", err)
	}
	defer rows.Close()

	var out []types.Revision
	for rows.Next() {
		var r types.Revision
		var diagJSON string
		if err := rows.Scan(&r.ID, &r.BranchID, &r.Label, &r.SourceFilename, &r.CreatedAt, &diagJSON); err != nil {
			return nil, types.WrapStoreError("scan revision", err)
		}
		_ = json.Unmarshal([]byte(diagJSON), &r.Diagnostics.Notes)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestRevision returns the maximum revision id bound to branchID (spec.md
// §3: "the 'latest' revision of a branch is the maximum id bound to it").
// Returns ErrNotFound if the branch has no revisions yet.
func (s *Store) LatestRevision(ctx context.Context, branchID int64) (int64, error) {
	var rev sql.NullInt64
	row := s.queryRow(ctx, `SELECT MAX(id) FROM revisions WHERE branch_id = $1`, branchID)
	if err := row.Scan(&rev); err != nil {
		return 0, types.WrapStoreError("latest revision", err)
	}
	if !rev.Valid {
		return 0, types.ErrNotFound
	}
	return rev.Int64, nil
}
