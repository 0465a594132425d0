// Package integration exercises the end-to-end ingest/query round trip
// described in spec.md §8, against an in-memory SQLite relational store and
// no graph backend (the graph mirror step is best-effort and skips cleanly
// when revision.Writer has none, exactly as spec.md §9 requires).
package integration

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
	"go.uber.org/zap"

	"github.com/bimatlas/core/internal/catalog"
	"github.com/bimatlas/core/internal/extractor"
	"github.com/bimatlas/core/internal/query"
	"github.com/bimatlas/core/internal/revision"
	"github.com/bimatlas/core/internal/store/relational"
)

func newTestStore(t *testing.T) *relational.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening in-memory sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	rel := relational.Open(db, relational.DialectSQLite)
	if err := rel.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	return rel
}

func writeIFCFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.ifc")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing test IFC file: %v", err)
	}
	return path
}

const ifcV1 = `ISO-10303-21;
HEADER;
ENDSEC;
DATA;
#1=IFCPROJECT('GID1000000000000000000',#2,'Project',$,$,$,$,$,$);
#3=IFCBUILDING('GID3000000000000000000',#2,'Building A',$,$,$,$,$,$,$,$,$);
#4=IFCWALL('GID4000000000000000000',#2,'Wall-01','A wall',$,$,$,$,$);
#5=IFCRELAGGREGATES('GID5000000000000000000',#2,$,$,#1,(#3));
#6=IFCRELCONTAINEDINSPATIALSTRUCTURE('GID6000000000000000000',#2,$,$,(#4),#3);
ENDSEC;
END-ISO-10303-21;
`

// ifcV2 drops the wall and adds a second one, exercising Added/Deleted in the
// same branch's next revision.
const ifcV2 = `ISO-10303-21;
HEADER;
ENDSEC;
DATA;
#1=IFCPROJECT('GID1000000000000000000',#2,'Project',$,$,$,$,$,$);
#3=IFCBUILDING('GID3000000000000000000',#2,'Building A',$,$,$,$,$,$,$,$,$);
#7=IFCWALL('GID7000000000000000000',#2,'Wall-02','A second wall',$,$,$,$,$);
#5=IFCRELAGGREGATES('GID5000000000000000000',#2,$,$,#1,(#3));
#8=IFCRELCONTAINEDINSPATIALSTRUCTURE('GID8000000000000000000',#2,$,$,(#7),#3);
ENDSEC;
END-ISO-10303-21;
`

func TestIngestCreatesRevisionAndProducts(t *testing.T) {
	rel := newTestStore(t)
	log := zap.NewNop()
	writer := revision.New(rel, nil, extractor.New(nil), log)
	cat := catalog.New(rel)
	q := query.New(rel, nil)

	ctx := context.Background()
	_, branch, err := cat.CreateProject(ctx, "Tower", nil)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	path := writeIFCFile(t, ifcV1)
	result, err := writer.Ingest(ctx, branch.ID, path, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Counts.Added != 3 {
		t.Fatalf("Counts.Added = %d, want 3 (project, building, wall)", result.Counts.Added)
	}
	if result.Counts.Modified != 0 || result.Counts.Deleted != 0 {
		t.Fatalf("first ingest on an empty branch must have no modified/deleted rows, got %+v", result.Counts)
	}

	products, err := q.Products(ctx, branch.ID, result.RevisionID, query.Filter{})
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("Products returned %d rows, want 3", len(products))
	}

	wall, err := q.Product(ctx, branch.ID, "GID4000000000000000000", result.RevisionID)
	if err != nil {
		t.Fatalf("Product(wall): %v", err)
	}
	if wall.Name != "Wall-01" {
		t.Errorf("wall.Name = %q, want Wall-01", wall.Name)
	}
	if wall.ContainedIn == nil || *wall.ContainedIn != "GID3000000000000000000" {
		t.Errorf("wall.ContainedIn = %v, want building GID3000000000000000000", wall.ContainedIn)
	}
}

func TestIngestSecondRevisionComputesDelta(t *testing.T) {
	rel := newTestStore(t)
	writer := revision.New(rel, nil, extractor.New(nil), zap.NewNop())
	cat := catalog.New(rel)
	q := query.New(rel, nil)
	ctx := context.Background()

	_, branch, err := cat.CreateProject(ctx, "Tower", nil)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	first, err := writer.Ingest(ctx, branch.ID, writeIFCFile(t, ifcV1), nil)
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}

	second, err := writer.Ingest(ctx, branch.ID, writeIFCFile(t, ifcV2), nil)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if second.Counts.Added != 1 {
		t.Errorf("second ingest Added = %d, want 1 (the new wall)", second.Counts.Added)
	}
	if second.Counts.Deleted != 1 {
		t.Errorf("second ingest Deleted = %d, want 1 (the removed wall)", second.Counts.Deleted)
	}
	if second.Counts.Unchanged != 2 {
		t.Errorf("second ingest Unchanged = %d, want 2 (project, building)", second.Counts.Unchanged)
	}

	// The old wall is invisible at the new revision but still visible at the
	// first one (the SCD2 visibility invariant, spec.md §3).
	if _, err := q.Product(ctx, branch.ID, "GID4000000000000000000", second.RevisionID); err == nil {
		t.Error("old wall must not be visible at the revision that deleted it")
	}
	if _, err := q.Product(ctx, branch.ID, "GID4000000000000000000", first.RevisionID); err != nil {
		t.Errorf("old wall must still be visible at the first revision: %v", err)
	}

	changes, err := q.RevisionDiff(ctx, branch.ID, first.RevisionID, second.RevisionID)
	if err != nil {
		t.Fatalf("RevisionDiff: %v", err)
	}
	if len(changes.Added) != 1 || len(changes.Deleted) != 1 {
		t.Errorf("RevisionDiff = %+v, want exactly one added and one deleted", changes)
	}
}

func TestIngestDuplicateBranchNameRejected(t *testing.T) {
	rel := newTestStore(t)
	cat := catalog.New(rel)
	ctx := context.Background()

	project, _, err := cat.CreateProject(ctx, "Tower", nil)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := cat.CreateBranch(ctx, project.ID, "main"); err == nil {
		t.Fatal("creating a second branch named \"main\" must fail: the project-creation branch already claimed that name")
	}
}
