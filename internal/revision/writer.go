// Package revision implements the Revision Writer (spec.md §4.3): the single
// entry point that turns one IFC STEP file into a new SCD2 revision, serialized
// per branch and mirrored best-effort into the property graph.
package revision

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bimatlas/core/internal/diff"
	"github.com/bimatlas/core/internal/extractor"
	"github.com/bimatlas/core/internal/store/graph"
	"github.com/bimatlas/core/internal/store/relational"
	"github.com/bimatlas/core/internal/types"
)

// tracer wraps the whole ingest round trip in a single span, the way the
// teacher traces a dolt commit: one span per outward-facing operation, with
// the per-statement spans from internal/store/relational and
// internal/store/graph nesting underneath it.
var tracer = otel.Tracer("github.com/bimatlas/core/internal/revision")

// ingestMetrics holds the OTel instruments for ingestion. Registered against
// the global delegating provider at init time, same as the teacher's
// doltMetrics: no-op until telemetry.Init installs a real provider.
var ingestMetrics struct {
	graphRetries metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/bimatlas/core/internal/revision")
	ingestMetrics.graphRetries, _ = m.Int64Counter("bimatlas.ingest.graph_retry_count",
		metric.WithDescription("graph mirror operations retried due to a transient Bolt error"),
		metric.WithUnit("{retry}"),
	)
}

// graphRetryMaxElapsed bounds how long the graph mirror step retries a
// single write before giving up and recording a diagnostic (spec.md §9:
// the mirror is best-effort and must never block ingestion indefinitely).
const graphRetryMaxElapsed = 10 * time.Second

func newGraphRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = graphRetryMaxElapsed
	return bo
}

// isRetryableGraphError reports whether err looks like a transient Bolt
// connection failure rather than a validation or logic error.
func isRetryableGraphError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "connection") || strings.Contains(s, "broken pipe") ||
		strings.Contains(s, "timeout") || strings.Contains(s, "eof")
}

// withGraphRetry retries op with exponential backoff on transient errors,
// mirroring the teacher's newServerRetryBackoff/isRetryableError pair around
// its Dolt server connection.
func withGraphRetry(ctx context.Context, op func() error) error {
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err != nil && isRetryableGraphError(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(newGraphRetryBackoff(), ctx))
	if attempts > 1 {
		ingestMetrics.graphRetries.Add(ctx, int64(attempts-1))
	}
	return err
}

// Writer is the Revision Writer. One Writer is shared by every request; it
// serializes concurrent ingests that target the same branch with a per-branch
// advisory lock, while letting ingests on different branches run concurrently
// (spec.md §5: "concurrent ingests on different branches never block each
// other; concurrent ingests on the same branch are serialized").
type Writer struct {
	rel        *relational.Store
	graph      *graph.Client
	extractor  *extractor.Extractor
	log        *zap.Logger
	branchLock sync.Map // branchID(int64) -> *sync.Mutex
}

// New returns a Writer over rel (the relational store), graphClient (the
// property-graph mirror), and ex (the Extractor).
func New(rel *relational.Store, graphClient *graph.Client, ex *extractor.Extractor, log *zap.Logger) *Writer {
	return &Writer{rel: rel, graph: graphClient, extractor: ex, log: log}
}

func (w *Writer) lockFor(branchID int64) *sync.Mutex {
	actual, _ := w.branchLock.LoadOrStore(branchID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// Ingest runs the full ingestion algorithm of spec.md §4.3 for branchID
// against the IFC file at ifcPath, recording label (may be nil) on the new
// revision.
//
// Steps:
//  1. Acquire the per-branch advisory lock.
//  2. Extract the file.
//  3. Load the branch's currently-open rows and run the Diff Engine against
//     the extraction snapshot. This read happens just before the
//     transaction opens, while the per-branch lock is held.
//  4. Open a relational transaction and insert the revision row (this
//     allocates R, the new revision id).
//  5. Close every modified/deleted row's validity window at R.
//  6. Insert an open row at R for every added/modified product.
//  7. Commit the transaction.
//  8. Best-effort, idempotent graph mirror: close/create nodes for every
//     modified/deleted/added product, then create edges for every
//     relationship the Extractor produced. Graph failures are recorded as
//     diagnostics, never as a failed ingest (spec.md §4.3, §9: "the
//     relational store is the point of truth; the graph is an index that
//     self-heals on the next ingestion").
func (w *Writer) Ingest(ctx context.Context, branchID int64, ifcPath string, label *string) (result types.IngestionResult, err error) {
	ctx, span := tracer.Start(ctx, "revision.ingest", trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int64("bimatlas.branch_id", branchID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.Int("bimatlas.counts.added", result.Counts.Added),
				attribute.Int("bimatlas.counts.modified", result.Counts.Modified),
				attribute.Int("bimatlas.counts.deleted", result.Counts.Deleted),
			)
		}
		span.End()
	}()

	lock := w.lockFor(branchID)
	lock.Lock()
	defer lock.Unlock()

	extraction, extractErr := w.extractor.Extract(ifcPath)
	if extractErr != nil {
		err = extractErr
		return types.IngestionResult{}, err
	}
	result, err = w.ingestExtracted(ctx, branchID, ifcPath, label, extraction)
	return result, err
}

// ingestExtracted runs the diff/write/mirror pipeline over an already
// extracted Result. Split out from Ingest so the outer span in Ingest covers
// the whole round trip including extraction, while this part stays
// unit-testable without re-deriving span plumbing.
func (w *Writer) ingestExtracted(ctx context.Context, branchID int64, ifcPath string, label *string, result extractor.Result) (types.IngestionResult, error) {

	products := make([]types.ProductRecord, 0, 1024)
	snapshot := make(map[types.GlobalID]types.ContentHash, 1024)
	for pr := range result.Products {
		products = append(products, pr)
		snapshot[pr.GlobalID] = pr.ContentHash
	}
	relationships := make([]types.RelationshipRecord, 0, 1024)
	for r := range result.Relationships {
		relationships = append(relationships, r)
	}

	diagnostics := result.Diagnostics
	if diagnostics == nil {
		diagnostics = &types.Diagnostics{}
	}

	rev, changes, err := w.writeDelta(ctx, branchID, label, ifcPath, products, snapshot)
	if err != nil {
		return types.IngestionResult{}, err
	}

	byGlobalID := make(map[types.GlobalID]types.ProductRecord, len(products))
	for _, pr := range products {
		byGlobalID[pr.GlobalID] = pr
	}

	closedClasses, err := w.rel.ClosedAtRevision(ctx, branchID, rev.ID)
	if err != nil {
		diagnostics.Add("graph_mirror_failed", "", fmt.Sprintf("load closed classes: %v", err))
		closedClasses = nil
	}

	edgesCreated := w.mirrorToGraph(ctx, branchID, rev.ID, changes, byGlobalID, closedClasses, relationships, diagnostics)

	// Persist the final diagnostics list (extraction notes plus any
	// graph-mirror failures recorded above) now that it's complete. Best
	// effort: a failure here must not turn an otherwise-successful ingest
	// into an error, since the relational delta is already committed.
	if err := w.rel.UpdateRevisionDiagnostics(ctx, rev.ID, *diagnostics); err != nil {
		w.log.Warn("persisting revision diagnostics failed", zap.Int64("revision_id", rev.ID), zap.Error(err))
	}

	return types.IngestionResult{
		RevisionID: rev.ID,
		Counts: types.Counts{
			Added:        len(changes.Added),
			Modified:     len(changes.Modified),
			Deleted:      len(changes.Deleted),
			Unchanged:    len(changes.Unchanged),
			EdgesCreated: edgesCreated,
		},
		Diagnostics: *diagnostics,
	}, nil
}

// writeDelta runs steps 3-7 of Ingest: it diffs snapshot against the
// branch's open rows, then, inside a single relational transaction, inserts
// the revision row, closes every modified/deleted row, inserts an open row
// for every added/modified product, and commits. The open rows are read
// before the transaction takes its connection, so no second connection is
// needed while the transaction is open.
func (w *Writer) writeDelta(
	ctx context.Context,
	branchID int64,
	label *string,
	ifcPath string,
	products []types.ProductRecord,
	snapshot map[types.GlobalID]types.ContentHash,
) (types.Revision, types.ChangeSet, error) {
	openRows, err := w.rel.OpenRows(ctx, branchID)
	if err != nil {
		return types.Revision{}, types.ChangeSet{}, err
	}
	changes := diff.Diff(openRows, snapshot)

	var rev types.Revision
	err = w.rel.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		rev, err = w.rel.CreateRevision(ctx, tx, branchID, label, ifcPath)
		if err != nil {
			return err
		}

		for _, gid := range changes.Modified {
			if err := w.rel.CloseOpenRow(ctx, tx, branchID, gid, rev.ID); err != nil {
				return err
			}
		}
		for _, gid := range changes.Deleted {
			if err := w.rel.CloseOpenRow(ctx, tx, branchID, gid, rev.ID); err != nil {
				return err
			}
		}

		byGlobalID := make(map[types.GlobalID]types.ProductRecord, len(products))
		for _, pr := range products {
			byGlobalID[pr.GlobalID] = pr
		}
		for _, gid := range changes.Added {
			if err := w.rel.InsertProductRow(ctx, tx, branchID, byGlobalID[gid], rev.ID); err != nil {
				return err
			}
		}
		for _, gid := range changes.Modified {
			if err := w.rel.InsertProductRow(ctx, tx, branchID, byGlobalID[gid], rev.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return types.Revision{}, types.ChangeSet{}, err
	}
	return rev, changes, nil
}

// graphMirrorConcurrency bounds how many graph writes run at once during the
// mirror step (spec.md §5's worker-pool model, reused here via errgroup
// rather than a hand-rolled semaphore).
const graphMirrorConcurrency = 8

// mirrorToGraph performs step 8 of Ingest: fan out the per-change-set graph
// writes with bounded concurrency via errgroup (SetLimit), since the Bolt
// driver handles concurrent sessions fine and node/edge writes for distinct
// global ids never contend on the same graph pattern. A modified product's
// close and create run in that order inside one goroutine, so the two
// writes for its global id never overlap. diagnostics and the
// edge counter are guarded by a mutex since multiple goroutines append to
// them concurrently.
func (w *Writer) mirrorToGraph(
	ctx context.Context,
	branchID, rev int64,
	changes types.ChangeSet,
	byGlobalID map[types.GlobalID]types.ProductRecord,
	closedClasses map[types.GlobalID]types.IfcClass,
	relationships []types.RelationshipRecord,
	diagnostics *types.Diagnostics,
) int {
	if w.graph == nil {
		return 0
	}

	var mu sync.Mutex
	addDiagnostic := func(kind, subject, message string) {
		mu.Lock()
		defer mu.Unlock()
		diagnostics.Add(kind, subject, message)
	}

	closeOne := func(gid types.GlobalID, class string) {
		if class == "" {
			return
		}
		err := withGraphRetry(ctx, func() error {
			return w.graph.CloseNode(ctx, branchID, gid, class, rev)
		})
		if err != nil {
			addDiagnostic("graph_mirror_failed", string(gid), fmt.Sprintf("close node: %v", err))
			w.log.Warn("graph mirror: close node failed", zap.String("global_id", string(gid)), zap.Error(err))
		}
	}
	createOne := func(pr types.ProductRecord) {
		err := withGraphRetry(ctx, func() error {
			return w.graph.CreateNode(ctx, branchID, pr.GlobalID, string(pr.IfcClass), rev, pr.Name)
		})
		if err != nil {
			addDiagnostic("graph_mirror_failed", string(pr.GlobalID), fmt.Sprintf("create node: %v", err))
			w.log.Warn("graph mirror: create node failed", zap.String("global_id", string(pr.GlobalID)), zap.Error(err))
		}
	}

	var nodeGroup errgroup.Group
	nodeGroup.SetLimit(graphMirrorConcurrency)

	for _, gid := range changes.Deleted {
		gid, class := gid, string(closedClasses[gid])
		nodeGroup.Go(func() error { closeOne(gid, class); return nil })
	}
	for _, gid := range changes.Modified {
		gid, class := gid, string(closedClasses[gid])
		pr, ok := byGlobalID[gid]
		nodeGroup.Go(func() error {
			closeOne(gid, class)
			if ok {
				createOne(pr)
			}
			return nil
		})
	}
	for _, gid := range changes.Added {
		if pr, ok := byGlobalID[gid]; ok {
			pr := pr
			nodeGroup.Go(func() error { createOne(pr); return nil })
		}
	}
	_ = nodeGroup.Wait()

	var edgesCreated int64
	var edgeGroup errgroup.Group
	edgeGroup.SetLimit(graphMirrorConcurrency)
	for _, r := range relationships {
		r := r
		edgeGroup.Go(func() error {
			var created bool
			err := withGraphRetry(ctx, func() error {
				var edgeErr error
				created, edgeErr = w.graph.CreateEdge(ctx, branchID, r.From, r.To, r.RelationshipType, rev)
				return edgeErr
			})
			if err != nil {
				addDiagnostic("graph_mirror_failed", string(r.From), fmt.Sprintf("create edge %s->%s: %v", r.From, r.To, err))
				w.log.Warn("graph mirror: create edge failed", zap.String("from", string(r.From)), zap.String("to", string(r.To)), zap.Error(err))
				return nil
			}
			if !created {
				addDiagnostic("dangling_edge", string(r.From), fmt.Sprintf("%s: endpoint not found for %s -> %s", r.RelationshipType, r.From, r.To))
				return nil
			}
			atomic.AddInt64(&edgesCreated, 1)
			return nil
		})
	}
	_ = edgeGroup.Wait()
	return int(edgesCreated)
}
