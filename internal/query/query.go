// Package query implements the Query Layer (spec.md §4.5): the read-only
// surface joining the relational store's SCD2 rows with the Graph Client's
// relations, spatial hierarchy, and class-filter expansion.
package query

import (
	"context"
	"fmt"
	"iter"

	"github.com/RoaringBitmap/roaring"
	"golang.org/x/sync/singleflight"

	"github.com/bimatlas/core/internal/store/graph"
	"github.com/bimatlas/core/internal/store/relational"
	"github.com/bimatlas/core/internal/types"
)

// Layer is the Query Layer. It holds no state of its own beyond the two
// stores it joins, plus a singleflight group that collapses concurrent
// identical spatial_tree requests into one graph traversal (spec.md §4.5:
// tree queries recurse per spatial node and are the most expensive read this
// layer serves).
type Layer struct {
	rel   *relational.Store
	graph *graph.Client
	tree  singleflight.Group
}

// New returns a Layer over rel and graphClient.
func New(rel *relational.Store, graphClient *graph.Client) *Layer {
	return &Layer{rel: rel, graph: graphClient}
}

// Product implements spec.md §4.5's "product" operation: a point query for
// one product at (branch, rev), enriched with its incident relations from
// the graph.
func (l *Layer) Product(ctx context.Context, branchID int64, globalID types.GlobalID, rev int64) (types.Product, error) {
	p, err := l.rel.ProductAt(ctx, branchID, globalID, rev)
	if err != nil {
		return types.Product{}, err
	}

	if l.graph != nil {
		relations, err := l.graph.RelationsOf(ctx, globalID, rev, branchID)
		if err != nil {
			return types.Product{}, err
		}
		p.Relations = relations
	}
	return p, nil
}

// Filter narrows Products; IfcClasses is expanded to include every
// registered descendant class before the query reaches the store (spec.md
// §4.5: "filtering on a class also matches its recognized subclasses").
type Filter struct {
	IfcClasses    []types.IfcClass
	ContainedIn   *types.GlobalID
	SubstringText string
}

// Products implements spec.md §4.5's "products" operation: every product
// visible at (branch, rev) matching every supplied predicate in filter.
func (l *Layer) Products(ctx context.Context, branchID int64, rev int64, filter Filter) ([]types.Product, error) {
	expanded := expandClasses(filter.IfcClasses)
	return l.rel.Products(ctx, branchID, rev, relational.ProductFilter{
		IfcClasses:    expanded,
		ContainedIn:   filter.ContainedIn,
		SubstringText: filter.SubstringText,
	})
}

// expandClasses replaces each requested class with itself plus every
// descendant the core recognizes (types.IfcClass.Descendants), deduplicating
// via a RoaringBitmap keyed by a stable small integer id per class rather
// than a map, so that the dedup cost is flat regardless of how many classes
// are requested (spec.md §4.5 names no particular data structure for this;
// grounded on agentic-research-mache's use of roaring.Bitmap for
// frequency-set deduplication).
func expandClasses(classes []types.IfcClass) []types.IfcClass {
	if len(classes) == 0 {
		return nil
	}

	seen := roaring.New()
	index := classIndex()
	out := make([]types.IfcClass, 0, len(classes)*2)
	for _, c := range classes {
		for _, d := range c.Descendants() {
			id, ok := index[d]
			if !ok {
				// Unregistered class text (e.g. IfcClassOther or a raw string
				// filter value): can't be bitmap-indexed, dedupe is skipped for
				// it and it is appended directly.
				out = append(out, d)
				continue
			}
			if seen.CheckedAdd(id) {
				out = append(out, d)
			}
		}
	}
	return out
}

// classIndex assigns a stable small integer to every known IfcClass constant,
// for expandClasses's bitmap dedup.
func classIndex() map[types.IfcClass]uint32 {
	all := []types.IfcClass{
		types.IfcProject, types.IfcSite, types.IfcBuilding, types.IfcBuildingStorey, types.IfcSpace,
		types.IfcWall, types.IfcWallStandardCase, types.IfcSlab, types.IfcBeam, types.IfcColumn,
		types.IfcDoor, types.IfcWindow, types.IfcStair, types.IfcRoof, types.IfcRailing,
		types.IfcFurnishingElement, types.IfcMember, types.IfcPlate, types.IfcClassOther,
	}
	idx := make(map[types.IfcClass]uint32, len(all))
	for i, c := range all {
		idx[c] = uint32(i)
	}
	return idx
}

// Revisions implements spec.md §4.5's "revisions" operation.
func (l *Layer) Revisions(ctx context.Context, branchID int64) ([]types.Revision, error) {
	return l.rel.Revisions(ctx, branchID)
}

// RevisionDiff implements spec.md §4.5's "revision_diff" operation.
func (l *Layer) RevisionDiff(ctx context.Context, branchID, fromRev, toRev int64) (types.ChangeSet, error) {
	return l.rel.RevisionDiff(ctx, branchID, fromRev, toRev)
}

// ProductsStream implements the lazy counterpart to Products, for the
// Streaming Layer (spec.md §4.6): it returns the matching row count up
// front plus an iterator that the caller drains one row at a time, so the
// full result set is never materialized in this process's memory.
func (l *Layer) ProductsStream(ctx context.Context, branchID int64, rev int64, filter Filter) (iter.Seq2[types.Product, error], int, error) {
	expanded := expandClasses(filter.IfcClasses)
	return l.rel.ProductsIter(ctx, branchID, rev, relational.ProductFilter{
		IfcClasses:    expanded,
		ContainedIn:   filter.ContainedIn,
		SubstringText: filter.SubstringText,
	})
}

// SpatialTree implements spec.md §4.5's "spatial_tree" operation by
// delegating to the Graph Client, which owns the spatial hierarchy (spec.md
// §4.4). Concurrent callers requesting the same (branchID, rev) share one
// in-flight traversal via singleflight rather than each issuing their own
// recursive walk.
func (l *Layer) SpatialTree(ctx context.Context, branchID, rev int64) ([]*graph.SpatialNode, error) {
	key := fmt.Sprintf("%d:%d", branchID, rev)
	v, err, _ := l.tree.Do(key, func() (any, error) {
		return l.graph.SpatialTree(ctx, rev, branchID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*graph.SpatialNode), nil
}
