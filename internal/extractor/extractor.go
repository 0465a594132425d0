package extractor

import (
	"errors"
	"fmt"
	"iter"
	"os"

	"github.com/bimatlas/core/internal/types"
)

var errTessellationUnavailable = errors.New("tessellator unavailable")

// Extractor parses an IFC 4.3 STEP file into product and relationship
// records (spec.md §4.1). It never touches storage.
type Extractor struct {
	tessellator Tessellator
	meshCache   *MeshCache
}

// New returns an Extractor that tessellates geometry via t. Pass nil to get
// an extractor that always emits empty geometry (useful for tests that only
// exercise attributes, containment, and diffing).
func New(t Tessellator) *Extractor {
	if t == nil {
		t = noopTessellator{}
	}
	return &Extractor{tessellator: t}
}

// WithMeshCache installs an on-disk cache of tessellated mesh blobs and
// returns e, for chaining off New. Optional: passing a nil cache leaves e
// behaving exactly like an Extractor with no cache; a non-nil cache only
// adds the disk round trip on repeated ingestions of unchanged geometry.
func (e *Extractor) WithMeshCache(cache *MeshCache) *Extractor {
	e.meshCache = cache
	return e
}

// tessellate runs the tessellator for stepID, consulting e.meshCache first
// (and populating it on a miss) when one is installed.
func (e *Extractor) tessellate(sourcePath string, stepID int64) (Mesh, error) {
	if e.meshCache == nil {
		return e.tessellator.Tessellate(stepID)
	}

	key := meshCacheKey(sourcePath, stepID)
	if mesh, ok := e.meshCache.Get(key); ok {
		return mesh, nil
	}

	mesh, err := e.tessellator.Tessellate(stepID)
	if err != nil {
		return mesh, err
	}
	_ = e.meshCache.Put(key, mesh) // best-effort: a cache write failure never fails extraction
	return mesh, nil
}

// arenaEntity is one parsed product entity before containment resolution,
// keyed by its STEP id. This is the "arena of products indexed by global_id"
// design-note pattern (spec.md §9): products are built flat, relationships
// reference them by id, and no pointer cycles are ever materialized.
type arenaEntity struct {
	stepID      int64
	globalID    types.GlobalID
	class       types.IfcClass
	name        string
	description string
	objectType  string
	tag         string
}

// Result is the Extractor's output: two lazy sequences plus any diagnostics
// accumulated along the way. Extract returns Result rather than the two
// sequences directly so that Diagnostics can be populated incrementally as
// the sequences are consumed.
type Result struct {
	Products      iter.Seq[types.ProductRecord]
	Relationships iter.Seq[types.RelationshipRecord]
	Diagnostics   *types.Diagnostics
}

// Extract parses the IFC file at path and returns lazy product and
// relationship sequences (spec.md §4.1). Fails with an ExtractionError-class
// error when the file is unreadable or a required entity is malformed; a
// per-element tessellation failure is recorded as a diagnostic instead, and
// the product is still emitted with empty geometry.
func (e *Extractor) Extract(path string) (Result, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator-supplied upload content
	if err != nil {
		return Result{}, fmt.Errorf("opening %s: %w: %w", path, types.ErrExtraction, err)
	}

	recs, errc := scanRecords(f)

	entities := make(map[int64]*arenaEntity)
	idToGlobal := make(map[int64]types.GlobalID)
	containment := newContainmentIndex()
	var relContains []relContainedRecord
	var relAggregates []relAggregateRecord
	var relOther []relOtherRecord

	for rec := range recs {
		switch rec.Entity {
		case "IFCRELCONTAINEDINSPATIALSTRUCTURE":
			if r, ok := parseRelContained(rec); ok {
				relContains = append(relContains, r)
			}
		case "IFCRELAGGREGATES":
			if r, ok := parseRelAggregate(rec); ok {
				relAggregates = append(relAggregates, r)
			}
		case "IFCRELCONNECTSELEMENTS", "IFCRELVOIDSELEMENT", "IFCRELFILLSELEMENT":
			if r, ok := parseRelOther(rec, rec.Entity); ok {
				relOther = append(relOther, r)
			}
		default:
			if ent, ok := parseProductEntity(rec); ok {
				entities[rec.ID] = ent
				idToGlobal[rec.ID] = ent.globalID
			}
		}
	}

	if err := <-errc; err != nil {
		_ = f.Close()
		return Result{}, fmt.Errorf("%w: %w", types.ErrExtraction, err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("closing %s: %w: %w", path, types.ErrExtraction, err)
	}

	for _, r := range relContains {
		containment.recordContainment(r.relatingStructure, r.relatedElements)
	}
	for _, r := range relAggregates {
		if _, isSpatialParent := entities[r.relatingObject]; isSpatialParent && entities[r.relatingObject].class.IsSpatial() {
			containment.recordAggregation(r.relatingObject, r.relatedObjects)
		}
	}

	diags := &types.Diagnostics{}

	products := func(yield func(types.ProductRecord) bool) {
		for stepID, ent := range entities {
			containerID, hasContainer := containment.resolve(stepID, ent.class.IsSpatial())
			var containedIn *types.GlobalID
			if hasContainer {
				if g, ok := idToGlobal[containerID]; ok {
					containedIn = &g
				}
			}

			mesh, tessErr := e.tessellate(path, stepID)
			if tessErr != nil {
				diags.Add("tessellation_failed", string(ent.globalID), tessErr.Error())
				mesh = Mesh{}
			}

			pr := types.ProductRecord{
				GlobalID:    ent.globalID,
				IfcClass:    ent.class,
				Name:        ent.name,
				Description: ent.description,
				ObjectType:  ent.objectType,
				Tag:         ent.tag,
				ContainedIn: containedIn,
				Vertices:    mesh.Vertices,
				Normals:     mesh.Normals,
				Faces:       mesh.Faces,
				Matrix:      mesh.Matrix,
			}
			pr.ContentHash = pr.ComputeContentHash()

			if !yield(pr) {
				return
			}
		}
	}

	relationships := func(yield func(types.RelationshipRecord) bool) {
		for _, r := range relContains {
			containerGID, ok1 := idToGlobal[r.relatingStructure]
			if !ok1 {
				continue
			}
			for _, elemID := range r.relatedElements {
				elemGID, ok2 := idToGlobal[elemID]
				if !ok2 {
					diags.Add("dangling_edge", "", fmt.Sprintf("IfcRelContainedInSpatialStructure references unknown element #%d", elemID))
					continue
				}
				if !yield(types.RelationshipRecord{From: containerGID, To: elemGID, RelationshipType: "IfcRelContainedInSpatialStructure"}) {
					return
				}
			}
		}
		for _, r := range relAggregates {
			parentGID, ok1 := idToGlobal[r.relatingObject]
			if !ok1 {
				continue
			}
			for _, childID := range r.relatedObjects {
				childGID, ok2 := idToGlobal[childID]
				if !ok2 {
					diags.Add("dangling_edge", "", fmt.Sprintf("IfcRelAggregates references unknown object #%d", childID))
					continue
				}
				if !yield(types.RelationshipRecord{From: parentGID, To: childGID, RelationshipType: "IfcRelAggregates"}) {
					return
				}
			}
		}
		for _, r := range relOther {
			fromGID, ok1 := idToGlobal[r.from]
			toGID, ok2 := idToGlobal[r.to]
			if !ok1 || !ok2 {
				diags.Add("dangling_edge", "", fmt.Sprintf("%s references unknown entity", r.relType))
				continue
			}
			if !yield(types.RelationshipRecord{From: fromGID, To: toGID, RelationshipType: r.relType}) {
				return
			}
		}
	}

	return Result{Products: products, Relationships: relationships, Diagnostics: diags}, nil
}
