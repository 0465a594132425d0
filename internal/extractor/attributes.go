package extractor

import "github.com/bimatlas/core/internal/types"

// productClasses maps the upper-cased STEP entity keyword to the IfcClass
// this core recognizes. Anything not listed here but still IfcRoot-shaped
// (a 22-character GlobalId string in attribute position 0; the Name slot is
// read when present but not required) is accepted as types.IfcClassOther rather than
// dropped, per the Design Notes (spec.md §9: "a fixed enumeration of IfcClass
// labels plus an 'other' variant for forward compatibility").
var productClasses = map[string]types.IfcClass{
	"IFCPROJECT":          types.IfcProject,
	"IFCSITE":             types.IfcSite,
	"IFCBUILDING":         types.IfcBuilding,
	"IFCBUILDINGSTOREY":   types.IfcBuildingStorey,
	"IFCSPACE":            types.IfcSpace,
	"IFCWALL":             types.IfcWall,
	"IFCWALLSTANDARDCASE": types.IfcWallStandardCase,
	"IFCSLAB":             types.IfcSlab,
	"IFCBEAM":             types.IfcBeam,
	"IFCCOLUMN":           types.IfcColumn,
	"IFCDOOR":             types.IfcDoor,
	"IFCWINDOW":           types.IfcWindow,
	"IFCSTAIR":            types.IfcStair,
	"IFCROOF":             types.IfcRoof,
	"IFCRAILING":          types.IfcRailing,
	"IFCFURNISHINGELEMENT": types.IfcFurnishingElement,
	"IFCMEMBER":           types.IfcMember,
	"IFCPLATE":            types.IfcPlate,
}

// nonProductEntities lists STEP keywords that are never emitted as products,
// even though a naive "has a GlobalId-shaped first argument" heuristic might
// otherwise accept them (relationships are handled separately by their own
// parsers and must not also be treated as products).
var nonProductEntities = map[string]bool{
	"IFCRELCONTAINEDINSPATIALSTRUCTURE": true,
	"IFCRELAGGREGATES":                  true,
	"IFCRELCONNECTSELEMENTS":            true,
	"IFCRELVOIDSELEMENT":                true,
	"IFCRELFILLSELEMENT":                true,
	"IFCRELDEFINESBYPROPERTIES":         true,
	"IFCRELDEFINESBYTYPE":               true,
	"IFCRELASSOCIATESMATERIAL":         true,
	"IFCOWNERHISTORY":                   true,
	"IFCPROPERTYSET":                    true,
}

// parseProductEntity attempts to read rec as an IfcProduct-shaped entity.
// Attribute positions follow the common IfcRoot/IfcObject/IfcProduct/
// IfcElement prefix shared by every class in productClasses:
//
//	0 GlobalId       (string)
//	1 OwnerHistory   (reference, ignored)
//	2 Name           (string, optional)
//	3 Description    (string, optional)
//	4 ObjectType     (string, optional; IfcSpatialStructureElement uses this
//	                  slot for LongName instead, which this core treats the
//	                  same way since both are free-text classification)
//	...
//	second-to-last   Tag (string, optional) for IfcElement subtypes only
//
// Entities outside productClasses are still accepted as IfcClassOther
// provided they have a plausible 22-character GlobalId in position 0, so
// that forward-compatible IFC classes are never silently dropped.
func parseProductEntity(rec stepRecord) (*arenaEntity, bool) {
	if nonProductEntities[rec.Entity] {
		return nil, false
	}
	if len(rec.Args) < 1 {
		return nil, false
	}
	globalIDStr, ok := unquote(rec.Args[0])
	if !ok || len(globalIDStr) != 22 {
		return nil, false
	}

	class, known := productClasses[rec.Entity]
	if !known {
		class = types.IfcClassOther
	}

	ent := &arenaEntity{
		stepID:   rec.ID,
		globalID: types.GlobalID(globalIDStr),
		class:    class,
	}
	if len(rec.Args) > 2 {
		ent.name, _ = unquote(rec.Args[2])
	}
	if len(rec.Args) > 3 {
		ent.description, _ = unquote(rec.Args[3])
	}
	if len(rec.Args) > 4 {
		ent.objectType, _ = unquote(rec.Args[4])
	}
	if len(rec.Args) > 0 {
		// Tag sits second-to-last for IfcElement subtypes (after
		// Representation, before PredefinedType); spatial structure
		// elements and IfcProject have no Tag attribute at all, so a
		// missing or non-string value here is expected, not an error.
		if tagIdx := len(rec.Args) - 2; tagIdx > 4 {
			ent.tag, _ = unquote(rec.Args[tagIdx])
		}
	}

	return ent, true
}

// relContainedRecord is a parsed IfcRelContainedInSpatialStructure: the
// relating spatial structure and the STEP ids of the elements it contains.
type relContainedRecord struct {
	relatingStructure int64
	relatedElements   []int64
}

// IfcRelContainedInSpatialStructure(GlobalId, OwnerHistory, Name,
// Description, RelatedElements, RelatingStructure)
func parseRelContained(rec stepRecord) (relContainedRecord, bool) {
	if len(rec.Args) < 6 {
		return relContainedRecord{}, false
	}
	structureID, ok := ref(rec.Args[5])
	if !ok {
		return relContainedRecord{}, false
	}
	elements := refList(rec.Args[4])
	if len(elements) == 0 {
		return relContainedRecord{}, false
	}
	return relContainedRecord{relatingStructure: structureID, relatedElements: elements}, true
}

// relAggregateRecord is a parsed IfcRelAggregates: the relating (parent)
// object and the STEP ids of its related (child) objects.
type relAggregateRecord struct {
	relatingObject int64
	relatedObjects []int64
}

// IfcRelAggregates(GlobalId, OwnerHistory, Name, Description,
// RelatingObject, RelatedObjects)
func parseRelAggregate(rec stepRecord) (relAggregateRecord, bool) {
	if len(rec.Args) < 6 {
		return relAggregateRecord{}, false
	}
	parentID, ok := ref(rec.Args[4])
	if !ok {
		return relAggregateRecord{}, false
	}
	children := refList(rec.Args[5])
	if len(children) == 0 {
		return relAggregateRecord{}, false
	}
	return relAggregateRecord{relatingObject: parentID, relatedObjects: children}, true
}

// relOtherCanonical maps the upper-cased STEP entity keyword back to its
// canonical IFC mixed-case spelling, so edges land in the graph labelled
// the way spec.md §3 names them ("IfcRelConnectsElements", not
// "IFCRELCONNECTSELEMENTS") rather than however the STEP file happened to
// case the keyword.
var relOtherCanonical = map[string]string{
	"IFCRELCONNECTSELEMENTS": "IfcRelConnectsElements",
	"IFCRELVOIDSELEMENT":     "IfcRelVoidsElement",
	"IFCRELFILLSELEMENT":     "IfcRelFillsElement",
}

// relOtherRecord is a parsed generic binary relationship entity
// (IfcRelConnectsElements, IfcRelVoidsElement, IfcRelFillsElement), all of
// which share a RelatingElement/RelatedElement pair (or RelatingBuildingElement/
// RelatedOpeningElement for voids) in their final two attribute positions.
type relOtherRecord struct {
	from    int64
	to      int64
	relType string
}

func parseRelOther(rec stepRecord, entityKeyword string) (relOtherRecord, bool) {
	relType, known := relOtherCanonical[entityKeyword]
	if !known {
		relType = entityKeyword
	}
	if len(rec.Args) < 2 {
		return relOtherRecord{}, false
	}
	from, ok1 := ref(rec.Args[len(rec.Args)-2])
	to, ok2 := ref(rec.Args[len(rec.Args)-1])
	if !ok1 || !ok2 {
		return relOtherRecord{}, false
	}
	return relOtherRecord{from: from, to: to, relType: relType}, true
}
