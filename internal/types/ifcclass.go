package types

// IfcClass is a closed enumeration of the IFC 4.3 entity names this core
// understands natively, plus IfcClassOther for forward compatibility with
// entities the extractor encounters but does not special-case. Reimplements
// the source's reflective dynamic dispatch over entity types as a tagged
// variant: attribute extraction becomes a pure function from a parsed STEP
// record to a ProductRecord instead of a type switch over live objects.
type IfcClass string

const (
	IfcProject        IfcClass = "IfcProject"
	IfcSite           IfcClass = "IfcSite"
	IfcBuilding       IfcClass = "IfcBuilding"
	IfcBuildingStorey IfcClass = "IfcBuildingStorey"
	IfcSpace          IfcClass = "IfcSpace"

	IfcWall      IfcClass = "IfcWall"
	IfcWallStandardCase IfcClass = "IfcWallStandardCase"
	IfcSlab      IfcClass = "IfcSlab"
	IfcBeam      IfcClass = "IfcBeam"
	IfcColumn    IfcClass = "IfcColumn"
	IfcDoor      IfcClass = "IfcDoor"
	IfcWindow    IfcClass = "IfcWindow"
	IfcStair     IfcClass = "IfcStair"
	IfcRoof      IfcClass = "IfcRoof"
	IfcRailing   IfcClass = "IfcRailing"
	IfcFurnishingElement IfcClass = "IfcFurnishingElement"
	IfcMember    IfcClass = "IfcMember"
	IfcPlate     IfcClass = "IfcPlate"

	// IfcClassOther is used for any IFC entity the extractor recognizes as a
	// product (it descends from IfcProduct and carries a GlobalId) but that
	// has no dedicated constant above.
	IfcClassOther IfcClass = "Other"
)

// spatialClasses are the IFC spatial structure elements (spec.md §3,
// "Spatial container" in the GLOSSARY): Project/Site/Building/Storey/Space.
var spatialClasses = map[IfcClass]bool{
	IfcProject:        true,
	IfcSite:           true,
	IfcBuilding:       true,
	IfcBuildingStorey: true,
	IfcSpace:          true,
}

// IsSpatial reports whether class is one of the spatial structure elements
// that the Extractor's containment map treats specially: a spatial element's
// contained_in is null unless it is aggregated under another spatial element.
func (c IfcClass) IsSpatial() bool {
	return spatialClasses[c]
}

// ifcHierarchy expresses the small slice of the IFC 4.3 entity inheritance
// tree that the Query Layer needs for client-side descendant expansion of an
// ifc_class filter (spec.md §4.5, "products"): filtering on IfcWall should
// also match IfcWallStandardCase, and so on. Keys are parent classes, values
// are their direct children in this core's recognized subset.
var ifcHierarchy = map[IfcClass][]IfcClass{
	IfcWall: {IfcWallStandardCase},
}

// Descendants returns class plus every class reachable from it through
// ifcHierarchy, for use as an IN-list when expanding a class filter.
func (c IfcClass) Descendants() []IfcClass {
	out := []IfcClass{c}
	queue := []IfcClass{c}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range ifcHierarchy[cur] {
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}
