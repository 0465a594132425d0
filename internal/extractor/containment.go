package extractor

// containmentIndex is the in-memory map from an element's STEP id to the
// STEP id of its enclosing spatial container, built before geometry
// extraction as spec.md §4.1 requires. It is derived from
// IfcRelContainedInSpatialStructure (element -> spatial structure) and
// IfcRelAggregates (spatial structure -> parent spatial structure), per the
// "Spatial container" GLOSSARY entry: each physical element has at most one
// direct container.
type containmentIndex struct {
	// containedIn maps an element's STEP id to its direct spatial container's
	// STEP id, populated from IfcRelContainedInSpatialStructure.
	containedIn map[int64]int64
	// aggregatedUnder maps a spatial structure's STEP id to its parent
	// spatial structure's STEP id, populated from IfcRelAggregates where the
	// relating object is itself a spatial element.
	aggregatedUnder map[int64]int64
}

func newContainmentIndex() *containmentIndex {
	return &containmentIndex{
		containedIn:     make(map[int64]int64),
		aggregatedUnder: make(map[int64]int64),
	}
}

// resolve returns the spatial container STEP id for elementID, or 0, false
// if it has none. Non-spatial elements look up containedIn directly; spatial
// elements look up aggregatedUnder (spec.md §4.1: "Spatial elements
// get contained_in = null unless aggregated under another spatial element").
func (c *containmentIndex) resolve(stepID int64, isSpatial bool) (int64, bool) {
	if isSpatial {
		parent, ok := c.aggregatedUnder[stepID]
		return parent, ok
	}
	container, ok := c.containedIn[stepID]
	return container, ok
}

// recordContainment processes one IfcRelContainedInSpatialStructure record:
// relatingStructure is the spatial container, relatedElements are the
// contained elements.
func (c *containmentIndex) recordContainment(relatingStructure int64, relatedElements []int64) {
	for _, elem := range relatedElements {
		c.containedIn[elem] = relatingStructure
	}
}

// recordAggregation processes one IfcRelAggregates record where the
// relating object is a spatial structure: relatingObject is the parent,
// relatedObjects are its spatial children.
func (c *containmentIndex) recordAggregation(relatingObject int64, relatedObjects []int64) {
	for _, obj := range relatedObjects {
		c.aggregatedUnder[obj] = relatingObject
	}
}
