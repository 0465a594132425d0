package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/bimatlas/core/internal/types"
)

func str(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// RelationsOf returns the outgoing and incoming edges of the node visible at
// (branchID, rev) for globalID (spec.md §4.4).
func (c *Client) RelationsOf(ctx context.Context, globalID types.GlobalID, rev, branchID int64) ([]types.Relation, error) {
	if err := ValidateGlobalID(globalID); err != nil {
		return nil, err
	}

	filter := revisionFilter("n", branchID, rev)
	edgeFilter := revisionFilter("e", branchID, rev)
	query := fmt.Sprintf(`
		MATCH (n {branch_id: $branch_id, global_id: $global_id})
		WHERE %s
		MATCH (n)-[e]->(other) WHERE %s
		RETURN other.global_id AS other_id, labels(other)[0] AS other_class, type(e) AS rel_type, 'out' AS direction
		UNION
		MATCH (n {branch_id: $branch_id, global_id: $global_id})
		WHERE %s
		MATCH (other)-[e]->(n) WHERE %s
		RETURN other.global_id AS other_id, labels(other)[0] AS other_class, type(e) AS rel_type, 'in' AS direction
	`, filter, edgeFilter, filter, edgeFilter)

	records, err := c.collect(ctx, neo4j.AccessModeRead, query, map[string]any{
		"branch_id": branchID, "global_id": string(globalID),
	})
	if err != nil {
		return nil, err
	}

	out := make([]types.Relation, 0, len(records))
	for _, rec := range records {
		out = append(out, types.Relation{
			OtherGlobalID:    types.GlobalID(str(rec, "other_id")),
			OtherIfcClass:    types.IfcClass(str(rec, "other_class")),
			RelationshipType: str(rec, "rel_type"),
			Direction:        types.Direction(str(rec, "direction")),
		})
	}
	return out, nil
}

// SpatialRoots returns nodes labelled IfcProject visible at (rev, branch)
// (spec.md §4.4).
func (c *Client) SpatialRoots(ctx context.Context, rev, branchID int64) ([]types.GlobalID, error) {
	query := fmt.Sprintf(`
		MATCH (n:IfcProject) WHERE %s
		RETURN n.global_id AS global_id`, revisionFilter("n", branchID, rev))

	records, err := c.collect(ctx, neo4j.AccessModeRead, query, nil)
	if err != nil {
		return nil, err
	}
	out := make([]types.GlobalID, 0, len(records))
	for _, rec := range records {
		out = append(out, types.GlobalID(str(rec, "global_id")))
	}
	return out, nil
}

// SpatialChildren returns the spatial children of globalID via outgoing
// IfcRelAggregates edges (spec.md §4.4).
func (c *Client) SpatialChildren(ctx context.Context, globalID types.GlobalID, rev, branchID int64) ([]types.GlobalID, error) {
	return c.relatedVia(ctx, globalID, "IfcRelAggregates", rev, branchID)
}

// ContainedElements returns the elements directly contained in
// spatialGlobalID via outgoing IfcRelContainedInSpatialStructure edges
// (spec.md §4.4).
func (c *Client) ContainedElements(ctx context.Context, spatialGlobalID types.GlobalID, rev, branchID int64) ([]types.GlobalID, error) {
	return c.relatedVia(ctx, spatialGlobalID, "IfcRelContainedInSpatialStructure", rev, branchID)
}

func (c *Client) relatedVia(ctx context.Context, globalID types.GlobalID, relType string, rev, branchID int64) ([]types.GlobalID, error) {
	if err := ValidateGlobalID(globalID); err != nil {
		return nil, err
	}
	if err := ValidateLabel(relType); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		MATCH (n {branch_id: $branch_id, global_id: $global_id})-[e:%s]->(other)
		WHERE %s AND %s
		RETURN other.global_id AS global_id`, relType, revisionFilter("n", branchID, rev), revisionFilter("e", branchID, rev))

	records, err := c.collect(ctx, neo4j.AccessModeRead, query, map[string]any{
		"branch_id": branchID, "global_id": string(globalID),
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.GlobalID, 0, len(records))
	for _, rec := range records {
		out = append(out, types.GlobalID(str(rec, "global_id")))
	}
	return out, nil
}

// SpatialNode is one node in the tree SpatialTree returns: a spatial
// container together with its spatial children and its directly-contained
// (non-spatial) elements.
type SpatialNode struct {
	GlobalID  types.GlobalID
	Children  []*SpatialNode
	Contained []types.GlobalID
}

// SpatialTree builds the root-down recursive composition of SpatialRoots,
// SpatialChildren, and ContainedElements (spec.md §4.4, §4.5). Implemented
// as a straightforward in-process recursive walk rather than a single deep
// Cypher traversal: the branch/revision filter must be reapplied at every
// hop (spatial hierarchies are shallow — a handful of levels — so the extra
// round-trips are not a bottleneck).
func (c *Client) SpatialTree(ctx context.Context, rev, branchID int64) ([]*SpatialNode, error) {
	roots, err := c.SpatialRoots(ctx, rev, branchID)
	if err != nil {
		return nil, err
	}

	var walk func(types.GlobalID) (*SpatialNode, error)
	walk = func(gid types.GlobalID) (*SpatialNode, error) {
		node := &SpatialNode{GlobalID: gid}

		contained, err := c.ContainedElements(ctx, gid, rev, branchID)
		if err != nil {
			return nil, err
		}
		node.Contained = contained

		children, err := c.SpatialChildren(ctx, gid, rev, branchID)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			childNode, err := walk(child)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, childNode)
		}
		return node, nil
	}

	out := make([]*SpatialNode, 0, len(roots))
	for _, root := range roots {
		node, err := walk(root)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}
