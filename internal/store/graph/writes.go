package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/bimatlas/core/internal/types"
)

// CreateNode creates a node labelled ifcClass for globalID at
// (branchID, rev), with valid_to_rev = OpenSentinel (spec.md §4.3 step 7b).
// Idempotent: if an open node for this (branch_id, global_id) already
// exists, it is left untouched (create-if-missing) rather than duplicated —
// required because a graph failure mid-ingestion must be safely repairable
// on the next ingestion (spec.md §4.3, §9).
func (c *Client) CreateNode(ctx context.Context, branchID int64, globalID types.GlobalID, ifcClass string, rev int64, name string) error {
	if err := ValidateGlobalID(globalID); err != nil {
		return err
	}
	if err := c.ensureLabel(ifcClass); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		MERGE (n:%s {branch_id: $branch_id, global_id: $global_id, valid_to_rev: %d})
		ON CREATE SET n.valid_from_rev = $rev, n.name = $name
		RETURN n`, ifcClass, OpenSentinel)

	_, err := c.collect(ctx, neo4j.AccessModeWrite, query, map[string]any{
		"branch_id": branchID,
		"global_id": string(globalID),
		"rev":       rev,
		"name":      name,
	})
	return err
}

// CloseNode sets valid_to_rev = rev on the open node for
// (branchID, globalID), then closes every incident edge the same way
// (spec.md §4.3 step 7a). Idempotent: closing an already-closed (or
// nonexistent) node is a no-op, not an error, per the self-healing
// requirement in spec.md §9.
func (c *Client) CloseNode(ctx context.Context, branchID int64, globalID types.GlobalID, ifcClass string, rev int64) error {
	if err := ValidateGlobalID(globalID); err != nil {
		return err
	}
	if err := c.ensureLabel(ifcClass); err != nil {
		return err
	}

	nodeQuery := fmt.Sprintf(`
		MATCH (n:%s {branch_id: $branch_id, global_id: $global_id, valid_to_rev: %d})
		SET n.valid_to_rev = $rev
		RETURN n`, ifcClass, OpenSentinel)
	if _, err := c.collect(ctx, neo4j.AccessModeWrite, nodeQuery, map[string]any{
		"branch_id": branchID, "global_id": string(globalID), "rev": rev,
	}); err != nil {
		return err
	}

	return c.CloseEdgesForNode(ctx, branchID, globalID, ifcClass, rev)
}

// CreateEdge creates an edge labelled relType between the current
// (open-at-the-time-of-write) nodes for fromID and toID (spec.md §4.3 step
// 7c). Skips silently when either endpoint does not currently exist
// (spec.md: "Skip the edge when either endpoint node does not currently
// exist (dangling reference — surface in diagnostics but do not fail)");
// callers are responsible for recording that diagnostic, since this method
// has no diagnostics sink of its own.
func (c *Client) CreateEdge(ctx context.Context, branchID int64, fromID, toID types.GlobalID, relType string, rev int64) (created bool, err error) {
	if err := ValidateGlobalID(fromID); err != nil {
		return false, err
	}
	if err := ValidateGlobalID(toID); err != nil {
		return false, err
	}
	if err := ValidateLabel(relType); err != nil {
		return false, err
	}

	query := fmt.Sprintf(`
		MATCH (a {branch_id: $branch_id, global_id: $from_id, valid_to_rev: %d})
		MATCH (b {branch_id: $branch_id, global_id: $to_id, valid_to_rev: %d})
		MERGE (a)-[e:%s {branch_id: $branch_id, valid_to_rev: %d}]->(b)
		ON CREATE SET e.valid_from_rev = $rev
		RETURN e`, OpenSentinel, OpenSentinel, relType, OpenSentinel)

	records, err := c.collect(ctx, neo4j.AccessModeWrite, query, map[string]any{
		"branch_id": branchID,
		"from_id":   string(fromID),
		"to_id":     string(toID),
		"rev":       rev,
	})
	if err != nil {
		return false, err
	}
	return len(records) > 0, nil
}

// CloseEdgesForNode closes every edge (incoming or outgoing) currently open
// on the node identified by (branchID, globalID, ifcClass) (spec.md §4.3
// step 7a, second sentence).
func (c *Client) CloseEdgesForNode(ctx context.Context, branchID int64, globalID types.GlobalID, ifcClass string, rev int64) error {
	if err := ValidateGlobalID(globalID); err != nil {
		return err
	}
	if err := c.ensureLabel(ifcClass); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		MATCH (n:%s {branch_id: $branch_id, global_id: $global_id})-[e {valid_to_rev: %d}]-()
		SET e.valid_to_rev = $rev
		RETURN e`, ifcClass, OpenSentinel)

	_, err := c.collect(ctx, neo4j.AccessModeWrite, query, map[string]any{
		"branch_id": branchID, "global_id": string(globalID), "rev": rev,
	})
	return err
}
