package relational

import (
	"context"

	"github.com/bimatlas/core/internal/types"
)

// visibleRow is the minimal shape needed to compute a revision_diff: which
// global_id is visible, and which surrogate row id represents it.
type visibleRow struct {
	GlobalID    types.GlobalID
	SurrogateID int64
}

func (s *Store) visibleAt(ctx context.Context, branchID, rev int64) (map[types.GlobalID]int64, error) {
	rows, err := s.query(ctx, `
		SELECT global_id, id FROM ifc_products
		WHERE branch_id = $1 AND valid_from_rev <= $2 AND (valid_to_rev IS NULL OR valid_to_rev > $2)`,
		branchID, rev)
	if err != nil {
		return nil, types.WrapStoreError("visible rows", err)
	}
	defer rows.Close()

	out := make(map[types.GlobalID]int64)
	for rows.Next() {
		var v visibleRow
		if err := rows.Scan(&v.GlobalID, &v.SurrogateID); err != nil {
			return nil, types.WrapStoreError("scan visible row", err)
		}
		out[v.GlobalID] = v.SurrogateID
	}
	return out, rows.Err()
}

// RevisionDiff implements the symmetric SCD2 diff from spec.md §4.5: added
// if visible at `to` but not `from`, deleted if visible at `from` but not
// `to`, modified if visible at both with different surrogate row ids, else
// unchanged.
func (s *Store) RevisionDiff(ctx context.Context, branchID, fromRev, toRev int64) (types.ChangeSet, error) {
	fromRows, err := s.visibleAt(ctx, branchID, fromRev)
	if err != nil {
		return types.ChangeSet{}, err
	}
	toRows, err := s.visibleAt(ctx, branchID, toRev)
	if err != nil {
		return types.ChangeSet{}, err
	}

	var cs types.ChangeSet
	for gid, toID := range toRows {
		fromID, existed := fromRows[gid]
		switch {
		case !existed:
			cs.Added = append(cs.Added, gid)
		case fromID != toID:
			cs.Modified = append(cs.Modified, gid)
		default:
			cs.Unchanged = append(cs.Unchanged, gid)
		}
	}
	for gid := range fromRows {
		if _, stillVisible := toRows[gid]; !stillVisible {
			cs.Deleted = append(cs.Deleted, gid)
		}
	}
	return cs, nil
}
