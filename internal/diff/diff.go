// Package diff implements the Diff Engine (spec.md §4.2): a deterministic,
// side-effect-free comparison between a new extraction snapshot and the
// currently-open rows of a branch.
package diff

import "github.com/bimatlas/core/internal/types"

// OpenRow is the minimal shape the Diff Engine needs for a currently-open
// product row: its global id and its content hash.
type OpenRow struct {
	GlobalID    types.GlobalID
	ContentHash types.ContentHash
}

// Diff computes the four disjoint sets from spec.md §4.2 given the branch's
// currently-open rows and the new (global_id -> content_hash) snapshot from
// the Extractor. It examines no revision other than "currently open" and has
// no side effects.
func Diff(openRows []OpenRow, snapshot map[types.GlobalID]types.ContentHash) types.ChangeSet {
	open := make(map[types.GlobalID]types.ContentHash, len(openRows))
	for _, r := range openRows {
		open[r.GlobalID] = r.ContentHash
	}

	var cs types.ChangeSet
	for gid, newHash := range snapshot {
		oldHash, existed := open[gid]
		switch {
		case !existed:
			cs.Added = append(cs.Added, gid)
		case oldHash != newHash:
			cs.Modified = append(cs.Modified, gid)
		default:
			cs.Unchanged = append(cs.Unchanged, gid)
		}
	}
	for gid := range open {
		if _, stillPresent := snapshot[gid]; !stillPresent {
			cs.Deleted = append(cs.Deleted, gid)
		}
	}
	return cs
}
