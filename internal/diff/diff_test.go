package diff

import (
	"reflect"
	"sort"
	"testing"

	"github.com/bimatlas/core/internal/types"
)

func sortGIDs(ids []types.GlobalID) []types.GlobalID {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		open     []OpenRow
		snapshot map[types.GlobalID]types.ContentHash
		want     types.ChangeSet
	}{
		{
			name:     "empty branch, empty extraction",
			open:     nil,
			snapshot: map[types.GlobalID]types.ContentHash{},
			want:     types.ChangeSet{},
		},
		{
			name: "all added on first ingest",
			open: nil,
			snapshot: map[types.GlobalID]types.ContentHash{
				"A": "h1",
				"B": "h2",
			},
			want: types.ChangeSet{Added: []types.GlobalID{"A", "B"}},
		},
		{
			name: "unchanged hash stays unchanged",
			open: []OpenRow{{GlobalID: "A", ContentHash: "h1"}},
			snapshot: map[types.GlobalID]types.ContentHash{
				"A": "h1",
			},
			want: types.ChangeSet{Unchanged: []types.GlobalID{"A"}},
		},
		{
			name: "changed hash is modified",
			open: []OpenRow{{GlobalID: "A", ContentHash: "h1"}},
			snapshot: map[types.GlobalID]types.ContentHash{
				"A": "h2",
			},
			want: types.ChangeSet{Modified: []types.GlobalID{"A"}},
		},
		{
			name: "missing from extraction is deleted",
			open: []OpenRow{{GlobalID: "A", ContentHash: "h1"}},
			snapshot: map[types.GlobalID]types.ContentHash{},
			want: types.ChangeSet{Deleted: []types.GlobalID{"A"}},
		},
		{
			name: "mixed delta",
			open: []OpenRow{
				{GlobalID: "A", ContentHash: "h1"}, // unchanged
				{GlobalID: "B", ContentHash: "h1"}, // modified
				{GlobalID: "C", ContentHash: "h1"}, // deleted
			},
			snapshot: map[types.GlobalID]types.ContentHash{
				"A": "h1",
				"B": "h2",
				"D": "h3", // added
			},
			want: types.ChangeSet{
				Added:     []types.GlobalID{"D"},
				Modified:  []types.GlobalID{"B"},
				Deleted:   []types.GlobalID{"C"},
				Unchanged: []types.GlobalID{"A"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.open, tt.snapshot)
			got.Added = sortGIDs(got.Added)
			got.Modified = sortGIDs(got.Modified)
			got.Deleted = sortGIDs(got.Deleted)
			got.Unchanged = sortGIDs(got.Unchanged)
			tt.want.Added = sortGIDs(tt.want.Added)
			tt.want.Modified = sortGIDs(tt.want.Modified)
			tt.want.Deleted = sortGIDs(tt.want.Deleted)
			tt.want.Unchanged = sortGIDs(tt.want.Unchanged)

			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Diff() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
