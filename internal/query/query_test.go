package query

import (
	"reflect"
	"testing"

	"github.com/bimatlas/core/internal/types"
)

func TestExpandClasses(t *testing.T) {
	tests := []struct {
		name    string
		classes []types.IfcClass
		want    []types.IfcClass
	}{
		{
			name:    "nil input yields nil",
			classes: nil,
			want:    nil,
		},
		{
			name:    "leaf class expands to itself",
			classes: []types.IfcClass{types.IfcDoor},
			want:    []types.IfcClass{types.IfcDoor},
		},
		{
			name:    "wall expands to include standard case",
			classes: []types.IfcClass{types.IfcWall},
			want:    []types.IfcClass{types.IfcWall, types.IfcWallStandardCase},
		},
		{
			name:    "duplicate requests are deduplicated",
			classes: []types.IfcClass{types.IfcWall, types.IfcWall},
			want:    []types.IfcClass{types.IfcWall, types.IfcWallStandardCase},
		},
		{
			name:    "multiple distinct classes expand independently",
			classes: []types.IfcClass{types.IfcDoor, types.IfcWall},
			want:    []types.IfcClass{types.IfcDoor, types.IfcWall, types.IfcWallStandardCase},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandClasses(tt.classes)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expandClasses(%v) = %v, want %v", tt.classes, got, tt.want)
			}
		})
	}
}
