package types

import "testing"

func TestIsSpatial(t *testing.T) {
	tests := []struct {
		class IfcClass
		want  bool
	}{
		{IfcProject, true},
		{IfcSite, true},
		{IfcBuilding, true},
		{IfcBuildingStorey, true},
		{IfcSpace, true},
		{IfcWall, false},
		{IfcDoor, false},
		{IfcClassOther, false},
	}
	for _, tt := range tests {
		if got := tt.class.IsSpatial(); got != tt.want {
			t.Errorf("IsSpatial(%s) = %v, want %v", tt.class, got, tt.want)
		}
	}
}

func TestDescendants(t *testing.T) {
	tests := []struct {
		name  string
		class IfcClass
		want  []IfcClass
	}{
		{"wall expands to standard case", IfcWall, []IfcClass{IfcWall, IfcWallStandardCase}},
		{"leaf class has only itself", IfcDoor, []IfcClass{IfcDoor}},
		{"unrelated class has only itself", IfcSpace, []IfcClass{IfcSpace}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.class.Descendants()
			if len(got) != len(tt.want) {
				t.Fatalf("Descendants(%s) = %v, want %v", tt.class, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Descendants(%s)[%d] = %s, want %s", tt.class, i, got[i], tt.want[i])
				}
			}
		})
	}
}
