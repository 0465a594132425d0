package graph

import (
	"strings"
	"testing"

	"github.com/bimatlas/core/internal/types"
)

func TestValidateGlobalID(t *testing.T) {
	tests := []struct {
		name    string
		id      types.GlobalID
		wantErr bool
	}{
		{"valid 22-char ifc guid", "1kTvXnbbzCMxGJZU8knTU_", false},
		{"too short", "1kTvXnbbzCMxGJZU8kn", true},
		{"too long", "1kTvXnbbzCMxGJZU8knTU_EXTRA", true},
		{"cypher injection attempt", "x'}) DETACH DELETE (n) //", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGlobalID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGlobalID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateLabel(t *testing.T) {
	tests := []struct {
		name    string
		label   string
		wantErr bool
	}{
		{"valid ifc class", "IfcWall", false},
		{"valid relationship", "IfcRelAggregates", false},
		{"rejects injection via backtick", "IfcWall`) DETACH DELETE (n", true},
		{"rejects leading digit", "1IfcWall", true},
		{"rejects spaces", "Ifc Wall", true},
		{"rejects empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLabel(tt.label)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLabel(%q) error = %v, wantErr %v", tt.label, err, tt.wantErr)
			}
		})
	}
}

func TestRevisionFilterOpenWindow(t *testing.T) {
	predicate := revisionFilter("n", 7, 12)
	if !strings.Contains(predicate, "n.branch_id = 7") {
		t.Errorf("revisionFilter missing branch scoping: %s", predicate)
	}
	if !strings.Contains(predicate, "n.valid_to_rev = -1") {
		t.Errorf("revisionFilter missing open-window sentinel: %s", predicate)
	}
}
