package types

import "testing"

func TestComputeContentHashDeterministic(t *testing.T) {
	pr := ProductRecord{
		GlobalID:    "G1",
		IfcClass:    IfcWall,
		Name:        "Wall-01",
		Description: "exterior wall",
		Vertices:    []byte{1, 2, 3, 4},
	}
	h1 := pr.ComputeContentHash()
	h2 := pr.ComputeContentHash()
	if h1 != h2 {
		t.Fatalf("ComputeContentHash is not deterministic: %s != %s", h1, h2)
	}
}

func TestComputeContentHashIgnoresGlobalID(t *testing.T) {
	a := ProductRecord{GlobalID: "G1", IfcClass: IfcWall, Name: "Wall-01"}
	b := ProductRecord{GlobalID: "G2", IfcClass: IfcWall, Name: "Wall-01"}
	if a.ComputeContentHash() != b.ComputeContentHash() {
		t.Fatal("ComputeContentHash must not depend on GlobalID: two identical products with different identities should hash identically")
	}
}

func TestComputeContentHashDistinguishesFieldBoundaries(t *testing.T) {
	// writeString/writeBytes length-prefix every field, so "ab"+"cd" must not
	// collide with "a"+"bcd".
	a := ProductRecord{Name: "ab", Description: "cd"}
	b := ProductRecord{Name: "a", Description: "bcd"}
	if a.ComputeContentHash() == b.ComputeContentHash() {
		t.Fatal("field-boundary collision: differently-split name/description hashed identically")
	}
}

func TestComputeContentHashChangesOnGeometry(t *testing.T) {
	a := ProductRecord{Name: "Wall", Vertices: []byte{1, 2, 3}}
	b := ProductRecord{Name: "Wall", Vertices: []byte{1, 2, 4}}
	if a.ComputeContentHash() == b.ComputeContentHash() {
		t.Fatal("differing geometry must change the content hash")
	}
}
