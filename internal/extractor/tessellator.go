package extractor

// Tessellator is the black-box geometry engine (spec.md §1, "Out of scope":
// the IFC geometry tessellator is treated as a black box that yields
// triangle meshes and a matrix). Extract calls it once per product entity
// after attribute extraction and before content hashing.
type Tessellator interface {
	// Tessellate returns world-space vertices/normals/faces and the 4x4
	// row-major transform already baked into them, for the product entity
	// identified by stepID. An error here does not abort extraction: the
	// caller emits the product with empty geometry and a diagnostic note
	// instead (spec.md §4.1).
	Tessellate(stepID int64) (Mesh, error)
}

// Mesh is the tessellator's output shape: raw little-endian byte slices
// ready to be stored or hashed, matching the encodings in
// types.ProductRecord.
type Mesh struct {
	Vertices []byte
	Normals  []byte
	Faces    []byte
	Matrix   []byte
}

// noopTessellator always fails, for use by callers (and tests) that only
// care about attribute extraction and containment, not geometry.
type noopTessellator struct{}

func (noopTessellator) Tessellate(int64) (Mesh, error) {
	return Mesh{}, errTessellationUnavailable
}
