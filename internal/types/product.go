package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"time"
)

// GlobalID is an IFC GlobalId: a 22-character string drawn from the IFC
// base64 alphabet (A-Z, a-z, 0-9, '_', '$'). It is stable across revisions;
// see the Graph Client parameter-safety rule in spec.md §4.4.
type GlobalID string

// ContentHash is a hex-encoded SHA-256 digest, as computed by
// ProductRecord.ComputeContentHash.
type ContentHash string

// ProductRecord is the Extractor's output shape for one IFC product
// instance, carrying tessellated geometry with world-coordinate transforms
// already baked in (spec.md §4.1: "downstream consumers need no transform
// matrix to render").
type ProductRecord struct {
	GlobalID     GlobalID
	IfcClass     IfcClass
	Name         string
	Description  string
	ObjectType   string
	Tag          string
	ContainedIn  *GlobalID // nil for an un-aggregated spatial root

	Vertices []byte // float32 triples, little-endian
	Normals  []byte // float32 triples, little-endian
	Faces    []byte // uint32 triples, little-endian
	Matrix   []byte // 16 float32, little-endian, row-major 4x4

	ContentHash ContentHash
}

// RelationshipRecord is the Extractor's output shape for one IFC
// relationship instance (spec.md §4.1).
type RelationshipRecord struct {
	From             GlobalID
	To               GlobalID
	RelationshipType string // e.g. "IfcRelAggregates"
}

// ComputeContentHash implements the canonical serialization spec.md §4.1
// requires: a fixed field order, with binary blobs included verbatim (they
// are already little-endian as produced by the tessellator) so that two
// products with identical attributes and geometry hash identically and
// nothing else does.
func (p *ProductRecord) ComputeContentHash() ContentHash {
	h := sha256.New()
	writeString(h, string(p.IfcClass))
	writeString(h, p.Name)
	writeString(h, p.Description)
	writeString(h, p.ObjectType)
	writeString(h, p.Tag)
	if p.ContainedIn != nil {
		writeString(h, string(*p.ContainedIn))
	} else {
		writeString(h, "")
	}
	writeBytes(h, p.Vertices)
	writeBytes(h, p.Normals)
	writeBytes(h, p.Faces)
	writeBytes(h, p.Matrix)
	return ContentHash(hexDigest(h.Sum(nil)))
}

// writeString and writeBytes length-prefix every field so that, e.g.,
// name="ab"+description="cd" never hashes the same as name="a"+description="bcd".
func writeString(h interface{ Write([]byte) (int, error) }, s string) {
	writeBytes(h, []byte(s))
}

func writeBytes(h interface{ Write([]byte) (int, error) }, b []byte) {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(b)))
	_, _ = h.Write(lenBuf[:])
	_, _ = h.Write(b)
}

const hexAlphabet = "0123456789abcdef"

func hexDigest(sum []byte) string {
	out := make([]byte, len(sum)*2)
	for i, b := range sum {
		out[i*2] = hexAlphabet[b>>4]
		out[i*2+1] = hexAlphabet[b&0x0f]
	}
	return string(out)
}

// Product is a product row as served by the Query Layer: a ProductRecord
// enriched with its SCD2 validity window, branch/revision scoping, and a
// surrogate id. Mirrors the ifc_products table (spec.md §6).
type Product struct {
	SurrogateID  int64
	BranchID     int64
	GlobalID     GlobalID
	IfcClass     IfcClass
	Name         string
	Description  string
	ObjectType   string
	Tag          string
	ContainedIn  *GlobalID
	Vertices     []byte
	Normals      []byte
	Faces        []byte
	Matrix       []byte
	ContentHash  ContentHash
	ValidFromRev int64
	ValidToRev   *int64 // nil means "current"

	// Relations is populated by the Query Layer's point-query operation
	// (spec.md §4.5, "product") by joining the Graph Client's RelationsOf.
	Relations []Relation
}

// MarshalJSON renders a Product in the wire shape spec.md §4.6 names:
// camelCase fields with the four geometry blobs nested under "mesh" rather
// than spread across the top level. encoding/json base64-encodes the []byte
// mesh fields automatically.
func (p Product) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SurrogateID  int64       `json:"surrogateId"`
		BranchID     int64       `json:"branchId"`
		GlobalID     GlobalID    `json:"globalId"`
		IfcClass     IfcClass    `json:"ifcClass"`
		Name         string      `json:"name"`
		Description  string      `json:"description"`
		ObjectType   string      `json:"objectType"`
		Tag          string      `json:"tag"`
		ContainedIn  *GlobalID   `json:"containedIn,omitempty"`
		Mesh         productMesh `json:"mesh"`
		ContentHash  ContentHash `json:"contentHash"`
		ValidFromRev int64       `json:"validFromRev"`
		ValidToRev   *int64      `json:"validToRev,omitempty"`
		Relations    []Relation  `json:"relations,omitempty"`
	}{
		SurrogateID:  p.SurrogateID,
		BranchID:     p.BranchID,
		GlobalID:     p.GlobalID,
		IfcClass:     p.IfcClass,
		Name:         p.Name,
		Description:  p.Description,
		ObjectType:   p.ObjectType,
		Tag:          p.Tag,
		ContainedIn:  p.ContainedIn,
		Mesh: productMesh{
			Vertices: p.Vertices,
			Normals:  p.Normals,
			Faces:    p.Faces,
			Matrix:   p.Matrix,
		},
		ContentHash:  p.ContentHash,
		ValidFromRev: p.ValidFromRev,
		ValidToRev:   p.ValidToRev,
		Relations:    p.Relations,
	})
}

// productMesh is the nested geometry object in Product's wire shape.
type productMesh struct {
	Vertices []byte `json:"vertices"`
	Normals  []byte `json:"normals"`
	Faces    []byte `json:"faces"`
	Matrix   []byte `json:"matrix"`
}

// Relation is one edge incident to a product, as returned by
// GraphClient.RelationsOf.
type Relation struct {
	OtherGlobalID    GlobalID  `json:"otherGlobalId"`
	OtherIfcClass    IfcClass  `json:"otherIfcClass"`
	RelationshipType string    `json:"relationshipType"`
	Direction        Direction `json:"direction"`
}

// Direction distinguishes an outgoing edge from an incoming one.
type Direction string

const (
	Outgoing Direction = "out"
	Incoming Direction = "in"
)

// IsOpen reports whether this row is the currently-open row for its
// (branch_id, global_id) pair.
func (p *Product) IsOpen() bool {
	return p.ValidToRev == nil
}

// VisibleAt implements the visibility invariant from spec.md §3: a row is
// visible at revision R iff valid_from_rev <= R and (valid_to_rev is null or
// valid_to_rev > R).
func (p *Product) VisibleAt(rev int64) bool {
	if p.ValidFromRev > rev {
		return false
	}
	return p.ValidToRev == nil || *p.ValidToRev > rev
}

// Project, Branch, and Revision mirror the catalog entities of spec.md §3.
type Project struct {
	ID          int64
	Name        string
	Description *string
	CreatedAt   time.Time
}

type Branch struct {
	ID        int64
	ProjectID int64
	Name      string
	CreatedAt time.Time
}

type Revision struct {
	ID             int64
	BranchID       int64
	Label          *string
	SourceFilename string
	CreatedAt      time.Time
	Diagnostics    Diagnostics
}
