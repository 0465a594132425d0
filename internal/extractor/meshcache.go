package extractor

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// MeshCache is an optional on-disk cache of tessellated mesh blobs, avoiding
// re-tessellation of unchanged geometry across repeated ingestions of the
// same (or a near-identical) IFC file — the scenario SPEC_FULL.md §5 names
// for wiring klauspost/compress into this package. Keyed by a hash of the
// source file path and STEP id rather than ProductRecord.ContentHash, since
// the content hash itself depends on the tessellated bytes and so can't be
// known before tessellation runs.
//
// A MeshCache is safe for concurrent use; calls into its shared encoder and
// decoder are serialized by mu.
type MeshCache struct {
	dir string
	mu  sync.Mutex
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewMeshCache returns a MeshCache rooted at dir, creating it if necessary.
func NewMeshCache(dir string) (*MeshCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &MeshCache{dir: dir, enc: enc, dec: dec}, nil
}

// Close releases the encoder/decoder's background goroutines.
func (c *MeshCache) Close() error {
	c.dec.Close()
	return c.enc.Close()
}

func meshCacheKey(sourcePath string, stepID int64) string {
	h := sha256.New()
	h.Write([]byte(sourcePath))
	var idBuf [8]byte
	binary.LittleEndian.PutUint64(idBuf[:], uint64(stepID))
	h.Write(idBuf[:])
	return hex.EncodeToString(h.Sum(nil))
}

func (c *MeshCache) path(key string) string {
	return filepath.Join(c.dir, key+".meshz")
}

// Get returns the cached mesh for key, if present and readable.
func (c *MeshCache) Get(key string) (Mesh, bool) {
	raw, err := os.ReadFile(c.path(key)) //nolint:gosec // key is a hex sha256 digest, not attacker input
	if err != nil {
		return Mesh{}, false
	}

	c.mu.Lock()
	decoded, err := c.dec.DecodeAll(raw, nil)
	c.mu.Unlock()
	if err != nil {
		return Mesh{}, false
	}
	return decodeMesh(decoded), true
}

// Put stores mesh under key, compressed with zstd.
func (c *MeshCache) Put(key string, mesh Mesh) error {
	c.mu.Lock()
	encoded := c.enc.EncodeAll(encodeMesh(mesh), nil)
	c.mu.Unlock()
	return os.WriteFile(c.path(key), encoded, 0o600)
}

// encodeMesh/decodeMesh join and split the four mesh byte slices with a
// length-prefixed framing, so one cache file holds a whole Mesh.
func encodeMesh(m Mesh) []byte {
	var buf []byte
	for _, part := range [][]byte{m.Vertices, m.Normals, m.Faces, m.Matrix} {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(part)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, part...)
	}
	return buf
}

func decodeMesh(b []byte) Mesh {
	var parts [4][]byte
	off := 0
	for i := 0; i < 4 && off+4 <= len(b); i++ {
		n := int(binary.LittleEndian.Uint32(b[off : off+4]))
		off += 4
		if off+n > len(b) {
			break
		}
		parts[i] = b[off : off+n]
		off += n
	}
	return Mesh{Vertices: parts[0], Normals: parts[1], Faces: parts[2], Matrix: parts[3]}
}
