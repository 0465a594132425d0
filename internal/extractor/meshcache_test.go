package extractor

import (
	"testing"
)

func TestMeshCachePutGetRoundTrip(t *testing.T) {
	cache, err := NewMeshCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewMeshCache: %v", err)
	}
	defer cache.Close()

	mesh := Mesh{
		Vertices: []byte{1, 2, 3, 4},
		Normals:  []byte{5, 6, 7, 8},
		Faces:    []byte{9, 10},
		Matrix:   []byte{11, 12, 13, 14, 15, 16},
	}
	key := meshCacheKey("/tmp/model.ifc", 42)

	if _, ok := cache.Get(key); ok {
		t.Fatal("Get on an empty cache must miss")
	}
	if err := cache.Put(key, mesh); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := cache.Get(key)
	if !ok {
		t.Fatal("Get after Put must hit")
	}
	for _, pair := range [][2][]byte{
		{got.Vertices, mesh.Vertices},
		{got.Normals, mesh.Normals},
		{got.Faces, mesh.Faces},
		{got.Matrix, mesh.Matrix},
	} {
		if string(pair[0]) != string(pair[1]) {
			t.Errorf("round-tripped mesh field = %v, want %v", pair[0], pair[1])
		}
	}
}

func TestMeshCacheKeyDependsOnPathAndStepID(t *testing.T) {
	a := meshCacheKey("/tmp/a.ifc", 1)
	b := meshCacheKey("/tmp/b.ifc", 1)
	c := meshCacheKey("/tmp/a.ifc", 2)
	if a == b || a == c || b == c {
		t.Errorf("meshCacheKey must vary with both path and stepID: got %q %q %q", a, b, c)
	}
}

type fakeTessellator struct {
	calls int
	mesh  Mesh
}

func (f *fakeTessellator) Tessellate(int64) (Mesh, error) {
	f.calls++
	return f.mesh, nil
}

func TestExtractorTessellateUsesCacheOnSecondCall(t *testing.T) {
	cache, err := NewMeshCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewMeshCache: %v", err)
	}
	defer cache.Close()

	fake := &fakeTessellator{mesh: Mesh{Vertices: []byte{1, 2, 3}}}
	ex := New(fake).WithMeshCache(cache)

	if _, err := ex.tessellate("/tmp/model.ifc", 7); err != nil {
		t.Fatalf("first tessellate: %v", err)
	}
	if _, err := ex.tessellate("/tmp/model.ifc", 7); err != nil {
		t.Fatalf("second tessellate: %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("tessellator called %d times, want 1 (second call should hit the cache)", fake.calls)
	}
}
