package vertex

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func testVertex(x float32) Vertex {
	return Vertex{
		Pos:     mgl32.Vec3{x, 1, 2},
		TC:      mgl32.Vec3{0.5, 0.25, 1},
		Norm:    PackNormal(mgl32.Vec3{0, 0, 1}, 0),
		Tangent: PackNormal(mgl32.Vec3{1, 0, 0}, 255),
	}
}

func TestDeduplicatorSharesIdenticalVertices(t *testing.T) {
	d := NewDeduplicator()
	a, err := d.Add(testVertex(1))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	b, _ := d.Add(testVertex(2))
	c, _ := d.Add(testVertex(1))
	if a != c {
		t.Errorf("identical vertices got indices %d and %d", a, c)
	}
	if a == b {
		t.Error("distinct vertices share an index")
	}
	if d.Len() != 2 {
		t.Errorf("expected 2 vertices, got %d", d.Len())
	}
}

func TestDeduplicatorDistinguishesAttributes(t *testing.T) {
	base := testVertex(0)
	variants := map[string]Vertex{
		"normal":   {Pos: base.Pos, TC: base.TC, Norm: PackNormal(mgl32.Vec3{1, 0, 0}, 0), Tangent: base.Tangent},
		"texcoord": {Pos: base.Pos, TC: mgl32.Vec3{0, 0, 1}, Norm: base.Norm, Tangent: base.Tangent},
		"tangent":  {Pos: base.Pos, TC: base.TC, Norm: base.Norm, Tangent: PackNormal(mgl32.Vec3{1, 0, 0}, 0)},
	}
	for name, v := range variants {
		t.Run(name, func(t *testing.T) {
			d := NewDeduplicator()
			i, _ := d.Add(base)
			j, _ := d.Add(v)
			if i == j {
				t.Errorf("vertices differing in %s share index %d", name, i)
			}
		})
	}
}

func TestDeduplicatorCapacity(t *testing.T) {
	d := NewDeduplicator()
	for i := 0; i < MaxVerts; i++ {
		v := Vertex{Pos: mgl32.Vec3{float32(i), 0, 0}}
		if _, err := d.Add(v); err != nil {
			t.Fatalf("Add %d failed: %v", i, err)
		}
	}
	idx, err := d.Add(Vertex{Pos: mgl32.Vec3{-1, 0, 0}})
	if idx != -1 || !errors.Is(err, ErrFull) {
		t.Errorf("expected sentinel on vertex %d, got %d, %v", MaxVerts+1, idx, err)
	}
	// Existing vertices are still found.
	if idx, err := d.Add(Vertex{Pos: mgl32.Vec3{7, 0, 0}}); err != nil || idx != 7 {
		t.Errorf("expected existing index 7, got %d, %v", idx, err)
	}
	if d.Len() != MaxVerts {
		t.Errorf("expected %d vertices, got %d", MaxVerts, d.Len())
	}
}

func TestDeduplicatorClear(t *testing.T) {
	d := NewDeduplicator()
	d.Add(testVertex(1))
	d.Add(testVertex(2))
	d.Clear()
	if d.Len() != 0 {
		t.Errorf("expected empty after Clear, got %d", d.Len())
	}
	if i, _ := d.Add(testVertex(2)); i != 0 {
		t.Errorf("expected index 0 after Clear, got %d", i)
	}
}

func TestEncodeDecode(t *testing.T) {
	v := testVertex(3.25)
	buf := make([]byte, Size)
	v.Encode(buf)
	if got := Decode(buf); got != v {
		t.Errorf("Decode(Encode(v)) = %+v, want %+v", got, v)
	}
}

func TestPackNormal(t *testing.T) {
	n := mgl32.Vec3{0, -1, 1}.Normalize()
	back := UnpackNormal(PackNormal(n, 0))
	if back.Sub(n).Len() > 0.02 {
		t.Errorf("packed normal drifted: %v -> %v", n, back)
	}
}
