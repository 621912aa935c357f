package compiler

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/octabuild/internal/engine/octree"
	"github.com/Faultbox/octabuild/internal/engine/slot"
	"github.com/Faultbox/octabuild/internal/engine/va"
	"github.com/Faultbox/octabuild/internal/engine/vertex"
	"github.com/Faultbox/octabuild/pkg/math"
)

type cube struct {
	pos  math.IVec3
	size int32
	tex  uint16
}

func newTree(t *testing.T, scale uint, cubes ...cube) *octree.Tree {
	t.Helper()
	tree, err := octree.New(scale)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range cubes {
		tex := c.tex
		if tex == 0 {
			tex = slot.DefaultGeom
		}
		if err := tree.SetSolid(c.pos, c.size, tex); err != nil {
			t.Fatal(err)
		}
	}
	return tree
}

func compile(t *testing.T, tree *octree.Tree, opts Options) (*Compiler, *va.MemoryDevice) {
	t.Helper()
	dev := va.NewMemoryDevice()
	c, err := New(tree, slot.NewTable(), dev, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return c, dev
}

func all(c *Compiler) []*va.VertexArray {
	var out []*va.VertexArray
	for _, r := range c.Roots() {
		r.Walk(func(v *va.VertexArray) { out = append(out, v) })
	}
	return out
}

func vertices(v *va.VertexArray) []vertex.Vertex {
	out := make([]vertex.Vertex, v.Verts)
	for i := range out {
		off := (v.VOffset + i) * vertex.Size
		out[i] = vertex.Decode(v.VBuf.Data[off:])
	}
	return out
}

func hasVertex(vs []vertex.Vertex, pos, norm mgl32.Vec3) bool {
	for _, v := range vs {
		if v.Pos == pos && vertex.UnpackNormal(v.Norm).Sub(norm).Len() < 0.02 {
			return true
		}
	}
	return false
}

func TestSingleCubeOneVertexArray(t *testing.T) {
	tree := newTree(t, 3, cube{pos: math.IVec3{0, 0, 0}, size: 1})
	c, dev := compile(t, tree, DefaultOptions())

	vas := all(c)
	if len(vas) != 1 {
		t.Fatalf("expected 1 vertex array, got %d", len(vas))
	}
	v := vas[0]
	if v.Tris != 12 {
		t.Errorf("expected 12 triangles, got %d", v.Tris)
	}
	// Normals differ per face, so no vertex is shared between faces.
	if v.Verts != 24 {
		t.Errorf("expected 24 vertices, got %d", v.Verts)
	}
	if v.Size != 4 || v.Origin != (math.IVec3{0, 0, 0}) {
		t.Errorf("expected the forced cell at the origin, got %v size %d", v.Origin, v.Size)
	}
	if len(v.Elements) != 1 || v.Texs != 1 {
		t.Errorf("expected one opaque element set, got %d", len(v.Elements))
	}
	if v.Bounds.Geom.Min != (mgl32.Vec3{0, 0, 0}) || v.Bounds.Geom.Max != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("unexpected bounds %+v", v.Bounds.Geom)
	}
	if got := len(v.VBuf.Data); got != 24*vertex.Size {
		t.Errorf("expected %d vertex bytes, got %d", 24*vertex.Size, got)
	}
	if dev.Created != 2 {
		t.Errorf("expected vertex and index buffers, got %d", dev.Created)
	}
	st := c.Stats()
	if st.VAs != 1 || st.Created != 1 || st.Tris != 12 || st.Flushes != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
	if st.Joints != 0 {
		t.Errorf("a lone cube has no T-joints, got %d", st.Joints)
	}
}

func TestAdjacentFacesMerge(t *testing.T) {
	a, b := math.IVec3{0, 0, 0}, math.IVec3{1, 0, 0}
	tree := newTree(t, 3, cube{pos: a, size: 1}, cube{pos: b, size: 1})
	c, _ := compile(t, tree, DefaultOptions())

	st := c.Stats()
	if st.Merge.Merged != 4 || st.Merge.Consumed != 4 {
		t.Fatalf("expected 4 merged polygons consuming 4 faces, got %+v", st.Merge)
	}
	vas := all(c)
	if len(vas) != 1 {
		t.Fatalf("expected 1 vertex array, got %d", len(vas))
	}
	v := vas[0]
	// Two end faces plus four merged 2x1 quads.
	if v.Tris != 12 {
		t.Errorf("expected 12 triangles, got %d", v.Tris)
	}
	if v.Verts != 24 {
		t.Errorf("expected 24 vertices, got %d", v.Verts)
	}
	if v.HasMerges&va.MergeUse == 0 || v.HasMerges&va.MergeOrigin == 0 {
		t.Errorf("expected origin and use merge flags, got %b", v.HasMerges)
	}
	if v.MergeLevel != 2 {
		t.Errorf("expected merge level 2, got %d", v.MergeLevel)
	}

	// The top of both cubes is one quad: no vertex at the junction x=1.
	top := mgl32.Vec3{0, 0, 1}
	vs := vertices(v)
	if hasVertex(vs, mgl32.Vec3{1, 0, 1}, top) {
		t.Error("merged top face still has a junction vertex")
	}
	if !hasVertex(vs, mgl32.Vec3{2, 1, 1}, top) {
		t.Error("merged top face is missing its far corner")
	}

	owner := tree.Node(tree.Lookup(a, 1).ID)
	other := tree.Node(tree.Lookup(b, 1).ID)
	if owner.MergeState != octree.MergeUsed {
		t.Errorf("expected owner state used, got %s", owner.MergeState)
	}
	if other.MergeState != octree.MergePartial {
		t.Errorf("expected consumed state partial, got %s", other.MergeState)
	}
}

func TestMergeDisabled(t *testing.T) {
	tree := newTree(t, 3, cube{pos: math.IVec3{0, 0, 0}, size: 1}, cube{pos: math.IVec3{1, 0, 0}, size: 1})
	opts := DefaultOptions()
	opts.Merge = false
	c, _ := compile(t, tree, opts)

	if c.Stats().Merge.Merged != 0 {
		t.Errorf("expected no merges, got %d", c.Stats().Merge.Merged)
	}
	if c.Stats().Tris != 20 {
		t.Errorf("expected 10 faces as 20 triangles, got %d", c.Stats().Tris)
	}
}

// coarseStep is a 2-cube with a slab of unit cubes against its +X side, so
// that four edges of the coarse cube carry one fine corner each.
func coarseStep(t *testing.T) *octree.Tree {
	return newTree(t, 3,
		cube{pos: math.IVec3{0, 0, 0}, size: 2},
		cube{pos: math.IVec3{2, 0, 0}, size: 1},
		cube{pos: math.IVec3{2, 1, 0}, size: 1},
		cube{pos: math.IVec3{2, 0, 1}, size: 1},
		cube{pos: math.IVec3{2, 1, 1}, size: 1},
	)
}

func TestTJointClosure(t *testing.T) {
	tree := coarseStep(t)
	opts := DefaultOptions()
	opts.Merge = false
	c, _ := compile(t, tree, opts)

	st := c.Stats()
	if st.Joints != 4 {
		t.Fatalf("expected 4 T-joints, got %d", st.Joints)
	}
	// 17 visible quads, and each coarse face with a joint gains a triangle.
	if st.Tris != 17*2+4 {
		t.Errorf("expected %d triangles, got %d", 17*2+4, st.Tris)
	}
	big := tree.Node(tree.Lookup(math.IVec3{0, 0, 0}, 2).ID)
	if big.Ext == nil || big.Ext.TJoints < 0 {
		t.Fatal("expected a joint list on the coarse cube")
	}
	vs := vertices(all(c)[0])
	if !hasVertex(vs, mgl32.Vec3{2, 1, 2}, mgl32.Vec3{0, 0, 1}) {
		t.Error("missing the joint vertex on the coarse top face")
	}
}

func TestTJointsDisabled(t *testing.T) {
	tree := coarseStep(t)
	opts := DefaultOptions()
	opts.Merge = false
	opts.TJoints = false
	c, _ := compile(t, tree, opts)

	if c.Stats().Joints != 0 {
		t.Errorf("expected no joints, got %d", c.Stats().Joints)
	}
	if c.Stats().Tris != 17*2 {
		t.Errorf("expected %d triangles, got %d", 17*2, c.Stats().Tris)
	}
}

func TestCutReparentsDeeperArrays(t *testing.T) {
	tree := newTree(t, 3,
		cube{pos: math.IVec3{0, 0, 0}, size: 1},
		cube{pos: math.IVec3{1, 0, 0}, size: 1},
		cube{pos: math.IVec3{3, 3, 3}, size: 1},
	)
	opts := DefaultOptions()
	opts.Merge = false
	opts.FaceMin = 4
	opts.FaceMax = 6
	c, _ := compile(t, tree, opts)

	roots := c.Roots()
	if len(roots) != 1 {
		t.Fatalf("expected 1 root vertex array, got %d", len(roots))
	}
	root := roots[0]
	if root.Size != 4 || root.Tris != 12 {
		t.Errorf("expected forced cell with the lone cube, got size %d tris %d", root.Size, root.Tris)
	}
	if len(root.Children) != 1 {
		t.Fatalf("expected 1 child vertex array, got %d", len(root.Children))
	}
	child := root.Children[0]
	if child.Parent != root {
		t.Error("child not linked to its parent")
	}
	if child.Size != 2 || child.Tris != 20 {
		t.Errorf("expected the cube pair cut at size 2, got size %d tris %d", child.Size, child.Tris)
	}
	if c.Stats().VAs != 2 || c.Stats().Tris != 32 {
		t.Errorf("unexpected stats %+v", c.Stats())
	}
}

func TestRootLeafWorld(t *testing.T) {
	tree := newTree(t, 1, cube{pos: math.IVec3{0, 0, 0}, size: 2})
	c, _ := compile(t, tree, DefaultOptions())

	vas := all(c)
	if len(vas) != 1 || vas[0].Size != 2 || vas[0].Tris != 12 {
		t.Fatalf("expected one vertex array for the solid world, got %d", len(vas))
	}
}

func TestEmptyWorld(t *testing.T) {
	tree := newTree(t, 4)
	if err := tree.SetEmpty(math.IVec3{0, 0, 0}, 2); err != nil {
		t.Fatal(err)
	}
	c, dev := compile(t, tree, DefaultOptions())
	if len(c.Roots()) != 0 || dev.Created != 0 {
		t.Errorf("expected nothing compiled, got %d roots %d buffers", len(c.Roots()), dev.Created)
	}
}

func TestCapacityFlush(t *testing.T) {
	tree := newTree(t, 3,
		cube{pos: math.IVec3{0, 0, 0}, size: 1},
		cube{pos: math.IVec3{4, 4, 4}, size: 1},
	)
	opts := DefaultOptions()
	opts.Limits.MaxVerts = 30
	c, dev := compile(t, tree, opts)

	vas := all(c)
	if len(vas) != 2 {
		t.Fatalf("expected 2 vertex arrays, got %d", len(vas))
	}
	if c.Stats().Flushes != 2 {
		t.Errorf("expected one overflow flush and one final flush, got %d", c.Stats().Flushes)
	}
	if vas[0].VBuf == vas[1].VBuf {
		t.Error("expected separate vertex buffers")
	}
	for _, v := range vas {
		if len(v.VBuf.Data) != 24*vertex.Size {
			t.Errorf("expected each buffer to hold one array, got %d bytes", len(v.VBuf.Data))
		}
	}
	if dev.Created != 4 {
		t.Errorf("expected 4 buffer objects, got %d", dev.Created)
	}
}

func scene(t *testing.T) *octree.Tree {
	tree := newTree(t, 4)
	if err := tree.FillBox(math.IVec3{0, 0, 0}, math.IVec3{16, 16, 1}, 1, slot.DefaultGeom); err != nil {
		t.Fatal(err)
	}
	for i := int32(0); i < 4; i++ {
		if err := tree.FillBox(math.IVec3{4 + 2*i, 4, 1}, math.IVec3{6 + 2*i, 8, 2 + i}, 1, slot.DefaultGeom); err != nil {
			t.Fatal(err)
		}
	}
	if err := tree.SetSolid(math.IVec3{12, 12, 4}, 4, slot.DefaultSky); err != nil {
		t.Fatal(err)
	}
	if err := tree.SetMaterial(math.IVec3{0, 8, 1}, 1, octree.MatWater); err != nil {
		t.Fatal(err)
	}
	return tree
}

func TestRebuildIsIdempotent(t *testing.T) {
	tree := scene(t)
	c, _ := compile(t, tree, DefaultOptions())

	type summary struct {
		verts, tris, sky, sets, surfs int
		bounds                        va.Bounds
	}
	snapshot := func() []summary {
		var out []summary
		for _, v := range all(c) {
			out = append(out, summary{v.Verts, v.Tris, v.SkyTris, len(v.Elements), len(v.MatSurfs), v.Bounds})
		}
		return out
	}
	first := snapshot()
	if len(first) == 0 {
		t.Fatal("scene compiled to nothing")
	}
	if c.Stats().SkyTris == 0 {
		t.Error("expected sky triangles")
	}
	if err := c.Build(); err != nil {
		t.Fatalf("second Build: %v", err)
	}
	second := snapshot()
	if len(first) != len(second) {
		t.Fatalf("vertex array count changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("vertex array %d changed:\n%+v\n%+v", i, first[i], second[i])
		}
	}
}

func TestInvalidateAndUpdate(t *testing.T) {
	tree := newTree(t, 3,
		cube{pos: math.IVec3{0, 0, 0}, size: 1},
		cube{pos: math.IVec3{4, 4, 4}, size: 1},
	)
	c, dev := compile(t, tree, DefaultOptions())
	if len(c.Roots()) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(c.Roots()))
	}
	kept := tree.Node(tree.Lookup(math.IVec3{4, 4, 4}, 4).ID).Ext.VA

	c.Invalidate(math.IVec3{2, 2, 2}, 1)
	if len(c.Roots()) != 1 || c.Roots()[0] != kept {
		t.Fatalf("expected only the far array kept, got %d roots", len(c.Roots()))
	}
	if dev.Deleted != 0 {
		t.Error("shared buffers deleted while still in use")
	}

	if err := tree.SetSolid(math.IVec3{2, 2, 2}, 1, slot.DefaultGeom); err != nil {
		t.Fatal(err)
	}
	if err := c.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	st := c.Stats()
	if st.Created != 1 {
		t.Errorf("expected 1 regenerated vertex array, got %d", st.Created)
	}
	if st.VAs != 2 || st.Tris != 36 {
		t.Errorf("expected 2 arrays with 36 triangles, got %d and %d", st.VAs, st.Tris)
	}
	if tree.Node(tree.Lookup(math.IVec3{4, 4, 4}, 4).ID).Ext.VA != kept {
		t.Error("untouched array was rebuilt")
	}

	c.Destroy()
	if dev.Live() != 0 {
		t.Errorf("expected every buffer released, %d live", dev.Live())
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(nil, nil, va.NewMemoryDevice(), DefaultOptions()); !errors.Is(err, ErrNoTree) {
		t.Errorf("expected ErrNoTree, got %v", err)
	}
	tree := newTree(t, 2)
	opts := DefaultOptions()
	opts.FaceMax = 10
	opts.FaceMin = 20
	if _, err := New(tree, nil, va.NewMemoryDevice(), opts); !errors.Is(err, ErrOptions) {
		t.Errorf("expected ErrOptions, got %v", err)
	}
}

func TestDeviceFailureAbortsBuild(t *testing.T) {
	tree := newTree(t, 3, cube{pos: math.IVec3{0, 0, 0}, size: 1})
	dev := va.NewMemoryDevice()
	dev.Limit = 64
	c, err := New(tree, nil, dev, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Build(); !errors.Is(err, va.ErrOutOfMemory) {
		t.Fatalf("expected out of memory, got %v", err)
	}
}

func TestRetryAfterDeviceFailure(t *testing.T) {
	tree := newTree(t, 3, cube{pos: math.IVec3{0, 0, 0}, size: 1})
	dev := va.NewMemoryDevice()
	// The 24 cube vertices fit, the 36 indices do not.
	dev.Limit = 24*vertex.Size + 8
	c, err := New(tree, nil, dev, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Build(); !errors.Is(err, va.ErrOutOfMemory) {
		t.Fatalf("expected out of memory, got %v", err)
	}
	if dev.Live() != 0 {
		t.Errorf("expected no live buffers after the failed build, got %d", dev.Live())
	}
	if n := tree.Node(tree.Child(tree.Root(), 0)); n.Ext != nil && n.Ext.VA != nil {
		t.Error("expected the failed vertex array detached from its node")
	}

	dev.Limit = 0
	if err := c.Build(); err != nil {
		t.Fatalf("Build retry: %v", err)
	}
	vas := all(c)
	if len(vas) != 1 {
		t.Fatalf("expected 1 vertex array, got %d", len(vas))
	}
	v := vas[0]
	if v.VOffset != 0 || v.EOffset != 0 {
		t.Errorf("expected offsets 0/0, got %d/%d", v.VOffset, v.EOffset)
	}
	if got := len(v.VBuf.Data); got != 24*vertex.Size {
		t.Errorf("expected %d vertex bytes, got %d", 24*vertex.Size, got)
	}
	if got := len(v.EBuf.Data); got != 36*2 {
		t.Errorf("expected 72 index bytes, got %d", got)
	}
	if dev.Live() != 2 {
		t.Errorf("expected 2 live buffers, got %d", dev.Live())
	}
}

func TestFailedUpdateKeepsOtherArrays(t *testing.T) {
	tree := newTree(t, 3,
		cube{pos: math.IVec3{0, 0, 0}, size: 1},
		cube{pos: math.IVec3{6, 6, 6}, size: 1},
	)
	dev := va.NewMemoryDevice()
	c, err := New(tree, nil, dev, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := len(c.Roots()); got != 2 {
		t.Fatalf("expected 2 roots, got %d", got)
	}
	live := dev.Live()

	if err := tree.SetSolid(math.IVec3{1, 0, 0}, 1, slot.DefaultGeom); err != nil {
		t.Fatal(err)
	}
	c.Invalidate(math.IVec3{1, 0, 0}, 1)
	dev.Limit = 1
	if err := c.Update(); !errors.Is(err, va.ErrOutOfMemory) {
		t.Fatalf("expected out of memory, got %v", err)
	}
	if got := len(c.Roots()); got != 1 {
		t.Fatalf("expected the untouched array to remain, got %d roots", got)
	}
	// Both arrays shared one buffer pair, which the kept array still uses.
	if got := dev.Live(); got != live {
		t.Errorf("expected %d live buffers, got %d", live, got)
	}

	dev.Limit = 0
	if err := c.Update(); err != nil {
		t.Fatalf("Update retry: %v", err)
	}
	if got := c.Stats().Created; got != 1 {
		t.Errorf("expected 1 regenerated array, got %d", got)
	}
	if got := len(c.Roots()); got != 2 {
		t.Errorf("expected 2 roots, got %d", got)
	}
}
