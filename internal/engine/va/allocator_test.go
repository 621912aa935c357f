package va

import (
	"encoding/binary"
	"errors"
	"testing"
)

func geometry(verts int, world, sky, decal []uint16) Geometry {
	return Geometry{
		Vertices: make([]byte, verts*VertexSize),
		NumVerts: verts,
		World:    world,
		Sky:      sky,
		Decal:    decal,
	}
}

func quad() []uint16 {
	return []uint16{0, 1, 2, 0, 2, 3}
}

func TestAllocatorBatchesUntilFlush(t *testing.T) {
	dev := NewMemoryDevice()
	a := NewAllocator(dev, DefaultLimits())

	v1 := &VertexArray{MaxVert: 3}
	v2 := &VertexArray{MaxVert: 3}
	if err := a.Add(v1, geometry(4, quad(), nil, nil)); err != nil {
		t.Fatalf("Add v1: %v", err)
	}
	if err := a.Add(v2, geometry(4, quad(), quad(), nil)); err != nil {
		t.Fatalf("Add v2: %v", err)
	}
	if dev.Created != 0 {
		t.Fatalf("expected no buffers before flush, got %d", dev.Created)
	}
	if got := a.Pending(VertexBuffer); got != 8 {
		t.Errorf("expected 8 pending vertices, got %d", got)
	}

	if err := a.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if dev.Created != 3 {
		t.Errorf("expected vertex, index and sky buffers, got %d", dev.Created)
	}
	if a.Flushes != 1 {
		t.Errorf("expected 1 flush, got %d", a.Flushes)
	}
	if v1.VBuf == nil || v1.VBuf != v2.VBuf {
		t.Fatal("expected both arrays in one vertex buffer")
	}
	if v1.VBuf.Uses() != 2 {
		t.Errorf("expected 2 users, got %d", v1.VBuf.Uses())
	}
	if v2.SkyBuf == nil || v1.SkyBuf != nil {
		t.Error("expected only v2 to use the sky buffer")
	}
	if got := len(v1.VBuf.Data); got != 8*VertexSize {
		t.Errorf("expected %d vertex bytes, got %d", 8*VertexSize, got)
	}
	if got := len(v1.EBuf.Data); got != 12*2 {
		t.Errorf("expected 24 index bytes, got %d", got)
	}
	if v2.VOffset != 4 || v2.EOffset != 6 {
		t.Errorf("unexpected offsets: voffset %d eoffset %d", v2.VOffset, v2.EOffset)
	}
	if v2.MinVert != 4 || v2.MaxVert != 7 {
		t.Errorf("expected v2 vertex range 4..7, got %d..%d", v2.MinVert, v2.MaxVert)
	}

	// The second array's indices are rebased onto the shared buffer.
	first := binary.LittleEndian.Uint16(v2.EBuf.Data[2*v2.EOffset:])
	if first != 4 {
		t.Errorf("expected rebased index 4, got %d", first)
	}
	if a.Pending(VertexBuffer) != 0 {
		t.Error("expected staging emptied by flush")
	}

	// Flushing with nothing staged uploads nothing.
	if err := a.Flush(); err != nil {
		t.Fatalf("empty Flush: %v", err)
	}
	if a.Flushes != 1 || dev.Created != 3 {
		t.Errorf("empty flush created buffers: flushes %d created %d", a.Flushes, dev.Created)
	}
}

func TestAllocatorFlushesAtCeiling(t *testing.T) {
	dev := NewMemoryDevice()
	limits := DefaultLimits()
	limits.MaxVerts = 6
	a := NewAllocator(dev, limits)

	v1 := &VertexArray{MaxVert: 3}
	v2 := &VertexArray{MaxVert: 3}
	if err := a.Add(v1, geometry(4, quad(), nil, nil)); err != nil {
		t.Fatalf("Add v1: %v", err)
	}
	if err := a.Add(v2, geometry(4, quad(), nil, nil)); err != nil {
		t.Fatalf("Add v2: %v", err)
	}
	if a.Flushes != 1 {
		t.Fatalf("expected an automatic flush, got %d", a.Flushes)
	}
	if v1.VBuf == nil {
		t.Fatal("expected v1 uploaded by the automatic flush")
	}
	if v2.VBuf != nil {
		t.Fatal("expected v2 still staged")
	}
	if v2.VOffset != 0 || v2.MinVert != 0 {
		t.Errorf("expected v2 at the start of the new batch, got voffset %d minvert %d", v2.VOffset, v2.MinVert)
	}
	if err := a.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if v1.VBuf == v2.VBuf {
		t.Error("expected separate vertex buffers")
	}
}

func TestAllocatorOversizedArrayStandsAlone(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxVerts = 2
	a := NewAllocator(NewMemoryDevice(), limits)

	v := &VertexArray{MaxVert: 3}
	if err := a.Add(v, geometry(4, quad(), nil, nil)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if a.Flushes != 0 || a.Pending(VertexBuffer) != 4 {
		t.Errorf("expected the array staged alone, flushes %d pending %d", a.Flushes, a.Pending(VertexBuffer))
	}

	if err := a.Add(&VertexArray{}, geometry(MaxIndex+1, nil, nil, nil)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestAllocatorEmptyGeometry(t *testing.T) {
	dev := NewMemoryDevice()
	a := NewAllocator(dev, DefaultLimits())
	v := &VertexArray{}
	if err := a.Add(v, Geometry{}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := a.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if dev.Created != 0 || v.VBuf != nil {
		t.Error("expected no buffers for empty geometry")
	}
}

func TestAllocatorDeviceError(t *testing.T) {
	dev := NewMemoryDevice()
	dev.Limit = 16
	a := NewAllocator(dev, DefaultLimits())
	if err := a.Add(&VertexArray{}, geometry(4, quad(), nil, nil)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := a.Flush()
	if !errors.Is(err, ErrBufferCreate) || !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("expected wrapped out of memory error, got %v", err)
	}
}

func TestFailedFlushDiscardsStaging(t *testing.T) {
	dev := NewMemoryDevice()
	// Room for the vertex buffer but not for the index buffer.
	dev.Limit = 4*VertexSize + 4
	a := NewAllocator(dev, DefaultLimits())

	v := &VertexArray{MaxVert: 3}
	if err := a.Add(v, geometry(4, quad(), nil, nil)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := a.Flush(); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("expected out of memory, got %v", err)
	}
	if dev.Live() != 0 || dev.Created != 1 || dev.Deleted != 1 {
		t.Errorf("expected the vertex buffer deleted again, live %d created %d deleted %d",
			dev.Live(), dev.Created, dev.Deleted)
	}
	if v.VBuf != nil || v.EBuf != nil {
		t.Error("expected no buffers patched into the array")
	}
	for _, k := range []BufferKind{VertexBuffer, IndexBuffer, SkyBuffer, DecalBuffer} {
		if a.Pending(k) != 0 {
			t.Errorf("expected empty %s staging, got %d", k, a.Pending(k))
		}
	}
	if a.Flushes != 0 {
		t.Errorf("expected no counted flush, got %d", a.Flushes)
	}

	dev.Limit = 0
	retry := &VertexArray{MaxVert: 3}
	if err := a.Add(retry, geometry(4, quad(), nil, nil)); err != nil {
		t.Fatalf("Add retry: %v", err)
	}
	if err := a.Flush(); err != nil {
		t.Fatalf("Flush retry: %v", err)
	}
	if retry.VOffset != 0 || retry.EOffset != 0 {
		t.Errorf("expected offsets 0/0, got %d/%d", retry.VOffset, retry.EOffset)
	}
	if got := len(retry.VBuf.Data); got != 4*VertexSize {
		t.Errorf("expected %d vertex bytes, got %d", 4*VertexSize, got)
	}
	if got := len(retry.EBuf.Data); got != 2*len(quad()) {
		t.Errorf("expected %d index bytes, got %d", 2*len(quad()), got)
	}
}

func TestReset(t *testing.T) {
	a := NewAllocator(NewMemoryDevice(), DefaultLimits())
	if err := a.Add(&VertexArray{}, geometry(4, quad(), quad(), quad())); err != nil {
		t.Fatalf("Add: %v", err)
	}
	a.Reset()
	if a.Pending(VertexBuffer) != 0 || a.Pending(DecalBuffer) != 0 {
		t.Error("expected staging cleared")
	}
	if err := a.Flush(); err != nil || a.Flushes != 0 {
		t.Errorf("expected an empty flush, err %v flushes %d", err, a.Flushes)
	}
}

func TestReleaseAndDestroy(t *testing.T) {
	dev := NewMemoryDevice()
	a := NewAllocator(dev, DefaultLimits())

	root := &VertexArray{}
	child := &VertexArray{Parent: root}
	other := &VertexArray{Parent: root}
	root.Children = []*VertexArray{child, other}
	for _, v := range []*VertexArray{root, child, other} {
		if err := a.Add(v, geometry(4, quad(), nil, nil)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := a.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if dev.Live() != 2 {
		t.Fatalf("expected 2 live buffers, got %d", dev.Live())
	}
	buf := root.VBuf

	a.Destroy(child)
	if len(root.Children) != 1 || root.Children[0] != other {
		t.Error("expected child unlinked from its parent")
	}
	if child.VBuf != nil || buf.Uses() != 2 {
		t.Errorf("expected one reference dropped, uses %d", buf.Uses())
	}
	if dev.Deleted != 0 {
		t.Error("shared buffers deleted too early")
	}

	a.Destroy(root)
	if dev.Live() != 0 {
		t.Errorf("expected every buffer deleted, %d live", dev.Live())
	}
	if other.Parent != nil || root.Children != nil {
		t.Error("expected the tree dismantled")
	}
	if buf.Data != nil {
		t.Error("expected CPU copy dropped with the last user")
	}
}

func TestBoxUnion(t *testing.T) {
	b := EmptyBox()
	if !b.IsEmpty() {
		t.Fatal("expected empty box")
	}
	b.Union(EmptyBox())
	if !b.IsEmpty() {
		t.Error("union with empty box should stay empty")
	}
	o := EmptyBox()
	o.Extend([3]float32{1, 2, 3})
	o.Extend([3]float32{-1, 0, 5})
	b.Union(o)
	if b.Min != o.Min || b.Max != o.Max {
		t.Errorf("unexpected union %+v", b)
	}
}
