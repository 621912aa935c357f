package va

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
)

// VertexSize is the byte size of one encoded vertex.
const VertexSize = 32

// MaxIndex is the largest value a 16-bit index buffer can address.
const MaxIndex = 0xFFFF

// ErrTooLarge reports a vertex array that cannot fit any buffer.
var ErrTooLarge = errors.New("vertex array exceeds 16-bit buffer range")

// Buffer is a GPU buffer object together with the CPU copy shared by every
// vertex array placed in it.
type Buffer struct {
	Handle uint32
	Kind   BufferKind
	Data   []byte
	uses   int
}

// Uses returns the number of vertex arrays still referencing the buffer.
func (b *Buffer) Uses() int {
	return b.uses
}

// Limits caps the element count of each staging buffer.
type Limits struct {
	MaxVerts        int
	MaxIndices      int
	MaxSkyIndices   int
	MaxDecalIndices int
}

// DefaultLimits returns ceilings matching 16-bit indices.
func DefaultLimits() Limits {
	return Limits{
		MaxVerts:        1 << 14,
		MaxIndices:      MaxIndex,
		MaxSkyIndices:   MaxIndex,
		MaxDecalIndices: MaxIndex,
	}
}

func (l Limits) max(k BufferKind) int {
	switch k {
	case VertexBuffer:
		return l.MaxVerts
	case IndexBuffer:
		return l.MaxIndices
	case SkyBuffer:
		return l.MaxSkyIndices
	default:
		return l.MaxDecalIndices
	}
}

// Geometry is the finalized, vertex-array-local data of one vertex array.
type Geometry struct {
	Vertices []byte // NumVerts encoded vertices
	NumVerts int
	World    []uint16
	Sky      []uint16
	Decal    []uint16
}

// Allocator stages vertex array data into four buffers and uploads each as
// one buffer object when a ceiling is reached or on Flush.
type Allocator struct {
	dev    Device
	limits Limits

	staging [numBufferKinds][]byte
	counts  [numBufferKinds]int
	pending [numBufferKinds][]*VertexArray

	// Flushes counts Flush calls that uploaded at least one buffer.
	Flushes int
}

// NewAllocator creates an allocator uploading through dev.
func NewAllocator(dev Device, limits Limits) *Allocator {
	return &Allocator{dev: dev, limits: limits}
}

// Pending returns the number of staged elements of a buffer kind.
func (a *Allocator) Pending(k BufferKind) int {
	return a.counts[k]
}

// Add places a vertex array's geometry into the staging buffers, flushing
// first if any buffer would exceed its ceiling. Vertex-array-local indices
// are rebased onto the staged vertex buffer and the array's min/max vertex
// bounds are made buffer-global.
func (a *Allocator) Add(v *VertexArray, g Geometry) error {
	if g.NumVerts == 0 {
		return nil
	}
	if g.NumVerts > MaxIndex {
		return fmt.Errorf("%w: %d vertices", ErrTooLarge, g.NumVerts)
	}
	need := [numBufferKinds]int{g.NumVerts, len(g.World), len(g.Sky), len(g.Decal)}
	overflow := false
	for k := range need {
		kind := BufferKind(k)
		if need[k] > 0 && a.counts[k] > 0 && a.counts[k]+need[k] > a.limits.max(kind) {
			overflow = true
		}
	}
	// Rebased indices must stay addressable with 16 bits.
	if a.counts[VertexBuffer] > 0 && a.counts[VertexBuffer]+g.NumVerts > MaxIndex {
		overflow = true
	}
	if overflow {
		if err := a.Flush(); err != nil {
			return err
		}
	}

	voffset := a.counts[VertexBuffer]
	v.VOffset = voffset
	a.append(VertexBuffer, v, g.Vertices, g.NumVerts)
	v.MinVert += voffset
	v.MaxVert += voffset
	for i := range v.Elements {
		v.Elements[i].MinVert += voffset
		v.Elements[i].MaxVert += voffset
	}
	for i := range v.Decals {
		v.Decals[i].MinVert += voffset
		v.Decals[i].MaxVert += voffset
	}

	if len(g.World) > 0 {
		v.EOffset = a.counts[IndexBuffer]
		a.append(IndexBuffer, v, rebase(g.World, voffset), len(g.World))
	}
	if len(g.Sky) > 0 {
		v.SkyOffset = a.counts[SkyBuffer]
		a.append(SkyBuffer, v, rebase(g.Sky, voffset), len(g.Sky))
	}
	if len(g.Decal) > 0 {
		v.DecalOffset = a.counts[DecalBuffer]
		a.append(DecalBuffer, v, rebase(g.Decal, voffset), len(g.Decal))
	}
	return nil
}

func (a *Allocator) append(k BufferKind, v *VertexArray, data []byte, n int) {
	a.staging[k] = append(a.staging[k], data...)
	a.counts[k] += n
	a.pending[k] = append(a.pending[k], v)
}

func rebase(idx []uint16, offset int) []byte {
	out := make([]byte, 2*len(idx))
	for i, x := range idx {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int(x)+offset))
	}
	return out
}

// Flush uploads every non-empty staging buffer as one buffer object and
// patches the vertex arrays placed in it. A flush is all or nothing: when a
// buffer cannot be created, the buffers already created by this flush are
// deleted, no vertex array is patched and all staged data is discarded.
func (a *Allocator) Flush() error {
	var bufs [numBufferKinds]*Buffer
	for k := range a.staging {
		if len(a.staging[k]) == 0 {
			continue
		}
		kind := BufferKind(k)
		data := append([]byte(nil), a.staging[k]...)
		handle, err := a.dev.CreateBuffer(kind, data)
		if err != nil {
			for _, b := range bufs {
				if b != nil {
					a.dev.DeleteBuffer(b.Handle)
				}
			}
			a.Reset()
			return fmt.Errorf("%w: %w", ErrBufferCreate, err)
		}
		bufs[k] = &Buffer{Handle: handle, Kind: kind, Data: data, uses: len(a.pending[k])}
	}

	uploaded := false
	for k, buf := range bufs {
		if buf == nil {
			continue
		}
		for _, v := range a.pending[k] {
			switch buf.Kind {
			case VertexBuffer:
				v.VBuf = buf
			case IndexBuffer:
				v.EBuf = buf
			case SkyBuffer:
				v.SkyBuf = buf
			case DecalBuffer:
				v.DecalBuf = buf
			}
		}
		uploaded = true
	}
	a.Reset()
	if uploaded {
		a.Flushes++
	}
	return nil
}

// Reset discards all staged data without uploading it.
func (a *Allocator) Reset() {
	for k := range a.staging {
		a.staging[k] = a.staging[k][:0]
		a.counts[k] = 0
		a.pending[k] = a.pending[k][:0]
	}
}

// Release drops the vertex array's buffer references, deleting buffers
// whose last user it was. Staged but unflushed data is left behind.
func (a *Allocator) Release(v *VertexArray) {
	for k := range a.pending {
		a.pending[k] = slices.DeleteFunc(a.pending[k], func(p *VertexArray) bool { return p == v })
	}
	for _, ref := range []**Buffer{&v.VBuf, &v.EBuf, &v.SkyBuf, &v.DecalBuf} {
		b := *ref
		if b == nil {
			continue
		}
		b.uses--
		if b.uses <= 0 {
			a.dev.DeleteBuffer(b.Handle)
			b.Data = nil
		}
		*ref = nil
	}
}

// Destroy releases a vertex array and all of its descendants and unlinks it
// from its parent.
func (a *Allocator) Destroy(v *VertexArray) {
	for _, c := range v.Children {
		c.Parent = nil
		a.Destroy(c)
	}
	v.Children = nil
	a.Release(v)
	if p := v.Parent; p != nil {
		p.Children = slices.DeleteFunc(p.Children, func(c *VertexArray) bool { return c == v })
		v.Parent = nil
	}
}
