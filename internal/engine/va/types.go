// Package va holds compiled vertex arrays and packs them into shared GPU
// buffer objects.
package va

import "github.com/go-gl/mathgl/mgl32"

// AlphaClass selects the blending pass of a bucket.
type AlphaClass uint8

const (
	AlphaNone AlphaClass = iota
	AlphaBack
	AlphaFront
	AlphaRefract
)

// String returns the class name.
func (a AlphaClass) String() string {
	switch a {
	case AlphaBack:
		return "back"
	case AlphaFront:
		return "front"
	case AlphaRefract:
		return "refract"
	default:
		return "opaque"
	}
}

// AnyOrient marks buckets whose texture coordinates do not depend on the
// face orientation.
const AnyOrient = -1

// Box is an axis-aligned bounding box. The zero value is not empty; use
// EmptyBox.
type Box struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// EmptyBox returns a box that any point extends.
func EmptyBox() Box {
	return Box{
		Min: mgl32.Vec3{1e10, 1e10, 1e10},
		Max: mgl32.Vec3{-1e10, -1e10, -1e10},
	}
}

// IsEmpty reports whether no point was added.
func (b Box) IsEmpty() bool {
	return b.Min[0] > b.Max[0]
}

// Extend grows the box to include p.
func (b *Box) Extend(p mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

// Union grows the box to include o.
func (b *Box) Union(o Box) {
	if o.IsEmpty() {
		return
	}
	b.Extend(o.Min)
	b.Extend(o.Max)
}

// ElementSet is one draw range: a run of indices sharing render state.
type ElementSet struct {
	Texture int
	Orient  int
	Layer   uint8
	Alpha   AlphaClass
	// Reuse names the surface texture whose shader parameters a decal reuses,
	// or -1.
	Reuse int
	// Offset and Length count indices within the vertex array's own
	// index range.
	Offset int
	Length int
	// MinVert and MaxVert are buffer-global vertex indices.
	MinVert int
	MaxVert int
}

// MaterialSurface is an axis-aligned rectangle of a non-geometry material.
type MaterialSurface struct {
	Material uint16
	Orient   int
	// Origin is the world-space corner with the smallest in-plane
	// coordinates, on the face plane.
	Origin [3]int32
	// USize and VSize extend the rectangle along the orientation's two
	// in-plane axes.
	USize, VSize int32
}

// MaterialClass flags which material classes a vertex array contains.
type MaterialClass uint16

const (
	ClassOpaque MaterialClass = 1 << iota
	ClassAlpha
	ClassRefract
	ClassSky
	ClassDecal
	ClassWater
	ClassGlass
	ClassLava
	ClassClip
)

// Merge flags describe how a vertex array takes part in face merging.
const (
	MergeOrigin uint8 = 1 << iota // merged polygons originate in the subtree
	MergePart                     // leaf faces in the subtree were consumed
	MergeUse                      // merged polygons were emitted here
)

// Bounds holds the per-class bounding boxes of a vertex array.
type Bounds struct {
	All     Box
	Geom    Box // opaque world geometry
	Alpha   Box // alpha-front and alpha-back
	Refract Box
	Sky     Box
	Decal   Box
	Water   Box
	Glass   Box
}

// NewBounds returns bounds with every box empty.
func NewBounds() Bounds {
	return Bounds{
		All: EmptyBox(), Geom: EmptyBox(), Alpha: EmptyBox(), Refract: EmptyBox(),
		Sky: EmptyBox(), Decal: EmptyBox(), Water: EmptyBox(), Glass: EmptyBox(),
	}
}

// VertexArray is the compiled geometry of one octree subtree.
type VertexArray struct {
	Origin [3]int32
	Size   int32

	Parent   *VertexArray
	Children []*VertexArray

	Verts     int
	Tris      int
	SkyTris   int
	DecalTris int

	// MinVert and MaxVert bound the buffer-global vertex indices.
	MinVert int
	MaxVert int

	// Element sets in draw order. Texs opaque top-layer sets come first,
	// then Blends bottom-layer sets, then AlphaBack, AlphaFront and Refract.
	Elements   []ElementSet
	Texs       int
	Blends     int
	AlphaBack  int
	AlphaFront int
	Refract    int

	Decals   []ElementSet
	MatSurfs []MaterialSurface
	// MapModels lists attached mapmodel entity ids for the frontend.
	MapModels []int

	Bounds    Bounds
	Materials MaterialClass

	HasMerges  uint8
	MergeLevel int

	// Buffer placement, patched on flush.
	VBuf, EBuf, SkyBuf, DecalBuf             *Buffer
	VOffset, EOffset, SkyOffset, DecalOffset int
}

// Walk visits v and its descendants in pre-order.
func (v *VertexArray) Walk(fn func(*VertexArray)) {
	fn(v)
	for _, c := range v.Children {
		c.Walk(fn)
	}
}
