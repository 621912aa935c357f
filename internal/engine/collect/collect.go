// Package collect accumulates the geometry of one vertex array: it turns
// octree faces into deduplicated, textured triangles sorted into render
// buckets, projects decals onto them and finalizes the result for upload.
package collect

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/octabuild/internal/engine/merge"
	"github.com/Faultbox/octabuild/internal/engine/octree"
	"github.com/Faultbox/octabuild/internal/engine/slot"
	"github.com/Faultbox/octabuild/internal/engine/tjoint"
	"github.com/Faultbox/octabuild/internal/engine/va"
	"github.com/Faultbox/octabuild/internal/engine/vertex"
	"github.com/Faultbox/octabuild/pkg/math"
)

// BucketKey identifies a run of triangles sharing render state.
type BucketKey struct {
	Tex    int
	Orient int // face orientation, or va.AnyOrient
	Layer  uint8
	Alpha  va.AlphaClass
}

type bucket struct {
	key  BucketKey
	tris []uint16
}

type decalKey struct {
	tex   int
	reuse int
}

type decalBucket struct {
	key  decalKey
	tris []uint16
}

// Options selects optional outputs.
type Options struct {
	Decals   bool
	MatSurfs bool
	Policy   DecalPolicy // nil uses DefaultPolicy
}

// DefaultOptions enables every output.
func DefaultOptions() Options {
	return Options{Decals: true, MatSurfs: true}
}

// Collector accumulates exactly one vertex array between Clear and Setup.
// It is not safe for concurrent use.
type Collector struct {
	slots  slot.Lookup
	opts   Options
	policy DecalPolicy

	dedup   *vertex.Deduplicator
	buckets map[BucketKey]*bucket
	order   []*bucket
	sky     []uint16
	decals  map[decalKey]*decalBucket
	dorder  []*decalBucket

	matFaces  []matFace
	matSurfs  []va.MaterialSurface
	ents      []int
	mapModels []int

	bounds    va.Bounds
	materials va.MaterialClass
	optimized bool

	// Dropped counts triangles lost to the vertex limit since Clear.
	Dropped int
}

// New creates a collector resolving textures through slots.
func New(slots slot.Lookup, opts Options) *Collector {
	c := &Collector{
		slots:   slots,
		opts:    opts,
		policy:  opts.Policy,
		dedup:   vertex.NewDeduplicator(),
		buckets: make(map[BucketKey]*bucket),
		decals:  make(map[decalKey]*decalBucket),
	}
	if c.policy == nil {
		c.policy = DefaultPolicy{}
	}
	c.Clear()
	return c
}

// Clear resets the collector for the next vertex array.
func (c *Collector) Clear() {
	c.dedup.Clear()
	clear(c.buckets)
	c.order = c.order[:0]
	c.sky = c.sky[:0]
	clear(c.decals)
	c.dorder = c.dorder[:0]
	c.matFaces = c.matFaces[:0]
	c.matSurfs = nil
	c.ents = c.ents[:0]
	c.mapModels = nil
	c.bounds = va.NewBounds()
	c.materials = 0
	c.optimized = false
	c.Dropped = 0
}

// Verts returns the number of distinct vertices collected.
func (c *Collector) Verts() int {
	return c.dedup.Len()
}

// Tris returns the number of world triangles collected.
func (c *Collector) Tris() int {
	n := 0
	for _, b := range c.order {
		n += len(b.tris) / 3
	}
	return n
}

// IsEmpty reports whether the collector holds nothing worth a vertex array.
func (c *Collector) IsEmpty() bool {
	return c.dedup.Len() == 0 && len(c.matFaces) == 0 && len(c.matSurfs) == 0 && len(c.mapModels) == 0
}

// Face is one polygon to emit.
type Face struct {
	Poly    []math.IVec3 // fixed-point, counter-clockwise from outside
	Normals []mgl32.Vec3 // optional, one per vertex
	Joints  [][]int32    // optional joint offsets per edge, ascending
	Orient  int
	Tex     int
	Mat     octree.Material
	Layer   octree.Layer
}

// AddCubeVerts emits face orient of the leaf at f, stitched with the
// leaf's T-joints.
func (c *Collector) AddCubeVerts(t *octree.Tree, f octree.Frame, orient int, arena *tjoint.Arena) {
	n := t.Node(f.ID)
	face := Face{
		Poly:   t.FacePolygon(f, orient),
		Orient: orient,
		Tex:    int(n.Texture[orient]),
		Mat:    n.Material,
		Layer:  n.FaceLayer(orient),
	}
	if n.Ext != nil && len(n.Ext.Normals[orient]) == len(face.Poly) {
		face.Normals = n.Ext.Normals[orient]
	}
	face.Joints = joints(n, orient, len(face.Poly), arena)
	c.AddFace(face)
}

// AddMergedVerts emits the merged polygon owned by face orient of the node.
func (c *Collector) AddMergedVerts(t *octree.Tree, id octree.NodeID, orient int, arena *tjoint.Arena) {
	n := t.Node(id)
	if !merge.IsOwner(n, orient) {
		return
	}
	poly := n.Ext.Surfaces[orient]
	c.AddFace(Face{
		Poly:   poly,
		Joints: joints(n, orient, len(poly), arena),
		Orient: orient,
		Tex:    int(n.Texture[orient]),
		Mat:    n.Material,
		Layer:  n.FaceLayer(orient),
	})
}

func joints(n *octree.CubeNode, orient, edges int, arena *tjoint.Arena) [][]int32 {
	if arena == nil || n.Ext == nil || n.Ext.TJoints < 0 || !arena.HasFace(n.Ext.TJoints, orient) {
		return nil
	}
	out := make([][]int32, edges)
	for j := range out {
		out[j] = arena.Edge(n.Ext.TJoints, orient, j)
	}
	return out
}

// AddFace triangulates a face and files its triangles into buckets. Faces
// with the sky texture go to the sky index list; blend-layer faces are
// emitted on both layers.
func (c *Collector) AddFace(f Face) {
	if len(f.Poly) < 3 {
		return
	}
	pts, tris := triangulate(f)
	if len(tris) == 0 {
		return
	}
	if f.Tex == slot.DefaultSky {
		c.emitSky(pts, tris)
		return
	}
	s := c.slots.Slot(f.Tex)
	alpha := alphaClass(f.Mat, s)
	switch f.Layer {
	case octree.LayerBottom:
		c.emit(pts, tris, f.Tex, f.Orient, 1, alpha)
	case octree.LayerBlend:
		c.emit(pts, tris, f.Tex, f.Orient, 0, alpha)
		bottom := f.Tex
		if s.Layer > 0 {
			bottom = s.Layer
		}
		c.emit(pts, tris, bottom, f.Orient, 1, alpha)
	default:
		c.emit(pts, tris, f.Tex, f.Orient, 0, alpha)
	}
}

func alphaClass(m octree.Material, s *slot.Slot) va.AlphaClass {
	switch {
	case !m.IsAlpha():
		return va.AlphaNone
	case s.IsRefractive():
		return va.AlphaRefract
	case s.AlphaBack:
		return va.AlphaBack
	default:
		return va.AlphaFront
	}
}

func (c *Collector) bucket(key BucketKey) *bucket {
	b, ok := c.buckets[key]
	if !ok {
		b = &bucket{key: key}
		c.buckets[key] = b
		c.order = append(c.order, b)
	}
	return b
}

// intern adds the vertices of one triangle, reusing earlier indices of the
// same face. It fails when the batch is full.
func (c *Collector) intern(tri [3]int, idx []int, mk func(int) vertex.Vertex) ([3]uint16, bool) {
	var out [3]uint16
	for k, p := range tri {
		if idx[p] < 0 {
			i, err := c.dedup.Add(mk(p))
			if err != nil {
				return out, false
			}
			idx[p] = i
		}
		out[k] = uint16(idx[p])
	}
	return out, true
}

func (c *Collector) emit(pts []point, tris [][3]int, tex, orient int, layer uint8, alpha va.AlphaClass) {
	s := c.slots.Slot(tex)
	sgen, tgen := s.TexGen(orient)
	key := BucketKey{Tex: tex, Orient: va.AnyOrient, Layer: layer, Alpha: alpha}
	if s.Scrolls() {
		key.Orient = orient
	}
	b := c.bucket(key)
	idx := newIndex(len(pts))
	mk := func(p int) vertex.Vertex {
		return texVertex(pts[p].pos, pts[p].norm, sgen, tgen)
	}
	box := c.classBox(alpha)
	for _, tri := range tris {
		vi, ok := c.intern(tri, idx, mk)
		if !ok {
			c.Dropped++
			continue
		}
		b.tris = append(b.tris, vi[:]...)
		for _, p := range tri {
			box.Extend(pts[p].pos)
			c.bounds.All.Extend(pts[p].pos)
		}
	}
}

func (c *Collector) classBox(alpha va.AlphaClass) *va.Box {
	switch alpha {
	case va.AlphaBack, va.AlphaFront:
		c.materials |= va.ClassAlpha
		return &c.bounds.Alpha
	case va.AlphaRefract:
		c.materials |= va.ClassRefract
		return &c.bounds.Refract
	default:
		c.materials |= va.ClassOpaque
		return &c.bounds.Geom
	}
}

func (c *Collector) emitSky(pts []point, tris [][3]int) {
	idx := newIndex(len(pts))
	mk := func(p int) vertex.Vertex {
		return vertex.Vertex{Pos: pts[p].pos, Norm: vertex.PackNormal(pts[p].norm, 0)}
	}
	c.materials |= va.ClassSky
	for _, tri := range tris {
		vi, ok := c.intern(tri, idx, mk)
		if !ok {
			c.Dropped++
			continue
		}
		c.sky = append(c.sky, vi[:]...)
		for _, p := range tri {
			c.bounds.Sky.Extend(pts[p].pos)
			c.bounds.All.Extend(pts[p].pos)
		}
	}
}

func newIndex(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = -1
	}
	return idx
}

// texVertex builds a world vertex with texgen coordinates and a tangent
// frame derived from the texgen directions.
func texVertex(pos, norm mgl32.Vec3, sgen, tgen mgl32.Vec4) vertex.Vertex {
	s, t := slot.TexCoord(sgen, tgen, pos)
	tan, w := tangentFrame(norm, sgen.Vec3(), tgen.Vec3())
	return vertex.Vertex{
		Pos:     pos,
		TC:      mgl32.Vec3{s, t, 0},
		Norm:    vertex.PackNormal(norm, 0),
		Tangent: vertex.PackNormal(tan, w),
	}
}

// tangentFrame orthogonalizes sdir against the normal and returns the
// tangent with the handedness byte of tdir.
func tangentFrame(n, sdir, tdir mgl32.Vec3) (mgl32.Vec3, uint8) {
	t := sdir.Sub(n.Mul(n.Dot(sdir)))
	if t.Len() < 1e-6 {
		t = perpendicular(n)
	}
	t = t.Normalize()
	w := uint8(255)
	if tdir.Dot(n.Cross(t)) < 0 {
		w = 0
	}
	return t, w
}

func perpendicular(n mgl32.Vec3) mgl32.Vec3 {
	if mgl32.Abs(n[0]) < 0.9 {
		return mgl32.Vec3{1, 0, 0}.Sub(n.Mul(n[0]))
	}
	return mgl32.Vec3{0, 1, 0}.Sub(n.Mul(n[1]))
}

// AddEntities records attached entities for decal generation and the
// vertex array's mapmodel list.
func (c *Collector) AddEntities(t *octree.Tree, ids []int) {
	for _, id := range ids {
		if id < 0 || id >= len(t.Entities) || slices.Contains(c.ents, id) {
			continue
		}
		c.ents = append(c.ents, id)
		if t.Entities[id].Type == octree.EntMapModel {
			c.mapModels = append(c.mapModels, id)
		}
	}
}
