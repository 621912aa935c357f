package merge

import (
	"github.com/Faultbox/octabuild/internal/engine/octree"
	"github.com/Faultbox/octabuild/pkg/math"
)

// Key groups faces that may merge with each other.
type Key struct {
	Orient int
	Normal [3]int64
	Offset int64
	Tex    uint16
	Mat    octree.Material
}

// Face is a merge candidate.
type Face struct {
	Node   octree.NodeID
	Orient int
	Tex    uint16
	Mat    octree.Material
	Poly   []math.IVec3
	Origin math.IVec3 // cell of the owning leaf
	Size   int32
}

// Stats counts the outcome of a merge pass.
type Stats struct {
	Candidates int
	Groups     int
	Merged     int // merged polygons produced
	Consumed   int // faces absorbed into a polygon owned by another face
}

// Merger accumulates candidates of one merge cell and resolves them.
type Merger struct {
	faces  []Face
	groups map[Key][]int
	keys   []Key
	Stats  Stats
}

// NewMerger returns an empty merger.
func NewMerger() *Merger {
	return &Merger{groups: make(map[Key][]int)}
}

// Reset drops pending candidates. Stats are kept.
func (m *Merger) Reset() {
	m.faces = m.faces[:0]
	clear(m.groups)
	m.keys = m.keys[:0]
}

// Grid returns the largest power of two dividing every coordinate of the
// polygon, or 0 when all coordinates are zero.
func Grid(poly []math.IVec3) int32 {
	var bits int32
	for _, p := range poly {
		bits |= p[0] | p[1] | p[2]
	}
	return bits & -bits
}

// Eligible reports whether a fixed-point face of a cube of the given size
// lies on the cube's grid, is planar and convex.
func Eligible(poly []math.IVec3, size int32) bool {
	if len(poly) < 3 {
		return false
	}
	if g := Grid(poly); g != 0 && g < size<<octree.FixedShift {
		return false
	}
	return IsConvexPlanar(poly, Normal(poly))
}

// Add queues a candidate and reports whether it was eligible.
func (m *Merger) Add(f Face) bool {
	if !Eligible(f.Poly, f.Size) {
		return false
	}
	n := Normal(f.Poly)
	key := Key{
		Orient: f.Orient,
		Normal: n,
		Offset: wide(f.Poly[0]).dot(vec(n)),
		Tex:    f.Tex,
		Mat:    f.Mat,
	}
	if _, ok := m.groups[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.groups[key] = append(m.groups[key], len(m.faces))
	m.faces = append(m.faces, f)
	m.Stats.Candidates++
	return true
}

// AddLeaf queues every visible merge-enabled face of a solid leaf and
// returns how many were eligible.
func (m *Merger) AddLeaf(t *octree.Tree, f octree.Frame) int {
	n := t.Node(f.ID)
	if !n.IsLeaf() || n.Fill != octree.FillSolid {
		return 0
	}
	added := 0
	for o := 0; o < octree.NumOrients; o++ {
		if n.Merge&n.Visible&(1<<o) == 0 {
			continue
		}
		face := Face{
			Node: f.ID, Orient: o, Tex: n.Texture[o], Mat: n.Material,
			Poly: t.FacePolygon(f, o), Origin: f.Origin, Size: f.Size,
		}
		if m.Add(face) {
			added++
		}
	}
	return added
}

// Resolve merges every group and records the results on the tree: the
// owning face (the first queued member) receives the merged polygon and
// every member is flagged as merged. The candidates are dropped.
func (m *Merger) Resolve(t *octree.Tree) {
	for _, key := range m.keys {
		group := m.groups[key]
		if len(group) < 2 {
			continue
		}
		m.Stats.Groups++
		polys := make([][]math.IVec3, len(group))
		for i, fi := range group {
			polys[i] = m.faces[fi].Poly
		}
		for _, res := range Merge(polys, key.Normal) {
			if len(res.Members) < 2 {
				continue
			}
			members := make([]Face, len(res.Members))
			for i, mi := range res.Members {
				members[i] = m.faces[group[mi]]
			}
			owner := members[0]
			bit := uint8(1) << owner.Orient
			ext := t.Node(owner.Node).EnsureExt()
			ext.Surfaces[owner.Orient] = res.Verts
			ext.MergeSize[owner.Orient] = CellSize(members)
			for _, f := range members {
				t.Node(f.Node).Merged |= bit
			}
			m.Stats.Merged++
			m.Stats.Consumed += len(members) - 1
		}
	}
	m.Reset()
}

// CellSize returns the size of the smallest aligned cell, no smaller than
// the first face's cube, that contains the cubes of all faces.
func CellSize(faces []Face) int32 {
	lo, hi := faces[0].Origin, faces[0].Origin.Add(math.IVec3{faces[0].Size, faces[0].Size, faces[0].Size})
	for _, f := range faces[1:] {
		lo = lo.Min(f.Origin)
		hi = hi.Max(f.Origin.Add(math.IVec3{f.Size, f.Size, f.Size}))
	}
	s := faces[0].Size
	for {
		fits := true
		for i := 0; i < 3; i++ {
			if math.FloorDiv(lo[i], s) != math.FloorDiv(hi[i]-1, s) {
				fits = false
				break
			}
		}
		if fits {
			return s
		}
		s <<= 1
	}
}

// Clear removes every merge result from the tree.
func Clear(t *octree.Tree) {
	for i := range t.Nodes {
		n := &t.Nodes[i]
		n.Merged = 0
		n.MergeState = octree.MergeNone
		if n.Ext != nil {
			n.Ext.Surfaces = [6][]math.IVec3{}
			n.Ext.MergeSize = [6]int32{}
		}
	}
}

// IsOwner reports whether face orient of the node owns a merged polygon.
func IsOwner(n *octree.CubeNode, orient int) bool {
	return n.Merged&(1<<orient) != 0 && n.Ext != nil && len(n.Ext.Surfaces[orient]) > 0
}

// IsConsumed reports whether face orient of the node is drawn as part of a
// polygon owned by another face.
func IsConsumed(n *octree.CubeNode, orient int) bool {
	return n.Merged&(1<<orient) != 0 && !IsOwner(n, orient)
}
