package tjoint

import (
	"slices"

	"github.com/Faultbox/octabuild/internal/engine/octree"
	"github.com/Faultbox/octabuild/pkg/math"
)

// lineKey identifies an infinite line: its canonical reduced slope and the
// unique point on it whose major-axis coordinate lies in [0, slope[axis]).
type lineKey struct {
	slope  math.IVec3
	origin math.IVec3
}

type edge struct {
	node    octree.NodeID
	id      int   // EdgeID of the face edge
	from    int32 // line offsets, from < to
	to      int32
	flipped bool // the face edge runs towards decreasing offsets
	dup     bool
	joints  []int32
}

// Stitcher groups face edges by line and computes the joints between them.
// It is reused across builds; Reset clears it.
type Stitcher struct {
	groups map[lineKey][]*edge
	keys   []lineKey
	edges  int
}

// NewStitcher returns an empty stitcher.
func NewStitcher() *Stitcher {
	return &Stitcher{groups: make(map[lineKey][]*edge)}
}

// Reset forgets all faces.
func (s *Stitcher) Reset() {
	clear(s.groups)
	s.keys = s.keys[:0]
	s.edges = 0
}

// Edges returns the number of edges added since the last reset.
func (s *Stitcher) Edges() int {
	return s.edges
}

// AddFace registers the edges of a visible face polygon owned by node.
// Edge j runs from poly[j] to poly[j+1].
func (s *Stitcher) AddFace(node octree.NodeID, orient int, poly []math.IVec3) {
	n := len(poly)
	if n < 3 {
		return
	}
	for j := 0; j < n; j++ {
		a, b := poly[j], poly[(j+1)%n]
		dir := b.Sub(a)
		if dir.IsZero() {
			continue
		}
		slope := dir.ReduceSlope()
		axis := slope.MajorAxis()
		flipped := slope[axis] < 0
		if flipped {
			slope = slope.Neg()
		}
		step := slope[axis]
		k := math.FloorDiv(a[axis], step)
		key := lineKey{slope: slope, origin: a.Sub(slope.Mul(k))}
		from := (a[axis] - key.origin[axis]) / step
		to := (b[axis] - key.origin[axis]) / step
		if flipped {
			from, to = to, from
		}
		if _, ok := s.groups[key]; !ok {
			s.keys = append(s.keys, key)
		}
		s.groups[key] = append(s.groups[key], &edge{
			node: node, id: EdgeID(orient, j), from: from, to: to, flipped: flipped,
		})
		s.edges++
	}
}

// Build sweeps every line group, stores the joints of each node in the arena
// and sets the node's joint list head. Nodes without joints are untouched.
// It returns the number of joints stored.
func (s *Stitcher) Build(t *octree.Tree, arena *Arena) int {
	perNode := make(map[octree.NodeID][]Joint)
	for _, key := range s.keys {
		group := s.groups[key]
		sweep(group)
		for _, e := range group {
			if e.dup || len(e.joints) == 0 {
				continue
			}
			slices.Sort(e.joints)
			e.joints = slices.Compact(e.joints)
			for _, off := range e.joints {
				step := off - e.from
				if e.flipped {
					step = e.to - off
				}
				perNode[e.node] = append(perNode[e.node], Joint{Edge: e.id, Offset: step})
			}
		}
	}
	nodes := make([]octree.NodeID, 0, len(perNode))
	for id := range perNode {
		nodes = append(nodes, id)
	}
	slices.Sort(nodes)
	total := 0
	for _, id := range nodes {
		list := perNode[id]
		slices.SortFunc(list, func(a, b Joint) int {
			if a.Edge != b.Edge {
				return a.Edge - b.Edge
			}
			return int(a.Offset - b.Offset)
		})
		t.Node(id).EnsureExt().TJoints = arena.appendList(list)
		total += len(list)
	}
	return total
}

// sweep visits the edges of one line in offset order, keeping the edges that
// still span the current offset active. Endpoints falling strictly inside an
// active edge become joints on it. Identical edges are shared geometry: the
// first is marked duplicate and the rest are dropped.
func sweep(group []*edge) {
	slices.SortStableFunc(group, func(a, b *edge) int {
		if a.from != b.from {
			return int(a.from - b.from)
		}
		return int(b.to - a.to)
	})
	var active []*edge
	var prev *edge
	for _, e := range group {
		if prev != nil && prev.from == e.from && prev.to == e.to {
			prev.dup = true
			e.dup = true
			continue
		}
		live := active[:0]
		for _, a := range active {
			if a.to > e.from {
				live = append(live, a)
			}
		}
		active = live
		for _, a := range active {
			if a.from < e.from && e.from < a.to {
				a.joints = append(a.joints, e.from)
			}
			if a.from < e.to && e.to < a.to {
				a.joints = append(a.joints, e.to)
			}
			if e.from < a.to && a.to < e.to {
				e.joints = append(e.joints, a.to)
			}
		}
		active = append(active, e)
		prev = e
	}
}
