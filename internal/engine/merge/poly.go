// Package merge coalesces coplanar faces that share edges into larger
// convex polygons.
package merge

import (
	"slices"

	"github.com/Faultbox/octabuild/internal/engine/octree"
	"github.com/Faultbox/octabuild/pkg/math"
)

// vec is a wide vector for products of fixed-point coordinates.
type vec [3]int64

func wide(p math.IVec3) vec {
	return vec{int64(p[0]), int64(p[1]), int64(p[2])}
}

func (a vec) sub(b vec) vec {
	return vec{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func (a vec) cross(b vec) vec {
	return vec{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func (a vec) dot(b vec) int64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

func gcd64(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Normal returns the reduced normal of a polygon wound counter-clockwise
// when seen from the side it faces. Degenerate polygons yield zero.
func Normal(poly []math.IVec3) [3]int64 {
	var n vec
	if len(poly) < 3 {
		return n
	}
	p0 := wide(poly[0])
	for i := 1; i+1 < len(poly); i++ {
		c := wide(poly[i]).sub(p0).cross(wide(poly[i+1]).sub(p0))
		n = vec{n[0] + c[0], n[1] + c[1], n[2] + c[2]}
	}
	g := gcd64(gcd64(abs64(n[0]), abs64(n[1])), abs64(n[2]))
	if g > 1 {
		n = vec{n[0] / g, n[1] / g, n[2] / g}
	}
	return n
}

// turn returns the signed turn at b along a→b→c measured about n.
func turn(a, b, c math.IVec3, n vec) int64 {
	wa, wb, wc := wide(a), wide(b), wide(c)
	return wb.sub(wa).cross(wc.sub(wb)).dot(n)
}

// IsConvexPlanar reports whether the polygon lies in the plane of normal n
// and turns left at every vertex.
func IsConvexPlanar(poly []math.IVec3, n [3]int64) bool {
	if len(poly) < 3 || n == [3]int64{} {
		return false
	}
	p0 := wide(poly[0])
	for i, p := range poly {
		if wide(p).sub(p0).dot(n) != 0 {
			return false
		}
		if turn(poly[(i+len(poly)-1)%len(poly)], p, poly[(i+1)%len(poly)], n) < 0 {
			return false
		}
	}
	return true
}

// Polygon is a merge result and the input polygons it covers.
type Polygon struct {
	Verts   []math.IVec3
	Members []int // indices into the input, ascending
}

type edgeKey [2]math.IVec3

type work struct {
	verts   []math.IVec3
	members []int
	alive   bool
}

// Merge joins convex polygons of one plane with normal n wherever two of
// them share an edge in opposite directions and the union stays convex.
// Collinear vertices at the junctions are removed. Polygons that cannot be
// joined are returned unchanged, each as its own single-member result.
func Merge(polys [][]math.IVec3, n [3]int64) []Polygon {
	ws := make([]*work, len(polys))
	edges := make(map[edgeKey]*work)
	for i, p := range polys {
		ws[i] = &work{verts: p, members: []int{i}, alive: true}
		addEdges(edges, ws[i])
	}
	queue := make([]*work, len(ws))
	for i := range ws {
		queue[i] = ws[len(ws)-1-i]
	}
	for len(queue) > 0 {
		p := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if !p.alive {
			continue
		}
		nv := len(p.verts)
		for i := 0; i < nv; i++ {
			a, b := p.verts[i], p.verts[(i+1)%nv]
			q, ok := edges[edgeKey{b, a}]
			if !ok || q == p || !q.alive {
				continue
			}
			verts, ok := join(p.verts, i, q.verts, vec(n))
			if !ok {
				continue
			}
			removeEdges(edges, p)
			removeEdges(edges, q)
			q.alive = false
			p.verts = verts
			p.members = append(p.members, q.members...)
			addEdges(edges, p)
			queue = append(queue, p)
			break
		}
	}
	var out []Polygon
	for _, w := range ws {
		if !w.alive {
			continue
		}
		slices.Sort(w.members)
		out = append(out, Polygon{Verts: w.verts, Members: w.members})
	}
	return out
}

func addEdges(edges map[edgeKey]*work, w *work) {
	for i := range w.verts {
		k := edgeKey{w.verts[i], w.verts[(i+1)%len(w.verts)]}
		if _, ok := edges[k]; !ok {
			edges[k] = w
		}
	}
}

func removeEdges(edges map[edgeKey]*work, w *work) {
	for i := range w.verts {
		k := edgeKey{w.verts[i], w.verts[(i+1)%len(w.verts)]}
		if edges[k] == w {
			delete(edges, k)
		}
	}
}

// join splices q into p across p's edge i, which q holds reversed. It
// fails when the result would turn right anywhere or exceed the face
// vertex limit.
func join(p []math.IVec3, i int, q []math.IVec3, n vec) ([]math.IVec3, bool) {
	np, nq := len(p), len(q)
	a, b := p[i], p[(i+1)%np]
	j := -1
	for k := range q {
		if q[k] == b && q[(k+1)%nq] == a {
			j = k
			break
		}
	}
	if j < 0 {
		return nil, false
	}
	raw := make([]math.IVec3, 0, np+nq-2)
	for k := 0; k < np; k++ {
		raw = append(raw, p[(i+1+k)%np])
	}
	for k := 0; k < nq-2; k++ {
		raw = append(raw, q[(j+2+k)%nq])
	}
	out := make([]math.IVec3, 0, len(raw))
	for k, v := range raw {
		prev, next := raw[(k+len(raw)-1)%len(raw)], raw[(k+1)%len(raw)]
		t := turn(prev, v, next, n)
		if t < 0 || (t == 0 && wide(v).sub(wide(prev)).dot(wide(next).sub(wide(v))) <= 0) {
			return nil, false
		}
		if t > 0 {
			out = append(out, v)
		}
	}
	if len(out) < 3 || len(out) > octree.MaxFaceVerts {
		return nil, false
	}
	return out, true
}
