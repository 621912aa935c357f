package collect

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/octabuild/internal/engine/merge"
	"github.com/Faultbox/octabuild/internal/engine/octree"
	"github.com/Faultbox/octabuild/internal/engine/vertex"
	"github.com/Faultbox/octabuild/pkg/math"
)

// point is a boundary point of a face in world space.
type point struct {
	pos  mgl32.Vec3
	norm mgl32.Vec3
}

// flatNormal returns the unit normal of a planar polygon.
func flatNormal(poly []math.IVec3, orient int) mgl32.Vec3 {
	n := merge.Normal(poly)
	v := mgl32.Vec3{float32(n[0]), float32(n[1]), float32(n[2])}
	if v.Len() == 0 {
		o := octree.OrientNormal(orient)
		return mgl32.Vec3{float32(o[0]), float32(o[1]), float32(o[2])}
	}
	return v.Normalize()
}

// triangulate returns the boundary points of a face, including T-joint
// points, and a triangle list over them. Joint positions are computed in
// fixed point so they match the neighbor's corners exactly.
func triangulate(f Face) ([]point, [][3]int) {
	n := len(f.Poly)
	norms := make([]mgl32.Vec3, n)
	flat := flatNormal(f.Poly, f.Orient)
	for i := range norms {
		norms[i] = flat
		if len(f.Normals) == n && f.Normals[i].Len() > 0 {
			norms[i] = f.Normals[i].Normalize()
		}
	}

	pts := make([]point, 0, n)
	corner := make([]int, n) // boundary index of each corner
	jcount := make([]int, n) // joints per edge
	for j := 0; j < n; j++ {
		corner[j] = len(pts)
		pts = append(pts, point{pos: vertex.FixedToWorld(f.Poly[j]), norm: norms[j]})
		if j >= len(f.Joints) || len(f.Joints[j]) == 0 {
			continue
		}
		a, b := f.Poly[j], f.Poly[(j+1)%n]
		d := b.Sub(a)
		dir := d.ReduceSlope()
		ax := dir.MajorAxis()
		if dir[ax] == 0 {
			continue
		}
		steps := d[ax] / dir[ax]
		for _, off := range f.Joints[j] {
			if off <= 0 || off >= steps {
				continue
			}
			t := float32(off) / float32(steps)
			nrm := norms[j].Add(norms[(j+1)%n].Sub(norms[j]).Mul(t))
			if nrm.Len() > 0 {
				nrm = nrm.Normalize()
			}
			pts = append(pts, point{pos: vertex.FixedToWorld(a.Add(dir.Mul(off))), norm: nrm})
			jcount[j]++
		}
	}

	if len(pts) == n {
		return pts, fan(0, len(pts))
	}
	// Fan from a corner whose adjacent edges carry no joints.
	for j := 0; j < n; j++ {
		if jcount[j] == 0 && jcount[(j+n-1)%n] == 0 {
			return pts, fan(corner[j], len(pts))
		}
	}
	// Fan from the only joint of an edge.
	for j := 0; j < n; j++ {
		if jcount[j] == 1 {
			return pts, fan(corner[j]+1, len(pts))
		}
	}
	// Fan from an extra center point.
	var center point
	for j := 0; j < n; j++ {
		center.pos = center.pos.Add(pts[corner[j]].pos)
		center.norm = center.norm.Add(norms[j])
	}
	center.pos = center.pos.Mul(1 / float32(n))
	if center.norm.Len() > 0 {
		center.norm = center.norm.Normalize()
	}
	c := len(pts)
	pts = append(pts, center)
	tris := make([][3]int, 0, c)
	for k := 0; k < c; k++ {
		tris = append(tris, [3]int{c, k, (k + 1) % c})
	}
	return pts, tris
}

// fan returns the triangles of a fan over m boundary points starting at
// apex.
func fan(apex, m int) [][3]int {
	tris := make([][3]int, 0, m-2)
	for k := 1; k+1 < m; k++ {
		tris = append(tris, [3]int{apex, (apex + k) % m, (apex + k + 1) % m})
	}
	return tris
}
