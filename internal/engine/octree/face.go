package octree

import "github.com/Faultbox/octabuild/pkg/math"

// Face orientations. Z points up.
const (
	OrientLeft   = iota // -X
	OrientRight         // +X
	OrientBack          // -Y
	OrientFront         // +Y
	OrientBottom        // -Z
	OrientTop           // +Z
	NumOrients
)

// Dimension returns the axis a face orientation is perpendicular to.
func Dimension(orient int) int {
	return orient >> 1
}

// DimCoord returns 1 for faces on the positive side of their axis.
func DimCoord(orient int) int {
	return orient & 1
}

// Opposite returns the orientation facing the other way.
func Opposite(orient int) int {
	return orient ^ 1
}

// PlaneAxes returns the two in-plane axes of an orientation such that
// (u, v, dimension) is right-handed.
func PlaneAxes(orient int) (u, v int) {
	d := Dimension(orient)
	return (d + 1) % 3, (d + 2) % 3
}

// OrientNormal returns the outward unit normal of an orientation.
func OrientNormal(orient int) math.IVec3 {
	var n math.IVec3
	if DimCoord(orient) == 1 {
		n[Dimension(orient)] = 1
	} else {
		n[Dimension(orient)] = -1
	}
	return n
}

// FaceCorners returns the four fixed-point corners of a full cube face,
// counter-clockwise seen from outside the cube.
func FaceCorners(origin math.IVec3, size int32, orient int) [4]math.IVec3 {
	d := Dimension(orient)
	u, v := PlaneAxes(orient)
	base := origin.Shl(FixedShift)
	s := size << FixedShift
	if DimCoord(orient) == 1 {
		base[d] += s
	}
	corner := func(du, dv int32) math.IVec3 {
		p := base
		p[u] += du * s
		p[v] += dv * s
		return p
	}
	if DimCoord(orient) == 1 {
		return [4]math.IVec3{corner(0, 0), corner(1, 0), corner(1, 1), corner(0, 1)}
	}
	return [4]math.IVec3{corner(0, 0), corner(0, 1), corner(1, 1), corner(1, 0)}
}

// FacePolygon returns the fixed-point polygon of a leaf face: the explicit
// vertex list if one is set, otherwise the full cube face. The result is a
// fresh slice.
func (t *Tree) FacePolygon(f Frame, orient int) []math.IVec3 {
	n := &t.Nodes[f.ID]
	if n.HasExplicitFace(orient) {
		return append([]math.IVec3(nil), n.Ext.Faces[orient]...)
	}
	c := FaceCorners(f.Origin, f.Size, orient)
	return c[:]
}

// IsFlatAxisFace reports whether the polygon lies in the plane of its
// orientation, which is the case for every full cube face.
func IsFlatAxisFace(poly []math.IVec3, orient int) bool {
	d := Dimension(orient)
	for _, p := range poly[1:] {
		if p[d] != poly[0][d] {
			return false
		}
	}
	return true
}
