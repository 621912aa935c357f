package octree

import "github.com/Faultbox/octabuild/pkg/math"

// Frame locates a node in world space.
type Frame struct {
	ID     NodeID
	Origin math.IVec3
	Size   int32
}

// Child returns the frame of the i-th child.
func (f Frame) Child(t *Tree, i int) Frame {
	return Frame{ID: t.Child(f.ID, i), Origin: ChildOrigin(f.Origin, f.Size, i), Size: f.Size >> 1}
}

// Contains reports whether pos lies inside the frame's cell.
func (f Frame) Contains(pos math.IVec3) bool {
	for i := 0; i < 3; i++ {
		if pos[i] < f.Origin[i] || pos[i] >= f.Origin[i]+f.Size {
			return false
		}
	}
	return true
}

// Stack is the chain of ancestor frames of the node currently being
// visited, root first. Recursions push before descending and pop after.
type Stack []Frame

// Push returns the stack with f appended.
func (s Stack) Push(f Frame) Stack {
	return append(s, f)
}

// Pop returns the stack without its last frame.
func (s Stack) Pop() Stack {
	return s[:len(s)-1]
}

// Neighbor returns the frame adjacent to cell f across face orient: the
// deepest node no smaller than f. The ancestor stack must contain the root.
// The second result is false when the face lies on the world boundary.
func (t *Tree) Neighbor(stack Stack, f Frame, orient int) (Frame, bool) {
	dim := Dimension(orient)
	pos := f.Origin
	if DimCoord(orient) == 1 {
		pos[dim] += f.Size
	} else {
		pos[dim]--
	}
	if pos[dim] < 0 || pos[dim] >= t.Size() {
		return Frame{}, false
	}
	start := Frame{ID: t.Root(), Size: t.Size()}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].Contains(pos) {
			start = stack[i]
			break
		}
	}
	return t.descend(start, pos, f.Size), true
}

// occludes reports whether the cell fully covers the face of a neighbor
// that lies against its side orient.
func (t *Tree) occludes(f Frame, orient int, viewerAlpha bool) bool {
	n := &t.Nodes[f.ID]
	if n.IsLeaf() {
		if n.Fill != FillSolid || n.HasExplicitFace(orient) {
			return false
		}
		return !n.Material.IsAlpha() || viewerAlpha
	}
	dim, coord := Dimension(orient), DimCoord(orient)
	for i := 0; i < 8; i++ {
		if (i>>dim)&1 != coord {
			continue
		}
		if !t.occludes(f.Child(t, i), orient, viewerAlpha) {
			return false
		}
	}
	return true
}

// FaceVisible reports whether face orient of the leaf at f can be seen.
// Faces on the world boundary are visible.
func (t *Tree) FaceVisible(stack Stack, f Frame, orient int) bool {
	n := &t.Nodes[f.ID]
	if !n.IsLeaf() || n.Fill != FillSolid {
		return false
	}
	if n.HasExplicitFace(orient) && len(n.Ext.Faces[orient]) < 3 {
		return false
	}
	nb, ok := t.Neighbor(stack, f, orient)
	if !ok {
		return true
	}
	return !t.occludes(nb, Opposite(orient), n.Material.IsAlpha())
}

// VisibleFaces computes the visible face mask of a leaf and stores it in
// the node.
func (t *Tree) VisibleFaces(stack Stack, f Frame) uint8 {
	var mask uint8
	for o := 0; o < NumOrients; o++ {
		if t.FaceVisible(stack, f, o) {
			mask |= 1 << o
		}
	}
	t.Nodes[f.ID].Visible = mask
	return mask
}

// covers reports whether the cell hides a material face of material mat
// lying against its side orient.
func (t *Tree) covers(f Frame, orient int, mat Material) bool {
	n := &t.Nodes[f.ID]
	if n.IsLeaf() {
		if n.Material.SurfaceMaterial() == mat {
			return true
		}
		return n.Fill == FillSolid && !n.HasExplicitFace(orient)
	}
	dim, coord := Dimension(orient), DimCoord(orient)
	for i := 0; i < 8; i++ {
		if (i>>dim)&1 != coord {
			continue
		}
		if !t.covers(f.Child(t, i), orient, mat) {
			return false
		}
	}
	return true
}

// MaterialFaceVisible reports whether the material volume of the leaf at f
// shows a surface on face orient. Boundary faces are never drawn.
func (t *Tree) MaterialFaceVisible(stack Stack, f Frame, orient int) bool {
	n := &t.Nodes[f.ID]
	mat := n.Material.SurfaceMaterial()
	if !n.IsLeaf() || mat == MatAir {
		return false
	}
	if n.Fill == FillSolid && !n.HasExplicitFace(orient) {
		return false
	}
	nb, ok := t.Neighbor(stack, f, orient)
	if !ok {
		return false
	}
	return !t.covers(nb, Opposite(orient), mat)
}
