package octree

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/octabuild/pkg/math"
)

// Tree errors.
var (
	ErrInvalidScale = errors.New("invalid world scale")
	ErrInvalidCell  = errors.New("invalid cell")
)

// DefaultGeom is the texture assigned to freshly created geometry.
const DefaultGeom = 1

// Tree is an arena-backed octree covering the cube [0, 1<<Scale) on every axis.
type Tree struct {
	Nodes    []CubeNode
	Scale    uint
	Entities []Entity
}

// New creates a tree with a single empty root leaf.
func New(scale uint) (*Tree, error) {
	if scale < 1 || scale > MaxScale {
		return nil, fmt.Errorf("%w: %d", ErrInvalidScale, scale)
	}
	t := &Tree{Scale: scale}
	t.Nodes = append(t.Nodes, newLeaf(FillEmpty, DefaultGeom))
	return t, nil
}

func newLeaf(fill Fill, tex uint16) CubeNode {
	n := CubeNode{Children: NoNode, Fill: fill}
	for i := range n.Texture {
		n.Texture[i] = tex
	}
	if fill == FillSolid {
		n.Merge = 0x3F
	}
	return n
}

// Root returns the root node id.
func (t *Tree) Root() NodeID {
	return 0
}

// Size returns the world size in world units.
func (t *Tree) Size() int32 {
	return 1 << t.Scale
}

// Node returns the node with the given id.
func (t *Tree) Node(id NodeID) *CubeNode {
	return &t.Nodes[id]
}

// Child returns the i-th child of an internal node.
func (t *Tree) Child(id NodeID, i int) NodeID {
	return t.Nodes[id].Children + NodeID(i)
}

// ChildOrigin returns the origin of the i-th child of a cell.
func ChildOrigin(origin math.IVec3, size int32, i int) math.IVec3 {
	half := size >> 1
	return math.IVec3{
		origin[0] + int32(i&1)*half,
		origin[1] + int32((i>>1)&1)*half,
		origin[2] + int32((i>>2)&1)*half,
	}
}

// ChildIndex returns the z-order child index of a cell of the given size
// that contains pos.
func ChildIndex(pos math.IVec3, childSize int32) int {
	i := 0
	if pos[0]&childSize != 0 {
		i |= 1
	}
	if pos[1]&childSize != 0 {
		i |= 2
	}
	if pos[2]&childSize != 0 {
		i |= 4
	}
	return i
}

// Subdivide splits a leaf into eight children that inherit its contents.
// Subdividing an internal node is a no-op.
func (t *Tree) Subdivide(id NodeID) {
	if !t.Nodes[id].IsLeaf() {
		return
	}
	parent := t.Nodes[id]
	first := NodeID(len(t.Nodes))
	for i := 0; i < 8; i++ {
		child := CubeNode{
			Children: NoNode,
			Fill:     parent.Fill,
			Texture:  parent.Texture,
			Material: parent.Material,
			Merge:    parent.Merge,
		}
		if parent.Ext != nil {
			ext := child.EnsureExt()
			ext.Layers = parent.Ext.Layers
			ext.Ents = slices.Clone(parent.Ext.Ents)
		}
		t.Nodes = append(t.Nodes, child)
	}
	n := &t.Nodes[id]
	n.Children = first
	n.Fill = FillEmpty
	if n.Ext != nil {
		n.Ext.Faces = [6][]math.IVec3{}
		n.Ext.Normals = [6][]mgl32.Vec3{}
	}
}

// Cell returns the node covering the aligned cell of the given size at pos,
// subdividing leaves on the way down as needed.
func (t *Tree) Cell(pos math.IVec3, size int32) (NodeID, error) {
	if err := t.checkCell(pos, size); err != nil {
		return NoNode, err
	}
	id := t.Root()
	for csize := t.Size(); csize > size; csize >>= 1 {
		t.Subdivide(id)
		id = t.Child(id, ChildIndex(pos, csize>>1))
	}
	return id, nil
}

// Lookup returns the deepest existing node containing pos whose size is at
// least size, together with its frame.
func (t *Tree) Lookup(pos math.IVec3, size int32) Frame {
	f := Frame{ID: t.Root(), Size: t.Size()}
	return t.descend(f, pos, size)
}

func (t *Tree) descend(f Frame, pos math.IVec3, size int32) Frame {
	for f.Size > size && !t.Nodes[f.ID].IsLeaf() {
		half := f.Size >> 1
		i := ChildIndex(pos, half)
		f = Frame{ID: t.Child(f.ID, i), Origin: ChildOrigin(f.Origin, f.Size, i), Size: half}
	}
	return f
}

func (t *Tree) checkCell(pos math.IVec3, size int32) error {
	if size <= 0 || size > t.Size() || size&(size-1) != 0 {
		return fmt.Errorf("%w: size %d", ErrInvalidCell, size)
	}
	for i := 0; i < 3; i++ {
		if pos[i] < 0 || pos[i] >= t.Size() || pos[i]%size != 0 {
			return fmt.Errorf("%w: %v size %d", ErrInvalidCell, pos, size)
		}
	}
	return nil
}

// SetSolid makes the cell a solid leaf with every face using tex.
func (t *Tree) SetSolid(pos math.IVec3, size int32, tex uint16) error {
	return t.setLeaf(pos, size, newLeaf(FillSolid, tex))
}

// SetEmpty makes the cell an empty leaf.
func (t *Tree) SetEmpty(pos math.IVec3, size int32) error {
	return t.setLeaf(pos, size, newLeaf(FillEmpty, DefaultGeom))
}

func (t *Tree) setLeaf(pos math.IVec3, size int32, leaf CubeNode) error {
	id, err := t.Cell(pos, size)
	if err != nil {
		return err
	}
	n := &t.Nodes[id]
	// Orphaned children stay in the arena until the tree is rebuilt.
	leaf.Material = n.Material
	if n.Ext != nil {
		leaf.Ext = &Ext{TJoints: -1, Ents: n.Ext.Ents, VA: n.Ext.VA}
	}
	*n = leaf
	return nil
}

// Modify applies fn to the leaf covering the cell, creating it if needed.
// Internal nodes are modified in place without touching their children.
func (t *Tree) Modify(pos math.IVec3, size int32, fn func(*CubeNode)) error {
	id, err := t.Cell(pos, size)
	if err != nil {
		return err
	}
	fn(&t.Nodes[id])
	return nil
}

// SetMaterial sets the material of the cell and every leaf below it.
func (t *Tree) SetMaterial(pos math.IVec3, size int32, mat Material) error {
	id, err := t.Cell(pos, size)
	if err != nil {
		return err
	}
	t.walk(id, func(n *CubeNode) { n.Material = mat })
	return nil
}

// SetFaceTexture sets the texture of one face on every leaf in the cell.
func (t *Tree) SetFaceTexture(pos math.IVec3, size int32, orient int, tex uint16) error {
	id, err := t.Cell(pos, size)
	if err != nil {
		return err
	}
	t.walk(id, func(n *CubeNode) { n.Texture[orient] = tex })
	return nil
}

// FillBox makes every aligned cell of the given size inside [lo, hi) solid.
func (t *Tree) FillBox(lo, hi math.IVec3, size int32, tex uint16) error {
	for z := lo[2]; z < hi[2]; z += size {
		for y := lo[1]; y < hi[1]; y += size {
			for x := lo[0]; x < hi[0]; x += size {
				if err := t.SetSolid(math.IVec3{x, y, z}, size, tex); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (t *Tree) walk(id NodeID, fn func(*CubeNode)) {
	fn(&t.Nodes[id])
	if t.Nodes[id].IsLeaf() {
		return
	}
	for i := 0; i < 8; i++ {
		t.walk(t.Child(id, i), fn)
	}
}

// Walk visits every node reachable from the root in pre-order.
func (t *Tree) Walk(fn func(id NodeID, f Frame)) {
	t.walkFrames(Frame{ID: t.Root(), Size: t.Size()}, fn)
}

func (t *Tree) walkFrames(f Frame, fn func(NodeID, Frame)) {
	fn(f.ID, f)
	n := &t.Nodes[f.ID]
	if n.IsLeaf() {
		return
	}
	for i := 0; i < 8; i++ {
		t.walkFrames(f.Child(t, i), fn)
	}
}
