package compiler

import (
	"go.uber.org/zap"

	"github.com/Faultbox/octabuild/internal/engine/merge"
	"github.com/Faultbox/octabuild/internal/engine/octree"
	"github.com/Faultbox/octabuild/internal/engine/va"
	"github.com/Faultbox/octabuild/internal/logger"
	"github.com/Faultbox/octabuild/pkg/math"
)

// stagedFace is a merged polygon waiting for the vertex array of the cell
// at its merge level.
type stagedFace struct {
	node   octree.NodeID
	orient int
}

// walker cuts the octree into vertex arrays. Merged polygons are staged by
// the level of the smallest cell containing them and handed upwards until a
// cut at that level or above emits them.
type walker struct {
	*buildContext
	alloc *va.Allocator

	forced  int32
	pending [octree.MaxScale + 1][]stagedFace

	// Merge summary of the subtree being visited.
	mergeMax  int32
	hasMerges uint8

	roots   []*va.VertexArray
	made    []octree.NodeID // nodes given a vertex array by this pass
	created int
	dropped int
}

func level(size int32) int {
	return math.Log2(size)
}

// walk visits the children of f in z-order and returns the number of faces
// not yet placed in a vertex array.
func (w *walker) walk(f octree.Frame) (int, error) {
	total := 0
	cmergeMax, chasMerges := int32(0), uint8(0)
	w.stack = w.stack.Push(f)
	defer func() { w.stack = w.stack.Pop() }()

	for i := 0; i < 8; i++ {
		cf := f.Child(w.tree, i)
		n := w.tree.Node(cf.ID)
		lvl := level(cf.Size)
		first := len(w.roots)
		w.mergeMax, w.hasMerges = 0, 0
		count := 0

		if n.Ext != nil && n.Ext.VA != nil {
			v := n.Ext.VA
			w.roots = append(w.roots, v)
			if v.HasMerges&va.MergeOrigin != 0 {
				w.restage(cf, cf.Size)
			}
		} else {
			if !n.IsLeaf() {
				c, err := w.walk(cf)
				if err != nil {
					return 0, err
				}
				count += c
			} else if !n.IsEmpty() {
				count += w.leaf(cf)
			}
			if w.shouldCut(count+len(w.pending[lvl]), cf, n) {
				v, err := w.setVA(cf)
				if err != nil {
					return 0, err
				}
				if v != nil {
					for len(w.roots) > first {
						child := w.roots[len(w.roots)-1]
						w.roots = w.roots[:len(w.roots)-1]
						child.Parent = v
						v.Children = append(v.Children, child)
					}
					w.roots = append(w.roots, v)
					if w.mergeMax > cf.Size {
						cmergeMax = max(cmergeMax, w.mergeMax)
						chasMerges |= w.hasMerges &^ va.MergeUse
					}
					continue
				}
				count = 0
			}
		}
		if lvl+1 < len(w.pending) && len(w.pending[lvl]) > 0 {
			w.pending[lvl+1] = append(w.pending[lvl+1], w.pending[lvl]...)
			w.pending[lvl] = w.pending[lvl][:0]
		}
		cmergeMax = max(cmergeMax, w.mergeMax)
		chasMerges |= w.hasMerges
		total += count
	}
	w.mergeMax, w.hasMerges = cmergeMax, chasMerges
	return total, nil
}

// shouldCut decides whether the cell gets its own vertex array. Leaves
// larger than the forced size are cut on their own.
func (w *walker) shouldCut(count int, f octree.Frame, n *octree.CubeNode) bool {
	switch {
	case f.Size == w.forced:
		return true
	case f.Size > w.forced:
		return n.IsLeaf()
	case count > w.opts.FaceMax:
		return true
	default:
		return count >= w.opts.FaceMin && f.Size >= w.opts.CubeSize
	}
}

// leaf counts the drawable faces of a leaf and stages the merged polygons
// it owns.
func (w *walker) leaf(f octree.Frame) int {
	n := w.tree.Node(f.ID)
	count := 0
	for o := 0; o < octree.NumOrients; o++ {
		bit := uint8(1) << o
		switch {
		case n.Visible&bit == 0:
		case n.Merged&bit == 0:
			count++
		case merge.IsOwner(n, o):
			w.stage(f.ID, o, n.Ext.MergeSize[o])
			n.MergeState = octree.MergeOrigin
		default:
			w.hasMerges |= va.MergePart
			if n.MergeState == octree.MergeNone {
				n.MergeState = octree.MergePartial
			}
		}
	}
	return count
}

func (w *walker) stage(id octree.NodeID, orient int, size int32) {
	w.pending[level(size)] = append(w.pending[level(size)], stagedFace{node: id, orient: orient})
	w.hasMerges |= va.MergeOrigin
	w.mergeMax = max(w.mergeMax, size)
}

// restage stages the merged polygons inside a kept vertex array that belong
// to a cell larger than the array.
func (w *walker) restage(f octree.Frame, vaSize int32) {
	n := w.tree.Node(f.ID)
	if !n.IsLeaf() {
		for i := 0; i < 8; i++ {
			w.restage(f.Child(w.tree, i), vaSize)
		}
		return
	}
	for o := 0; o < octree.NumOrients; o++ {
		if merge.IsOwner(n, o) && n.Ext.MergeSize[o] > vaSize {
			w.stage(f.ID, o, n.Ext.MergeSize[o])
		}
	}
}

// setVA collects the subtree at f, skipping cells that already own a vertex
// array, together with the merged polygons staged at its level. It returns
// nil when there is nothing to draw.
func (w *walker) setVA(f octree.Frame) (*va.VertexArray, error) {
	c := w.collector
	c.Clear()
	w.gather(f, true)

	lvl := level(f.Size)
	mergeLevel := int32(0)
	for _, sf := range w.pending[lvl] {
		c.AddMergedVerts(w.tree, sf.node, sf.orient, w.arena)
		mergeLevel = max(mergeLevel, w.tree.Node(sf.node).Ext.MergeSize[sf.orient])
	}
	if c.IsEmpty() {
		return nil, nil
	}
	staged := w.pending[lvl]
	used := len(staged) > 0
	w.pending[lvl] = nil

	v := &va.VertexArray{Origin: f.Origin, Size: f.Size, MergeLevel: int(mergeLevel)}
	if err := c.Setup(v, w.tree, w.alloc); err != nil {
		return nil, err
	}
	v.HasMerges = w.hasMerges
	if used {
		v.HasMerges |= va.MergeUse
		w.hasMerges |= va.MergeUse
	}
	n := w.tree.Node(f.ID)
	n.EnsureExt().VA = v
	w.made = append(w.made, f.ID)
	if used {
		n.MergeState = octree.MergeUsed
		for _, sf := range staged {
			w.tree.Node(sf.node).MergeState = octree.MergeUsed
		}
	}
	if c.Dropped > 0 {
		logger.Warn("vertex array dropped triangles",
			zap.Int32s("origin", f.Origin[:]),
			zap.Int32("size", f.Size),
			zap.Int("dropped", c.Dropped))
		w.dropped += c.Dropped
	}
	logger.Debug("vertex array",
		zap.Int32s("origin", f.Origin[:]),
		zap.Int32("size", f.Size),
		zap.Int("verts", v.Verts),
		zap.Int("tris", v.Tris),
		zap.Int("sets", len(v.Elements)),
		zap.Int("children", len(v.Children)))
	w.created++
	return v, nil
}

// gather adds the faces, material surfaces and entities of every leaf
// under f that is not covered by a deeper vertex array.
func (w *walker) gather(f octree.Frame, top bool) {
	n := w.tree.Node(f.ID)
	if !top && n.Ext != nil && n.Ext.VA != nil {
		return
	}
	if !n.IsLeaf() {
		w.stack = w.stack.Push(f)
		for i := 0; i < 8; i++ {
			w.gather(f.Child(w.tree, i), false)
		}
		w.stack = w.stack.Pop()
		return
	}
	c := w.collector
	if n.Ext != nil && len(n.Ext.Ents) > 0 {
		c.AddEntities(w.tree, n.Ext.Ents)
	}
	if n.Fill == octree.FillSolid {
		for o := 0; o < octree.NumOrients; o++ {
			bit := uint8(1) << o
			if n.Visible&bit == 0 || n.Merged&bit != 0 {
				continue
			}
			c.AddCubeVerts(w.tree, f, o, w.arena)
		}
	}
	if w.opts.MatSurfs {
		mat := n.Material.SurfaceMaterial()
		for o := 0; o < octree.NumOrients; o++ {
			if w.tree.MaterialFaceVisible(w.stack, f, o) {
				c.AddMaterialFace(f, o, mat)
			}
		}
	}
}
