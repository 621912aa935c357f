package compiler

import (
	"github.com/Faultbox/octabuild/internal/engine/collect"
	"github.com/Faultbox/octabuild/internal/engine/merge"
	"github.com/Faultbox/octabuild/internal/engine/octree"
	"github.com/Faultbox/octabuild/internal/engine/slot"
	"github.com/Faultbox/octabuild/internal/engine/tjoint"
)

// buildContext holds the staging state of one compile pass. It is created
// per pass and is not safe for concurrent use.
type buildContext struct {
	tree  *octree.Tree
	opts  *Options
	stack octree.Stack

	merger    *merge.Merger
	stitcher  *tjoint.Stitcher
	arena     *tjoint.Arena
	collector *collect.Collector

	joints int
}

func newBuildContext(t *octree.Tree, slots slot.Lookup, opts *Options) *buildContext {
	ctx := &buildContext{
		tree:     t,
		opts:     opts,
		merger:   merge.NewMerger(),
		stitcher: tjoint.NewStitcher(),
		collector: collect.New(slots, collect.Options{
			Decals:   opts.Decals,
			MatSurfs: opts.MatSurfs,
			Policy:   opts.Policy,
		}),
	}
	if opts.TJoints {
		ctx.arena = &tjoint.Arena{}
	}
	return ctx
}

func (ctx *buildContext) root() octree.Frame {
	return octree.Frame{ID: ctx.tree.Root(), Size: ctx.tree.Size()}
}

// computeVisibility stores the visible face mask of every leaf and drops
// joint lists left over from the previous pass.
func (ctx *buildContext) computeVisibility() {
	ctx.visibility(ctx.root())
}

func (ctx *buildContext) visibility(f octree.Frame) {
	n := ctx.tree.Node(f.ID)
	if n.Ext != nil {
		n.Ext.TJoints = -1
	}
	if n.IsLeaf() {
		n.Visible = 0
		if n.Fill == octree.FillSolid {
			ctx.tree.VisibleFaces(ctx.stack, f)
		}
		return
	}
	ctx.stack = ctx.stack.Push(f)
	for i := 0; i < 8; i++ {
		ctx.visibility(f.Child(ctx.tree, i))
	}
	ctx.stack = ctx.stack.Pop()
}

// mergeFaces clears the previous merge results and, when merging is
// enabled, merges the visible faces of every merge cell.
func (ctx *buildContext) mergeFaces() merge.Stats {
	merge.Clear(ctx.tree)
	if !ctx.opts.Merge {
		return merge.Stats{}
	}
	ctx.merger.Stats = merge.Stats{}
	ctx.mergeCells(ctx.root(), ctx.opts.mergeCell(ctx.tree.Size()))
	return ctx.merger.Stats
}

func (ctx *buildContext) mergeCells(f octree.Frame, cell int32) {
	if ctx.tree.Node(f.ID).IsLeaf() {
		return
	}
	if f.Size > cell {
		for i := 0; i < 8; i++ {
			ctx.mergeCells(f.Child(ctx.tree, i), cell)
		}
		return
	}
	ctx.addLeaves(f)
	ctx.merger.Resolve(ctx.tree)
}

func (ctx *buildContext) addLeaves(f octree.Frame) {
	if ctx.tree.Node(f.ID).IsLeaf() {
		ctx.merger.AddLeaf(ctx.tree, f)
		return
	}
	for i := 0; i < 8; i++ {
		ctx.addLeaves(f.Child(ctx.tree, i))
	}
}

// stitch registers the edges of every face that will be drawn, leaf faces
// and merged polygons alike, and builds the joint lists.
func (ctx *buildContext) stitch() {
	if ctx.arena == nil {
		return
	}
	ctx.stitcher.Reset()
	ctx.arena.Reset()
	ctx.tree.Walk(func(id octree.NodeID, f octree.Frame) {
		n := ctx.tree.Node(id)
		if !n.IsLeaf() || n.Fill != octree.FillSolid {
			return
		}
		for o := 0; o < octree.NumOrients; o++ {
			bit := uint8(1) << o
			switch {
			case n.Visible&bit == 0:
			case merge.IsOwner(n, o):
				ctx.stitcher.AddFace(id, o, n.Ext.Surfaces[o])
			case n.Merged&bit != 0:
			default:
				ctx.stitcher.AddFace(id, o, ctx.tree.FacePolygon(f, o))
			}
		}
	})
	ctx.joints = ctx.stitcher.Build(ctx.tree, ctx.arena)
}
