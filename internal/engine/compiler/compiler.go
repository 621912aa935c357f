package compiler

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/octabuild/internal/engine/merge"
	"github.com/Faultbox/octabuild/internal/engine/octree"
	"github.com/Faultbox/octabuild/internal/engine/slot"
	"github.com/Faultbox/octabuild/internal/engine/va"
	"github.com/Faultbox/octabuild/internal/logger"
	"github.com/Faultbox/octabuild/pkg/math"
)

// Compiler errors.
var (
	ErrNoTree  = errors.New("no octree")
	ErrOptions = errors.New("invalid compiler options")
)

// Stats summarizes the last compile pass.
type Stats struct {
	VAs       int // vertex arrays alive after the pass
	Created   int // vertex arrays generated by the pass
	Verts     int
	Tris      int
	SkyTris   int
	DecalTris int
	Joints    int
	Merge     merge.Stats
	Dropped   int
	Flushes   int
	Elapsed   time.Duration
}

// Compiler owns the vertex arrays of one octree. Passes run synchronously
// and must not overlap; the caller serializes edits and rebuilds.
type Compiler struct {
	tree  *octree.Tree
	slots slot.Lookup
	opts  Options
	alloc *va.Allocator

	roots []*va.VertexArray
	stats Stats
}

// New creates a compiler for t that uploads buffers through dev.
func New(t *octree.Tree, slots slot.Lookup, dev va.Device, opts Options) (*Compiler, error) {
	if t == nil {
		return nil, ErrNoTree
	}
	if opts.FaceMin <= 0 || opts.FaceMax < opts.FaceMin {
		return nil, fmt.Errorf("%w: face bounds %d..%d", ErrOptions, opts.FaceMin, opts.FaceMax)
	}
	if opts.MaxSize <= 0 || opts.CubeSize <= 0 {
		return nil, fmt.Errorf("%w: cell sizes %d/%d", ErrOptions, opts.CubeSize, opts.MaxSize)
	}
	if slots == nil {
		slots = slot.NewTable()
	}
	return &Compiler{
		tree:  t,
		slots: slots,
		opts:  opts,
		alloc: va.NewAllocator(dev, opts.Limits),
	}, nil
}

// Roots returns the top-level vertex arrays in z-order.
func (c *Compiler) Roots() []*va.VertexArray {
	return c.roots
}

// Stats returns the statistics of the last pass.
func (c *Compiler) Stats() Stats {
	return c.stats
}

// Build discards every vertex array and compiles the whole tree.
func (c *Compiler) Build() error {
	c.Destroy()
	return c.run("build")
}

// Update compiles the cells whose vertex arrays were invalidated, keeping
// the rest.
func (c *Compiler) Update() error {
	return c.run("update")
}

// Invalidate destroys the vertex arrays of every forced-size cell touching
// the region, grown by one unit so neighbors whose visibility may change
// are rebuilt too.
func (c *Compiler) Invalidate(pos math.IVec3, size int32) {
	forced := c.opts.forcedSize(c.tree.Size())
	lo := pos.Sub(math.IVec3{1, 1, 1})
	hi := pos.Add(math.IVec3{size + 1, size + 1, size + 1})
	c.invalidate(octree.Frame{ID: c.tree.Root(), Size: c.tree.Size()}, lo, hi, forced)
	c.roots = c.roots[:0]
	c.tree.Walk(func(id octree.NodeID, _ octree.Frame) {
		if ext := c.tree.Node(id).Ext; ext != nil && ext.VA != nil && ext.VA.Parent == nil {
			c.roots = append(c.roots, ext.VA)
		}
	})
}

func (c *Compiler) invalidate(f octree.Frame, lo, hi math.IVec3, forced int32) {
	for i := 0; i < 3; i++ {
		if f.Origin[i] >= hi[i] || f.Origin[i]+f.Size <= lo[i] {
			return
		}
	}
	n := c.tree.Node(f.ID)
	if f.Size <= forced || n.IsLeaf() {
		c.discard(f.ID)
		return
	}
	if n.Ext != nil && n.Ext.VA != nil {
		c.alloc.Destroy(n.Ext.VA)
		n.Ext.VA = nil
	}
	for i := 0; i < 8; i++ {
		c.invalidate(f.Child(c.tree, i), lo, hi, forced)
	}
}

// discard destroys every vertex array in the subtree at id.
func (c *Compiler) discard(id octree.NodeID) {
	n := c.tree.Node(id)
	if n.Ext != nil && n.Ext.VA != nil {
		c.alloc.Destroy(n.Ext.VA)
		n.Ext.VA = nil
	}
	if n.IsLeaf() {
		return
	}
	for i := 0; i < 8; i++ {
		c.discard(c.tree.Child(id, i))
	}
}

// Destroy releases every vertex array and its buffers.
func (c *Compiler) Destroy() {
	c.discard(c.tree.Root())
	c.roots = nil
}

func (c *Compiler) run(pass string) error {
	start := time.Now()
	ctx := newBuildContext(c.tree, c.slots, &c.opts)

	ctx.computeVisibility()
	mstats := ctx.mergeFaces()
	ctx.stitch()

	w := &walker{
		buildContext: ctx,
		alloc:        c.alloc,
		forced:       c.opts.forcedSize(c.tree.Size()),
	}
	flushes := c.alloc.Flushes
	if err := c.generate(w); err != nil {
		c.rollback(w)
		return fmt.Errorf("%s: %w", pass, err)
	}
	c.roots = w.roots

	c.stats = Stats{
		Created: w.created,
		Joints:  ctx.joints,
		Merge:   mstats,
		Dropped: w.dropped,
		Flushes: c.alloc.Flushes - flushes,
		Elapsed: time.Since(start),
	}
	for _, r := range c.roots {
		r.Walk(func(v *va.VertexArray) {
			c.stats.VAs++
			c.stats.Verts += v.Verts
			c.stats.Tris += v.Tris
			c.stats.SkyTris += v.SkyTris
			c.stats.DecalTris += v.DecalTris
		})
	}
	logger.Info("octree compiled",
		zap.String("pass", pass),
		zap.Int("vas", c.stats.VAs),
		zap.Int("created", c.stats.Created),
		zap.Int("verts", c.stats.Verts),
		zap.Int("tris", c.stats.Tris),
		zap.Int("joints", c.stats.Joints),
		zap.Int("merged", c.stats.Merge.Merged),
		zap.Int("flushes", c.stats.Flushes),
		zap.Duration("elapsed", c.stats.Elapsed))
	return nil
}

// generate walks the tree from the root and uploads what was staged.
func (c *Compiler) generate(w *walker) error {
	root := w.root()
	if n := c.tree.Node(root.ID); n.IsLeaf() {
		if err := w.rootLeaf(root, n); err != nil {
			return err
		}
	} else if _, err := w.walk(root); err != nil {
		return err
	}
	return c.alloc.Flush()
}

// rollback undoes a failed pass: the vertex arrays it created are released
// and detached from their nodes, arrays kept from earlier passes become
// roots again and nothing staged survives.
func (c *Compiler) rollback(w *walker) {
	c.alloc.Reset()
	for _, id := range slices.Backward(w.made) {
		n := c.tree.Node(id)
		if n.Ext == nil || n.Ext.VA == nil {
			continue
		}
		v := n.Ext.VA
		for _, child := range v.Children {
			child.Parent = nil
		}
		v.Children = nil
		c.alloc.Release(v)
		n.Ext.VA = nil
	}
}

// rootLeaf handles a world that is a single leaf.
func (w *walker) rootLeaf(f octree.Frame, n *octree.CubeNode) error {
	if n.Ext != nil && n.Ext.VA != nil {
		w.roots = append(w.roots, n.Ext.VA)
		return nil
	}
	if n.IsEmpty() {
		return nil
	}
	w.leaf(f)
	v, err := w.setVA(f)
	if err != nil {
		return err
	}
	if v != nil {
		w.roots = append(w.roots, v)
	}
	return nil
}
