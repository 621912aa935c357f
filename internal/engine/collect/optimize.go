package collect

import (
	"cmp"
	"slices"

	"github.com/Faultbox/octabuild/internal/engine/octree"
	"github.com/Faultbox/octabuild/internal/engine/va"
)

type matFace struct {
	mat    octree.Material
	orient int
	plane  int32
	u, v   int32
	size   int32
}

// AddMaterialFace records a visible material face of the leaf at f.
func (c *Collector) AddMaterialFace(f octree.Frame, orient int, mat octree.Material) {
	d := octree.Dimension(orient)
	u, v := octree.PlaneAxes(orient)
	plane := f.Origin[d]
	if octree.DimCoord(orient) == 1 {
		plane += f.Size
	}
	c.matFaces = append(c.matFaces, matFace{
		mat: mat, orient: orient, plane: plane,
		u: f.Origin[u], v: f.Origin[v], size: f.Size,
	})
}

// Optimize generates decals, sorts the buckets into draw order and merges
// material faces into maximal rectangles. It runs once per vertex array.
func (c *Collector) Optimize(t *octree.Tree) {
	if c.optimized {
		return
	}
	c.optimized = true
	if c.opts.Decals && t != nil {
		c.GenDecals(t)
	}
	slices.SortStableFunc(c.order, c.compareBuckets)
	slices.SortStableFunc(c.dorder, func(a, b *decalBucket) int {
		if a.key.tex != b.key.tex {
			return cmp.Compare(a.key.tex, b.key.tex)
		}
		return cmp.Compare(a.key.reuse, b.key.reuse)
	})
	if c.opts.MatSurfs {
		c.matSurfs = compactMaterials(c.matFaces)
		for _, m := range c.matSurfs {
			c.extendMaterial(m)
		}
	}
}

// compareBuckets orders buckets by alpha class and layer, then keeps
// buckets of one texture together and groups textures by shader.
func (c *Collector) compareBuckets(a, b *bucket) int {
	if a.key.Alpha != b.key.Alpha {
		return cmp.Compare(a.key.Alpha, b.key.Alpha)
	}
	if a.key.Layer != b.key.Layer {
		return cmp.Compare(a.key.Layer, b.key.Layer)
	}
	if a.key.Tex == b.key.Tex {
		return cmp.Compare(a.key.Orient, b.key.Orient)
	}
	sa, sb := c.slots.Slot(a.key.Tex), c.slots.Slot(b.key.Tex)
	if sa.Shader != sb.Shader {
		return cmp.Compare(sa.Shader, sb.Shader)
	}
	if len(sa.Params) != len(sb.Params) {
		return cmp.Compare(len(sa.Params), len(sb.Params))
	}
	return cmp.Compare(a.key.Tex, b.key.Tex)
}

type matGroup struct {
	mat    octree.Material
	orient int
	plane  int32
}

type rect struct {
	u, v, us, vs int32
}

// compactMaterials merges material faces of equal material, orientation and
// plane: aligned 2x2 blocks of equal squares first, bottom up, then runs of
// rectangles along rows and columns.
func compactMaterials(faces []matFace) []va.MaterialSurface {
	groups := make(map[matGroup][]rect)
	var keys []matGroup
	for _, f := range faces {
		g := matGroup{f.mat, f.orient, f.plane}
		if _, ok := groups[g]; !ok {
			keys = append(keys, g)
		}
		groups[g] = append(groups[g], rect{f.u, f.v, f.size, f.size})
	}
	slices.SortFunc(keys, func(a, b matGroup) int {
		if a.mat != b.mat {
			return cmp.Compare(a.mat, b.mat)
		}
		if a.orient != b.orient {
			return cmp.Compare(a.orient, b.orient)
		}
		return cmp.Compare(a.plane, b.plane)
	})
	var out []va.MaterialSurface
	for _, g := range keys {
		rs := mergeQuads(groups[g])
		rs = mergeRuns(rs, false)
		rs = mergeRuns(rs, true)
		d := octree.Dimension(g.orient)
		u, v := octree.PlaneAxes(g.orient)
		for _, r := range rs {
			var origin [3]int32
			origin[d], origin[u], origin[v] = g.plane, r.u, r.v
			out = append(out, va.MaterialSurface{
				Material: uint16(g.mat), Orient: g.orient, Origin: origin,
				USize: r.us, VSize: r.vs,
			})
		}
	}
	return out
}

// mergeQuads replaces every aligned 2x2 block of equal squares with one
// square, repeating on the merged squares.
func mergeQuads(rs []rect) []rect {
	for s := minSize(rs); s > 0; s <<= 1 {
		at := make(map[[2]int32]int)
		larger := false
		for i, r := range rs {
			if r.us == s && r.vs == s {
				at[[2]int32{r.u, r.v}] = i
			}
			if r.us > s {
				larger = true
			}
		}
		if len(at) < 4 {
			if !larger {
				break
			}
			continue
		}
		drop := make(map[int]bool)
		var grown []rect
		for _, r := range sortedRects(rs) {
			if r.us != s || r.vs != s || r.u%(2*s) != 0 || r.v%(2*s) != 0 {
				continue
			}
			i0 := at[[2]int32{r.u, r.v}]
			i1, ok1 := at[[2]int32{r.u + s, r.v}]
			i2, ok2 := at[[2]int32{r.u, r.v + s}]
			i3, ok3 := at[[2]int32{r.u + s, r.v + s}]
			if !ok1 || !ok2 || !ok3 {
				continue
			}
			drop[i0], drop[i1], drop[i2], drop[i3] = true, true, true, true
			grown = append(grown, rect{r.u, r.v, 2 * s, 2 * s})
		}
		if len(grown) == 0 {
			if !larger {
				break
			}
			continue
		}
		next := grown
		for i, r := range rs {
			if !drop[i] {
				next = append(next, r)
			}
		}
		rs = next
	}
	return sortedRects(rs)
}

func minSize(rs []rect) int32 {
	var s int32
	for _, r := range rs {
		if r.us == r.vs && (s == 0 || r.us < s) {
			s = r.us
		}
	}
	return s
}

func sortedRects(rs []rect) []rect {
	out := slices.Clone(rs)
	slices.SortFunc(out, func(a, b rect) int {
		if a.v != b.v {
			return cmp.Compare(a.v, b.v)
		}
		return cmp.Compare(a.u, b.u)
	})
	return out
}

// mergeRuns joins rectangles that continue each other along u (rows) or,
// with columns set, along v.
func mergeRuns(rs []rect, columns bool) []rect {
	if columns {
		for i := range rs {
			rs[i].u, rs[i].v, rs[i].us, rs[i].vs = rs[i].v, rs[i].u, rs[i].vs, rs[i].us
		}
	}
	slices.SortFunc(rs, func(a, b rect) int {
		if a.v != b.v {
			return cmp.Compare(a.v, b.v)
		}
		if a.vs != b.vs {
			return cmp.Compare(a.vs, b.vs)
		}
		return cmp.Compare(a.u, b.u)
	})
	var out []rect
	for _, r := range rs {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.v == r.v && last.vs == r.vs && last.u+last.us == r.u {
				last.us += r.us
				continue
			}
		}
		out = append(out, r)
	}
	if columns {
		for i := range out {
			out[i].u, out[i].v, out[i].us, out[i].vs = out[i].v, out[i].u, out[i].vs, out[i].us
		}
		out = sortedRects(out)
	}
	return out
}

func (c *Collector) extendMaterial(m va.MaterialSurface) {
	u, v := octree.PlaneAxes(m.Orient)
	lo := m.Origin
	hi := m.Origin
	hi[u] += m.USize
	hi[v] += m.VSize
	box := va.EmptyBox()
	for i := 0; i < 3; i++ {
		box.Min[i], box.Max[i] = float32(lo[i]), float32(hi[i])
	}
	c.bounds.All.Union(box)
	switch octree.Material(m.Material) {
	case octree.MatWater:
		c.materials |= va.ClassWater
		c.bounds.Water.Union(box)
	case octree.MatGlass:
		c.materials |= va.ClassGlass
		c.bounds.Glass.Union(box)
	case octree.MatLava:
		c.materials |= va.ClassLava
	case octree.MatClip:
		c.materials |= va.ClassClip
	}
}
