package collect

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/octabuild/internal/engine/octree"
	"github.com/Faultbox/octabuild/internal/engine/slot"
	"github.com/Faultbox/octabuild/internal/engine/va"
	"github.com/Faultbox/octabuild/internal/engine/vertex"
)

// DecalPolicy decides where decals may be projected and when a decal
// borrows shader parameters from the surface below it.
type DecalPolicy interface {
	// SampleBucket reports whether decals may land on a bucket's triangles.
	SampleBucket(key BucketKey) bool
	// Reuse returns the surface texture whose shader parameters the decal
	// reuses, or -1.
	Reuse(decal *slot.DecalSlot, surfaceTex int, surface *slot.Slot) int
}

// DefaultPolicy projects decals onto opaque top-layer geometry. A decal
// reuses the surface parameters when the surface overrides a parameter the
// decal shader only has a default for.
type DefaultPolicy struct{}

// SampleBucket implements DecalPolicy.
func (DefaultPolicy) SampleBucket(key BucketKey) bool {
	return key.Alpha == va.AlphaNone && key.Layer == 0
}

// Reuse implements DecalPolicy.
func (DefaultPolicy) Reuse(decal *slot.DecalSlot, surfaceTex int, surface *slot.Slot) int {
	for _, p := range decal.DefaultParams {
		if surface.HasParam(p) && !slices.Contains(decal.Params, p) {
			return surfaceTex
		}
	}
	return -1
}

// decalVolume is the oriented box a decal projects through.
type decalVolume struct {
	center  mgl32.Vec3
	a, b, c mgl32.Vec3 // across, projection direction, up
	ra, rc  float32    // half extents along a and c
	depth   float32    // extent along b
	fade    float32
	lo, hi  mgl32.Vec3 // world bounding box
}

func newDecalVolume(e *octree.Entity, s *slot.DecalSlot) decalVolume {
	orient := mgl32.Rotate3DZ(mgl32.DegToRad(e.Yaw)).
		Mul3(mgl32.Rotate3DX(mgl32.DegToRad(e.Pitch))).
		Mul3(mgl32.Rotate3DY(mgl32.DegToRad(-e.Roll)))
	size := max(e.Size, 1)
	v := decalVolume{
		a:     orient.Col(0),
		b:     orient.Col(1),
		c:     orient.Col(2),
		ra:    size / 2,
		rc:    size * s.Height / 2,
		depth: size * s.Depth,
		fade:  s.Fade,
	}
	v.center = e.Pos.Add(v.b.Mul(v.depth / 2))
	box := va.EmptyBox()
	for _, sa := range []float32{-1, 1} {
		for _, sb := range []float32{-1, 1} {
			for _, sc := range []float32{-1, 1} {
				box.Extend(v.center.
					Add(v.a.Mul(sa * v.ra)).
					Add(v.b.Mul(sb * v.depth / 2)).
					Add(v.c.Mul(sc * v.rc)))
			}
		}
	}
	v.lo, v.hi = box.Min, box.Max
	return v
}

func (v *decalVolume) overlaps(p [3]mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		lo := min(p[0][i], p[1][i], p[2][i])
		hi := max(p[0][i], p[1][i], p[2][i])
		if hi < v.lo[i] || lo > v.hi[i] {
			return false
		}
	}
	return true
}

// dvert is a vertex during decal clipping; rel is relative to the volume
// center.
type dvert struct {
	rel  mgl32.Vec3
	norm mgl32.Vec3
}

func lerpDvert(p, q dvert, t float32) dvert {
	return dvert{
		rel:  p.rel.Add(q.rel.Sub(p.rel).Mul(t)),
		norm: p.norm.Add(q.norm.Sub(p.norm).Mul(t)),
	}
}

// clipHalf keeps the part of a convex polygon where rel·axis <= h.
func clipHalf(in []dvert, axis mgl32.Vec3, h float32) []dvert {
	out := make([]dvert, 0, len(in)+1)
	for i := range in {
		p, q := in[i], in[(i+1)%len(in)]
		dp, dq := p.rel.Dot(axis)-h, q.rel.Dot(axis)-h
		if dp <= 0 {
			out = append(out, p)
		}
		if (dp < 0 && dq > 0) || (dp > 0 && dq < 0) {
			out = append(out, lerpDvert(p, q, dp/(dp-dq)))
		}
	}
	return out
}

// clipSlab keeps the part of a convex polygon where |rel·axis| <= h.
func clipSlab(in []dvert, axis mgl32.Vec3, h float32) []dvert {
	out := clipHalf(in, axis, h)
	if len(out) < 3 {
		return nil
	}
	out = clipHalf(out, axis.Mul(-1), h)
	if len(out) < 3 {
		return nil
	}
	return out
}

// clip cuts a triangle to the decal volume along the projection direction
// first, then across and up.
func (v *decalVolume) clip(tri []dvert) []dvert {
	poly := clipSlab(tri, v.b, v.depth/2)
	if poly == nil {
		return nil
	}
	if poly = clipSlab(poly, v.a, v.ra); poly == nil {
		return nil
	}
	return clipSlab(poly, v.c, v.rc)
}

// makeVertex builds the decal vertex for a clipped point.
func (v *decalVolume) makeVertex(d dvert) vertex.Vertex {
	n := d.norm
	if n.Len() > 0 {
		n = n.Normalize()
	}
	u := 0.5 + d.rel.Dot(v.a)/(2*v.ra)
	t := 0.5 + d.rel.Dot(v.c)/(2*v.rc)
	fade := float32(1)
	if v.fade > 0 {
		w := (d.rel.Dot(v.b) + v.depth/2) / v.depth
		fade = mgl32.Clamp((1-w)/v.fade, 0, 1)
	}
	facing := mgl32.Clamp(-n.Dot(v.b), 0, 1)
	tan, hand := tangentFrame(n, v.a, v.c)
	return vertex.Vertex{
		Pos:     v.center.Add(d.rel),
		TC:      mgl32.Vec3{u, t, fade},
		Norm:    vertex.PackNormal(n, uint8(facing*255+0.5)),
		Tangent: vertex.PackNormal(tan, hand),
	}
}

// GenDecals projects every collected decal entity onto the sampled world
// buckets and files the clipped triangles into decal buckets.
func (c *Collector) GenDecals(t *octree.Tree) {
	ids := slices.Clone(c.ents)
	slices.Sort(ids)
	for _, id := range ids {
		e := &t.Entities[id]
		if e.Type != octree.EntDecal {
			continue
		}
		c.genDecal(e)
	}
}

func (c *Collector) genDecal(e *octree.Entity) {
	ds := c.slots.Decal(e.Slot)
	vol := newDecalVolume(e, ds)
	for _, b := range c.order {
		if !c.policy.SampleBucket(b.key) {
			continue
		}
		key := decalKey{tex: ds.Texture, reuse: c.policy.Reuse(ds, b.key.Tex, c.slots.Slot(b.key.Tex))}
		n := len(b.tris)
		for i := 0; i+2 < n; i += 3 {
			var pos [3]mgl32.Vec3
			tri := make([]dvert, 3)
			facing := false
			for k := 0; k < 3; k++ {
				vx := c.dedup.Vertex(int(b.tris[i+k]))
				pos[k] = vx.Pos
				tri[k] = dvert{rel: vx.Pos.Sub(vol.center), norm: vertex.UnpackNormal(vx.Norm)}
				if tri[k].norm.Dot(vol.b) < -0.01 {
					facing = true
				}
			}
			if !facing || !vol.overlaps(pos) {
				continue
			}
			poly := vol.clip(tri)
			if len(poly) < 3 {
				continue
			}
			c.emitDecal(key, &vol, poly)
		}
	}
}

func (c *Collector) emitDecal(key decalKey, vol *decalVolume, poly []dvert) {
	db, ok := c.decals[key]
	if !ok {
		db = &decalBucket{key: key}
		c.decals[key] = db
		c.dorder = append(c.dorder, db)
	}
	idx := newIndex(len(poly))
	mk := func(p int) vertex.Vertex { return vol.makeVertex(poly[p]) }
	for _, tri := range fan(0, len(poly)) {
		vi, ok := c.intern(tri, idx, mk)
		if !ok {
			c.Dropped++
			continue
		}
		db.tris = append(db.tris, vi[:]...)
		c.materials |= va.ClassDecal
		for _, p := range tri {
			pos := vol.center.Add(poly[p].rel)
			c.bounds.Decal.Extend(pos)
			c.bounds.All.Extend(pos)
		}
	}
}
