package collect

import (
	"slices"

	"github.com/Faultbox/octabuild/internal/engine/octree"
	"github.com/Faultbox/octabuild/internal/engine/va"
)

// Setup finalizes the collected geometry into v and hands it to the
// allocator: element sets in draw order with local index offsets and
// vertex ranges, per-class bounds, material classes and surfaces.
func (c *Collector) Setup(v *va.VertexArray, t *octree.Tree, alloc *va.Allocator) error {
	c.Optimize(t)

	var world, decal []uint16
	v.Elements = v.Elements[:0]
	v.Texs, v.Blends, v.AlphaBack, v.AlphaFront, v.Refract = 0, 0, 0, 0, 0
	for _, b := range c.order {
		if len(b.tris) == 0 {
			continue
		}
		es := elementSet(b.tris, len(world))
		es.Texture, es.Orient, es.Layer, es.Alpha = b.key.Tex, b.key.Orient, b.key.Layer, b.key.Alpha
		v.Elements = append(v.Elements, es)
		world = append(world, b.tris...)
		switch b.key.Alpha {
		case va.AlphaBack:
			v.AlphaBack++
		case va.AlphaFront:
			v.AlphaFront++
		case va.AlphaRefract:
			v.Refract++
		default:
			if b.key.Layer == 0 {
				v.Texs++
			} else {
				v.Blends++
			}
		}
	}
	v.Decals = v.Decals[:0]
	for _, b := range c.dorder {
		if len(b.tris) == 0 {
			continue
		}
		es := elementSet(b.tris, len(decal))
		es.Texture, es.Orient, es.Reuse = b.key.tex, va.AnyOrient, b.key.reuse
		v.Decals = append(v.Decals, es)
		decal = append(decal, b.tris...)
	}

	v.Verts = c.dedup.Len()
	v.Tris = len(world) / 3
	v.SkyTris = len(c.sky) / 3
	v.DecalTris = len(decal) / 3
	v.MinVert, v.MaxVert = 0, max(v.Verts-1, 0)
	v.Bounds = c.bounds
	v.Materials = c.materials
	v.MatSurfs = c.matSurfs
	v.MapModels = slices.Clone(c.mapModels)

	return alloc.Add(v, va.Geometry{
		Vertices: c.dedup.Encode(),
		NumVerts: v.Verts,
		World:    world,
		Sky:      slices.Clone(c.sky),
		Decal:    decal,
	})
}

func elementSet(tris []uint16, offset int) va.ElementSet {
	es := va.ElementSet{Reuse: -1, Offset: offset, Length: len(tris), MinVert: int(tris[0]), MaxVert: int(tris[0])}
	for _, i := range tris[1:] {
		es.MinVert = min(es.MinVert, int(i))
		es.MaxVert = max(es.MaxVert, int(i))
	}
	return es
}
