package main

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/octabuild/internal/engine/octree"
	"github.com/Faultbox/octabuild/internal/engine/slot"
	"github.com/Faultbox/octabuild/pkg/math"
)

// Texture ids of the demo slot table.
const (
	texStone = 1 + iota
	texBrick
	texGlass
	texMoss
	texConveyor
)

// demoSlots returns the slot table the demo scenes are textured with.
func demoSlots() *slot.Table {
	t := slot.NewTable()
	t.Slots[slot.DefaultGeom].Name = "stone"
	t.Add(slot.Slot{Name: "brick", Shader: "bump", Params: []string{"specscale"}, Scale: 2})
	t.Add(slot.Slot{Name: "glass", Shader: "glass", AlphaBack: true, Refract: 0.1})
	t.Add(slot.Slot{Name: "moss", Shader: "world", Rotation: 1, Layer: texStone})
	t.Add(slot.Slot{Name: "conveyor", Shader: "world", Scroll: [2]float32{0.5, 0}})
	t.AddDecal(slot.DecalSlot{Name: "scorch", Texture: texStone, Fade: 0.5, Shader: "decal", DefaultParams: []string{"specscale"}})
	return t
}

type sceneFunc func(t *octree.Tree) error

var scenes = map[string]sceneFunc{
	"flat":  flatScene,
	"steps": stepsScene,
	"box":   boxScene,
}

// buildScene creates a tree of the given scale filled with a demo scene.
func buildScene(name string, scale uint) (*octree.Tree, error) {
	fn, ok := scenes[name]
	if !ok {
		return nil, fmt.Errorf("unknown scene %q", name)
	}
	t, err := octree.New(scale)
	if err != nil {
		return nil, err
	}
	if t.Size() < 16 {
		return nil, fmt.Errorf("scene %q needs a world of at least 16 units", name)
	}
	if err := fn(t); err != nil {
		return nil, fmt.Errorf("scene %q: %w", name, err)
	}
	return t, nil
}

// cell returns the floor cell size of a world: 64 cells across.
func cell(t *octree.Tree) int32 {
	return max(t.Size()>>6, 1)
}

func flatScene(t *octree.Tree) error {
	c, s := cell(t), t.Size()
	return t.FillBox(math.IVec3{0, 0, 0}, math.IVec3{s, s, c}, c, texStone)
}

// stepsScene is a floor with a staircase of half-size cubes, a glass
// block, a water pool, a sky pillar and a decal.
func stepsScene(t *octree.Tree) error {
	if err := flatScene(t); err != nil {
		return err
	}
	c, s := cell(t), t.Size()
	h := max(c/2, 1)
	x0, y0 := s/4, s/4
	for i := int32(0); i < 8; i++ {
		lo := math.IVec3{x0 + i*h, y0, c}
		hi := math.IVec3{x0 + (i+1)*h, y0 + 4*c, c + (i+1)*h}
		if err := t.FillBox(lo, hi, h, texBrick); err != nil {
			return err
		}
	}

	glass := math.IVec3{s / 2, s / 2, c}
	if err := t.FillBox(glass, glass.Add(math.IVec3{2 * c, c, 2 * c}), c, texGlass); err != nil {
		return err
	}
	for z := glass[2]; z < glass[2]+2*c; z += c {
		for x := glass[0]; x < glass[0]+2*c; x += c {
			if err := t.SetMaterial(math.IVec3{x, glass[1], z}, c, octree.MatGlass|octree.MatAlpha); err != nil {
				return err
			}
		}
	}

	// The pool sits in a pit cut into the floor.
	pool := math.IVec3{s / 4, s / 2, 0}
	for y := pool[1]; y < pool[1]+3*c; y += c {
		for x := pool[0]; x < pool[0]+4*c; x += c {
			if err := t.SetEmpty(math.IVec3{x, y, 0}, c); err != nil {
				return err
			}
			if err := t.SetMaterial(math.IVec3{x, y, 0}, c, octree.MatWater); err != nil {
				return err
			}
		}
	}

	pillar := math.IVec3{3 * s / 4, 3 * s / 4, c}
	if err := t.FillBox(pillar, pillar.Add(math.IVec3{c, c, 4 * c}), c, slot.DefaultSky); err != nil {
		return err
	}
	for z := pillar[2]; z < pillar[2]+4*c; z += c {
		if err := t.Modify(math.IVec3{pillar[0], pillar[1], z}, c, func(n *octree.CubeNode) {
			n.Texture[octree.OrientFront] = texConveyor
			n.Texture[octree.OrientBack] = texMoss
			n.EnsureExt().Layers[octree.OrientBack] = octree.LayerBlend
		}); err != nil {
			return err
		}
	}

	size := float32(2 * c)
	pos := mgl32.Vec3{float32(s) / 8, float32(s) / 8, float32(c) + size/2}
	id := t.AddEntity(octree.Entity{Type: octree.EntDecal, Pos: pos, Pitch: -90, Size: size})
	ext := mgl32.Vec3{size, size, size}
	t.AttachEntity(id, pos.Sub(ext), pos.Add(ext))

	model := mgl32.Vec3{float32(s) / 2, float32(s) / 4, float32(c)}
	mid := t.AddEntity(octree.Entity{Type: octree.EntMapModel, Pos: model, Size: 1})
	t.AttachEntity(mid, model, model)
	return nil
}

// boxScene is a closed room: floor, four walls and a sky ceiling.
func boxScene(t *octree.Tree) error {
	c, s := cell(t), t.Size()
	lo, hi := s/4, 3*s/4
	top := s / 2
	boxes := []struct {
		lo, hi math.IVec3
		tex    uint16
	}{
		{math.IVec3{lo, lo, 0}, math.IVec3{hi, hi, c}, texStone},
		{math.IVec3{lo, lo, top - c}, math.IVec3{hi, hi, top}, slot.DefaultSky},
		{math.IVec3{lo, lo, c}, math.IVec3{lo + c, hi, top - c}, texBrick},
		{math.IVec3{hi - c, lo, c}, math.IVec3{hi, hi, top - c}, texBrick},
		{math.IVec3{lo + c, lo, c}, math.IVec3{hi - c, lo + c, top - c}, texBrick},
		{math.IVec3{lo + c, hi - c, c}, math.IVec3{hi - c, hi, top - c}, texBrick},
	}
	for _, b := range boxes {
		if err := t.FillBox(b.lo, b.hi, c, b.tex); err != nil {
			return err
		}
	}
	return nil
}
