package octree

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// AddEntity appends an entity to the world and returns its id. Attaching it
// to cells is a separate step because the extent depends on slot data.
func (t *Tree) AddEntity(e Entity) int {
	t.Entities = append(t.Entities, e)
	return len(t.Entities) - 1
}

// AttachEntity records the entity on every leaf whose cell intersects the
// box [lo, hi].
func (t *Tree) AttachEntity(id int, lo, hi mgl32.Vec3) {
	t.attach(Frame{ID: t.Root(), Size: t.Size()}, id, lo, hi)
}

func (t *Tree) attach(f Frame, id int, lo, hi mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		if float32(f.Origin[i]) > hi[i] || float32(f.Origin[i]+f.Size) < lo[i] {
			return
		}
	}
	n := &t.Nodes[f.ID]
	if n.IsLeaf() {
		ext := n.EnsureExt()
		if !slices.Contains(ext.Ents, id) {
			ext.Ents = append(ext.Ents, id)
		}
		return
	}
	for i := 0; i < 8; i++ {
		t.attach(f.Child(t, i), id, lo, hi)
	}
}

// DetachEntity removes the entity from every node.
func (t *Tree) DetachEntity(id int) {
	for i := range t.Nodes {
		ext := t.Nodes[i].Ext
		if ext == nil {
			continue
		}
		ext.Ents = slices.DeleteFunc(ext.Ents, func(e int) bool { return e == id })
	}
}
