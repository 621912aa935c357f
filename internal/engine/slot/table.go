package slot

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Lookup resolves texture and decal ids. Unknown ids resolve to a default
// slot instead of failing.
type Lookup interface {
	Slot(tex int) *Slot
	Decal(id int) *DecalSlot
}

// Table is a slot list indexed by texture id.
type Table struct {
	Slots  []Slot      `yaml:"slots"`
	Decals []DecalSlot `yaml:"decals"`

	fallback      Slot
	fallbackDecal DecalSlot
}

// NewTable returns a table holding the sky and default geometry slots.
func NewTable() *Table {
	t := &Table{
		Slots: []Slot{
			{Name: "sky", Shader: "sky"},
			{Name: "default", Shader: "world"},
		},
	}
	t.normalize()
	return t
}

// Add appends a slot and returns its texture id.
func (t *Table) Add(s Slot) int {
	s.normalize()
	t.Slots = append(t.Slots, s)
	return len(t.Slots) - 1
}

// AddDecal appends a decal slot and returns its id.
func (t *Table) AddDecal(d DecalSlot) int {
	d.normalize()
	t.Decals = append(t.Decals, d)
	return len(t.Decals) - 1
}

// Slot returns the slot for a texture id, or the default slot.
func (t *Table) Slot(tex int) *Slot {
	if tex < 0 || tex >= len(t.Slots) {
		return &t.fallback
	}
	return &t.Slots[tex]
}

// Decal returns the decal slot with the given id, or a default decal.
func (t *Table) Decal(id int) *DecalSlot {
	if id < 0 || id >= len(t.Decals) {
		return &t.fallbackDecal
	}
	return &t.Decals[id]
}

func (t *Table) normalize() {
	t.fallback = Slot{Name: "fallback", Shader: "world"}
	t.fallback.normalize()
	t.fallbackDecal = DecalSlot{Name: "fallback"}
	t.fallbackDecal.normalize()
	for i := range t.Slots {
		t.Slots[i].normalize()
	}
	for i := range t.Decals {
		t.Decals[i].normalize()
	}
}

// Parse reads a YAML slot table.
func Parse(data []byte) (*Table, error) {
	t := &Table{}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSlot, err)
	}
	if len(t.Slots) < 2 {
		return nil, fmt.Errorf("%w: table needs sky and default slots, got %d", ErrInvalidSlot, len(t.Slots))
	}
	t.normalize()
	return t, nil
}

// Load reads a YAML slot table from a file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}
