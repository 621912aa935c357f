package octree

// Material packs a volume material, a clip mode and flags into one value.
type Material uint16

// Volume materials occupy the low three bits.
const (
	MatAir   Material = 0
	MatWater Material = 1
	MatLava  Material = 2
	MatGlass Material = 3

	MatVolumeMask Material = 0x7
)

// Clip modes.
const (
	MatNoClip   Material = 1 << 3
	MatClip     Material = 2 << 3
	MatGameClip Material = 3 << 3

	MatClipMask Material = 3 << 3
)

// Flags.
const (
	MatDeath Material = 1 << 5
	MatAlpha Material = 4 << 5
)

// Volume returns the volume material.
func (m Material) Volume() Material {
	return m & MatVolumeMask
}

// Clip returns the clip mode.
func (m Material) Clip() Material {
	return m & MatClipMask
}

// IsAlpha reports whether geometry in the cell is rendered translucent.
func (m Material) IsAlpha() bool {
	return m&MatAlpha != 0
}

// SurfaceMaterial returns the material that produces visible surfaces:
// the volume material, or the clip mode for clip-only cells.
func (m Material) SurfaceMaterial() Material {
	if v := m.Volume(); v != MatAir {
		return v
	}
	if m.Clip() == MatClip {
		return MatClip
	}
	return MatAir
}
