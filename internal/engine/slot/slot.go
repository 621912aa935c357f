// Package slot describes texture slots: the material parameters the
// geometry compiler needs to generate texture coordinates and sort batches.
package slot

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

// Reserved texture ids.
const (
	DefaultSky  = 0
	DefaultGeom = 1
)

// TexScale is the number of texels per world unit at slot scale 1.
const TexScale = 8.0

// ErrInvalidSlot reports a slot definition that cannot be used.
var ErrInvalidSlot = errors.New("invalid slot")

// Slot holds the texture parameters of one texture id.
type Slot struct {
	Name     string     `yaml:"name"`
	Rotation int        `yaml:"rotation"` // index into Rotations
	Scale    float32    `yaml:"scale"`
	Offset   [2]int32   `yaml:"offset"` // texels
	Scroll   [2]float32 `yaml:"scroll"`
	Width    int        `yaml:"width"`  // texture width in texels
	Height   int        `yaml:"height"` // texture height in texels
	// AlphaBack selects the alpha-back pass for translucent faces; other
	// translucent faces use the alpha-front pass.
	AlphaBack bool `yaml:"alpha_back"`
	// Refract is the refraction scale; positive values use the refraction pass.
	Refract float32 `yaml:"refract"`
	// Shader groups slots that render with the same shader.
	Shader string `yaml:"shader"`
	// Params names the shader parameters this slot overrides.
	Params []string `yaml:"params"`
	// Layer is the texture used for the bottom blend layer, 0 for none.
	Layer int `yaml:"layer"`
}

// DecalSlot holds the parameters of a decal texture.
type DecalSlot struct {
	Name    string   `yaml:"name"`
	Texture int      `yaml:"texture"`
	Height  float32  `yaml:"height"` // relative to the decal size
	Depth   float32  `yaml:"depth"`  // relative to the decal size
	Fade    float32  `yaml:"fade"`   // depth over which the decal fades, 0 for none
	Shader  string   `yaml:"shader"`
	Params  []string `yaml:"params"`
	// DefaultParams names the parameters the decal shader declares defaults
	// for and may take over from the surface below.
	DefaultParams []string `yaml:"default_params"`
}

// Scrolls reports whether the texture is animated.
func (s *Slot) Scrolls() bool {
	return s.Scroll[0] != 0 || s.Scroll[1] != 0
}

// IsRefractive reports whether translucent faces use the refraction pass.
func (s *Slot) IsRefractive() bool {
	return s.Refract > 0
}

// HasParam reports whether the slot overrides a shader parameter.
func (s *Slot) HasParam(name string) bool {
	for _, p := range s.Params {
		if p == name {
			return true
		}
	}
	return false
}

func (s *Slot) normalize() {
	if s.Scale <= 0 {
		s.Scale = 1
	}
	if s.Width <= 0 {
		s.Width = 512
	}
	if s.Height <= 0 {
		s.Height = 512
	}
	if s.Rotation < 0 || s.Rotation >= len(Rotations) {
		s.Rotation = 0
	}
}

func (d *DecalSlot) normalize() {
	if d.Height <= 0 {
		d.Height = 1
	}
	if d.Depth <= 0 {
		d.Depth = 1
	}
}

// Rotation describes one of the eight texture orientations.
type Rotation struct {
	FlipX, FlipY, SwapXY bool
}

// Rotations lists the texture rotations by slot rotation index.
var Rotations = [8]Rotation{
	{false, false, false}, // none
	{false, true, true},   // 90 degrees
	{true, true, false},   // 180 degrees
	{true, false, true},   // 270 degrees
	{true, false, false},  // flip X
	{false, true, false},  // flip Y
	{false, false, true},  // transpose
	{true, true, true},    // flipped transpose
}

// TexGen returns the planes that map a world position p to texture
// coordinates s = sgen.xyz·p + sgen.w and t = tgen.xyz·p + tgen.w for faces
// of the given orientation.
func (s *Slot) TexGen(orient int) (sgen, tgen mgl32.Vec4) {
	r := Rotations[s.Rotation]
	k := float32(TexScale) / s.Scale
	xs, ys := float32(s.Width), float32(s.Height)
	if r.FlipX {
		xs = -xs
	}
	if r.FlipY {
		ys = -ys
	}
	sk, tk := k/xs, k/ys
	offx, offy := float32(s.Offset[0]), float32(s.Offset[1])
	if r.SwapXY {
		offx, offy = offy, offx
	}
	sgen[3] = -offx / xs
	tgen[3] = -offy / ys
	if r.SwapXY {
		switch orient {
		case 0:
			sgen[2], tgen[1] = -sk, tk
		case 1:
			sgen[2], tgen[1] = -sk, -tk
		case 2:
			sgen[2], tgen[0] = -sk, -tk
		case 3:
			sgen[2], tgen[0] = -sk, tk
		case 4:
			sgen[1], tgen[0] = -sk, tk
		case 5:
			sgen[1], tgen[0] = sk, tk
		}
	} else {
		switch orient {
		case 0:
			sgen[1], tgen[2] = sk, -tk
		case 1:
			sgen[1], tgen[2] = -sk, -tk
		case 2:
			sgen[0], tgen[2] = -sk, -tk
		case 3:
			sgen[0], tgen[2] = sk, -tk
		case 4:
			sgen[0], tgen[1] = sk, -tk
		case 5:
			sgen[0], tgen[1] = sk, tk
		}
	}
	return sgen, tgen
}

// TexCoord applies texgen planes to a position.
func TexCoord(sgen, tgen mgl32.Vec4, p mgl32.Vec3) (float32, float32) {
	return sgen.Vec3().Dot(p) + sgen[3], tgen.Vec3().Dot(p) + tgen[3]
}
