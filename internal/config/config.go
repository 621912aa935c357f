// Package config handles compiler configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid reports a configuration value the compiler cannot use.
var ErrInvalid = errors.New("invalid config")

// Config holds all compiler settings.
type Config struct {
	World   WorldConfig   `yaml:"world"`
	Build   BuildConfig   `yaml:"build"`
	Batch   BatchConfig   `yaml:"batch"`
	GPU     GPUConfig     `yaml:"gpu"`
	Logging LoggingConfig `yaml:"logging"`

	// Source is the file the settings were read from, empty for defaults.
	Source string `yaml:"-"`
}

// WorldConfig selects the world to compile.
type WorldConfig struct {
	Scene string `yaml:"scene"` // built-in demo scene: flat, steps or box
	Scale uint   `yaml:"scale"` // world size is 1<<Scale
	Slots string `yaml:"slots"` // slot table file, empty for defaults
}

// BuildConfig holds vertex array cut and merge settings.
type BuildConfig struct {
	FaceMin       int   `yaml:"va_face_min"`  // cut at this many faces once the cell is VACubeSize or larger
	FaceMax       int   `yaml:"va_face_max"`  // cut above this many faces
	CubeSize      int32 `yaml:"va_cube_size"` //
	MaxSize       int32 `yaml:"va_max_size"`  // cells this size always cut
	MaxMergeLevel int   `yaml:"max_merge_level"`
	Merge         bool  `yaml:"merge"`
	TJoints       bool  `yaml:"tjoints"`
	Decals        bool  `yaml:"decals"`
	MatSurfs      bool  `yaml:"material_surfaces"`
}

// BatchConfig caps the staging buffers, in elements.
type BatchConfig struct {
	MaxVerts        int `yaml:"max_vbo_verts"`
	MaxIndices      int `yaml:"max_indices"`
	MaxSkyIndices   int `yaml:"max_sky_indices"`
	MaxDecalIndices int `yaml:"max_decal_indices"`
}

// GPUConfig selects where buffer objects are created.
type GPUConfig struct {
	Backend string `yaml:"backend"` // memory or gl
	Width   int    `yaml:"width"`   // hidden window size for the gl backend
	Height  int    `yaml:"height"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	Format  string `yaml:"format"` // console or json
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		World: WorldConfig{
			Scene: "steps",
			Scale: 10,
		},
		Build: BuildConfig{
			FaceMin:       256,
			FaceMax:       384,
			CubeSize:      128,
			MaxSize:       4096,
			MaxMergeLevel: 6,
			Merge:         true,
			TJoints:       true,
			Decals:        true,
			MatSurfs:      true,
		},
		Batch: BatchConfig{
			MaxVerts:        1 << 14,
			MaxIndices:      0xFFFF,
			MaxSkyIndices:   0xFFFF,
			MaxDecalIndices: 0xFFFF,
		},
		GPU: GPUConfig{
			Backend: "memory",
			Width:   64,
			Height:  64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the settings and clamps buffer ceilings to what 16-bit
// indices can address.
func (c *Config) Validate() error {
	b := &c.Build
	if b.FaceMin <= 0 || b.FaceMax < b.FaceMin {
		return fmt.Errorf("%w: face bounds %d..%d", ErrInvalid, b.FaceMin, b.FaceMax)
	}
	for name, s := range map[string]int32{"va_cube_size": b.CubeSize, "va_max_size": b.MaxSize} {
		if s <= 0 || s&(s-1) != 0 {
			return fmt.Errorf("%w: %s %d is not a power of two", ErrInvalid, name, s)
		}
	}
	if b.MaxMergeLevel < 0 || b.MaxMergeLevel > 16 {
		return fmt.Errorf("%w: max_merge_level %d", ErrInvalid, b.MaxMergeLevel)
	}
	if c.World.Scale < 1 || c.World.Scale > 16 {
		return fmt.Errorf("%w: world scale %d", ErrInvalid, c.World.Scale)
	}
	for _, v := range []*int{&c.Batch.MaxVerts, &c.Batch.MaxIndices, &c.Batch.MaxSkyIndices, &c.Batch.MaxDecalIndices} {
		if *v <= 0 || *v > 0xFFFF {
			*v = 0xFFFF
		}
	}
	switch strings.ToLower(c.GPU.Backend) {
	case "memory", "gl":
		c.GPU.Backend = strings.ToLower(c.GPU.Backend)
	default:
		return fmt.Errorf("%w: gpu backend %q", ErrInvalid, c.GPU.Backend)
	}
	return nil
}
