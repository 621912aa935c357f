package main

import (
	"errors"
	"testing"

	"github.com/Faultbox/octabuild/internal/config"
	"github.com/Faultbox/octabuild/internal/engine/compiler"
	"github.com/Faultbox/octabuild/internal/engine/octree"
	"github.com/Faultbox/octabuild/internal/engine/va"
)

func compileScene(t *testing.T, name string, scale uint) (*octree.Tree, *compiler.Compiler) {
	t.Helper()
	tree, err := buildScene(name, scale)
	if err != nil {
		t.Fatalf("buildScene(%q) error: %v", name, err)
	}
	c, err := compiler.New(tree, demoSlots(), va.NewMemoryDevice(), options(config.Default()))
	if err != nil {
		t.Fatalf("compiler.New() error: %v", err)
	}
	if err := c.Build(); err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return tree, c
}

func TestScenes(t *testing.T) {
	tests := []struct {
		name     string
		scale    uint
		entities int
		sky      bool
		decals   bool
	}{
		{"flat", 4, 0, false, false},
		{"flat", 10, 0, false, false},
		{"steps", 8, 2, true, true},
		{"steps", 10, 2, true, true},
		{"box", 8, 0, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, c := compileScene(t, tt.name, tt.scale)
			if len(tree.Entities) != tt.entities {
				t.Errorf("entities = %d, want %d", len(tree.Entities), tt.entities)
			}
			s := c.Stats()
			if s.VAs == 0 || s.Tris == 0 {
				t.Fatalf("stats = %+v, want geometry", s)
			}
			if got := s.SkyTris > 0; got != tt.sky {
				t.Errorf("sky tris = %d, want sky %v", s.SkyTris, tt.sky)
			}
			if got := s.DecalTris > 0; got != tt.decals {
				t.Errorf("decal tris = %d, want decals %v", s.DecalTris, tt.decals)
			}
			if s.Dropped != 0 {
				t.Errorf("dropped = %d, want 0", s.Dropped)
			}
		})
	}
}

func TestBuildSceneErrors(t *testing.T) {
	if _, err := buildScene("cave", 8); err == nil {
		t.Error("unknown scene: expected error")
	}
	if _, err := buildScene("flat", 3); err == nil {
		t.Error("tiny world: expected error")
	}
	if _, err := buildScene("flat", octree.MaxScale+1); !errors.Is(err, octree.ErrInvalidScale) {
		t.Errorf("oversized world: error = %v, want ErrInvalidScale", err)
	}
}

func TestDemoSlots(t *testing.T) {
	slots := demoSlots()
	if got := slots.Slot(texStone).Name; got != "stone" {
		t.Errorf("stone slot = %q", got)
	}
	if !slots.Slot(texGlass).AlphaBack {
		t.Error("glass slot should use the alpha-back pass")
	}
	if !slots.Slot(texConveyor).Scrolls() {
		t.Error("conveyor slot should scroll")
	}
	if got := slots.Decal(0).Name; got != "scorch" {
		t.Errorf("decal 0 = %q, want scorch", got)
	}
}

func TestOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Build.Merge = false
	cfg.Build.FaceMax = 500
	cfg.Batch.MaxVerts = 1000

	opts := options(cfg)
	if opts.Merge {
		t.Error("Merge should be off")
	}
	if opts.FaceMax != 500 {
		t.Errorf("FaceMax = %d, want 500", opts.FaceMax)
	}
	if opts.Limits.MaxVerts != 1000 {
		t.Errorf("MaxVerts = %d, want 1000", opts.Limits.MaxVerts)
	}
	if opts.Limits.MaxIndices != cfg.Batch.MaxIndices {
		t.Errorf("MaxIndices = %d, want %d", opts.Limits.MaxIndices, cfg.Batch.MaxIndices)
	}
}

func TestEditUpdate(t *testing.T) {
	tree, c := compileScene(t, "steps", 8)
	before := c.Stats()

	pos, size := editCell(tree)
	for i := 0; i < 3; i++ {
		if pos[i]%size != 0 {
			t.Fatalf("edit cell %v not aligned to %d", pos, size)
		}
	}
	if err := tree.SetEmpty(pos, size); err != nil {
		t.Fatalf("SetEmpty() error: %v", err)
	}
	c.Invalidate(pos, size)
	if err := c.Update(); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	after := c.Stats()
	if after.Created == 0 {
		t.Error("update created no vertex arrays")
	}
	if after.Created >= before.Created {
		t.Errorf("update created %d arrays, full build created %d", after.Created, before.Created)
	}
	if after.VAs == 0 {
		t.Error("no vertex arrays after update")
	}
}
