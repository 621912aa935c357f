// Package main is the octabuild command: it compiles a demo octree world
// into vertex arrays and reports what was generated.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/octabuild/internal/config"
	"github.com/Faultbox/octabuild/internal/engine/compiler"
	"github.com/Faultbox/octabuild/internal/engine/gpu"
	"github.com/Faultbox/octabuild/internal/engine/octree"
	"github.com/Faultbox/octabuild/internal/engine/slot"
	"github.com/Faultbox/octabuild/internal/engine/va"
	"github.com/Faultbox/octabuild/internal/logger"
	"github.com/Faultbox/octabuild/pkg/math"
)

var (
	flagEdit = flag.Bool("edit", false, "Carve a cell after the build and recompile it incrementally")
	flagSave = flag.Bool("save", false, "Write the effective config to the user config directory")
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Source != "" {
		logger.Info("config loaded", zap.String("path", cfg.Source))
	}
	logger.Sugar.Debugf("Config: %+v", cfg)

	if *flagSave {
		if err := cfg.Save(); err != nil {
			logger.Error("failed to save config", zap.Error(err))
			os.Exit(1)
		}
	}

	if err := run(cfg); err != nil {
		logger.Error("compile failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	slots, err := loadSlots(cfg.World.Slots)
	if err != nil {
		return err
	}
	tree, err := buildScene(cfg.World.Scene, cfg.World.Scale)
	if err != nil {
		return err
	}
	logger.Info("scene ready",
		zap.String("scene", cfg.World.Scene),
		zap.Int32("size", tree.Size()),
		zap.Int("nodes", len(tree.Nodes)),
		zap.Int("entities", len(tree.Entities)))

	dev, closeDev, err := openDevice(cfg.GPU)
	if err != nil {
		return err
	}
	defer closeDev()

	c, err := compiler.New(tree, slots, dev, options(cfg))
	if err != nil {
		return err
	}
	defer c.Destroy()

	if err := c.Build(); err != nil {
		return err
	}
	printStats("build", c.Stats())

	if *flagEdit {
		pos, size := editCell(tree)
		if err := tree.SetEmpty(pos, size); err != nil {
			return err
		}
		c.Invalidate(pos, size)
		if err := c.Update(); err != nil {
			return err
		}
		printStats("update", c.Stats())
	}
	printRoots(c.Roots())
	return nil
}

func loadSlots(path string) (*slot.Table, error) {
	if path == "" {
		return demoSlots(), nil
	}
	return slot.Load(path)
}

// openDevice returns the buffer device for the configured backend and a
// function releasing it.
func openDevice(cfg config.GPUConfig) (va.Device, func(), error) {
	switch cfg.Backend {
	case "gl":
		ctx, err := gpu.NewContext(gpu.Config{Width: cfg.Width, Height: cfg.Height})
		if err != nil {
			return nil, nil, err
		}
		dev := gpu.NewDevice()
		return dev, func() {
			if n, bytes := dev.Live(); n > 0 {
				logger.Warn("buffers still live at shutdown", zap.Int("buffers", n), zap.Int("bytes", bytes))
			}
			ctx.Close()
		}, nil
	default:
		dev := va.NewMemoryDevice()
		return dev, func() {}, nil
	}
}

func options(cfg *config.Config) compiler.Options {
	opts := compiler.DefaultOptions()
	opts.FaceMin = cfg.Build.FaceMin
	opts.FaceMax = cfg.Build.FaceMax
	opts.CubeSize = cfg.Build.CubeSize
	opts.MaxSize = cfg.Build.MaxSize
	opts.MaxMergeLevel = cfg.Build.MaxMergeLevel
	opts.Merge = cfg.Build.Merge
	opts.TJoints = cfg.Build.TJoints
	opts.Decals = cfg.Build.Decals
	opts.MatSurfs = cfg.Build.MatSurfs
	opts.Limits = va.Limits{
		MaxVerts:        cfg.Batch.MaxVerts,
		MaxIndices:      cfg.Batch.MaxIndices,
		MaxSkyIndices:   cfg.Batch.MaxSkyIndices,
		MaxDecalIndices: cfg.Batch.MaxDecalIndices,
	}
	return opts
}

// editCell picks a floor cell near the middle of the world.
func editCell(t *octree.Tree) (math.IVec3, int32) {
	c := cell(t)
	mid := t.Size() / 2
	return math.IVec3{mid - mid%c, mid/2 - (mid/2)%c, 0}, c
}

func printStats(pass string, s compiler.Stats) {
	fmt.Printf("%s: %v\n", pass, s.Elapsed)
	fmt.Printf("  Vertex arrays: %d (%d created)\n", s.VAs, s.Created)
	fmt.Printf("  Vertices:      %d\n", s.Verts)
	fmt.Printf("  Triangles:     %d world, %d sky, %d decal\n", s.Tris, s.SkyTris, s.DecalTris)
	fmt.Printf("  Merged faces:  %d into %d polygons\n", s.Merge.Consumed, s.Merge.Merged)
	fmt.Printf("  T-joints:      %d\n", s.Joints)
	fmt.Printf("  Flushes:       %d\n", s.Flushes)
	if s.Dropped > 0 {
		fmt.Printf("  Dropped tris:  %d\n", s.Dropped)
	}
}

func printRoots(roots []*va.VertexArray) {
	fmt.Printf("\nRoots: %d\n", len(roots))
	for _, r := range roots {
		fmt.Printf("  %v size %-6d %5d verts %5d tris %2d children\n",
			r.Origin, r.Size, r.Verts, r.Tris, len(r.Children))
	}
}
