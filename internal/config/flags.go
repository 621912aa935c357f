package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagScene     = flag.String("scene", "", "Demo scene: flat, steps or box")
	flagScale     = flag.Uint("scale", 0, "World scale (size is 1<<scale)")
	flagSlots     = flag.String("slots", "", "Slot table file")
	flagBackend   = flag.String("backend", "", "GPU backend: memory or gl")
	flagNoMerge   = flag.Bool("no-merge", false, "Disable face merging")
	flagNoTJoints = flag.Bool("no-tjoints", false, "Disable T-joint stitching")
	flagMaxVerts  = flag.Int("max-verts", 0, "Vertex ceiling per buffer object")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagScene != "" {
		cfg.World.Scene = *flagScene
	}
	if *flagScale > 0 {
		cfg.World.Scale = *flagScale
	}
	if *flagSlots != "" {
		cfg.World.Slots = *flagSlots
	}
	if *flagBackend != "" {
		cfg.GPU.Backend = *flagBackend
	}
	if *flagNoMerge {
		cfg.Build.Merge = false
	}
	if *flagNoTJoints {
		cfg.Build.TJoints = false
	}
	if *flagMaxVerts > 0 {
		cfg.Batch.MaxVerts = *flagMaxVerts
	}
}
