// Package compiler drives a compile pass over the octree: it computes face
// visibility, merges coplanar faces, stitches T-joints and walks the tree
// cutting it into vertex arrays that are packed into shared GPU buffers.
package compiler

import (
	"github.com/Faultbox/octabuild/internal/engine/collect"
	"github.com/Faultbox/octabuild/internal/engine/va"
)

// Options configures where vertex arrays are cut and which stages run.
type Options struct {
	// FaceMax cuts a vertex array once a subtree holds more faces.
	FaceMax int
	// FaceMin cuts at this many faces once the cell is at least CubeSize.
	FaceMin  int
	CubeSize int32
	// MaxSize is the cell size at which a vertex array is always cut. It is
	// capped at half the world size.
	MaxSize int32
	// MaxMergeLevel caps the merge cell at 1<<MaxMergeLevel.
	MaxMergeLevel int

	Merge    bool
	TJoints  bool
	Decals   bool
	MatSurfs bool

	Limits va.Limits
	// Policy decides decal placement; nil uses collect.DefaultPolicy.
	Policy collect.DecalPolicy
}

// DefaultOptions returns the stock cut thresholds with every stage enabled.
func DefaultOptions() Options {
	return Options{
		FaceMax:       384,
		FaceMin:       256,
		CubeSize:      128,
		MaxSize:       4096,
		MaxMergeLevel: 6,
		Merge:         true,
		TJoints:       true,
		Decals:        true,
		MatSurfs:      true,
		Limits:        va.DefaultLimits(),
	}
}

// forcedSize returns the cell size at which every subtree is cut.
func (o *Options) forcedSize(worldSize int32) int32 {
	return min(o.MaxSize, worldSize/2)
}

// mergeCell returns the size of the cells faces are merged within.
func (o *Options) mergeCell(worldSize int32) int32 {
	return min(int32(1)<<o.MaxMergeLevel, o.forcedSize(worldSize))
}
