// Package octree holds the sparse voxel octree that describes world geometry.
//
// Nodes live in a flat arena and refer to their children by index. The eight
// children of a node are stored contiguously in z-order: bit 0 of the child
// index selects +X, bit 1 selects +Y and bit 2 selects +Z.
package octree

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/octabuild/internal/engine/va"
	"github.com/Faultbox/octabuild/pkg/math"
)

// Fixed-point vertex positions carry FixedShift fractional bits.
const (
	FixedShift = 3
	FixedOne   = 1 << FixedShift

	// MaxFaceVerts bounds the vertex count of any face polygon, merged or explicit.
	MaxFaceVerts = 15

	// MaxScale bounds the world size to 1<<MaxScale units.
	MaxScale = 16
)

// NodeID indexes a node in the tree arena.
type NodeID int32

// NoNode marks a missing child list.
const NoNode NodeID = -1

// Fill describes the geometry of a leaf.
type Fill uint8

const (
	FillEmpty Fill = iota
	FillSolid
)

// Layer selects which blend layer a face belongs to.
type Layer uint8

const (
	LayerTop Layer = iota
	LayerBottom
	LayerBlend // emitted on both the top and the bottom layer
)

// MergeState tracks where a node stands in the ancestor-level merge process.
// It is advisory and reset on every full rebuild.
type MergeState uint8

const (
	MergeNone    MergeState = iota
	MergePartial            // faces deferred to a merged polygon owned elsewhere
	MergeOrigin             // a merged polygon belongs to this level
	MergeUsed               // merged polygons were emitted into a vertex array here
)

// String returns the state name.
func (s MergeState) String() string {
	switch s {
	case MergePartial:
		return "partial"
	case MergeOrigin:
		return "origin"
	case MergeUsed:
		return "used"
	default:
		return "none"
	}
}

// Ext holds optional per-node data that most nodes never need.
type Ext struct {
	// Faces holds explicit fixed-point face polygons for non-default
	// geometry. A nil entry uses the full cube face; an empty non-nil entry
	// removes the face.
	Faces [6][]math.IVec3
	// Normals optionally supplies one normal per explicit face vertex.
	Normals [6][]mgl32.Vec3
	// Layers assigns each face to a blend layer.
	Layers [6]Layer
	// Surfaces holds the merged polygon owned by this face. A face flagged in
	// CubeNode.Merged with an empty surface was consumed by another owner.
	Surfaces [6][]math.IVec3
	// MergeSize is the size of the smallest aligned cell containing each
	// owned merged polygon.
	MergeSize [6]int32
	// TJoints is the head of this node's T-joint list in the current build
	// arena, or -1.
	TJoints int
	// Ents lists the entities attached to this node.
	Ents []int
	// VA is the vertex array generated for the subtree rooted here.
	VA *va.VertexArray
}

// CubeNode is one octree cell.
type CubeNode struct {
	Children   NodeID
	Fill       Fill
	Texture    [6]uint16
	Material   Material
	Visible    uint8 // visible face mask computed by the last build
	Merge      uint8 // faces that may take part in ancestor-level merges
	Merged     uint8 // faces owned or consumed by a merged polygon
	MergeState MergeState
	Ext        *Ext
}

// IsLeaf reports whether the node has no children.
func (c *CubeNode) IsLeaf() bool {
	return c.Children == NoNode
}

// IsEmpty reports whether the node is a leaf without geometry.
func (c *CubeNode) IsEmpty() bool {
	return c.Children == NoNode && c.Fill == FillEmpty
}

// EnsureExt returns the node's extension data, allocating it on first use.
func (c *CubeNode) EnsureExt() *Ext {
	if c.Ext == nil {
		c.Ext = &Ext{TJoints: -1}
	}
	return c.Ext
}

// HasExplicitFace reports whether the face uses an explicit polygon.
func (c *CubeNode) HasExplicitFace(orient int) bool {
	return c.Ext != nil && c.Ext.Faces[orient] != nil
}

// FaceLayer returns the blend layer of a face.
func (c *CubeNode) FaceLayer(orient int) Layer {
	if c.Ext == nil {
		return LayerTop
	}
	return c.Ext.Layers[orient]
}

// EntityType distinguishes attached entities.
type EntityType uint8

const (
	EntDecal EntityType = iota + 1
	EntMapModel
)

// Entity is a world entity that influences geometry compilation.
type Entity struct {
	Type EntityType
	Pos  mgl32.Vec3
	// Yaw, Pitch and Roll are in degrees.
	Yaw, Pitch, Roll float32
	Size             float32
	Slot             int
}
