// Package vertex defines the compiled vertex format and per-batch vertex
// interning.
package vertex

import (
	"encoding/binary"
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/octabuild/internal/engine/octree"
	"github.com/Faultbox/octabuild/pkg/math"
)

// Size is the byte size of an encoded vertex.
const Size = 32

// Vertex is one compiled vertex. Normal and tangent are packed into bytes.
// TC[2] is the decal fade factor, Norm[3] how squarely a decal faces its
// surface and Tangent[3] the bitangent handedness (0 or 255).
type Vertex struct {
	Pos     mgl32.Vec3
	TC      mgl32.Vec3
	Norm    [4]uint8
	Tangent [4]uint8
}

// Encode writes the vertex into dst, which must hold Size bytes:
// position, texcoord, normal, tangent, little endian.
func (v Vertex) Encode(dst []byte) {
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint32(dst[4*i:], gomath.Float32bits(v.Pos[i]))
		binary.LittleEndian.PutUint32(dst[12+4*i:], gomath.Float32bits(v.TC[i]))
	}
	copy(dst[24:28], v.Norm[:])
	copy(dst[28:32], v.Tangent[:])
}

// Decode reads a vertex written by Encode.
func Decode(src []byte) Vertex {
	var v Vertex
	for i := 0; i < 3; i++ {
		v.Pos[i] = gomath.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
		v.TC[i] = gomath.Float32frombits(binary.LittleEndian.Uint32(src[12+4*i:]))
	}
	copy(v.Norm[:], src[24:28])
	copy(v.Tangent[:], src[28:32])
	return v
}

// EncodeUnit packs a unit vector component into a byte.
func EncodeUnit(x float32) uint8 {
	f := x*127.5 + 127.5
	if f < 0 {
		f = 0
	}
	if f > 255 {
		f = 255
	}
	return uint8(f + 0.5)
}

// DecodeUnit unpacks a byte written by EncodeUnit.
func DecodeUnit(b uint8) float32 {
	return (float32(b) - 127.5) / 127.5
}

// PackNormal packs a unit vector with the given w byte.
func PackNormal(n mgl32.Vec3, w uint8) [4]uint8 {
	return [4]uint8{EncodeUnit(n[0]), EncodeUnit(n[1]), EncodeUnit(n[2]), w}
}

// UnpackNormal returns the unit vector stored by PackNormal.
func UnpackNormal(p [4]uint8) mgl32.Vec3 {
	return mgl32.Vec3{DecodeUnit(p[0]), DecodeUnit(p[1]), DecodeUnit(p[2])}
}

// FixedToWorld converts a fixed-point octree position to world units.
func FixedToWorld(p math.IVec3) mgl32.Vec3 {
	const scale = 1.0 / octree.FixedOne
	return mgl32.Vec3{float32(p[0]) * scale, float32(p[1]) * scale, float32(p[2]) * scale}
}
