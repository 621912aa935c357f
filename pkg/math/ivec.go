// Package math provides integer vector types for octree geometry.
package math

// IVec3 is a 3D integer vector. Octree code uses it both for cube origins in
// world units and for fixed-point vertex positions.
type IVec3 [3]int32

// Add returns v + other.
func (v IVec3) Add(other IVec3) IVec3 {
	return IVec3{v[0] + other[0], v[1] + other[1], v[2] + other[2]}
}

// Sub returns v - other.
func (v IVec3) Sub(other IVec3) IVec3 {
	return IVec3{v[0] - other[0], v[1] - other[1], v[2] - other[2]}
}

// Mul returns v * s.
func (v IVec3) Mul(s int32) IVec3 {
	return IVec3{v[0] * s, v[1] * s, v[2] * s}
}

// Neg returns -v.
func (v IVec3) Neg() IVec3 {
	return IVec3{-v[0], -v[1], -v[2]}
}

// Shl shifts every component left by n bits.
func (v IVec3) Shl(n uint) IVec3 {
	return IVec3{v[0] << n, v[1] << n, v[2] << n}
}

// Mask returns v with every component ANDed with m.
func (v IVec3) Mask(m int32) IVec3 {
	return IVec3{v[0] & m, v[1] & m, v[2] & m}
}

// Dot returns the dot product.
func (v IVec3) Dot(other IVec3) int64 {
	return int64(v[0])*int64(other[0]) + int64(v[1])*int64(other[1]) + int64(v[2])*int64(other[2])
}

// Cross returns the cross product.
func (v IVec3) Cross(other IVec3) IVec3 {
	return IVec3{
		v[1]*other[2] - v[2]*other[1],
		v[2]*other[0] - v[0]*other[2],
		v[0]*other[1] - v[1]*other[0],
	}
}

// IsZero reports whether all components are zero.
func (v IVec3) IsZero() bool {
	return v[0] == 0 && v[1] == 0 && v[2] == 0
}

// With returns a copy of v with the given axis replaced.
func (v IVec3) With(axis int, value int32) IVec3 {
	v[axis] = value
	return v
}

// Min returns the component-wise minimum.
func (v IVec3) Min(other IVec3) IVec3 {
	return IVec3{min(v[0], other[0]), min(v[1], other[1]), min(v[2], other[2])}
}

// Max returns the component-wise maximum.
func (v IVec3) Max(other IVec3) IVec3 {
	return IVec3{max(v[0], other[0]), max(v[1], other[1]), max(v[2], other[2])}
}

// MajorAxis returns the axis with the largest absolute component.
// Ties resolve towards the later axis, matching edge grouping.
func (v IVec3) MajorAxis() int {
	ax, ay, az := Abs(v[0]), Abs(v[1]), Abs(v[2])
	if ax > ay {
		if ax > az {
			return 0
		}
		return 2
	}
	if ay > az {
		return 1
	}
	return 2
}

// ReduceSlope divides v by the greatest common divisor of its components so
// that colinear directions of any length map to the same vector.
func (v IVec3) ReduceSlope() IVec3 {
	g := GCD(GCD(Abs(v[0]), Abs(v[1])), Abs(v[2]))
	if g <= 1 {
		return v
	}
	return IVec3{v[0] / g, v[1] / g, v[2] / g}
}

// Abs returns |x|.
func Abs(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}

// GCD returns the greatest common divisor of two non-negative integers.
func GCD(a, b int32) int32 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// FloorDiv divides rounding towards negative infinity.
func FloorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Log2 returns the index of the highest set bit of x, or -1 for x <= 0.
func Log2(x int32) int {
	n := -1
	for x > 0 {
		x >>= 1
		n++
	}
	return n
}
