// Package netmath provides the vector arithmetic shared by every core
// component: prediction, reconciliation, and interpolation all compare and
// blend positions expressed as Vector3.
package netmath

import "math"

// Epsilon is the tolerance used for all position comparisons in the core.
// Two positions within Epsilon of each other are treated as equal.
const Epsilon = 1e-4

// Vector3 is an ordered triple of 32-bit floats, matching the wire layout
// of a position or velocity (see pkg/wire).
type Vector3 struct {
	X, Y, Z float32
}

// Zero is the zero vector.
var Zero = Vector3{}

// NewVector3 constructs a Vector3 from components.
func NewVector3(x, y, z float32) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

// Add returns v + other.
func (v Vector3) Add(other Vector3) Vector3 {
	return Vector3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vector3) Sub(other Vector3) Vector3 {
	return Vector3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Mul returns v scaled by scalar.
func (v Vector3) Mul(scalar float32) Vector3 {
	return Vector3{X: v.X * scalar, Y: v.Y * scalar, Z: v.Z * scalar}
}

// Div returns v divided by scalar. Division by zero returns the zero vector.
func (v Vector3) Div(scalar float32) Vector3 {
	if scalar == 0 {
		return Vector3{}
	}
	return v.Mul(1.0 / scalar)
}

// Dot computes the dot product of v and other.
func (v Vector3) Dot(other Vector3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross computes the cross product of v and other.
func (v Vector3) Cross(other Vector3) Vector3 {
	return Vector3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

// Length returns the Euclidean length of v.
func (v Vector3) Length() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

// Normalize returns v scaled to unit length. The zero vector normalizes to
// itself.
func (v Vector3) Normalize() Vector3 {
	length := v.Length()
	if length == 0 {
		return Vector3{}
	}
	return v.Div(length)
}

// Distance returns the Euclidean distance between v and other.
func (v Vector3) Distance(other Vector3) float32 {
	return v.Sub(other).Length()
}

// Lerp linearly interpolates between v and target by t, which is expected
// to lie in [0, 1] but is not clamped here; callers clamp at the call site.
func (v Vector3) Lerp(target Vector3, t float32) Vector3 {
	return Vector3{
		X: v.X + (target.X-v.X)*t,
		Y: v.Y + (target.Y-v.Y)*t,
		Z: v.Z + (target.Z-v.Z)*t,
	}
}

// Equal reports whether v and other are within Epsilon of each other on
// every axis.
func (v Vector3) Equal(other Vector3) bool {
	return nearlyEqual(v.X, other.X) && nearlyEqual(v.Y, other.Y) && nearlyEqual(v.Z, other.Z)
}

func nearlyEqual(a, b float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < Epsilon
}

// Clamp01 clamps t to the closed interval [0, 1].
func Clamp01(t float32) float32 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
