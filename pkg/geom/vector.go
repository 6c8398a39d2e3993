package geom

import "math"

type Vec3 struct {
	X, Y, Z float32
}

func NewVec3(x, y, z float32) Vec3 {
	return Vec3{x, y, z}
}

// FromArray converts the [3]float32 layout used by the binary readers.
func FromArray(v [3]float32) Vec3 {
	return Vec3{v[0], v[1], v[2]}
}

func (v Vec3) Array() [3]float32 { return [3]float32{v.X, v.Y, v.Z} }

func (v Vec3) IsZero() bool { return v.X == 0 && v.Y == 0 && v.Z == 0 }

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Mul(k float32) Vec3 {
	return Vec3{v.X * k, v.Y * k, v.Z * k}
}

func (v Vec3) Div(k float32) Vec3 {
	return Vec3{v.X / k, v.Y / k, v.Z / k}
}

func (v Vec3) Negate() Vec3 {
	return Vec3{-v.X, -v.Y, -v.Z}
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Dot(o Vec3) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Magnitude() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z)))
}

// Normalize returns the unit vector in the direction of v. Zero-length
// vectors are returned unchanged.
func (v Vec3) Normalize() Vec3 {
	mag := v.Magnitude()
	if mag == 0 {
		return v
	}
	return v.Div(mag)
}

// Center returns the midpoint of an axis-aligned box.
func Center(min, max Vec3) Vec3 {
	return min.Add(max.Sub(min).Div(2))
}

func Distance(from, to Vec3) float32 {
	return from.Sub(to).Magnitude()
}
