// Package geom holds the immutable 3-D point type used for waypoint positions.
package geom

import (
	"fmt"
	"math"
)

// Vector3 is an immutable point in 3-D space. The zero value is the origin.
type Vector3 struct {
	x, y, z float64
}

// V builds a Vector3.
func V(x, y, z float64) Vector3 { return Vector3{x: x, y: y, z: z} }

// FromArray builds a Vector3 from a [x, y, z] triple.
func FromArray(a [3]float64) Vector3 { return Vector3{x: a[0], y: a[1], z: a[2]} }

func (v Vector3) X() float64 { return v.x }
func (v Vector3) Y() float64 { return v.y }
func (v Vector3) Z() float64 { return v.z }

// Array returns the components as a fixed-size array.
func (v Vector3) Array() [3]float64 { return [3]float64{v.x, v.y, v.z} }

// Slice returns the components as a freshly allocated slice.
func (v Vector3) Slice() []float64 { return []float64{v.x, v.y, v.z} }

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 { return Vector3{v.x - o.x, v.y - o.y, v.z - o.z} }

// Norm is the Euclidean length of v.
func (v Vector3) Norm() float64 { return math.Sqrt(v.x*v.x + v.y*v.y + v.z*v.z) }

// Equal reports component-wise equality.
func (v Vector3) Equal(o Vector3) bool { return v == o }

// IsFinite reports whether no component is NaN or infinite.
func (v Vector3) IsFinite() bool {
	for _, c := range [3]float64{v.x, v.y, v.z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func (v Vector3) String() string { return fmt.Sprintf("(%g, %g, %g)", v.x, v.y, v.z) }

// Euclid is the textbook straight-line distance. It is the reference every
// distance candidate is checked against.
func Euclid(a, b Vector3) float64 { return a.Sub(b).Norm() }
