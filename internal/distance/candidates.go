package distance

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"jumpnav/internal/geom"
)

// Func computes the straight-line distance between two points.
type Func func(a, b geom.Vector3) (float64, error)

// Candidate is a named distance implementation.
type Candidate struct {
	Name string
	Fn   Func
}

var errNotFinite = errors.New("non-finite result")

func finite(d float64) (float64, error) {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, errNotFinite
	}
	return d, nil
}

// Gonum delegates to gonum's L2 distance over the coordinate slices.
func Gonum(a, b geom.Vector3) (float64, error) {
	return finite(floats.Distance(a.Slice(), b.Slice(), 2))
}

// Unrolled is the direct square-root-of-sum-of-squares formula.
func Unrolled(a, b geom.Vector3) (float64, error) {
	dx, dy, dz := a.X()-b.X(), a.Y()-b.Y(), a.Z()-b.Z()
	return finite(math.Sqrt(dx*dx + dy*dy + dz*dz))
}

// Hypot nests math.Hypot, which avoids intermediate overflow.
func Hypot(a, b geom.Vector3) (float64, error) {
	return finite(math.Hypot(math.Hypot(a.X()-b.X(), a.Y()-b.Y()), a.Z()-b.Z()))
}

// Scaled divides every component by the largest magnitude before squaring. It
// never fails for finite inputs whose differences are finite and is always the
// last resort.
func Scaled(a, b geom.Vector3) (float64, error) {
	d := a.Sub(b).Array()
	var m float64
	for _, c := range d {
		if c := math.Abs(c); c > m {
			m = c
		}
	}
	if m == 0 {
		return 0, nil
	}
	if math.IsInf(m, 0) || math.IsNaN(m) {
		return 0, errNotFinite
	}
	var s float64
	for _, c := range d {
		r := c / m
		s += r * r
	}
	return finite(m * math.Sqrt(s))
}

// FallbackName is the candidate that is always kept in the list.
const FallbackName = "scaled"

// DefaultCandidates returns the built-in candidates in registration order.
func DefaultCandidates() []Candidate {
	return []Candidate{
		{Name: "gonum", Fn: Gonum},
		{Name: "unrolled", Fn: Unrolled},
		{Name: "hypot", Fn: Hypot},
		{Name: FallbackName, Fn: Scaled},
	}
}
