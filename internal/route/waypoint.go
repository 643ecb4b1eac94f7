// Package route plans a visiting order through 3-D waypoints from a fixed
// origin under a per-hop jump range. Six strategies share one contract:
// construct, Run once, then read Final and FinalDistance.
//
// Strategies differ in how strictly they honour the jump range:
//
//	exact, heuristic, greedy, genetic-ordered  every leg of the result is within range
//	annealing                                  out-of-range legs make a tour cost +Inf while
//	                                           searching; the returned best may still break range
//	                                           when no feasible tour was ever sampled
//	genetic-permutation                        range is ignored; long legs are only expensive
package route

import "jumpnav/internal/geom"

// Waypoint is a named stop. Index is the stable handle of the waypoint in the
// slice it was handed to a constructor in, so duplicate coordinates stay
// distinguishable. LegDistance is only set on waypoints returned by Final and
// holds the distance from the previous stop (or from the origin).
type Waypoint struct {
	Name        string
	Pos         geom.Vector3
	Index       int
	LegDistance float64
}

// NewWaypoint builds an unannotated waypoint.
func NewWaypoint(name string, pos geom.Vector3) Waypoint {
	return Waypoint{Name: name, Pos: pos}
}

// Route is an ordered sequence of stops, origin excluded.
type Route []Waypoint

// Total sums every leg, origin to first stop included.
func (r Route) Total() float64 {
	var t float64
	for _, w := range r {
		t += w.LegDistance
	}
	return t
}

func (r Route) Names() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Name
	}
	return out
}

// Indices returns the stable handles in visiting order.
func (r Route) Indices() []int {
	out := make([]int, len(r))
	for i, w := range r {
		out[i] = w.Index
	}
	return out
}
