package route

import (
	"container/heap"
	"context"
)

// Heuristic builds the route one segment at a time. Each segment is a
// best-first search from the current stop over unvisited waypoints within
// jump range; the first waypoint popped off the open set ends the segment.
//
// By default the estimate of remaining cost is the distance to the first
// input waypoint, a fixed reference that is not admissible for multi-target
// search. Tuning.Heuristic.GoalAware switches to the distance to the nearest
// unvisited waypoint.
type Heuristic struct {
	base
	goalAware bool
}

func NewHeuristic(p Params) (*Heuristic, error) {
	b, err := newBase(NameHeuristic, p)
	if err != nil {
		return nil, err
	}
	return &Heuristic{base: b, goalAware: b.tuning.Heuristic.GoalAware}, nil
}

func (h *Heuristic) Run(ctx context.Context) error { return h.run(ctx, h.search) }

func (h *Heuristic) search(ctx context.Context) ([]int, error) {
	n := h.n()
	done := make([]bool, n+1)
	done[0] = true
	order := make([]int, 0, n)
	cur := 0
	for len(order) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := h.segment(cur, done)
		if len(path) == 0 {
			break
		}
		for _, v := range path {
			done[v] = true
			order = append(order, v)
		}
		cur = path[len(path)-1]
	}
	h.metrics.BestCost = h.openCost(order)
	return order, nil
}

func (h *Heuristic) estimate(v int, done []bool) float64 {
	if !h.goalAware {
		return h.d(v, 1)
	}
	best := -1.0
	for u := 1; u <= h.n(); u++ {
		if done[u] {
			continue
		}
		if du := h.d(v, u); best < 0 || du < best {
			best = du
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

// segment returns the path from start to the next waypoint to visit, start
// excluded, or nil when nothing unvisited is reachable.
func (h *Heuristic) segment(start int, done []bool) []int {
	g := map[int]float64{start: 0}
	cameFrom := map[int]int{}
	closed := map[int]bool{}
	open := &openSet{}
	heap.Push(open, openItem{node: start, f: h.estimate(start, done)})

	for open.Len() > 0 {
		it := heap.Pop(open).(openItem)
		if closed[it.node] {
			continue
		}
		if it.node != start && !done[it.node] {
			return reconstruct(cameFrom, start, it.node)
		}
		closed[it.node] = true
		h.metrics.Iterations++
		for v := 1; v <= h.n(); v++ {
			if done[v] || closed[v] || !h.reachable(it.node, v) {
				continue
			}
			h.metrics.Evaluations++
			tentative := g[it.node] + h.d(it.node, v)
			if old, ok := g[v]; !ok || tentative < old {
				g[v] = tentative
				cameFrom[v] = it.node
				heap.Push(open, openItem{node: v, f: tentative + h.estimate(v, done)})
			}
		}
	}
	return nil
}

func reconstruct(cameFrom map[int]int, start, goal int) []int {
	var path []int
	for cur := goal; cur != start; cur = cameFrom[cur] {
		path = append(path, cur)
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

type openItem struct {
	node int
	f    float64
}

// openSet is a min-heap on f, lower node id first on ties.
type openSet []openItem

func (s openSet) Len() int { return len(s) }
func (s openSet) Less(i, j int) bool {
	if s[i].f != s[j].f {
		return s[i].f < s[j].f
	}
	return s[i].node < s[j].node
}
func (s openSet) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s *openSet) Push(x any)   { *s = append(*s, x.(openItem)) }
func (s *openSet) Pop() any {
	old := *s
	it := old[len(old)-1]
	*s = old[:len(old)-1]
	return it
}
