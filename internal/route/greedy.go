package route

import "context"

// Greedy walks to the nearest unvisited waypoint in range until none is left.
// Waypoints out of reach of every visited stop are left out.
type Greedy struct {
	base
}

func NewGreedy(p Params) (*Greedy, error) {
	b, err := newBase(NameGreedy, p)
	if err != nil {
		return nil, err
	}
	return &Greedy{base: b}, nil
}

func (g *Greedy) Run(ctx context.Context) error { return g.run(ctx, g.search) }

func (g *Greedy) search(ctx context.Context) ([]int, error) {
	n := g.n()
	visited := make([]bool, n+1)
	order := make([]int, 0, n)
	cur := 0
	for len(order) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g.metrics.Iterations++
		next := nearest(&g.base, cur, visited, true)
		if next < 0 {
			break
		}
		visited[next] = true
		order = append(order, next)
		cur = next
	}
	g.metrics.BestCost = g.openCost(order)
	return order, nil
}

// nearest returns the closest unvisited node to from, lower node id on ties,
// or -1. With inRange set, nodes beyond the jump range are skipped.
func nearest(b *base, from int, visited []bool, inRange bool) int {
	best, bestD := -1, 0.0
	for v := 1; v <= b.n(); v++ {
		if visited[v] {
			continue
		}
		b.metrics.Evaluations++
		dv := b.d(from, v)
		if inRange && dv > b.jump {
			continue
		}
		if best < 0 || dv < bestD {
			best, bestD = v, dv
		}
	}
	return best
}
