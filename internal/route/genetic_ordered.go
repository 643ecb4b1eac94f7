package route

import (
	"context"
	"math"
	"math/rand"
)

// GeneticOrdered evolves partial tours seeded by greedy walks that stop at the
// first out-of-range hop. Fitness is the inverse of tour length, the best
// individual of each generation survives unchanged, and evolution stops early
// once the best individual visits every waypoint. Offspring that would break
// the jump range are replaced by their first parent.
type GeneticOrdered struct {
	base
	cfg GeneticOrderedTuning
}

func NewGeneticOrdered(p Params) (*GeneticOrdered, error) {
	b, err := newBase(NameGeneticOrdered, p)
	if err != nil {
		return nil, err
	}
	return &GeneticOrdered{base: b, cfg: b.tuning.GeneticOrdered}, nil
}

func (g *GeneticOrdered) Run(ctx context.Context) error { return g.run(ctx, g.search) }

func (g *GeneticOrdered) search(ctx context.Context) ([]int, error) {
	n := g.n()
	if n == 0 {
		return nil, nil
	}
	seed := g.walk()
	if len(seed) == 0 {
		return nil, nil
	}
	size := g.cfg.PopulationFactor * n
	pop := make([][]int, size)
	for i := range pop {
		pop[i] = append([]int(nil), seed...)
	}

	bestCost := math.Inf(1)
	g.metrics.BestCost = bestCost
	for gen := 0; gen < g.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g.metrics.Iterations++
		fit := g.fitnesses(pop)
		best := argmax(fit)
		if c := g.openCost(pop[best]); c < bestCost {
			bestCost = c
			g.metrics.improve(gen, c)
		}
		if len(pop[best]) == n {
			return pop[best], nil
		}
		next := make([][]int, 0, size)
		next = append(next, append([]int(nil), pop[best]...))
		for len(next) < size {
			a, b := pop[pickWeighted(g.rng, fit)], pop[pickWeighted(g.rng, fit)]
			child := g.crossover(a, b)
			g.mutate(child)
			if !g.feasible(child) {
				child = append(child[:0], a...)
			}
			next = append(next, child)
		}
		pop = next
	}
	return pop[argmax(g.fitnesses(pop))], nil
}

// walk is a greedy nearest-neighbour tour from the origin that stops the first
// time the nearest remaining waypoint is out of range.
func (g *GeneticOrdered) walk() []int {
	visited := make([]bool, g.n()+1)
	var out []int
	cur := 0
	for len(out) < g.n() {
		next := nearest(&g.base, cur, visited, false)
		if next < 0 || !g.reachable(cur, next) {
			break
		}
		visited[next] = true
		out = append(out, next)
		cur = next
	}
	return out
}

func (g *GeneticOrdered) fitnesses(pop [][]int) []float64 {
	fit := make([]float64, len(pop))
	for i, ind := range pop {
		g.metrics.Evaluations++
		fit[i] = fitness(g.openCost(ind))
	}
	return fit
}

// crossover keeps a prefix of a and appends the members of b that prefix does
// not already hold, in b's order. The result is a new slice.
func (g *GeneticOrdered) crossover(a, b []int) []int {
	if len(a) < 2 || g.rng.Float64() >= *g.cfg.CrossoverRate {
		return append([]int(nil), a...)
	}
	cut := g.rng.Intn(len(a) - 1)
	child := append(make([]int, 0, len(a)+len(b)), a[:cut]...)
	seen := make(map[int]bool, cut)
	for _, v := range child {
		seen[v] = true
	}
	for _, v := range b {
		if !seen[v] {
			child = append(child, v)
		}
	}
	return child
}

// mutate swaps two distinct positions, never touching the last stop.
func (g *GeneticOrdered) mutate(ind []int) {
	if len(ind) < 3 || g.rng.Float64() >= *g.cfg.MutationRate {
		return
	}
	i := g.rng.Intn(len(ind) - 1)
	j := g.rng.Intn(len(ind) - 2)
	if j >= i {
		j++
	}
	ind[i], ind[j] = ind[j], ind[i]
}

// fitness is the inverse tour length; an empty or zero-length tour is +Inf.
func fitness(total float64) float64 {
	if total > 0 {
		return 1 / total
	}
	return math.Inf(1)
}

// argmax returns the first index holding the largest value.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// pickWeighted draws an index with probability proportional to its weight.
// Infinite weights win outright and are drawn uniformly among themselves; a
// zero total falls back to a uniform draw.
func pickWeighted(rng *rand.Rand, w []float64) int {
	var inf []int
	var total float64
	for i, x := range w {
		if math.IsInf(x, 1) {
			inf = append(inf, i)
			continue
		}
		total += x
	}
	if len(inf) > 0 {
		return inf[rng.Intn(len(inf))]
	}
	if !(total > 0) || math.IsInf(total, 1) {
		return rng.Intn(len(w))
	}
	r := rng.Float64() * total
	for i, x := range w {
		r -= x
		if r < 0 {
			return i
		}
	}
	return len(w) - 1
}
