package route

import (
	"context"
	"math"
)

// GeneticPermutation evolves full permutations with order crossover and swap
// mutation. Fitness is the inverse of the open tour length and does not look
// at the jump range, so the result may contain legs longer than the range.
type GeneticPermutation struct {
	base
	cfg GeneticPermutationTuning
}

func NewGeneticPermutation(p Params) (*GeneticPermutation, error) {
	b, err := newBase(NameGeneticPermutation, p)
	if err != nil {
		return nil, err
	}
	return &GeneticPermutation{base: b, cfg: b.tuning.GeneticPermutation}, nil
}

func (g *GeneticPermutation) Run(ctx context.Context) error { return g.run(ctx, g.search) }

func (g *GeneticPermutation) search(ctx context.Context) ([]int, error) {
	n := g.n()
	if n == 0 {
		return nil, nil
	}
	size := g.cfg.PopulationSize
	pop := make([][]int, size)
	for i := range pop {
		perm := g.rng.Perm(n)
		for k := range perm {
			perm[k]++
		}
		pop[i] = perm
	}

	bestCost := math.Inf(1)
	g.metrics.BestCost = bestCost
	for gen := 0; gen < g.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g.metrics.Iterations++
		fit := g.fitnesses(pop)
		g.track(gen, pop, fit, &bestCost)
		next := make([][]int, 0, size+1)
		for len(next) < size {
			a, b := pop[pickWeighted(g.rng, fit)], pop[pickWeighted(g.rng, fit)]
			c1, c2 := g.crossover(a, b), g.crossover(b, a)
			g.mutate(c1)
			g.mutate(c2)
			next = append(next, c1, c2)
		}
		pop = next[:size]
	}
	fit := g.fitnesses(pop)
	g.track(g.cfg.Generations, pop, fit, &bestCost)
	return pop[argmax(fit)], nil
}

func (g *GeneticPermutation) track(gen int, pop [][]int, fit []float64, bestCost *float64) {
	if c := g.openCost(pop[argmax(fit)]); c < *bestCost {
		*bestCost = c
		g.metrics.improve(gen, c)
	}
}

func (g *GeneticPermutation) fitnesses(pop [][]int) []float64 {
	fit := make([]float64, len(pop))
	for i, ind := range pop {
		g.metrics.Evaluations++
		fit[i] = fitness(g.openCost(ind))
	}
	return fit
}

// crossover is order crossover: a[start:end] is copied in place, the
// remaining slots are filled with b's other members in b's order, starting at
// end and wrapping around.
func (g *GeneticPermutation) crossover(a, b []int) []int {
	n := len(a)
	start := g.rng.Intn(n)
	end := start + g.rng.Intn(n-start)
	child := make([]int, n)
	taken := make(map[int]bool, end-start)
	for i := start; i < end; i++ {
		child[i] = a[i]
		taken[a[i]] = true
	}
	pos := end
	for _, v := range b {
		if taken[v] {
			continue
		}
		if pos >= n {
			pos = 0
		}
		child[pos] = v
		pos++
	}
	return child
}

// mutate swaps two random positions, which may coincide.
func (g *GeneticPermutation) mutate(ind []int) {
	if g.rng.Float64() >= *g.cfg.MutationRate {
		return
	}
	i, j := g.rng.Intn(len(ind)), g.rng.Intn(len(ind))
	ind[i], ind[j] = ind[j], ind[i]
}
