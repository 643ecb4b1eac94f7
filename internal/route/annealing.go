package route

import (
	"context"
	"math"

	"jumpnav/internal/logsink"
)

// Annealing is simulated annealing over full permutations with swap moves and
// Metropolis acceptance. Any leg beyond the jump range makes a tour's cost
// +Inf. The best tour seen during the run is returned; if no sampled tour was
// feasible that is the initial shuffle, which breaks the range.
type Annealing struct {
	base
	cfg AnnealingTuning
}

func NewAnnealing(p Params) (*Annealing, error) {
	b, err := newBase(NameAnnealing, p)
	if err != nil {
		return nil, err
	}
	return &Annealing{base: b, cfg: b.tuning.Annealing}, nil
}

func (a *Annealing) Run(ctx context.Context) error { return a.run(ctx, a.search) }

// tourCost is the open tour length, or +Inf when a leg exceeds the range.
func (a *Annealing) tourCost(order []int) float64 {
	a.metrics.Evaluations++
	if !a.feasible(order) {
		return math.Inf(1)
	}
	return a.openCost(order)
}

// accept is the Metropolis criterion.
func (a *Annealing) accept(current, candidate, temp float64) bool {
	if candidate < current {
		return true
	}
	p := math.Exp((current - candidate) / temp)
	if math.IsNaN(p) {
		return false
	}
	return a.rng.Float64() < p
}

func (a *Annealing) search(ctx context.Context) ([]int, error) {
	n := a.n()
	if n == 0 {
		return nil, nil
	}
	cur := a.nodes()
	a.rng.Shuffle(n, func(i, j int) { cur[i], cur[j] = cur[j], cur[i] })
	curCost := a.tourCost(cur)
	best, bestCost := append([]int(nil), cur...), curCost
	a.metrics.BestCost = bestCost

	for temp := a.cfg.InitialTemp; temp > a.cfg.MinTemp && n >= 2; temp *= 1 - a.cfg.CoolingRate {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a.metrics.Iterations++
		cand := append([]int(nil), cur...)
		i := a.rng.Intn(n)
		j := a.rng.Intn(n - 1)
		if j >= i {
			j++
		}
		cand[i], cand[j] = cand[j], cand[i]
		candCost := a.tourCost(cand)

		if a.accept(curCost, candCost, temp) {
			if candCost > curCost {
				a.metrics.AcceptedWorse++
			}
			cur, curCost = cand, candCost
		}
		if candCost < bestCost {
			best, bestCost = cand, candCost
			a.metrics.improve(a.metrics.Iterations, candCost)
		}
	}
	if math.IsInf(bestCost, 1) {
		logsink.Warnf(a.log, "%s: no sampled tour kept every leg within %g, returning an infeasible tour", a.name, a.jump)
	}
	return best, nil
}
