package route

import (
	"context"
	"math"

	"jumpnav/internal/logsink"
)

// Exact enumerates every visiting order and keeps the one with the lowest
// closed-tour cost (legs plus the way back to the origin). The reported route
// is open. The first permutation found wins ties.
type Exact struct {
	base
	cfg ExactTuning
}

func NewExact(p Params) (*Exact, error) {
	b, err := newBase(NameExact, p)
	if err != nil {
		return nil, err
	}
	cfg := b.tuning.Exact
	if cfg.MaxWaypoints > 0 && b.n() > cfg.MaxWaypoints {
		return nil, invalid("waypoints", "exact search accepts at most %d waypoints, got %d", cfg.MaxWaypoints, b.n())
	}
	return &Exact{base: b, cfg: cfg}, nil
}

func (e *Exact) Run(ctx context.Context) error { return e.run(ctx, e.search) }

const exactPollEvery = 1024

func (e *Exact) search(ctx context.Context) ([]int, error) {
	perm := e.nodes()
	if len(perm) == 0 {
		return nil, nil
	}
	var best []int
	bestCost := math.Inf(1)
	e.metrics.BestCost = bestCost
	for {
		e.metrics.Iterations++
		if e.metrics.Iterations%exactPollEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if e.cfg.IgnoreJumpRange || e.feasible(perm) {
			e.metrics.Evaluations++
			c := e.openCost(perm) + e.d(perm[len(perm)-1], 0)
			if c < bestCost {
				bestCost = c
				best = append(best[:0], perm...)
				e.metrics.improve(e.metrics.Iterations, c)
			}
		}
		if !nextPermutation(perm) {
			break
		}
	}
	if best == nil {
		logsink.Debugf(e.log, "%s: no permutation keeps every leg within %g", e.name, e.jump)
	}
	return best, nil
}

// nextPermutation rearranges p into the next lexicographic permutation and
// reports false once p was the last one.
func nextPermutation(p []int) bool {
	i := len(p) - 2
	for i >= 0 && p[i] >= p[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(p) - 1
	for p[j] <= p[i] {
		j--
	}
	p[i], p[j] = p[j], p[i]
	for l, r := i+1, len(p)-1; l < r; l, r = l+1, r-1 {
		p[l], p[r] = p[r], p[l]
	}
	return true
}
