package route

import "fmt"

const (
	NameExact              = "exact"
	NameHeuristic          = "heuristic"
	NameGreedy             = "greedy"
	NameGeneticOrdered     = "genetic-ordered"
	NameGeneticPermutation = "genetic-permutation"
	NameAnnealing          = "annealing"
)

// RangePolicy describes how a strategy treats the jump range.
type RangePolicy string

const (
	RangeEnforced RangePolicy = "enforced"
	RangePenalty  RangePolicy = "cost-penalty"
	RangeIgnored  RangePolicy = "ignored"
)

// Info documents a registered strategy.
type Info struct {
	Name        string      `json:"name"`
	JumpRange   RangePolicy `json:"jumpRange"`
	Optimal     bool        `json:"optimal"`
	LongRunning bool        `json:"longRunning"`
	Randomized  bool        `json:"randomized"`
	Summary     string      `json:"summary"`
}

type entry struct {
	info Info
	new  func(Params) (Algorithm, error)
}

var registry = []entry{
	{Info{NameExact, RangeEnforced, true, true, false, "brute-force permutation search, closed-tour cost; returns an empty route when no full permutation fits the jump range unless ignoreJumpRange is set"},
		func(p Params) (Algorithm, error) { return NewExact(p) }},
	{Info{NameHeuristic, RangeEnforced, false, false, false, "segment-wise best-first search"},
		func(p Params) (Algorithm, error) { return NewHeuristic(p) }},
	{Info{NameGreedy, RangeEnforced, false, false, false, "nearest reachable neighbour"},
		func(p Params) (Algorithm, error) { return NewGreedy(p) }},
	{Info{NameGeneticOrdered, RangeEnforced, false, true, true, "genetic search over greedy-seeded partial tours"},
		func(p Params) (Algorithm, error) { return NewGeneticOrdered(p) }},
	{Info{NameGeneticPermutation, RangeIgnored, false, true, true, "genetic search over full permutations with order crossover"},
		func(p Params) (Algorithm, error) { return NewGeneticPermutation(p) }},
	{Info{NameAnnealing, RangePenalty, false, true, true, "simulated annealing with swap moves"},
		func(p Params) (Algorithm, error) { return NewAnnealing(p) }},
}

// New constructs the named strategy.
func New(name string, p Params) (Algorithm, error) {
	for _, e := range registry {
		if e.info.Name == name {
			return e.new(p)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

// Names lists the registered strategies in a fixed order.
func Names() []string {
	out := make([]string, len(registry))
	for i, e := range registry {
		out[i] = e.info.Name
	}
	return out
}

func Describe(name string) (Info, bool) {
	for _, e := range registry {
		if e.info.Name == name {
			return e.info, true
		}
	}
	return Info{}, false
}

func Catalog() []Info {
	out := make([]Info, len(registry))
	for i, e := range registry {
		out[i] = e.info
	}
	return out
}
