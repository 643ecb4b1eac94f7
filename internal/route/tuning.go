package route

import "math"

// Tuning holds the per-strategy knobs. Zero values fall back to the defaults
// returned by DefaultTuning.
type Tuning struct {
	Exact              ExactTuning              `yaml:"exact" json:"exact"`
	Heuristic          HeuristicTuning          `yaml:"heuristic" json:"heuristic"`
	GeneticOrdered     GeneticOrderedTuning     `yaml:"geneticOrdered" json:"geneticOrdered"`
	GeneticPermutation GeneticPermutationTuning `yaml:"geneticPermutation" json:"geneticPermutation"`
	Annealing          AnnealingTuning          `yaml:"annealing" json:"annealing"`
}

type ExactTuning struct {
	// MaxWaypoints rejects inputs whose permutation count would not finish.
	MaxWaypoints int `yaml:"maxWaypoints" json:"maxWaypoints,omitempty"`
	// IgnoreJumpRange scores every permutation, feasible or not.
	IgnoreJumpRange bool `yaml:"ignoreJumpRange" json:"ignoreJumpRange,omitempty"`
}

type HeuristicTuning struct {
	// GoalAware estimates remaining cost as the distance to the nearest
	// unvisited waypoint instead of the distance to the first input waypoint.
	GoalAware bool `yaml:"goalAware" json:"goalAware,omitempty"`
}

// Rates are pointers so that an explicit 0 switches the operator off while
// an absent value keeps the default.
type GeneticOrderedTuning struct {
	PopulationFactor int      `yaml:"populationFactor" json:"populationFactor,omitempty"`
	Generations      int      `yaml:"generations" json:"generations,omitempty"`
	CrossoverRate    *float64 `yaml:"crossoverRate" json:"crossoverRate,omitempty"`
	MutationRate     *float64 `yaml:"mutationRate" json:"mutationRate,omitempty"`
}

type GeneticPermutationTuning struct {
	PopulationSize int      `yaml:"populationSize" json:"populationSize,omitempty"`
	Generations    int      `yaml:"generations" json:"generations,omitempty"`
	MutationRate   *float64 `yaml:"mutationRate" json:"mutationRate,omitempty"`
}

type AnnealingTuning struct {
	InitialTemp float64 `yaml:"initialTemp" json:"initialTemp,omitempty"`
	CoolingRate float64 `yaml:"coolingRate" json:"coolingRate,omitempty"`
	MinTemp     float64 `yaml:"minTemp" json:"minTemp,omitempty"`
}

func DefaultTuning() Tuning {
	return Tuning{
		Exact:              ExactTuning{MaxWaypoints: 10},
		GeneticOrdered:     GeneticOrderedTuning{PopulationFactor: 3, Generations: 200, CrossoverRate: Rate(0.4), MutationRate: Rate(0.01)},
		GeneticPermutation: GeneticPermutationTuning{PopulationSize: 100, Generations: 500, MutationRate: Rate(0.01)},
		Annealing:          AnnealingTuning{InitialTemp: 1000, CoolingRate: 0.003, MinTemp: 1},
	}
}

// Merge overlays the non-zero fields of o on t.
func (t Tuning) Merge(o Tuning) Tuning {
	if o.Exact.MaxWaypoints != 0 {
		t.Exact.MaxWaypoints = o.Exact.MaxWaypoints
	}
	t.Exact.IgnoreJumpRange = t.Exact.IgnoreJumpRange || o.Exact.IgnoreJumpRange
	t.Heuristic.GoalAware = t.Heuristic.GoalAware || o.Heuristic.GoalAware

	g := &t.GeneticOrdered
	setInt(&g.PopulationFactor, o.GeneticOrdered.PopulationFactor)
	setInt(&g.Generations, o.GeneticOrdered.Generations)
	setRate(&g.CrossoverRate, o.GeneticOrdered.CrossoverRate)
	setRate(&g.MutationRate, o.GeneticOrdered.MutationRate)

	p := &t.GeneticPermutation
	setInt(&p.PopulationSize, o.GeneticPermutation.PopulationSize)
	setInt(&p.Generations, o.GeneticPermutation.Generations)
	setRate(&p.MutationRate, o.GeneticPermutation.MutationRate)

	a := &t.Annealing
	setFloat(&a.InitialTemp, o.Annealing.InitialTemp)
	setFloat(&a.CoolingRate, o.Annealing.CoolingRate)
	setFloat(&a.MinTemp, o.Annealing.MinTemp)
	return t
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setRate(dst **float64, v *float64) {
	if v != nil {
		c := *v
		*dst = &c
	}
}

// Rate returns a pointer to v for the rate fields of Tuning.
func Rate(v float64) *float64 { return &v }

func (t Tuning) withDefaults() Tuning { return DefaultTuning().Merge(t) }

// Validate checks a fully defaulted tuning.
func (t Tuning) Validate() error {
	t = t.withDefaults()
	switch {
	case t.Exact.MaxWaypoints < 0:
		return invalid("tuning.exact.maxWaypoints", "must not be negative")
	case t.GeneticOrdered.PopulationFactor < 0:
		return invalid("tuning.geneticOrdered.populationFactor", "must not be negative")
	case t.GeneticOrdered.Generations < 0:
		return invalid("tuning.geneticOrdered.generations", "must not be negative")
	case !isRate(*t.GeneticOrdered.CrossoverRate):
		return invalid("tuning.geneticOrdered.crossoverRate", "must be within [0, 1]")
	case !isRate(*t.GeneticOrdered.MutationRate):
		return invalid("tuning.geneticOrdered.mutationRate", "must be within [0, 1]")
	case t.GeneticPermutation.PopulationSize < 0:
		return invalid("tuning.geneticPermutation.populationSize", "must not be negative")
	case t.GeneticPermutation.Generations < 0:
		return invalid("tuning.geneticPermutation.generations", "must not be negative")
	case !isRate(*t.GeneticPermutation.MutationRate):
		return invalid("tuning.geneticPermutation.mutationRate", "must be within [0, 1]")
	case !(t.Annealing.InitialTemp > 0) || math.IsInf(t.Annealing.InitialTemp, 0):
		return invalid("tuning.annealing.initialTemp", "must be a positive finite number")
	case !(t.Annealing.CoolingRate > 0 && t.Annealing.CoolingRate < 1):
		return invalid("tuning.annealing.coolingRate", "must be within (0, 1)")
	case !(t.Annealing.MinTemp > 0) || math.IsInf(t.Annealing.MinTemp, 0):
		return invalid("tuning.annealing.minTemp", "must be a positive finite number")
	}
	return nil
}

func isRate(v float64) bool { return v >= 0 && v <= 1 }

// Within rejects the fields of an override that would raise a resource limit
// set in limit: the exact-search waypoint cap, genetic population and
// generation counts, and the annealing start temperature. Lower values and
// unset fields pass.
func (t Tuning) Within(limit Tuning) error {
	limit = limit.withDefaults()
	for _, c := range []struct {
		field    string
		got, max float64
	}{
		{"tuning.exact.maxWaypoints", float64(t.Exact.MaxWaypoints), float64(limit.Exact.MaxWaypoints)},
		{"tuning.geneticOrdered.populationFactor", float64(t.GeneticOrdered.PopulationFactor), float64(limit.GeneticOrdered.PopulationFactor)},
		{"tuning.geneticOrdered.generations", float64(t.GeneticOrdered.Generations), float64(limit.GeneticOrdered.Generations)},
		{"tuning.geneticPermutation.populationSize", float64(t.GeneticPermutation.PopulationSize), float64(limit.GeneticPermutation.PopulationSize)},
		{"tuning.geneticPermutation.generations", float64(t.GeneticPermutation.Generations), float64(limit.GeneticPermutation.Generations)},
		{"tuning.annealing.initialTemp", t.Annealing.InitialTemp, limit.Annealing.InitialTemp},
	} {
		if c.got > c.max {
			return invalid(c.field, "%v exceeds the configured limit %v", c.got, c.max)
		}
	}
	return nil
}
