package route

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"jumpnav/internal/geom"
	"jumpnav/internal/logsink"
)

// Measurer is satisfied by *distance.Provider.
type Measurer interface {
	Distance(a, b geom.Vector3) (float64, error)
}

// Params carries everything a strategy needs. Waypoints is copied at
// construction and never written to.
type Params struct {
	Origin    Waypoint
	Waypoints []Waypoint
	JumpRange float64
	Distance  Measurer
	Log       logsink.Sink
	// Seed drives the strategy's private random stream. Zero is mapped to a
	// fixed non-zero seed, so equal seeds always replay the same run.
	Seed   int64
	Tuning Tuning
}

// Algorithm is the contract shared by every strategy.
type Algorithm interface {
	Name() string
	// Run computes the route. It may be called once; cancellation of ctx
	// aborts the search and leaves Final empty.
	Run(ctx context.Context) error
	// Final returns a fresh copy of the computed route.
	Final() Route
	// FinalDistance is the total route length, 0 when no route was found.
	FinalDistance() float64
	Metrics() Metrics
}

const defaultSeed = 1

func rngFromSeed(seed int64) *rand.Rand {
	if seed == 0 {
		seed = defaultSeed
	}
	return rand.New(rand.NewSource(seed))
}

// base holds the state every strategy shares. Nodes are numbered with the
// origin at 0 and waypoint i at i+1.
type base struct {
	name   string
	origin Waypoint
	points []Waypoint
	jump   float64
	dist   Measurer
	log    logsink.Sink
	rng    *rand.Rand
	tuning Tuning

	cost    []float64
	ran     bool
	final   Route
	total   float64
	metrics Metrics
}

func newBase(name string, p Params) (base, error) {
	if p.Distance == nil {
		return base{}, invalid("distance", "a distance provider is required")
	}
	if math.IsNaN(p.JumpRange) || math.IsInf(p.JumpRange, 0) || p.JumpRange < 0 {
		return base{}, invalid("jumpRange", "must be a finite non-negative number, got %v", p.JumpRange)
	}
	if !p.Origin.Pos.IsFinite() {
		return base{}, invalid("origin", "non-finite coordinates %v", p.Origin.Pos)
	}
	points := make([]Waypoint, len(p.Waypoints))
	for i, w := range p.Waypoints {
		if !w.Pos.IsFinite() {
			return base{}, invalid(fmt.Sprintf("waypoints[%d]", i), "non-finite coordinates %v", w.Pos)
		}
		w.Index = i
		w.LegDistance = 0
		points[i] = w
	}
	if err := p.Tuning.Validate(); err != nil {
		return base{}, err
	}
	log := p.Log
	if log == nil {
		log = logsink.Discard
	}
	origin := p.Origin
	origin.Index = -1
	origin.LegDistance = 0
	return base{
		name:   name,
		origin: origin,
		points: points,
		jump:   p.JumpRange,
		dist:   p.Distance,
		log:    log,
		rng:    rngFromSeed(p.Seed),
		tuning: p.Tuning.withDefaults(),
	}, nil
}

func (b *base) Name() string { return b.name }

func (b *base) Final() Route { return append(Route{}, b.final...) }

func (b *base) FinalDistance() float64 { return b.total }

func (b *base) Metrics() Metrics {
	m := b.metrics
	m.Snapshots = append([]Snapshot(nil), b.metrics.Snapshots...)
	return m
}

func (b *base) n() int { return len(b.points) }

func (b *base) pos(node int) geom.Vector3 {
	if node == 0 {
		return b.origin.Pos
	}
	return b.points[node-1].Pos
}

// d is the precomputed distance between two nodes.
func (b *base) d(i, j int) float64 { return b.cost[i*(len(b.points)+1)+j] }

func (b *base) reachable(i, j int) bool { return b.d(i, j) <= b.jump }

// buildMatrix measures every node pair once. The matrix is symmetric.
func (b *base) buildMatrix(ctx context.Context) error {
	size := len(b.points) + 1
	b.cost = make([]float64, size*size)
	for i := 0; i < size; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for j := i + 1; j < size; j++ {
			v, err := b.dist.Distance(b.pos(i), b.pos(j))
			if err != nil {
				return fmt.Errorf("%s: %w", b.name, err)
			}
			b.cost[i*size+j] = v
			b.cost[j*size+i] = v
		}
	}
	return nil
}

// openCost sums legs from the origin through order.
func (b *base) openCost(order []int) float64 {
	var t float64
	prev := 0
	for _, v := range order {
		t += b.d(prev, v)
		prev = v
	}
	return t
}

// feasible reports whether every leg from the origin through order is within range.
func (b *base) feasible(order []int) bool {
	prev := 0
	for _, v := range order {
		if !b.reachable(prev, v) {
			return false
		}
		prev = v
	}
	return true
}

// run wraps a strategy's search with the single-use guard, the distance
// matrix, and result annotation.
func (b *base) run(ctx context.Context, search func(ctx context.Context) ([]int, error)) error {
	if b.ran {
		return fmt.Errorf("%s: %w", b.name, ErrAlreadyRun)
	}
	b.ran = true
	start := time.Now()
	logsink.Debugf(b.log, "%s: initialize dataset, %d waypoints, jump range %g", b.name, len(b.points), b.jump)
	if err := b.buildMatrix(ctx); err != nil {
		return err
	}
	order, err := search(ctx)
	b.metrics.Elapsed = time.Since(start)
	if err != nil {
		logsink.Debugf(b.log, "%s: aborted after %s: %v", b.name, b.metrics.Elapsed, err)
		return err
	}
	b.finish(order)
	logsink.Infof(b.log, "%s: visited %d of %d waypoints, distance %.3f, in %s",
		b.name, len(b.final), len(b.points), b.total, b.metrics.Elapsed)
	return nil
}

func (b *base) finish(order []int) {
	b.final = make(Route, len(order))
	prev := 0
	b.total = 0
	for i, v := range order {
		w := b.points[v-1]
		w.LegDistance = b.d(prev, v)
		b.total += w.LegDistance
		b.final[i] = w
		prev = v
	}
	b.metrics.FinalCost = b.total
}

// nodes returns 1..n.
func (b *base) nodes() []int {
	out := make([]int, len(b.points))
	for i := range out {
		out[i] = i + 1
	}
	return out
}
