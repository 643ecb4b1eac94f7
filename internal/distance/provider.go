// Package distance measures straight-line distance through a ranked list of
// interchangeable implementations. A failing implementation falls through to
// the next one; Benchmark re-orders the list fastest first.
package distance

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"jumpnav/internal/geom"
	"jumpnav/internal/logsink"
)

const defaultRounds = 200

// Provider is safe for concurrent use.
type Provider struct {
	mu         sync.RWMutex
	candidates []Candidate
	benchmarks []Timing

	log        logsink.Sink
	onFallback func(name string, err error)
	rounds     int
}

// Timing is one candidate's benchmark result.
type Timing struct {
	Name     string        `json:"name"`
	Elapsed  time.Duration `json:"elapsedNs"`
	Failed   bool          `json:"failed,omitempty"`
	Position int           `json:"position"`
}

type Option func(*Provider)

// WithCandidates replaces the built-in list. The scaled fallback is appended
// when the list does not already carry it.
func WithCandidates(cs ...Candidate) Option {
	return func(p *Provider) {
		p.candidates = append([]Candidate(nil), cs...)
	}
}

func WithLog(s logsink.Sink) Option { return func(p *Provider) { p.log = s } }

// WithFallbackHook is called every time a candidate fails and the next one is tried.
func WithFallbackHook(fn func(name string, err error)) Option {
	return func(p *Provider) { p.onFallback = fn }
}

func WithBenchmarkRounds(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.rounds = n
		}
	}
}

func NewProvider(opts ...Option) *Provider {
	p := &Provider{candidates: DefaultCandidates(), log: logsink.Discard, rounds: defaultRounds}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = logsink.Discard
	}
	hasFallback := false
	for _, c := range p.candidates {
		if c.Name == FallbackName {
			hasFallback = true
		}
	}
	if !hasFallback {
		p.candidates = append(p.candidates, Candidate{Name: FallbackName, Fn: Scaled})
	}
	return p
}

// Distance returns the first successful result in ranked order.
func (p *Provider) Distance(a, b geom.Vector3) (float64, error) {
	p.mu.RLock()
	cs := p.candidates
	p.mu.RUnlock()

	var causes []error
	for _, c := range cs {
		d, err := call(c, a, b)
		if err == nil {
			return d, nil
		}
		cerr := &CandidateError{Name: c.Name, Err: err}
		causes = append(causes, cerr)
		if p.onFallback != nil {
			p.onFallback(c.Name, err)
		}
		logsink.Debugf(p.log, "distance: candidate %s failed for %v -> %v: %v", c.Name, a, b, err)
	}
	return 0, &ComputationError{A: a, B: b, Causes: causes}
}

func call(c Candidate, a, b geom.Vector3) (d float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	d, err = c.Fn(a, b)
	if err == nil {
		d, err = finite(d)
	}
	return d, err
}

// Ranking returns the candidate names in the order Distance tries them.
func (p *Provider) Ranking() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.candidates))
	for i, c := range p.candidates {
		out[i] = c.Name
	}
	return out
}

// LastBenchmark returns the timings of the most recent Benchmark call.
func (p *Provider) LastBenchmark() []Timing {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Timing(nil), p.benchmarks...)
}

// Benchmark times every candidate over the fixed sample and ranks them fastest
// first. Candidates that fail the probe pair keep their relative order at the
// end of the list. Ties keep registration order.
func (p *Provider) Benchmark() []Timing {
	p.mu.RLock()
	cs := append([]Candidate(nil), p.candidates...)
	rounds := p.rounds
	p.mu.RUnlock()

	samples := Samples()
	timings := make([]Timing, len(cs))
	for i, c := range cs {
		timings[i] = Timing{Name: c.Name}
		if _, err := call(c, samples[0][0], samples[0][1]); err != nil {
			timings[i].Failed = true
			logsink.Debugf(p.log, "distance: benchmark probe failed for %s: %v", c.Name, err)
			continue
		}
		start := time.Now()
		for r := 0; r < rounds; r++ {
			for _, s := range samples {
				_, _ = call(c, s[0], s[1])
			}
		}
		timings[i].Elapsed = time.Since(start)
		logsink.Debugf(p.log, "distance: %s took %s over %d rounds", c.Name, timings[i].Elapsed, rounds)
	}

	order := make([]int, len(cs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		ti, tj := timings[order[i]], timings[order[j]]
		if ti.Failed != tj.Failed {
			return !ti.Failed
		}
		return ti.Elapsed < tj.Elapsed
	})

	ranked := make([]Candidate, len(cs))
	out := make([]Timing, len(cs))
	for pos, idx := range order {
		ranked[pos] = cs[idx]
		out[pos] = timings[idx]
		out[pos].Position = pos
	}

	p.mu.Lock()
	p.candidates = ranked
	p.benchmarks = out
	p.mu.Unlock()

	names := make([]string, len(ranked))
	for i, c := range ranked {
		names[i] = c.Name
	}
	logsink.Infof(p.log, "distance: benchmark done, order %v", names)
	return append([]Timing(nil), out...)
}

// Samples is the fixed set of point pairs used to benchmark candidates.
func Samples() [][2]geom.Vector3 {
	a := [][3]float64{
		{641.71875, -536.06250, -6886.37500},
		{10.31250, -160.53125, 74.18750},
		{51.40625, -54.40625, -30.50000},
		{45.59375, -51.90625, -39.46875},
		{22.28125, -43.40625, -36.18750},
		{11.18750, -37.37500, -31.84375},
		{5.90625, -30.50000, -36.37500},
		{11.18750, -37.37500, -31.84375},
		{5.62500, -36.65625, -33.87500},
		{-0.56250, -43.71875, -30.81250},
	}
	b := [][3]float64{
		{67.50000, -74.90625, -93.68750},
		{134.12500, 15.09375, -63.87500},
		{124.50000, 4.31250, -49.12500},
		{118.93750, -8.53125, -33.46875},
		{105.96875, -20.87500, -22.21875},
		{95.40625, -33.50000, -11.40625},
		{78.34375, -42.96875, -2.21875},
		{66.84375, -60.65625, -3.84375},
		{60.93750, -75.25000, 10.87500},
		{58.28125, -92.09375, 23.71875},
	}
	out := make([][2]geom.Vector3, len(a))
	for i := range a {
		out[i] = [2]geom.Vector3{geom.FromArray(a[i]), geom.FromArray(b[i])}
	}
	return out
}
