// Package planner turns plan requests into route runs. Short runs happen
// inline; long ones are queued as jobs, executed by a worker pool, and
// reported through the job store, the event broker and optional callbacks.
package planner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"jumpnav/internal/config"
	"jumpnav/internal/distance"
	"jumpnav/internal/events"
	"jumpnav/internal/geom"
	"jumpnav/internal/logsink"
	"jumpnav/internal/metrics"
	"jumpnav/internal/model"
	"jumpnav/internal/route"
	"jumpnav/internal/store"
)

var (
	ErrQueueFull   = errors.New("job queue is full")
	ErrRateLimited = errors.New("job submission rate exceeded")
	ErrJobFinished = errors.New("job already finished")

	ErrUnknownAlgorithm = route.ErrUnknownAlgorithm
	// ErrNotSync is returned by Plan for algorithms that must run as jobs.
	ErrNotSync = errors.New("algorithm is not available for synchronous planning")
)

// Notifier delivers completion callbacks; *webhooks.Notifier implements it.
type Notifier interface {
	Emit(url, secret, eventType string, data any) (string, error)
}

type Deps struct {
	Distance *distance.Provider
	Store    store.Store
	Broker   events.Broker
	Notifier Notifier
	Log      logsink.Sink
}

type Service struct {
	cfg    config.PlannerConfig
	tuning route.Tuning
	sync   map[string]bool

	dist     *distance.Provider
	store    store.Store
	broker   events.Broker
	notifier Notifier
	log      logsink.Sink

	limiter *rate.Limiter
	queue   chan queued

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	stop    chan struct{}
	wg      sync.WaitGroup
	started atomic.Bool
	ready   atomic.Bool

	seedMu sync.Mutex
	seeds  *rand.Rand

	stats statsBook
}

type queued struct {
	id  string
	req model.PlanRequest
}

func New(cfg config.PlannerConfig, tuning route.Tuning, d Deps) *Service {
	if d.Log == nil {
		d.Log = logsink.Discard
	}
	if d.Store == nil {
		d.Store = store.NewMemory()
	}
	if d.Broker == nil {
		d.Broker = events.NewMemory()
	}
	if d.Distance == nil {
		d.Distance = distance.NewProvider(distance.WithLog(d.Log))
	}
	syncSet := map[string]bool{}
	for _, n := range cfg.SyncAlgorithms {
		syncSet[n] = true
	}
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateRPS), max(cfg.RateBurst, 1))
	}
	return &Service{
		cfg:      cfg,
		tuning:   route.DefaultTuning().Merge(tuning),
		sync:     syncSet,
		dist:     d.Distance,
		store:    d.Store,
		broker:   d.Broker,
		notifier: d.Notifier,
		log:      d.Log,
		limiter:  limiter,
		queue:    make(chan queued, queueSize),
		cancels:  map[string]context.CancelFunc{},
		stop:     make(chan struct{}),
		seeds:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Catalog lists the registered algorithms and whether each may run inline.
func (s *Service) Catalog() []AlgorithmInfo {
	var out []AlgorithmInfo
	for _, info := range route.Catalog() {
		out = append(out, AlgorithmInfo{Info: info, Sync: s.sync[info.Name], Default: info.Name == s.cfg.DefaultAlgorithm})
	}
	return out
}

type AlgorithmInfo struct {
	route.Info
	Sync    bool `json:"sync"`
	Default bool `json:"default"`
}

// Benchmark ranks the distance candidates and marks the service ready.
func (s *Service) Benchmark() []distance.Timing {
	t := s.dist.Benchmark()
	s.ready.Store(true)
	return t
}

func (s *Service) MarkReady() { s.ready.Store(true) }

func (s *Service) Ready() bool { return s.ready.Load() }

func (s *Service) Ranking() []string { return s.dist.Ranking() }

func (s *Service) LastBenchmark() []distance.Timing { return s.dist.LastBenchmark() }

func (s *Service) algorithm(req model.PlanRequest) (string, error) {
	name := req.Algorithm
	if name == "" {
		name = s.cfg.DefaultAlgorithm
	}
	if _, ok := route.Describe(name); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	return name, nil
}

// Plan runs the request inline.
func (s *Service) Plan(ctx context.Context, req model.PlanRequest) (model.PlanResult, error) {
	name, err := s.algorithm(req)
	if err != nil {
		return model.PlanResult{}, err
	}
	if !s.sync[name] {
		return model.PlanResult{}, fmt.Errorf("%w: %s", ErrNotSync, name)
	}
	ctx, cancel := context.WithTimeout(ctx, s.syncTimeout())
	defer cancel()
	return s.run(ctx, name, req, s.log)
}

func (s *Service) syncTimeout() time.Duration {
	switch {
	case s.cfg.SyncTimeout > 0:
		return s.cfg.SyncTimeout
	case s.cfg.JobTimeout > 0:
		return s.cfg.JobTimeout
	}
	return 2 * time.Minute
}

func (s *Service) nextSeed() int64 {
	s.seedMu.Lock()
	defer s.seedMu.Unlock()
	return s.seeds.Int63n(math.MaxInt64-1) + 1
}

func (s *Service) params(req model.PlanRequest, log logsink.Sink) (route.Params, error) {
	if req.JumpRange == nil {
		return route.Params{}, &route.ArgumentError{Field: "jumpRange", Reason: "is required"}
	}
	if s.cfg.MaxWaypoints > 0 && len(req.Waypoints) > s.cfg.MaxWaypoints {
		return route.Params{}, &route.ArgumentError{Field: "waypoints", Reason: fmt.Sprintf("at most %d waypoints are accepted", s.cfg.MaxWaypoints)}
	}
	p := route.Params{
		Origin:    route.NewWaypoint(req.Origin.Name, geom.V(req.Origin.X, req.Origin.Y, req.Origin.Z)),
		Waypoints: make([]route.Waypoint, len(req.Waypoints)),
		JumpRange: *req.JumpRange,
		Distance:  s.dist,
		Log:       log,
		Seed:      req.Seed,
		Tuning:    s.tuning,
	}
	for i, pt := range req.Waypoints {
		p.Waypoints[i] = route.NewWaypoint(pt.Name, geom.V(pt.X, pt.Y, pt.Z))
	}
	if req.Tuning != nil {
		// Server tuning is the ceiling; a request may only lower the
		// resource-bound settings.
		if err := req.Tuning.Within(s.tuning); err != nil {
			return route.Params{}, err
		}
		p.Tuning = p.Tuning.Merge(*req.Tuning)
	}
	if p.Seed == 0 {
		p.Seed = s.nextSeed()
	}
	return p, nil
}

func (s *Service) run(ctx context.Context, name string, req model.PlanRequest, log logsink.Sink) (model.PlanResult, error) {
	p, err := s.params(req, log)
	if err != nil {
		return model.PlanResult{}, err
	}
	alg, err := route.New(name, p)
	if err != nil {
		return model.PlanResult{}, err
	}
	start := time.Now()
	err = alg.Run(ctx)
	elapsed := time.Since(start)
	metrics.PlanDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		metrics.Plans.WithLabelValues(name, statusOf(err)).Inc()
		s.stats.record(name, nil, err, elapsed)
		return model.PlanResult{}, err
	}
	res := buildResult(name, p, alg, elapsed)
	s.stats.record(name, &res, nil, elapsed)
	metrics.Plans.WithLabelValues(name, "succeeded").Inc()
	metrics.PlanDistance.WithLabelValues(name).Observe(res.TotalDistance)
	metrics.PlanStops.WithLabelValues(name).Observe(float64(res.Visited))
	return res, nil
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return string(model.JobSucceeded)
	case errors.Is(err, context.Canceled):
		return string(model.JobCancelled)
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return string(model.JobFailed)
	}
}

func buildResult(name string, p route.Params, alg route.Algorithm, elapsed time.Duration) model.PlanResult {
	final := alg.Final()
	info, _ := route.Describe(name)
	res := model.PlanResult{
		Algorithm:     name,
		JumpRange:     string(info.JumpRange),
		Seed:          p.Seed,
		Stops:         make([]model.Stop, len(final)),
		TotalDistance: alg.FinalDistance(),
		Visited:       len(final),
		Skipped:       []int{},
		DurationMs:    elapsed.Milliseconds(),
	}
	seen := make([]bool, len(p.Waypoints))
	feasible := true
	for i, w := range final {
		res.Stops[i] = model.Stop{Index: w.Index, Name: w.Name, X: w.Pos.X(), Y: w.Pos.Y(), Z: w.Pos.Z(), LegDistance: w.LegDistance}
		seen[w.Index] = true
		if w.LegDistance > p.JumpRange {
			feasible = false
		}
	}
	for i, ok := range seen {
		if !ok {
			res.Skipped = append(res.Skipped, i)
		}
	}
	m := alg.Metrics()
	res.Metrics = model.PlanMetrics{
		Iterations:    m.Iterations,
		Improvements:  m.Improvements,
		AcceptedWorse: m.AcceptedWorse,
		Evaluations:   m.Evaluations,
		BestCost:      finiteOr(m.BestCost, res.TotalDistance),
		Feasible:      feasible,
	}
	return res
}

// finiteOr keeps JSON encodable values; encoding/json rejects Inf and NaN.
func finiteOr(v, fallback float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return fallback
	}
	return v
}
