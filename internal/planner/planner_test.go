package planner_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jumpnav/internal/config"
	"jumpnav/internal/events"
	"jumpnav/internal/logsink"
	"jumpnav/internal/model"
	"jumpnav/internal/planner"
	"jumpnav/internal/route"
)

func ptr(v float64) *float64 { return &v }

func testConfig() config.PlannerConfig {
	return config.PlannerConfig{
		Workers:          2,
		QueueSize:        8,
		JobTimeout:       30 * time.Second,
		DefaultAlgorithm: route.NameGreedy,
		SyncAlgorithms:   []string{route.NameGreedy, route.NameHeuristic, route.NameExact},
		MaxWaypoints:     50,
	}
}

func request(alg string) model.PlanRequest {
	return model.PlanRequest{
		Algorithm: alg,
		Origin:    model.Point{Name: "home"},
		Waypoints: []model.Point{
			{Name: "a", X: 3},
			{Name: "b", X: 6},
			{Name: "far", X: 100},
		},
		JumpRange: ptr(4),
	}
}

type recordedEmit struct {
	url, secret, event string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []recordedEmit
}

func (f *fakeNotifier) Emit(url, secret, eventType string, data any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedEmit{url, secret, eventType})
	return "evt_test", nil
}

func (f *fakeNotifier) Calls() []recordedEmit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedEmit(nil), f.calls...)
}

func newService(t *testing.T, cfg config.PlannerConfig, n planner.Notifier) *planner.Service {
	t.Helper()
	s := planner.New(cfg, route.Tuning{}, planner.Deps{Notifier: n, Log: &logsink.Recorder{}})
	t.Cleanup(s.Stop)
	return s
}

func waitFor(t *testing.T, ch chan events.Event, typ string) events.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case evt, ok := <-ch:
			require.True(t, ok, "event stream closed before %s", typ)
			if evt.Type == typ {
				return evt
			}
		case <-timeout:
			t.Fatalf("no %s event", typ)
		}
	}
}

func TestPlanGreedyReportsSkippedAndSeed(t *testing.T) {
	s := newService(t, testConfig(), nil)
	res, err := s.Plan(context.Background(), request(""))
	require.NoError(t, err)
	require.Equal(t, route.NameGreedy, res.Algorithm)
	require.Len(t, res.Stops, 2)
	require.Equal(t, "a", res.Stops[0].Name)
	require.Equal(t, "b", res.Stops[1].Name)
	require.InDelta(t, 6.0, res.TotalDistance, 1e-9)
	require.Equal(t, []int{2}, res.Skipped)
	require.NotZero(t, res.Seed)
	require.True(t, res.Metrics.Feasible)
}

func TestPlanKeepsExplicitSeed(t *testing.T) {
	s := newService(t, testConfig(), nil)
	req := request(route.NameExact)
	req.Seed = 42
	res, err := s.Plan(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, int64(42), res.Seed)
}

func TestPlanRejections(t *testing.T) {
	cfg := testConfig()
	cfg.MaxWaypoints = 2
	s := newService(t, cfg, nil)

	_, err := s.Plan(context.Background(), request(route.NameAnnealing))
	require.ErrorIs(t, err, planner.ErrNotSync)

	_, err = s.Plan(context.Background(), request("dijkstra"))
	require.ErrorIs(t, err, route.ErrUnknownAlgorithm)

	req := request(route.NameGreedy)
	req.Waypoints = req.Waypoints[:2]
	req.JumpRange = nil
	_, err = s.Plan(context.Background(), req)
	require.ErrorIs(t, err, route.ErrInvalidArgument)

	_, err = s.Plan(context.Background(), request(route.NameGreedy))
	require.ErrorIs(t, err, route.ErrInvalidArgument)
}

func TestTuningOverrideCannotRaiseServerLimits(t *testing.T) {
	s := planner.New(testConfig(), route.Tuning{Exact: route.ExactTuning{MaxWaypoints: 9}}, planner.Deps{Log: &logsink.Recorder{}})
	t.Cleanup(s.Stop)

	req := request(route.NameExact)
	req.JumpRange = ptr(1000)
	req.Waypoints = nil
	for i := 0; i < 11; i++ {
		req.Waypoints = append(req.Waypoints, model.Point{X: float64(i)})
	}
	req.Tuning = &route.Tuning{Exact: route.ExactTuning{MaxWaypoints: 1000}}
	_, err := s.Plan(context.Background(), req)
	require.ErrorIs(t, err, route.ErrInvalidArgument)

	ga := request(route.NameGeneticPermutation)
	ga.Tuning = &route.Tuning{GeneticPermutation: route.GeneticPermutationTuning{PopulationSize: 1 << 30, Generations: 1 << 30}}
	_, err = s.Submit(context.Background(), ga)
	require.ErrorIs(t, err, route.ErrInvalidArgument)

	ga.Tuning = &route.Tuning{GeneticOrdered: route.GeneticOrderedTuning{Generations: 1 << 30}}
	ga.Algorithm = route.NameGeneticOrdered
	_, err = s.Submit(context.Background(), ga)
	require.ErrorIs(t, err, route.ErrInvalidArgument)

	// Lowering a limit is fine.
	req.Waypoints = req.Waypoints[:3]
	req.Tuning = &route.Tuning{Exact: route.ExactTuning{MaxWaypoints: 3}}
	res, err := s.Plan(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Stops, 3)
}

func TestPlanStopsAtSyncTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.SyncTimeout = 20 * time.Millisecond
	cfg.SyncAlgorithms = append(cfg.SyncAlgorithms, route.NameAnnealing)
	s := newService(t, cfg, nil)

	req := request(route.NameAnnealing)
	req.Tuning = &route.Tuning{Annealing: route.AnnealingTuning{CoolingRate: 1e-9}}
	start := time.Now()
	_, err := s.Plan(context.Background(), req)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestJobLifecycleAndCallback(t *testing.T) {
	n := &fakeNotifier{}
	s := newService(t, testConfig(), n)
	req := request(route.NameGeneticPermutation)
	req.Seed = 7
	req.CallbackURL = "http://example.invalid/hook"
	req.CallbackSecret = "supersecret"

	job, err := s.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, model.JobQueued, job.Status)

	ch := s.Subscribe(job.ID)
	defer s.Unsubscribe(job.ID, ch)
	s.Start()

	waitFor(t, ch, planner.EventStarted)
	done := waitFor(t, ch, planner.EventSucceeded)
	finished := done.Data["job"].(model.Job)
	require.Equal(t, model.JobSucceeded, finished.Status)
	require.NotNil(t, finished.Result)
	require.Len(t, finished.Result.Stops, 3)
	require.Equal(t, int64(7), finished.Result.Seed)

	stored, err := s.Job(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobSucceeded, stored.Status)
	require.NotNil(t, stored.StartedAt)
	require.NotNil(t, stored.FinishedAt)

	require.Eventually(t, func() bool { return len(n.Calls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	call := n.Calls()[0]
	require.Equal(t, req.CallbackURL, call.url)
	require.Equal(t, req.CallbackSecret, call.secret)
	require.Equal(t, planner.EventSucceeded, call.event)

	_, err = s.Cancel(context.Background(), job.ID)
	require.ErrorIs(t, err, planner.ErrJobFinished)
}

func TestCancelQueuedJobIsNeverRun(t *testing.T) {
	s := newService(t, testConfig(), nil)
	job, err := s.Submit(context.Background(), request(route.NameGreedy))
	require.NoError(t, err)

	cancelled, err := s.Cancel(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobCancelled, cancelled.Status)

	s.Start()
	time.Sleep(50 * time.Millisecond)
	stored, err := s.Job(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobCancelled, stored.Status)
	require.Nil(t, stored.StartedAt)
}

func TestCancelRunningJob(t *testing.T) {
	s := newService(t, testConfig(), nil)
	req := request(route.NameAnnealing)
	// Cools slowly enough to run until cancelled.
	req.Tuning = &route.Tuning{Annealing: route.AnnealingTuning{CoolingRate: 1e-9}}
	job, err := s.Submit(context.Background(), req)
	require.NoError(t, err)

	ch := s.Subscribe(job.ID)
	defer s.Unsubscribe(job.ID, ch)
	s.Start()
	waitFor(t, ch, planner.EventStarted)

	_, err = s.Cancel(context.Background(), job.ID)
	require.NoError(t, err)
	evt := waitFor(t, ch, planner.EventCancelled)
	require.Equal(t, model.JobCancelled, evt.Data["job"].(model.Job).Status)
}

func TestJobTimeoutFails(t *testing.T) {
	cfg := testConfig()
	cfg.JobTimeout = 20 * time.Millisecond
	s := newService(t, cfg, nil)
	req := request(route.NameAnnealing)
	req.Tuning = &route.Tuning{Annealing: route.AnnealingTuning{CoolingRate: 1e-9}}
	job, err := s.Submit(context.Background(), req)
	require.NoError(t, err)

	ch := s.Subscribe(job.ID)
	defer s.Unsubscribe(job.ID, ch)
	s.Start()
	evt := waitFor(t, ch, planner.EventFailed)
	require.Contains(t, evt.Data["job"].(model.Job).Error, "timed out")
}

func TestSubmitRateLimitAndQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1
	s := newService(t, cfg, nil)
	_, err := s.Submit(context.Background(), request(route.NameGreedy))
	require.NoError(t, err)
	_, err = s.Submit(context.Background(), request(route.NameGreedy))
	require.ErrorIs(t, err, planner.ErrRateLimited)

	cfg = testConfig()
	cfg.QueueSize = 1
	s = newService(t, cfg, nil)
	_, err = s.Submit(context.Background(), request(route.NameGreedy))
	require.NoError(t, err)
	_, err = s.Submit(context.Background(), request(route.NameGreedy))
	require.ErrorIs(t, err, planner.ErrQueueFull)

	jobs, _, err := s.Jobs(context.Background(), model.JobFailed, "", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}

func TestSubmitValidatesBeforeQueueing(t *testing.T) {
	s := newService(t, testConfig(), nil)
	req := request(route.NameGreedy)
	req.JumpRange = nil
	_, err := s.Submit(context.Background(), req)
	require.ErrorIs(t, err, route.ErrInvalidArgument)

	jobs, _, err := s.Jobs(context.Background(), "", "", 10)
	require.NoError(t, err)
	require.Empty(t, jobs)
}

func TestBenchmarkMarksReady(t *testing.T) {
	s := newService(t, testConfig(), nil)
	require.False(t, s.Ready())
	timings := s.Benchmark()
	require.NotEmpty(t, timings)
	require.True(t, s.Ready())
	require.Len(t, s.Ranking(), len(timings))
}

func TestCatalogFlagsSyncAndDefault(t *testing.T) {
	s := newService(t, testConfig(), nil)
	var sawDefault bool
	for _, a := range s.Catalog() {
		if a.Name == route.NameGreedy {
			require.True(t, a.Sync)
			require.True(t, a.Default)
			sawDefault = true
		}
		if a.Name == route.NameAnnealing {
			require.False(t, a.Sync)
		}
	}
	require.True(t, sawDefault)
}

func TestStatsAggregatePerAlgorithm(t *testing.T) {
	s := newService(t, testConfig(), nil)
	for i := 0; i < 3; i++ {
		_, err := s.Plan(context.Background(), request(route.NameGreedy))
		require.NoError(t, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Plan(ctx, request(route.NameExact))
	require.ErrorIs(t, err, context.Canceled)

	all := s.Stats("")
	require.Len(t, all, 2)
	require.Equal(t, route.NameExact, all[0].Algorithm)
	require.Equal(t, 1, all[0].Cancelled)
	require.Nil(t, all[0].Last)

	greedy := s.Stats(route.NameGreedy)
	require.Len(t, greedy, 1)
	require.Equal(t, 3, greedy[0].Runs)
	require.InDelta(t, 6.0, greedy[0].LastDistance, 1e-9)
	require.NotNil(t, greedy[0].Last)
}
