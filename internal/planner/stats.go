package planner

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"jumpnav/internal/model"
)

// AlgorithmStats aggregates the runs of one algorithm since process start.
type AlgorithmStats struct {
	Algorithm      string             `json:"algorithm"`
	Runs           int                `json:"runs"`
	Failures       int                `json:"failures"`
	Cancelled      int                `json:"cancelled"`
	MeanDurationMs float64            `json:"meanDurationMs"`
	LastDistance   float64            `json:"lastDistance"`
	Last           *model.PlanMetrics `json:"last,omitempty"`
	LastRunAt      time.Time          `json:"lastRunAt"`
}

type statsBook struct {
	mu sync.Mutex
	m  map[string]*AlgorithmStats
}

func (b *statsBook) record(name string, res *model.PlanResult, err error, elapsed time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.m == nil {
		b.m = map[string]*AlgorithmStats{}
	}
	st, ok := b.m[name]
	if !ok {
		st = &AlgorithmStats{Algorithm: name}
		b.m[name] = st
	}
	ms := float64(elapsed) / float64(time.Millisecond)
	st.MeanDurationMs += (ms - st.MeanDurationMs) / float64(st.Runs+1)
	st.Runs++
	st.LastRunAt = time.Now().UTC()
	switch {
	case err == nil:
		m := res.Metrics
		st.Last = &m
		st.LastDistance = res.TotalDistance
	case errors.Is(err, context.Canceled):
		st.Cancelled++
	default:
		st.Failures++
	}
}

// Stats returns per-algorithm aggregates, optionally for one algorithm only.
func (s *Service) Stats(algorithm string) []AlgorithmStats {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()
	out := []AlgorithmStats{}
	for name, st := range s.stats.m {
		if algorithm != "" && name != algorithm {
			continue
		}
		cp := *st
		if st.Last != nil {
			last := *st.Last
			cp.Last = &last
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Algorithm < out[j].Algorithm })
	return out
}
