package route

import (
	"math"
	"time"
)

// Metrics summarises one Run.
type Metrics struct {
	Iterations    int           `json:"iterations"`
	Improvements  int           `json:"improvements"`
	AcceptedWorse int           `json:"acceptedWorse"`
	Evaluations   int           `json:"evaluations"`
	BestCost      float64       `json:"bestCost"`
	FinalCost     float64       `json:"finalCost"`
	Snapshots     []Snapshot    `json:"snapshots,omitempty"`
	Elapsed       time.Duration `json:"elapsedNs"`
}

// Snapshot is recorded every time the best-so-far cost improves.
type Snapshot struct {
	Iteration int     `json:"iteration"`
	BestCost  float64 `json:"bestCost"`
}

const maxSnapshots = 256

func (m *Metrics) improve(iteration int, cost float64) {
	m.Improvements++
	m.BestCost = cost
	if math.IsInf(cost, 0) || len(m.Snapshots) >= maxSnapshots {
		return
	}
	m.Snapshots = append(m.Snapshots, Snapshot{Iteration: iteration, BestCost: cost})
}
