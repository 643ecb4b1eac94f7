package model

import (
	"time"

	"jumpnav/internal/route"
)

// Wire types for the planning API.

type Point struct {
	Name string  `json:"name,omitempty" validate:"max=128"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
}

type PlanRequest struct {
	Algorithm string  `json:"algorithm,omitempty"`
	Origin    Point   `json:"origin"`
	Waypoints []Point `json:"waypoints" validate:"max=5000,dive"`
	// JumpRange is required; a pointer so that an explicit 0 is distinguishable from a missing value.
	JumpRange      *float64      `json:"jumpRange" validate:"required,gte=0"`
	Seed           int64         `json:"seed,omitempty"`
	Tuning         *route.Tuning `json:"tuning,omitempty"`
	CallbackURL    string        `json:"callbackUrl,omitempty" validate:"omitempty,url"`
	CallbackSecret string        `json:"callbackSecret,omitempty" validate:"omitempty,min=8"`
}

type Stop struct {
	Index       int     `json:"index"`
	Name        string  `json:"name,omitempty"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
	LegDistance float64 `json:"legDistance"`
}

type PlanMetrics struct {
	Iterations    int     `json:"iterations"`
	Improvements  int     `json:"improvements"`
	AcceptedWorse int     `json:"acceptedWorse"`
	Evaluations   int     `json:"evaluations"`
	BestCost      float64 `json:"bestCost"`
	Feasible      bool    `json:"feasible"`
}

type PlanResult struct {
	Algorithm     string      `json:"algorithm"`
	JumpRange     string      `json:"jumpRangePolicy"`
	Seed          int64       `json:"seed"`
	Stops         []Stop      `json:"stops"`
	TotalDistance float64     `json:"totalDistance"`
	Visited       int         `json:"visited"`
	Skipped       []int       `json:"skipped"`
	DurationMs    int64       `json:"durationMs"`
	Metrics       PlanMetrics `json:"metrics"`
}

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Finished reports whether the job reached a terminal state.
func (s JobStatus) Finished() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

type Job struct {
	ID          string      `json:"id"`
	Status      JobStatus   `json:"status"`
	Algorithm   string      `json:"algorithm"`
	Waypoints   int         `json:"waypoints"`
	CreatedAt   time.Time   `json:"createdAt"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	FinishedAt  *time.Time  `json:"finishedAt,omitempty"`
	Error       string      `json:"error,omitempty"`
	Result      *PlanResult `json:"result,omitempty"`
	CallbackURL string      `json:"-"`
	CallbackKey string      `json:"-"`
}
