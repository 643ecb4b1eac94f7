package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"jumpnav/internal/events"
	"jumpnav/internal/model"
	"jumpnav/internal/planner"
)

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler reports 503 until the distance benchmark ran or was skipped.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if !s.Planner.Ready() {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", "distance benchmark pending", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) AlgorithmsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.Planner.Catalog()})
}

func (s *Server) decodePlan(w http.ResponseWriter, r *http.Request) (model.PlanRequest, bool) {
	var req model.PlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return req, false
	}
	if err := validatePlanRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid plan request", err.Error(), r.URL.Path)
		return req, false
	}
	return req, true
}

// PlanHandler handles POST /v1/plan
func (s *Server) PlanHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePlan(w, r)
	if !ok {
		return
	}
	res, err := s.Planner.Plan(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SubmitJobHandler handles POST /v1/jobs
func (s *Server) SubmitJobHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePlan(w, r)
	if !ok {
		return
	}
	job, err := s.Planner.Submit(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

// ListJobsHandler handles GET /v1/jobs?status=&cursor=&limit=
func (s *Server) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := model.JobStatus(q.Get("status"))
	switch status {
	case "", model.JobQueued, model.JobRunning, model.JobSucceeded, model.JobFailed, model.JobCancelled:
	default:
		writeProblem(w, http.StatusBadRequest, "Invalid status", string(status), r.URL.Path)
		return
	}
	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be within [1, 1000]", r.URL.Path)
			return
		}
		limit = n
	}
	items, next, err := s.Planner.Jobs(r.Context(), status, q.Get("cursor"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	job, err := s.Planner.Job(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelJobHandler handles DELETE /v1/jobs/{id}. Running jobs answer 202
// and report cancellation on the event stream.
func (s *Server) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	job, err := s.Planner.Cancel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if !job.Status.Finished() {
		status = http.StatusAccepted
	}
	writeJSON(w, status, job)
}

const heartbeatEvery = 15 * time.Second

// JobEventsHandler streams job events as Server-Sent Events until the job
// finishes or the client goes away.
func (s *Server) JobEventsHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	ch := s.Planner.Subscribe(id)
	defer s.Planner.Unsubscribe(id, ch)
	// Subscribe first so a transition between the lookup and the stream is not lost.
	job, err := s.Planner.Job(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(evt events.Event) {
		b, _ := json.Marshal(evt.Data)
		fmt.Fprintf(w, "event: %s\n", evt.Type)
		fmt.Fprintf(w, "data: %s\n\n", b)
		flusher.Flush()
	}
	send(events.Event{Type: "job.snapshot", Data: map[string]any{"job": job}})
	if job.Status.Finished() {
		return
	}

	heartbeat := time.NewTicker(heartbeatEvery)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			send(evt)
			if terminal(evt.Type) {
				return
			}
		case <-heartbeat.C:
			send(events.Event{Type: "heartbeat", Data: map[string]any{"jobId": id, "ts": time.Now().UTC().Format(time.RFC3339)}})
		}
	}
}

func terminal(eventType string) bool {
	switch eventType {
	case planner.EventSucceeded, planner.EventFailed, planner.EventCancelled:
		return true
	}
	return false
}

func (s *Server) CandidatesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ranking":   s.Planner.Ranking(),
		"benchmark": s.Planner.LastBenchmark(),
	})
}

// BenchmarkHandler re-ranks the distance candidates.
func (s *Server) BenchmarkHandler(w http.ResponseWriter, r *http.Request) {
	timings := s.Planner.Benchmark()
	writeJSON(w, http.StatusOK, map[string]any{
		"ranking":   s.Planner.Ranking(),
		"benchmark": timings,
	})
}

// PlanStatsHandler handles GET /v1/admin/plan-stats?algorithm=
func (s *Server) PlanStatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.Planner.Stats(r.URL.Query().Get("algorithm"))})
}
