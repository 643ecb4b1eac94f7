package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"jumpnav/internal/distance"
	"jumpnav/internal/planner"
	"jumpnav/internal/route"
	"jumpnav/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

const maxBodyBytes = 4 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body")
		}
		return err
	}
	return nil
}

// writeError maps service errors onto problem documents.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, title := http.StatusInternalServerError, "Internal Error"
	switch {
	case errors.Is(err, route.ErrInvalidArgument):
		status, title = http.StatusBadRequest, "Invalid request"
	case errors.Is(err, planner.ErrUnknownAlgorithm):
		status, title = http.StatusNotFound, "Unknown algorithm"
	case errors.Is(err, store.ErrNotFound):
		status, title = http.StatusNotFound, "Job not found"
	case errors.Is(err, planner.ErrJobFinished):
		status, title = http.StatusConflict, "Job already finished"
	case errors.Is(err, planner.ErrNotSync):
		status, title = http.StatusConflict, "Submit as a job"
	case errors.Is(err, planner.ErrRateLimited):
		w.Header().Set("Retry-After", "1")
		status, title = http.StatusTooManyRequests, "Too Many Requests"
	case errors.Is(err, distance.ErrComputation):
		status, title = http.StatusUnprocessableEntity, "Coordinates out of range"
	case errors.Is(err, context.DeadlineExceeded):
		status, title = http.StatusGatewayTimeout, "Planning timed out"
	case errors.Is(err, planner.ErrQueueFull):
		w.Header().Set("Retry-After", "5")
		status, title = http.StatusServiceUnavailable, "Job queue full"
	}
	writeProblem(w, status, title, err.Error(), r.URL.Path)
}
