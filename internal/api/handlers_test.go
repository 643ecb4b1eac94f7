package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"jumpnav/internal/config"
	"jumpnav/internal/metrics"
	"jumpnav/internal/model"
	"jumpnav/internal/planner"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	metrics.RegisterDefault()
	cfg := config.Default()
	cfg.Planner.RateRPS = 0
	p := planner.New(cfg.Planner, cfg.Tuning, planner.Deps{})
	p.MarkReady()
	p.Start()
	t.Cleanup(p.Stop)
	s := NewServer(cfg, p, nil)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

const planBody = `{"algorithm":"greedy","origin":{"name":"home"},"waypoints":[{"name":"a","x":3},{"name":"b","x":6},{"name":"far","x":100}],"jumpRange":4}`

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHealthReady(t *testing.T) {
	s, ts := newTestServer(t)
	if resp := do(t, http.MethodGet, ts.URL+"/healthz", ""); resp.StatusCode != 200 {
		t.Fatalf("health: got %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, ts.URL+"/readyz", ""); resp.StatusCode != 200 {
		t.Fatalf("ready: got %d", resp.StatusCode)
	}

	cold := planner.New(s.Config.Planner, s.Config.Tuning, planner.Deps{})
	rr := httptest.NewRecorder()
	(&Server{Planner: cold}).ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("cold ready: got %d", rr.Code)
	}
}

func TestAlgorithmsListed(t *testing.T) {
	_, ts := newTestServer(t)
	resp := do(t, http.MethodGet, ts.URL+"/v1/algorithms", "")
	var body struct {
		Items []planner.AlgorithmInfo `json:"items"`
	}
	decode(t, resp, &body)
	if len(body.Items) != 6 {
		t.Fatalf("algorithms: got %d", len(body.Items))
	}
}

func TestPlanSync(t *testing.T) {
	_, ts := newTestServer(t)
	resp := do(t, http.MethodPost, ts.URL+"/v1/plan", planBody)
	if resp.StatusCode != 200 {
		t.Fatalf("plan: got %d", resp.StatusCode)
	}
	var res model.PlanResult
	decode(t, resp, &res)
	if len(res.Stops) != 2 || res.TotalDistance != 6 {
		t.Fatalf("plan: unexpected result %+v", res)
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != 2 {
		t.Fatalf("plan: skipped %v", res.Skipped)
	}
}

func TestPlanErrors(t *testing.T) {
	_, ts := newTestServer(t)
	cases := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"unknown field", `{"jumpRange":1,"bogus":true}`, http.StatusBadRequest},
		{"missing jump range", `{"waypoints":[]}`, http.StatusBadRequest},
		{"negative jump range", `{"waypoints":[],"jumpRange":-1}`, http.StatusBadRequest},
		{"unknown algorithm", `{"algorithm":"dijkstra","waypoints":[],"jumpRange":1}`, http.StatusNotFound},
		{"async only", `{"algorithm":"annealing","waypoints":[],"jumpRange":1}`, http.StatusConflict},
		{"bad tuning", `{"algorithm":"exact","waypoints":[],"jumpRange":1,"tuning":{"exact":{"maxWaypoints":-1}}}`, http.StatusBadRequest},
		{"tuning above server limit", `{"algorithm":"exact","waypoints":[],"jumpRange":1,"tuning":{"exact":{"maxWaypoints":1000}}}`, http.StatusBadRequest},
		{"unmeasurable coordinates", `{"origin":{"x":-1e308},"waypoints":[{"x":1e308}],"jumpRange":1}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, ts.URL+"/v1/plan", tc.body)
			if resp.StatusCode != tc.want {
				t.Fatalf("got %d, want %d", resp.StatusCode, tc.want)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
				t.Fatalf("content type %q", ct)
			}
		})
	}
}

func TestWriteErrorTimeout(t *testing.T) {
	rr := httptest.NewRecorder()
	err := fmt.Errorf("annealing: %w", context.DeadlineExceeded)
	writeError(rr, httptest.NewRequest(http.MethodPost, "/v1/plan", nil), err)
	if rr.Code != http.StatusGatewayTimeout {
		t.Fatalf("got %d, want 504", rr.Code)
	}
}

func waitJob(t *testing.T, base, id string) model.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var job model.Job
		decode(t, do(t, http.MethodGet, base+"/v1/jobs/"+id, ""), &job)
		if job.Status.Finished() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return model.Job{}
}

func TestJobSubmitGetList(t *testing.T) {
	_, ts := newTestServer(t)
	body := strings.Replace(planBody, `"greedy"`, `"genetic-permutation"`, 1)
	resp := do(t, http.MethodPost, ts.URL+"/v1/jobs", body)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit: got %d", resp.StatusCode)
	}
	var job model.Job
	decode(t, resp, &job)
	if resp.Header.Get("Location") != "/v1/jobs/"+job.ID {
		t.Fatalf("location header %q", resp.Header.Get("Location"))
	}

	done := waitJob(t, ts.URL, job.ID)
	if done.Status != model.JobSucceeded || done.Result == nil || len(done.Result.Stops) != 3 {
		t.Fatalf("job: %+v", done)
	}

	var list struct {
		Items []model.Job `json:"items"`
	}
	decode(t, do(t, http.MethodGet, ts.URL+"/v1/jobs?status=succeeded&limit=5", ""), &list)
	if len(list.Items) != 1 || list.Items[0].ID != job.ID {
		t.Fatalf("list: %+v", list.Items)
	}
	if resp := do(t, http.MethodGet, ts.URL+"/v1/jobs?status=bogus", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad status filter: got %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodDelete, ts.URL+"/v1/jobs/"+job.ID, ""); resp.StatusCode != http.StatusConflict {
		t.Fatalf("cancel finished: got %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, ts.URL+"/v1/jobs/nope", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing job: got %d", resp.StatusCode)
	}
}

const slowBody = `{"algorithm":"annealing","waypoints":[{"x":1},{"x":2},{"x":3}],"jumpRange":4,"tuning":{"annealing":{"coolingRate":1e-9}}}`

func TestCancelRunningJobOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)
	var job model.Job
	decode(t, do(t, http.MethodPost, ts.URL+"/v1/jobs", slowBody), &job)

	deadline := time.Now().Add(5 * time.Second)
	for {
		var cur model.Job
		decode(t, do(t, http.MethodGet, ts.URL+"/v1/jobs/"+job.ID, ""), &cur)
		if cur.Status == model.JobRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never started: %s", cur.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if resp := do(t, http.MethodDelete, ts.URL+"/v1/jobs/"+job.ID, ""); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("cancel: got %d", resp.StatusCode)
	}
	if done := waitJob(t, ts.URL, job.ID); done.Status != model.JobCancelled {
		t.Fatalf("status after cancel: %s", done.Status)
	}
}

func TestJobEventsSSE(t *testing.T) {
	_, ts := newTestServer(t)
	var job model.Job
	decode(t, do(t, http.MethodPost, ts.URL+"/v1/jobs", slowBody), &job)

	resp, err := http.Get(ts.URL + "/v1/jobs/" + job.ID + "/events")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}
	do(t, http.MethodDelete, ts.URL+"/v1/jobs/"+job.ID, "")

	var seen []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
			seen = append(seen, name)
		}
	}
	if len(seen) == 0 || seen[0] != "job.snapshot" || seen[len(seen)-1] != planner.EventCancelled {
		t.Fatalf("events: %v", seen)
	}
}

func TestJobEventsWebSocket(t *testing.T) {
	_, ts := newTestServer(t)
	var job model.Job
	decode(t, do(t, http.MethodPost, ts.URL+"/v1/jobs", planBody), &job)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/jobs/" + job.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var last wsMessage
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		last = msg
	}
	// Either the job finished before the dial (snapshot only) or the stream
	// ended on the success event.
	if last.Type != planner.EventSucceeded && last.Type != "job.snapshot" {
		t.Fatalf("last message %q", last.Type)
	}
	jb, _ := json.Marshal(last.Data["job"])
	var got model.Job
	_ = json.Unmarshal(jb, &got)
	if got.Status != model.JobSucceeded {
		t.Fatalf("final job status %s", got.Status)
	}
}

func TestDistanceEndpoints(t *testing.T) {
	_, ts := newTestServer(t)
	resp := do(t, http.MethodPost, ts.URL+"/v1/admin/distance/benchmark", "")
	if resp.StatusCode != 200 {
		t.Fatalf("benchmark: got %d", resp.StatusCode)
	}
	var body struct {
		Ranking []string `json:"ranking"`
	}
	decode(t, do(t, http.MethodGet, ts.URL+"/v1/distance/candidates", ""), &body)
	if len(body.Ranking) == 0 {
		t.Fatalf("ranking empty")
	}
}

func TestMetricsAndDebug(t *testing.T) {
	_, ts := newTestServer(t)
	do(t, http.MethodPost, ts.URL+"/v1/plan", planBody)
	resp := do(t, http.MethodGet, ts.URL+"/metrics", "")
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), `path="/v1/plan"`) {
		t.Fatalf("metrics missing plan route label")
	}
	var info map[string]any
	decode(t, do(t, http.MethodGet, ts.URL+"/debug/info", ""), &info)
	if _, ok := info["build"]; !ok {
		t.Fatalf("debug info: %v", info)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)
	if resp := do(t, http.MethodPut, ts.URL+"/v1/plan", ""); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("got %d", resp.StatusCode)
	}
}

func TestDocsAndStats(t *testing.T) {
	_, ts := newTestServer(t)
	if resp := do(t, http.MethodGet, ts.URL+"/openapi.yaml", ""); resp.StatusCode != 200 {
		t.Fatalf("openapi.yaml: got %d", resp.StatusCode)
	}
	var doc map[string]any
	decode(t, do(t, http.MethodGet, ts.URL+"/openapi.json", ""), &doc)
	if doc["openapi"] != "3.0.3" {
		t.Fatalf("openapi.json: %v", doc["openapi"])
	}

	do(t, http.MethodPost, ts.URL+"/v1/plan", planBody)
	var stats struct {
		Items []planner.AlgorithmStats `json:"items"`
	}
	decode(t, do(t, http.MethodGet, ts.URL+"/v1/admin/plan-stats?algorithm=greedy", ""), &stats)
	if len(stats.Items) != 1 || stats.Items[0].Runs != 1 {
		t.Fatalf("plan stats: %+v", stats.Items)
	}
}
