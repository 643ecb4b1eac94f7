package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestNotifierDeliversSigned(t *testing.T) {
	var mu sync.Mutex
	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotSig = r.Header.Get(SignatureHeader)
		gotType = r.Header.Get(EventHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	n := NewNotifier(3, time.Second, nil)
	n.HTTP = srv.Client()
	if _, err := n.Emit(srv.URL, "topsecret", "job.succeeded", map[string]any{"jobId": "j1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	n.processOnce()

	mu.Lock()
	defer mu.Unlock()
	if gotType != "job.succeeded" {
		t.Fatalf("event type header = %q", gotType)
	}
	if !VerifyHMAC("topsecret", gotBody, gotSig) {
		t.Fatalf("signature does not verify: %q", gotSig)
	}
	var env map[string]any
	if err := json.Unmarshal(gotBody, &env); err != nil || env["type"] != "job.succeeded" {
		t.Fatalf("bad envelope: %s", gotBody)
	}
	if n.Pending() != 0 {
		t.Fatalf("delivered callback should leave the queue")
	}
}

func TestNotifierRetriesThenGivesUp(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(500)
	}))
	defer srv.Close()

	clock := time.Now()
	n := NewNotifier(2, time.Second, nil)
	n.HTTP = srv.Client()
	n.now = func() time.Time { return clock }
	_, _ = n.Emit(srv.URL, "", "job.failed", nil)

	n.processOnce()
	if n.Pending() != 1 || calls != 1 {
		t.Fatalf("first failure should be retried later: pending=%d calls=%d", n.Pending(), calls)
	}
	n.processOnce()
	if calls != 1 {
		t.Fatalf("retry must wait for backoff, calls=%d", calls)
	}
	clock = clock.Add(nextBackoff(1))
	n.processOnce()
	if calls != 2 || n.Pending() != 0 {
		t.Fatalf("second failure should exhaust attempts: pending=%d calls=%d", n.Pending(), calls)
	}
	failed := n.Failed()
	if len(failed) != 1 || failed[0].LastError != "status 500" {
		t.Fatalf("failed deliveries = %+v", failed)
	}
}

func TestFailedDeliveriesAreCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	n := NewNotifier(1, time.Second, nil)
	n.HTTP = srv.Client()
	n.FailedLimit = 2
	var ids []string
	for _, evt := range []string{"job.failed", "job.cancelled", "job.succeeded"} {
		id, _ := n.Emit(srv.URL, "", evt, nil)
		ids = append(ids, id)
		n.processOnce()
	}
	failed := n.Failed()
	if len(failed) != 2 {
		t.Fatalf("kept %d failed deliveries, want 2", len(failed))
	}
	if failed[0].ID != ids[1] || failed[1].ID != ids[2] {
		t.Fatalf("expected the newest failures, got %s and %s", failed[0].ID, failed[1].ID)
	}
}

func TestNextBackoff(t *testing.T) {
	if nextBackoff(0) != time.Second || nextBackoff(3) != 8*time.Second {
		t.Fatalf("unexpected backoff values")
	}
	if nextBackoff(50) != 1024*time.Second {
		t.Fatalf("backoff should cap the exponent")
	}
	if VerifyHMAC("k", []byte("x"), "zz") {
		t.Fatalf("non-hex signature must not verify")
	}
}
