// Package webhooks posts job completion callbacks to caller supplied URLs,
// retrying with exponential backoff.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"jumpnav/internal/logsink"
	"jumpnav/internal/metrics"
)

// Delivery is one pending callback.
type Delivery struct {
	ID            string
	URL           string
	Secret        string
	EventType     string
	Payload       []byte
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
}

// Notifier keeps pending deliveries in memory and retries them from a
// background loop until they succeed or run out of attempts.
type Notifier struct {
	HTTP        *http.Client
	MaxAttempts int
	// FailedLimit caps the given-up deliveries kept for inspection; the
	// oldest are dropped first.
	FailedLimit int
	Stop        chan struct{}
	Log         logsink.Sink

	mu      sync.Mutex
	pending []*Delivery
	failed  []Delivery
	now     func() time.Time
	stopped sync.Once
}

const defaultFailedLimit = 256

func NewNotifier(maxAttempts int, timeout time.Duration, log logsink.Sink) *Notifier {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		HTTP:        &http.Client{Timeout: timeout},
		MaxAttempts: maxAttempts,
		FailedLimit: defaultFailedLimit,
		Stop:        make(chan struct{}),
		Log:         log,
		now:         time.Now,
	}
}

// Emit wraps data in an event envelope and queues it for url.
func (n *Notifier) Emit(url, secret, eventType string, data any) (string, error) {
	id := uuid.New().String()
	body, err := json.Marshal(map[string]any{
		"id":   "evt_" + id,
		"type": eventType,
		"ts":   n.now().UTC().Format(time.RFC3339),
		"data": data,
	})
	if err != nil {
		return "", err
	}
	n.mu.Lock()
	n.pending = append(n.pending, &Delivery{ID: id, URL: url, Secret: secret, EventType: eventType, Payload: body, NextAttemptAt: n.now()})
	n.mu.Unlock()
	return id, nil
}

// Start runs the delivery loop until Close.
func (n *Notifier) Start() {
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-n.Stop:
				return
			case <-ticker.C:
				n.processOnce()
			}
		}
	}()
}

func (n *Notifier) Close() { n.stopped.Do(func() { close(n.Stop) }) }

// Pending returns the number of deliveries still waiting.
func (n *Notifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

// Failed returns deliveries that exhausted their attempts.
func (n *Notifier) Failed() []Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Delivery(nil), n.failed...)
}

func (n *Notifier) due() []*Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	var out []*Delivery
	for _, d := range n.pending {
		if !d.NextAttemptAt.After(now) {
			out = append(out, d)
		}
	}
	return out
}

func (n *Notifier) processOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, d := range n.due() {
		code, err := n.deliver(ctx, d)
		success := err == nil && code >= 200 && code < 300
		n.settle(d, success, code, err)
	}
}

func (n *Notifier) deliver(ctx context.Context, d *Delivery) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, d.EventType)
	req.Header.Set(DeliveryHeader, d.ID)
	if d.Secret != "" {
		req.Header.Set(SignatureHeader, SignHMAC(d.Secret, d.Payload))
	}
	start := time.Now()
	resp, err := n.HTTP.Do(req)
	latency := float64(time.Since(start).Milliseconds())
	code := 0
	if resp != nil {
		code = resp.StatusCode
		_ = resp.Body.Close()
	}
	metrics.CallbackLatency.WithLabelValues(strconv.Itoa(code)).Observe(latency)
	return code, err
}

func (n *Notifier) settle(d *Delivery, success bool, code int, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	d.Attempts++
	switch {
	case success:
		metrics.CallbackDeliveries.WithLabelValues("delivered").Inc()
		n.remove(d)
	case d.Attempts >= n.MaxAttempts:
		d.LastError = errText(code, err)
		metrics.CallbackDeliveries.WithLabelValues("failed").Inc()
		logsink.Warnf(n.Log, "webhooks: giving up on %s to %s after %d attempts: %s", d.ID, d.URL, d.Attempts, d.LastError)
		n.failed = append(n.failed, *d)
		if n.FailedLimit > 0 && len(n.failed) > n.FailedLimit {
			n.failed = append(n.failed[:0:0], n.failed[len(n.failed)-n.FailedLimit:]...)
		}
		n.remove(d)
	default:
		d.LastError = errText(code, err)
		d.NextAttemptAt = n.now().Add(nextBackoff(d.Attempts))
		metrics.CallbackDeliveries.WithLabelValues("retry").Inc()
	}
}

func (n *Notifier) remove(d *Delivery) {
	for i, p := range n.pending {
		if p == d {
			n.pending = append(n.pending[:i], n.pending[i+1:]...)
			return
		}
	}
}

func errText(code int, err error) string {
	if err != nil {
		return err.Error()
	}
	return "status " + strconv.Itoa(code)
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
