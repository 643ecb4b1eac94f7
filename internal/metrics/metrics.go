package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route template, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Plans counts finished planning runs by algorithm and outcome
	Plans = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "plans_total", Help: "Planning runs by algorithm and status."},
		[]string{"algorithm", "status"},
	)
	// PlanDuration tracks how long each algorithm runs
	PlanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "plan_duration_seconds", Help: "Planning run duration in seconds.", Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 15, 60}},
		[]string{"algorithm"},
	)
	// PlanDistance observes the total route distance produced
	PlanDistance = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "plan_route_distance", Help: "Total distance of planned routes.", Buckets: prometheus.ExponentialBuckets(1, 4, 12)},
		[]string{"algorithm"},
	)
	// PlanStops observes how many waypoints made it into a route
	PlanStops = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "plan_stops", Help: "Waypoints visited per planned route.", Buckets: prometheus.ExponentialBuckets(1, 2, 12)},
		[]string{"algorithm"},
	)

	JobsQueued  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "planner_jobs_queued", Help: "Jobs waiting for a worker."})
	JobsRunning = prometheus.NewGauge(prometheus.GaugeOpts{Name: "planner_jobs_running", Help: "Jobs currently running."})

	// DistanceFallbacks counts distance candidates that failed and fell through
	DistanceFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "distance_fallbacks_total", Help: "Distance candidate failures by candidate."},
		[]string{"candidate"},
	)

	// CallbackDeliveries counts job callback outcomes by status
	CallbackDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "callback_deliveries_total", Help: "Job completion callbacks by status."},
		[]string{"status"},
	)
	// CallbackLatency tracks callback delivery latencies in milliseconds
	CallbackLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "callback_delivery_latency_ms", Help: "Callback delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"status"},
	)

	// LogDropped exposes messages lost by the log queue
	LogDropped = prometheus.NewCounter(prometheus.CounterOpts{Name: "log_messages_dropped_total", Help: "Log messages dropped by a full queue."})
)

// RegisterDefault registers collectors to the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Plans, PlanDuration, PlanDistance, PlanStops)
		Registry.MustRegister(JobsQueued, JobsRunning)
		Registry.MustRegister(DistanceFallbacks)
		Registry.MustRegister(CallbackDeliveries, CallbackLatency)
		Registry.MustRegister(LogDropped)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
