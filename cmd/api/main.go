package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jumpnav/internal/api"
	"jumpnav/internal/config"
	"jumpnav/internal/distance"
	"jumpnav/internal/events"
	"jumpnav/internal/logsink"
	"jumpnav/internal/metrics"
	"jumpnav/internal/planner"
	"jumpnav/internal/store"
	"jumpnav/internal/webhooks"
)

func main() {
	cfgPath := flag.String("config", "", "path to the YAML config (default $PLANNER_CONFIG or "+config.DefaultPath+")")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.RegisterDefault()

	// Algorithm and service logs go through a bounded queue so a slow
	// stderr never stalls a planning run.
	logCtx, stopLogs := context.WithCancel(context.Background())
	queue := logsink.NewQueue(cfg.Log.QueueSize)
	logsDone := make(chan struct{})
	go func() {
		defer close(logsDone)
		queue.Run(logCtx, logsink.NewStd(os.Stderr, cfg.Level()))
	}()
	go reportDropped(ctx, queue)

	provider := distance.NewProvider(
		distance.WithLog(logsink.Tagged(queue, "distance")),
		distance.WithBenchmarkRounds(cfg.Distance.BenchmarkRounds),
		distance.WithFallbackHook(func(name string, err error) {
			metrics.DistanceFallbacks.WithLabelValues(name).Inc()
		}),
	)

	var broker events.Broker = events.NewMemory()
	if cfg.Server.RedisURL != "" {
		rb, err := events.NewRedis(cfg.Server.RedisURL)
		if err == nil {
			err = rb.Ping(ctx)
		}
		if err != nil {
			log.Printf("redis broker unavailable, using in-memory events: %v", err)
		} else {
			defer func() { _ = rb.Close() }()
			broker = rb
			log.Printf("job events via redis pub/sub")
		}
	}

	notifier := webhooks.NewNotifier(cfg.Webhooks.MaxAttempts, cfg.Webhooks.Timeout, logsink.Tagged(queue, "callbacks"))
	notifier.Start()
	defer notifier.Close()

	svc := planner.New(cfg.Planner, cfg.Tuning, planner.Deps{
		Distance: provider,
		Store:    store.NewMemory(),
		Broker:   broker,
		Notifier: notifier,
		Log:      logsink.Tagged(queue, "planner"),
	})
	if cfg.Distance.BenchmarkOnStart {
		go func() {
			timings := svc.Benchmark()
			log.Printf("distance candidates ranked: %v (%d timed)", svc.Ranking(), len(timings))
		}()
	} else {
		svc.MarkReady()
	}
	svc.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           logMiddleware(api.NewServer(cfg, svc, notifier).Router()),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	go func() {
		log.Printf("API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	svc.Stop()
	stopLogs()
	<-logsDone
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		dur := time.Since(start)
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
	})
}

// reportDropped mirrors the queue's drop count into the prometheus counter.
func reportDropped(ctx context.Context, q *logsink.Queue) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	var seen int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := q.Dropped(); n > seen {
				metrics.LogDropped.Add(float64(n - seen))
				seen = n
			}
		}
	}
}
