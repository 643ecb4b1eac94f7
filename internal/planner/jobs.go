package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jumpnav/internal/events"
	"jumpnav/internal/logsink"
	"jumpnav/internal/metrics"
	"jumpnav/internal/model"
)

const (
	EventQueued    = "job.queued"
	EventStarted   = "job.started"
	EventSucceeded = "job.succeeded"
	EventFailed    = "job.failed"
	EventCancelled = "job.cancelled"
)

// Submit queues the request as a job.
func (s *Service) Submit(ctx context.Context, req model.PlanRequest) (model.Job, error) {
	if !s.limiter.Allow() {
		return model.Job{}, ErrRateLimited
	}
	name, err := s.algorithm(req)
	if err != nil {
		return model.Job{}, err
	}
	if _, err := s.params(req, logsink.Discard); err != nil {
		return model.Job{}, err
	}
	job, err := s.store.CreateJob(ctx, model.Job{
		Algorithm:   name,
		Waypoints:   len(req.Waypoints),
		CallbackURL: req.CallbackURL,
		CallbackKey: req.CallbackSecret,
	})
	if err != nil {
		return model.Job{}, err
	}
	req.Algorithm = name
	select {
	case s.queue <- queued{id: job.ID, req: req}:
	default:
		now := time.Now().UTC()
		_, _ = s.store.UpdateJob(ctx, job.ID, func(j *model.Job) error {
			j.Status = model.JobFailed
			j.Error = ErrQueueFull.Error()
			j.FinishedAt = &now
			return nil
		})
		return model.Job{}, ErrQueueFull
	}
	metrics.JobsQueued.Inc()
	s.publish(EventQueued, job)
	logsink.Debugf(s.log, "planner: job %s queued (%s, %d waypoints)", job.ID, name, job.Waypoints)
	return job, nil
}

func (s *Service) Job(ctx context.Context, id string) (model.Job, error) {
	return s.store.GetJob(ctx, id)
}

func (s *Service) Jobs(ctx context.Context, status model.JobStatus, cursor string, limit int) ([]model.Job, string, error) {
	return s.store.ListJobs(ctx, status, cursor, limit)
}

// Subscribe streams events for one job. Callers must Unsubscribe.
func (s *Service) Subscribe(id string) chan events.Event { return s.broker.Subscribe(id) }

func (s *Service) Unsubscribe(id string, ch chan events.Event) { s.broker.Unsubscribe(id, ch) }

// Cancel stops a queued or running job. Queued jobs are marked cancelled
// immediately; running jobs transition once the algorithm notices.
func (s *Service) Cancel(ctx context.Context, id string) (model.Job, error) {
	var wasQueued bool
	job, err := s.store.UpdateJob(ctx, id, func(j *model.Job) error {
		if j.Status.Finished() {
			return ErrJobFinished
		}
		if j.Status == model.JobQueued {
			wasQueued = true
			now := time.Now().UTC()
			j.Status = model.JobCancelled
			j.FinishedAt = &now
		}
		return nil
	})
	if err != nil {
		return job, err
	}
	if wasQueued {
		metrics.JobsQueued.Dec()
		s.publish(EventCancelled, job)
		return job, nil
	}
	s.mu.Lock()
	cancel := s.cancels[id]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return job, nil
}

// Start launches the worker pool and the retention sweeper.
func (s *Service) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	workers := max(s.cfg.Workers, 1)
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	if s.cfg.JobRetention > 0 {
		s.wg.Add(1)
		go s.sweep()
	}
	logsink.Infof(s.log, "planner: %d workers started", workers)
}

// Stop cancels running jobs and waits for the workers to exit. Jobs still
// queued stay queued.
func (s *Service) Stop() {
	if !s.started.Load() {
		return
	}
	select {
	case <-s.stop:
		return
	default:
	}
	close(s.stop)
	s.mu.Lock()
	for _, c := range s.cancels {
		c()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Service) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case q := <-s.queue:
			s.process(q)
		}
	}
}

func (s *Service) sweep() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			n, _ := s.store.PruneFinished(context.Background(), time.Now().Add(-s.cfg.JobRetention))
			if n > 0 {
				logsink.Debugf(s.log, "planner: pruned %d finished jobs", n)
			}
		}
	}
}

var errSkip = errors.New("job no longer queued")

func (s *Service) process(q queued) {
	timeout := s.cfg.JobTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Registered before the job turns running so Cancel never sees a
	// running job without a cancel func.
	s.mu.Lock()
	s.cancels[q.id] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.cancels, q.id)
		s.mu.Unlock()
	}()

	job, err := s.store.UpdateJob(ctx, q.id, func(j *model.Job) error {
		if j.Status != model.JobQueued {
			return errSkip
		}
		now := time.Now().UTC()
		j.Status = model.JobRunning
		j.StartedAt = &now
		return nil
	})
	if err != nil {
		return
	}

	metrics.JobsQueued.Dec()
	metrics.JobsRunning.Inc()
	s.publish(EventStarted, job)

	res, runErr := s.run(ctx, q.req.Algorithm, q.req, logsink.Tagged(s.log, q.id))
	metrics.JobsRunning.Dec()

	job, err = s.store.UpdateJob(context.Background(), q.id, func(j *model.Job) error {
		now := time.Now().UTC()
		j.FinishedAt = &now
		switch {
		case runErr == nil:
			j.Status = model.JobSucceeded
			j.Result = &res
		case errors.Is(runErr, context.Canceled):
			j.Status = model.JobCancelled
		case errors.Is(runErr, context.DeadlineExceeded):
			j.Status = model.JobFailed
			j.Error = fmt.Sprintf("timed out after %s", timeout)
		default:
			j.Status = model.JobFailed
			j.Error = runErr.Error()
		}
		return nil
	})
	if err != nil {
		logsink.Errorf(s.log, "planner: job %s vanished before completion: %v", q.id, err)
		return
	}
	evt := map[model.JobStatus]string{
		model.JobSucceeded: EventSucceeded,
		model.JobCancelled: EventCancelled,
		model.JobFailed:    EventFailed,
	}[job.Status]
	s.publish(evt, job)
	logsink.Infof(s.log, "planner: job %s %s", job.ID, job.Status)

	if job.CallbackURL != "" && s.notifier != nil {
		if _, err := s.notifier.Emit(job.CallbackURL, job.CallbackKey, evt, job); err != nil {
			logsink.Warnf(s.log, "planner: callback for job %s not queued: %v", job.ID, err)
		}
	}
}

func (s *Service) publish(typ string, job model.Job) {
	s.broker.Publish(job.ID, events.Event{Type: typ, Data: map[string]any{"job": job}})
}
