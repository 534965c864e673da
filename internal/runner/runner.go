// Package runner starts engine runs in the background and streams their
// logs and outcomes to subscribers.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwygoda/golfscrape/internal/domain"
	"github.com/cwygoda/golfscrape/internal/engine"
	"github.com/cwygoda/golfscrape/internal/logging"
)

// Jobs looks up configured jobs.
type Jobs interface {
	Get(id string) (engine.Job, bool)
	IDs() []string
}

// Run is one execution of a job.
type Run struct {
	ID        string          `json:"id"`
	JobID     string          `json:"job_id"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	Summary   *engine.Summary `json:"summary,omitempty"`
	Error     string          `json:"error,omitempty"`

	hub *hub
}

// JobInfo is a job's dashboard view.
type JobInfo struct {
	ID      string           `json:"id"`
	Status  domain.JobStatus `json:"status"`
	LastRun *Run             `json:"last_run,omitempty"`
}

// Option configures a Runner.
type Option func(*Runner)

// WithReplaySize sets how many recent events a late subscriber receives.
func WithReplaySize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.replay = n
		}
	}
}

// WithClientBufferSize sets the per-subscriber buffer beyond the replay.
func WithClientBufferSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.bufferSize = n
		}
	}
}

// Runner is the job control surface used by the dashboard.
type Runner struct {
	engine  *engine.Engine
	jobs    Jobs
	service *domain.JobService
	logger  logging.Logger

	replay     int
	bufferSize int

	mu   sync.Mutex
	runs map[string]*Run
	wg   sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Runner.
func New(eng *engine.Engine, jobs Jobs, service *domain.JobService, logger logging.Logger, opts ...Option) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		engine:     eng,
		jobs:       jobs,
		service:    service,
		logger:     logger,
		replay:     DefaultReplaySize,
		bufferSize: DefaultClientBufferSize,
		runs:       make(map[string]*Run),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches a run of jobID. It fails with domain.ErrUnknownJob or
// domain.ErrJobRunning.
func (r *Runner) Start(jobID string) (Run, error) {
	job, ok := r.jobs.Get(jobID)
	if !ok {
		return Run{}, domain.ErrUnknownJob
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	run := &Run{
		ID:        uuid.NewString(),
		JobID:     jobID,
		StartedAt: time.Now(),
		hub:       newHub(r.replay, r.bufferSize),
	}
	log := logging.Tee(r.logger, func(line string) {
		run.hub.publish(Event{Type: EventLog, Data: line})
	}).With(logging.String("run", run.ID))

	h, err := r.engine.Start(r.ctx, job, log)
	if err != nil {
		return Run{}, err
	}
	r.runs[jobID] = run

	r.wg.Add(1)
	go r.await(run, h)
	return *run, nil
}

func (r *Runner) await(run *Run, h *engine.Handle) {
	defer r.wg.Done()
	summary, err := h.Wait()

	r.mu.Lock()
	ended := time.Now()
	run.EndedAt = &ended
	run.Summary = &summary
	if err != nil {
		run.Error = err.Error()
	}
	r.mu.Unlock()

	run.hub.close(terminalEvent(summary, err))
}

func terminalEvent(summary engine.Summary, err error) Event {
	switch {
	case err != nil:
		return Event{Type: EventError, Data: map[string]any{"error": err.Error(), "summary": summary}}
	case summary.Outcome == engine.OutcomeStopped:
		return Event{Type: EventStop, Data: summary}
	default:
		return Event{Type: EventEnd, Data: summary}
	}
}

// Stop asks a running job to stop after its in-flight units.
func (r *Runner) Stop(jobID string) error {
	if err := r.known(jobID); err != nil {
		return err
	}
	return r.service.RequestStop(jobID)
}

// Status returns the job's run state.
func (r *Runner) Status(jobID string) (domain.JobStatus, error) {
	if err := r.known(jobID); err != nil {
		return "", err
	}
	return r.service.Status(jobID), nil
}

// Get returns the job's dashboard view.
func (r *Runner) Get(jobID string) (JobInfo, error) {
	if err := r.known(jobID); err != nil {
		return JobInfo{}, err
	}
	return r.info(jobID), nil
}

// List returns every configured job in definition order.
func (r *Runner) List() []JobInfo {
	ids := r.jobs.IDs()
	out := make([]JobInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.info(id))
	}
	return out
}

func (r *Runner) info(jobID string) JobInfo {
	info := JobInfo{ID: jobID, Status: r.service.Status(jobID)}
	r.mu.Lock()
	if run, ok := r.runs[jobID]; ok {
		snapshot := *run
		info.LastRun = &snapshot
	}
	r.mu.Unlock()
	return info
}

// Progress returns the job's stored checkpoint.
func (r *Runner) Progress(ctx context.Context, jobID string) (domain.Progress, error) {
	if err := r.known(jobID); err != nil {
		return domain.Progress{}, err
	}
	return r.service.Progress(ctx, jobID)
}

// ResetProgress discards the checkpoint of an idle job.
func (r *Runner) ResetProgress(ctx context.Context, jobID string) error {
	if err := r.known(jobID); err != nil {
		return err
	}
	return r.service.ResetProgress(ctx, jobID)
}

// Records returns the job's stored output.
func (r *Runner) Records(ctx context.Context, jobID string) ([]domain.Record, error) {
	if err := r.known(jobID); err != nil {
		return nil, err
	}
	return r.service.Records(ctx, jobID)
}

// Subscribe streams the latest run of jobID, starting with its replay
// history. It fails with domain.ErrJobNotRunning if the job never ran.
func (r *Runner) Subscribe(jobID string) (<-chan Event, func(), error) {
	if err := r.known(jobID); err != nil {
		return nil, nil, err
	}
	r.mu.Lock()
	run, ok := r.runs[jobID]
	r.mu.Unlock()
	if !ok {
		return nil, nil, domain.ErrJobNotRunning
	}
	ch, cancel := run.hub.subscribe()
	return ch, cancel, nil
}

// StartAndSubscribe starts jobID and subscribes to the new run before any
// of its events can be missed.
func (r *Runner) StartAndSubscribe(jobID string) (Run, <-chan Event, func(), error) {
	run, err := r.Start(jobID)
	if err != nil {
		return Run{}, nil, nil, err
	}
	ch, cancel := run.hub.subscribe()
	return run, ch, cancel, nil
}

// Shutdown asks every running job to stop and waits for the runs to
// flush. When ctx expires first, runs are cancelled outright.
func (r *Runner) Shutdown(ctx context.Context) error {
	for _, id := range r.jobs.IDs() {
		if r.service.RequestStop(id) == nil {
			r.logger.Info("stopping job", logging.String("job", id))
		}
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}

func (r *Runner) known(jobID string) error {
	if _, ok := r.jobs.Get(jobID); !ok {
		return domain.ErrUnknownJob
	}
	return nil
}
