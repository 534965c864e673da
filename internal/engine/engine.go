// Package engine runs resumable, cancellable scrape jobs.
//
// A run loads the job's checkpoint and stored records, enumerates units from
// the checkpoint onwards and processes them with bounded concurrency. Record
// and checkpoint writes for a run go through a single mutex. A stop request
// in the status registry ends dispatch; in-flight units drain and the
// checkpoint is kept so the next run resumes where this one left off.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/cwygoda/golfscrape/internal/domain"
	"github.com/cwygoda/golfscrape/internal/logging"
)

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeStopped   Outcome = "stopped"
	OutcomeFailed    Outcome = "failed"
)

// Summary describes a finished run.
type Summary struct {
	Outcome Outcome `json:"outcome"`
	// Units counts units finished in this run, including failed ones.
	Units   int `json:"units"`
	Failed  int `json:"failed"`
	Kept    int `json:"kept"`
	Dropped int `json:"dropped"`
	// Records is the size of the job's output after the run.
	Records  int             `json:"records"`
	Progress domain.Progress `json:"progress"`
	Duration time.Duration   `json:"duration"`
}

// Engine runs jobs against shared stores.
type Engine struct {
	checkpoints domain.CheckpointStore
	sink        domain.ResultSink
	status      *domain.StatusRegistry
	logger      logging.Logger
	global      *semaphore.Weighted
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used when a run is started without one.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithGlobalLimit caps the units processed at once across all jobs.
func WithGlobalLimit(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.global = semaphore.NewWeighted(n)
		}
	}
}

// New creates an Engine.
func New(checkpoints domain.CheckpointStore, sink domain.ResultSink, status *domain.StatusRegistry, opts ...Option) *Engine {
	e := &Engine{
		checkpoints: checkpoints,
		sink:        sink,
		status:      status,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle tracks a run started with Start.
type Handle struct {
	done    chan struct{}
	summary Summary
	err     error
}

// Done is closed when the run has ended.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the run ends and returns its result.
func (h *Handle) Wait() (Summary, error) {
	<-h.done
	return h.summary, h.err
}

// Start claims the job and runs it in the background. It fails with
// domain.ErrJobRunning if the job is already running.
func (e *Engine) Start(ctx context.Context, job Job, log logging.Logger) (*Handle, error) {
	if err := job.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = e.logger
	}
	if !e.status.TryStart(job.ID) {
		return nil, domain.ErrJobRunning
	}

	h := &Handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer e.status.Reset(job.ID)
		h.summary, h.err = e.run(ctx, job.withDefaults(), log.With(logging.String("job", job.ID)))
	}()
	return h, nil
}

// Run runs the job to completion, stop or failure.
func (e *Engine) Run(ctx context.Context, job Job, log logging.Logger) (Summary, error) {
	h, err := e.Start(ctx, job, log)
	if err != nil {
		return Summary{Outcome: OutcomeFailed}, err
	}
	return h.Wait()
}

func (e *Engine) run(ctx context.Context, job Job, log logging.Logger) (Summary, error) {
	started := time.Now()
	failed := func(err error) (Summary, error) {
		log.Error("job failed", logging.Error(err))
		return Summary{Outcome: OutcomeFailed, Duration: time.Since(started)}, err
	}

	prev, err := e.checkpoints.Load(ctx, job.ID)
	if err != nil {
		return failed(domain.Fatal(fmt.Errorf("load progress: %w", err)))
	}
	existing, err := e.sink.LoadAll(ctx, job.ID)
	if err != nil {
		return failed(domain.Fatal(fmt.Errorf("load records: %w", err)))
	}
	enum, err := job.Strategy.Open(ctx, prev.Next)
	if err != nil {
		return failed(domain.Fatal(err))
	}

	acc := domain.NewAccumulator(job.Key)
	acc.Merge(existing...)

	if prev.Next != (domain.Position{}) || len(prev.Finished) > 0 {
		log.Info("resuming job",
			logging.Stringer("from", prev.Next),
			logging.Int("finished_ahead", len(prev.Finished)),
			logging.Int("records", acc.Len()),
		)
	} else {
		log.Info("starting job", logging.Int("records", acc.Len()))
	}

	r := &run{
		engine:  e,
		job:     job,
		log:     log,
		enum:    enum,
		prev:    prev,
		persist: context.WithoutCancel(ctx),
		acc:     acc,
		track:   newTracker(prev),
		streak:  make(map[int]int),
	}
	loopErr := r.loop(ctx)

	sum, err := r.conclude(ctx, loopErr)
	sum.Duration = time.Since(started)
	return sum, err
}

// run is the state of one job execution.
type run struct {
	engine  *Engine
	job     Job
	log     logging.Logger
	enum    Enumerator
	prev    domain.Progress
	persist context.Context

	mu         sync.Mutex
	acc        *domain.Accumulator
	track      *tracker
	sinceFlush int
	streak     map[int]int // consecutive failed units per Pos.Major
	stopped    bool
	sum        Summary
}

func (r *run) loop(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.job.Concurrency)

	for {
		u, ok := r.enum.Next()
		if !ok {
			break
		}
		if r.prev.IsFinished(u.Pos) {
			r.mu.Lock()
			r.track.skip(u)
			r.mu.Unlock()
			continue
		}
		if r.stopRequested(gctx) {
			r.mu.Lock()
			r.track.hold(u)
			r.stopped = true
			r.mu.Unlock()
			break
		}

		r.mu.Lock()
		r.track.dispatch(u)
		r.mu.Unlock()
		g.Go(func() error { return r.process(gctx, u) })
	}
	return g.Wait()
}

func (r *run) stopRequested(ctx context.Context) bool {
	return ctx.Err() != nil || r.engine.status.Status(r.job.ID) == domain.StatusStopped
}

// abandon leaves u unfinished so the checkpoint resumes at it.
func (r *run) abandon(u domain.Unit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	r.log.Debug("unit left for next run", logging.Stringer("unit", u))
}

func (r *run) process(ctx context.Context, u domain.Unit) error {
	if r.stopRequested(ctx) {
		r.abandon(u)
		return nil
	}
	if r.engine.global != nil {
		if err := r.engine.global.Acquire(ctx, 1); err != nil {
			r.abandon(u)
			return nil
		}
		defer r.engine.global.Release(1)
	}
	defer r.pause(ctx)

	records, more, attempts, err := r.fetch(ctx, u)
	switch {
	case err != nil && domain.IsFatal(err):
		r.log.Error("unit aborted job", logging.Stringer("unit", u), logging.Error(err))
		return err
	case err != nil && ctx.Err() != nil:
		r.abandon(u)
		return nil
	case err != nil:
		r.log.Error("unit failed, skipping",
			logging.Stringer("unit", u),
			logging.Int("attempts", attempts),
			logging.Error(err),
		)
		r.finish(u, nil, 0, true)
		return nil
	}

	if len(records) == 0 || !more {
		r.enum.Exhausted(u)
		r.log.Info("no more data", logging.Stringer("unit", u), logging.Int("records", len(records)))
	}

	kept, dropped := r.validate(u, records)
	r.finish(u, kept, dropped, false)
	return nil
}

func (r *run) validate(u domain.Unit, records []domain.Record) ([]domain.Record, int) {
	kept := make([]domain.Record, 0, len(records))
	dropped := 0
	for _, rec := range records {
		if err := r.job.Validator.Validate(rec); err != nil {
			r.log.Warn("record dropped", logging.Stringer("unit", u), logging.Error(err))
			dropped++
			continue
		}
		kept = append(kept, rec)
	}
	return kept, dropped
}

func (r *run) finish(u domain.Unit, kept []domain.Record, dropped int, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.acc.Merge(kept...)
	r.track.finish(u)
	r.sum.Units++
	r.sum.Kept += len(kept)
	r.sum.Dropped += dropped
	if failed {
		r.sum.Failed++
		r.streak[u.Pos.Major]++
		if n := r.streak[u.Pos.Major]; u.Item == nil && r.job.MaxFailures > 0 && n >= r.job.MaxFailures {
			r.enum.Exhausted(u)
			r.log.Warn("too many failed units, ending sequence",
				logging.Stringer("unit", u),
				logging.Int("failures", n),
			)
		}
	} else {
		r.streak[u.Pos.Major] = 0
		r.log.Info("unit done",
			logging.Stringer("unit", u),
			logging.Int("kept", len(kept)),
			logging.Int("total", r.acc.Len()),
		)
	}

	r.sinceFlush++
	if r.sinceFlush >= r.job.FlushEvery {
		_ = r.flushLocked()
	}
}

// flushLocked writes records, then the checkpoint that covers them.
func (r *run) flushLocked() error {
	if err := r.engine.sink.Replace(r.persist, r.job.ID, r.acc.Records()); err != nil {
		r.log.Error("write records failed", logging.Error(err))
		return fmt.Errorf("write records: %w", err)
	}
	if err := r.engine.checkpoints.Save(r.persist, r.job.ID, r.track.snapshot()); err != nil {
		r.log.Error("write progress failed", logging.Error(err))
		return fmt.Errorf("write progress: %w", err)
	}
	r.sinceFlush = 0
	return nil
}

func (r *run) pause(ctx context.Context) {
	if r.job.Delay <= 0 {
		return
	}
	t := time.NewTimer(r.job.Delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (r *run) conclude(ctx context.Context, loopErr error) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sum := r.sum
	sum.Records = r.acc.Len()

	if loopErr != nil {
		_ = r.flushLocked()
		sum.Outcome = OutcomeFailed
		sum.Progress = r.track.snapshot()
		r.log.Error("job failed", logging.Error(loopErr), logging.Stringer("resume_at", sum.Progress.Next))
		return sum, loopErr
	}

	if r.stopped || r.track.pending() > 0 || ctx.Err() != nil {
		if err := r.flushLocked(); err != nil {
			sum.Outcome = OutcomeFailed
			return sum, err
		}
		sum.Outcome = OutcomeStopped
		sum.Progress = r.track.snapshot()
		r.log.Info("job stopped",
			logging.Stringer("resume_at", sum.Progress.Next),
			logging.Int("units", sum.Units),
			logging.Int("records", sum.Records),
		)
		return sum, nil
	}

	if err := r.engine.sink.Replace(r.persist, r.job.ID, r.acc.Records()); err != nil {
		sum.Outcome = OutcomeFailed
		r.log.Error("write records failed", logging.Error(err))
		return sum, fmt.Errorf("write records: %w", err)
	}
	if err := r.engine.checkpoints.Delete(r.persist, r.job.ID); err != nil {
		r.log.Warn("clear progress failed", logging.Error(err))
	}
	sum.Outcome = OutcomeCompleted
	r.log.Info("job completed",
		logging.Int("units", sum.Units),
		logging.Int("failed", sum.Failed),
		logging.Int("dropped", sum.Dropped),
		logging.Int("records", sum.Records),
	)
	return sum, nil
}
