package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwygoda/golfscrape/internal/adapter/memory"
	"github.com/cwygoda/golfscrape/internal/domain"
	"github.com/cwygoda/golfscrape/internal/engine"
	"github.com/cwygoda/golfscrape/internal/logging"
)

type jobSet struct {
	jobs  map[string]engine.Job
	order []string
}

func (s *jobSet) add(j engine.Job) {
	if s.jobs == nil {
		s.jobs = make(map[string]engine.Job)
	}
	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)
}

func (s *jobSet) Get(id string) (engine.Job, bool) {
	j, ok := s.jobs[id]
	return j, ok
}

func (s *jobSet) IDs() []string { return s.order }

type fixture struct {
	runner *Runner
	sink   *memory.Sink
	ckpt   *memory.Checkpoints
	status *domain.StatusRegistry
}

func newFixture(jobs *jobSet, opts ...Option) *fixture {
	f := &fixture{
		sink:   memory.NewSink(),
		ckpt:   memory.NewCheckpoints(),
		status: domain.NewStatusRegistry(),
	}
	eng := engine.New(f.ckpt, f.sink, f.status)
	svc := domain.NewJobService(f.ckpt, f.sink, f.status)
	f.runner = New(eng, jobs, svc, logging.NewNop(), opts...)
	return f
}

// pages yields n single-record pages; each fetch waits for gate when set.
func pages(n int, gate <-chan struct{}) domain.PageFetcher {
	return domain.PageFetcherFunc(func(ctx context.Context, u domain.Unit) ([]domain.Record, bool, error) {
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, false, ctx.Err()
			}
		}
		if u.Page > n {
			return nil, false, nil
		}
		return []domain.Record{{"link": fmt.Sprintf("/store/%d", u.Page), "name": "Store"}}, u.Page < n, nil
	})
}

func job(id string, f domain.PageFetcher) engine.Job {
	return engine.Job{
		ID:          id,
		Strategy:    engine.Pages{},
		Fetcher:     f,
		Key:         []string{"link"},
		Concurrency: 1,
		Delay:       -1,
		Retry:       engine.RetryPolicy{Attempts: 1, Backoff: -1},
		FlushEvery:  1,
	}
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, e)
		case <-timeout:
			t.Fatal("stream did not end")
			return nil
		}
	}
}

func TestStartAndSubscribe_StreamsLogsThenEnd(t *testing.T) {
	jobs := &jobSet{}
	jobs.add(job("golfzon", pages(3, nil)))
	f := newFixture(jobs)

	run, events, cancel, err := f.runner.StartAndSubscribe("golfzon")
	require.NoError(t, err)
	defer cancel()
	assert.NotEmpty(t, run.ID)

	got := collect(t, events)
	require.NotEmpty(t, got)

	last := got[len(got)-1]
	assert.Equal(t, EventEnd, last.Type)
	summary, ok := last.Data.(engine.Summary)
	require.True(t, ok, "end event carries the summary")
	assert.Equal(t, engine.OutcomeCompleted, summary.Outcome)
	assert.Equal(t, 3, summary.Records)

	var logs []string
	for _, e := range got[:len(got)-1] {
		assert.Equal(t, EventLog, e.Type)
		logs = append(logs, e.Data.(string))
	}
	joined := strings.Join(logs, "\n")
	assert.Contains(t, joined, "INFO")
	assert.Contains(t, joined, "unit done")
	assert.Contains(t, joined, run.ID)
}

func TestSubscribe_LateSubscriberGetsReplay(t *testing.T) {
	jobs := &jobSet{}
	jobs.add(job("golfzon", pages(2, nil)))
	f := newFixture(jobs)

	_, _, err := f.runner.Subscribe("golfzon")
	assert.ErrorIs(t, err, domain.ErrJobNotRunning)

	_, events, cancel, err := f.runner.StartAndSubscribe("golfzon")
	require.NoError(t, err)
	collect(t, events)
	cancel()

	late, cancelLate, err := f.runner.Subscribe("golfzon")
	require.NoError(t, err)
	defer cancelLate()
	replayed := collect(t, late)
	require.NotEmpty(t, replayed)
	assert.Equal(t, EventEnd, replayed[len(replayed)-1].Type)
}

func TestStart_Errors(t *testing.T) {
	gate := make(chan struct{})
	jobs := &jobSet{}
	jobs.add(job("golfzon", pages(1, gate)))
	f := newFixture(jobs)

	_, err := f.runner.Start("nope")
	assert.ErrorIs(t, err, domain.ErrUnknownJob)

	_, err = f.runner.Start("golfzon")
	require.NoError(t, err)

	_, err = f.runner.Start("golfzon")
	assert.ErrorIs(t, err, domain.ErrJobRunning)

	close(gate)
	require.NoError(t, f.runner.Shutdown(context.Background()))
}

func TestStop_EmitsStopEvent(t *testing.T) {
	gate := make(chan struct{})
	jobs := &jobSet{}
	jobs.add(job("golfzon", pages(10, gate)))
	f := newFixture(jobs)

	assert.ErrorIs(t, f.runner.Stop("golfzon"), domain.ErrJobNotRunning)
	assert.ErrorIs(t, f.runner.Stop("nope"), domain.ErrUnknownJob)

	_, events, cancel, err := f.runner.StartAndSubscribe("golfzon")
	require.NoError(t, err)
	defer cancel()

	status, err := f.runner.Status("golfzon")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, status)

	gate <- struct{}{} // page 1 completes
	require.Eventually(t, func() bool {
		recs, _ := f.sink.LoadAll(context.Background(), "golfzon")
		return len(recs) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, f.runner.Stop("golfzon"))
	close(gate)

	got := collect(t, events)
	last := got[len(got)-1]
	assert.Equal(t, EventStop, last.Type)

	p, err := f.runner.Progress(context.Background(), "golfzon")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.Next.Minor, 2, "resume point is past the finished page")

	status, _ = f.runner.Status("golfzon")
	assert.Equal(t, domain.StatusIdle, status)
}

func TestFatal_EmitsErrorEvent(t *testing.T) {
	jobs := &jobSet{}
	jobs.add(job("golfzon", domain.PageFetcherFunc(func(context.Context, domain.Unit) ([]domain.Record, bool, error) {
		return nil, false, domain.Fatal(errors.New("site layout changed"))
	})))
	f := newFixture(jobs)

	_, events, cancel, err := f.runner.StartAndSubscribe("golfzon")
	require.NoError(t, err)
	defer cancel()

	got := collect(t, events)
	last := got[len(got)-1]
	assert.Equal(t, EventError, last.Type)
	data := last.Data.(map[string]any)
	assert.Contains(t, data["error"], "site layout changed")

	info, err := f.runner.Get("golfzon")
	require.NoError(t, err)
	require.NotNil(t, info.LastRun)
	assert.Contains(t, info.LastRun.Error, "site layout changed")
}

func TestList(t *testing.T) {
	jobs := &jobSet{}
	jobs.add(job("golfzon", pages(1, nil)))
	jobs.add(job("kakao", pages(1, nil)))
	f := newFixture(jobs)

	_, events, cancel, err := f.runner.StartAndSubscribe("kakao")
	require.NoError(t, err)
	collect(t, events)
	cancel()

	list := f.runner.List()
	require.Len(t, list, 2)
	assert.Equal(t, "golfzon", list[0].ID)
	assert.Nil(t, list[0].LastRun)
	assert.Equal(t, "kakao", list[1].ID)
	require.NotNil(t, list[1].LastRun)
	require.NotNil(t, list[1].LastRun.Summary)
	assert.Equal(t, engine.OutcomeCompleted, list[1].LastRun.Summary.Outcome)
	assert.NotNil(t, list[1].LastRun.EndedAt)
}

func TestResetProgressAndRecords(t *testing.T) {
	jobs := &jobSet{}
	jobs.add(job("golfzon", pages(1, nil)))
	f := newFixture(jobs)
	ctx := context.Background()

	require.NoError(t, f.ckpt.Save(ctx, "golfzon", domain.Progress{Next: domain.Position{Minor: 7}}))
	require.NoError(t, f.sink.Replace(ctx, "golfzon", []domain.Record{{"name": "A"}}))

	recs, err := f.runner.Records(ctx, "golfzon")
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	require.NoError(t, f.runner.ResetProgress(ctx, "golfzon"))
	p, _ := f.runner.Progress(ctx, "golfzon")
	assert.Equal(t, domain.Position{}, p.Next)

	_, err = f.runner.Records(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrUnknownJob)
}

func TestShutdown_StopsRunningJobs(t *testing.T) {
	gate := make(chan struct{})
	jobs := &jobSet{}
	jobs.add(job("golfzon", pages(100, gate)))
	f := newFixture(jobs)

	_, events, cancel, err := f.runner.StartAndSubscribe("golfzon")
	require.NoError(t, err)
	defer cancel()

	go func() {
		for range 2 {
			gate <- struct{}{}
		}
	}()
	require.Eventually(t, func() bool {
		recs, _ := f.sink.LoadAll(context.Background(), "golfzon")
		return len(recs) == 2
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancelCtx := context.WithTimeout(context.Background(), time.Second)
	defer cancelCtx()
	go func() {
		for f.status.Status("golfzon") != domain.StatusStopped {
			time.Sleep(time.Millisecond)
		}
		close(gate)
	}()
	require.NoError(t, f.runner.Shutdown(ctx))

	got := collect(t, events)
	assert.Equal(t, EventStop, got[len(got)-1].Type)
}

func TestHub_SlowClientDisconnected(t *testing.T) {
	h := newHub(10, 1)
	ch, cancel := h.subscribe()
	defer cancel()

	h.publish(Event{Type: EventLog, Data: "one"})
	h.publish(Event{Type: EventLog, Data: "two"})
	assert.Equal(t, 0, h.clientCount())

	e, ok := <-ch
	assert.True(t, ok)
	assert.Equal(t, "one", e.Data)
	_, ok = <-ch
	assert.False(t, ok, "channel closed after overflow")
}

func TestHub_ReplayIsBounded(t *testing.T) {
	h := newHub(2, 4)
	for i := range 5 {
		h.publish(Event{Type: EventLog, Data: i})
	}
	h.close(Event{Type: EventEnd})

	ch, _ := h.subscribe()
	var got []Event
	for e := range ch {
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, 4, got[0].Data)
	assert.True(t, got[1].Terminal())
}
