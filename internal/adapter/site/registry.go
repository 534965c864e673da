package site

import (
	"context"
	"fmt"

	"github.com/cwygoda/golfscrape/internal/config"
	"github.com/cwygoda/golfscrape/internal/domain"
	"github.com/cwygoda/golfscrape/internal/engine"
)

// Registry holds the configured jobs in definition order.
type Registry struct {
	jobs  map[string]engine.Job
	order []string
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]engine.Job)}
}

// Register adds a job. Job ids must be unique.
func (r *Registry) Register(j engine.Job) error {
	if _, ok := r.jobs[j.ID]; ok {
		return fmt.Errorf("job %s already registered", j.ID)
	}
	r.jobs[j.ID] = j
	r.order = append(r.order, j.ID)
	return nil
}

// Get returns the job with id.
func (r *Registry) Get(id string) (engine.Job, bool) {
	j, ok := r.jobs[id]
	return j, ok
}

// IDs returns the registered job ids in definition order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// LoadRegistry builds every job in jobs. Items jobs read their input from
// sink, where the input job stores its output.
func LoadRegistry(jobs []config.JobConfig, sink domain.ResultSink) (*Registry, error) {
	r := NewRegistry()
	for _, jc := range jobs {
		j, err := BuildJob(jc, sink)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", jc.ID, err)
		}
		if err := r.Register(j); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// BuildJob turns a job definition into an engine job backed by a Fetcher.
func BuildJob(jc config.JobConfig, sink domain.ResultSink) (engine.Job, error) {
	fields, err := ParseFields(jc.Fields)
	if err != nil {
		return engine.Job{}, err
	}

	var strategy engine.Strategy
	switch jc.Strategy {
	case config.StrategyPages, "":
		strategy = engine.Pages{First: jc.FirstPage, Last: jc.LastPage}
	case config.StrategyRegions:
		strategy = engine.Regions{Names: jc.Regions, FirstPage: jc.FirstPage, MaxPages: jc.MaxPages}
	case config.StrategyItems:
		input := jc.Input
		strategy = engine.Items{Load: func(ctx context.Context) ([]domain.Record, error) {
			return sink.LoadAll(ctx, input)
		}}
	default:
		return engine.Job{}, fmt.Errorf("unknown strategy %q", jc.Strategy)
	}

	client := NewClient(ClientOptions{
		Timeout:   jc.Timeout,
		UserAgent: jc.UserAgent,
		Headers:   jc.Headers,
		RateLimit: jc.RateLimit,
	})

	return engine.Job{
		ID:       jc.ID,
		Strategy: strategy,
		Fetcher: &Fetcher{
			Client:       client,
			URL:          jc.URL,
			ItemSelector: jc.ItemSelector,
			NextSelector: jc.NextSelector,
			Fields:       fields,
		},
		Key:         jc.Key,
		Validator:   domain.Validator{Required: jc.Required, PhoneField: jc.PhoneField},
		Concurrency: jc.Concurrency,
		Delay:       jc.Delay,
		Retry:       engine.RetryPolicy{Attempts: jc.Attempts, Backoff: jc.Backoff},
		FlushEvery:  jc.FlushEvery,
		MaxFailures: jc.MaxFailures,
	}, nil
}
