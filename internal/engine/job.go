package engine

import (
	"errors"
	"time"

	"github.com/cwygoda/golfscrape/internal/domain"
)

const (
	DefaultConcurrency = 5
	DefaultDelay       = time.Second
	DefaultAttempts    = 3
	DefaultBackoff     = time.Second
	DefaultMaxFailures = 3
)

// Job is the full configuration of one scrape job. Site-specific jobs
// differ only in the values they put here.
type Job struct {
	ID        string
	Strategy  Strategy
	Fetcher   domain.PageFetcher
	Key       []string
	Validator domain.Validator

	// Concurrency bounds the units processed at once.
	Concurrency int
	// Delay is slept after each unit before its slot is released.
	// Negative disables it.
	Delay time.Duration
	Retry RetryPolicy
	// FlushEvery is the number of finished units between writes to the
	// result sink and checkpoint store. Defaults to Concurrency.
	FlushEvery int
	// MaxFailures is the number of consecutive failed units after which
	// the failing page sequence is treated as ended. Negative disables it.
	MaxFailures int
}

// RetryPolicy controls how a failing unit is retried.
type RetryPolicy struct {
	// Attempts includes the first try.
	Attempts int
	// Backoff is the constant wait between attempts.
	Backoff time.Duration
}

func (j Job) validate() error {
	switch {
	case j.ID == "":
		return errors.New("job id is required")
	case j.Strategy == nil:
		return errors.New("job strategy is required")
	case j.Fetcher == nil:
		return errors.New("job fetcher is required")
	}
	return nil
}

func (j Job) withDefaults() Job {
	if j.Concurrency <= 0 {
		j.Concurrency = DefaultConcurrency
	}
	if j.Delay == 0 {
		j.Delay = DefaultDelay
	}
	if j.Delay < 0 {
		j.Delay = 0
	}
	if j.Retry.Attempts <= 0 {
		j.Retry.Attempts = DefaultAttempts
	}
	if j.Retry.Backoff == 0 {
		j.Retry.Backoff = DefaultBackoff
	}
	if j.Retry.Backoff < 0 {
		j.Retry.Backoff = 0
	}
	if j.FlushEvery <= 0 {
		j.FlushEvery = j.Concurrency
	}
	if j.MaxFailures == 0 {
		j.MaxFailures = DefaultMaxFailures
	}
	return j
}
