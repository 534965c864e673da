package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cwygoda/golfscrape/internal/domain"
	"github.com/cwygoda/golfscrape/internal/logging"
)

// fetch calls the job's fetcher with the retry policy. Each attempt starts
// from scratch. Fatal errors are returned without retrying.
func (r *run) fetch(ctx context.Context, u domain.Unit) ([]domain.Record, bool, int, error) {
	var (
		records  []domain.Record
		more     bool
		attempts int
	)

	op := func() error {
		attempts++
		recs, m, err := r.job.Fetcher.Fetch(ctx, u)
		if err != nil {
			if domain.IsFatal(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		records, more = recs, m
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(r.job.Retry.Backoff),
			uint64(r.job.Retry.Attempts-1),
		),
		ctx,
	)

	notify := func(err error, wait time.Duration) {
		r.log.Warn("unit attempt failed, retrying",
			logging.Stringer("unit", u),
			logging.Int("attempt", attempts),
			logging.Duration("wait", wait),
			logging.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, false, attempts, err
	}
	return records, more, attempts, nil
}
