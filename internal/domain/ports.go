package domain

import "context"

// CheckpointStore is the driven port for per-job progress records.
type CheckpointStore interface {
	// Load returns the stored progress, or the zero Progress if none exists.
	Load(ctx context.Context, jobID string) (Progress, error)
	Save(ctx context.Context, jobID string, p Progress) error
	Delete(ctx context.Context, jobID string) error
}

// ResultSink is the driven port for a job's accumulated records.
type ResultSink interface {
	// LoadAll returns the stored records, or none if the job has no output yet.
	LoadAll(ctx context.Context, jobID string) ([]Record, error)
	// Replace makes records the complete stored output of the job.
	Replace(ctx context.Context, jobID string, records []Record) error
}

// PageFetcher is the driven port that retrieves and extracts one unit.
// A false hasMore, or no records, ends the unit's enumeration group.
// Errors wrapped with Fatal abort the job; any other error is retried.
type PageFetcher interface {
	Fetch(ctx context.Context, u Unit) (records []Record, hasMore bool, err error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, u Unit) ([]Record, bool, error)

// Fetch calls f.
func (f PageFetcherFunc) Fetch(ctx context.Context, u Unit) ([]Record, bool, error) {
	return f(ctx, u)
}
