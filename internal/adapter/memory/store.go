// Package memory keeps checkpoints and results in process memory.
package memory

import (
	"context"
	"sync"

	"github.com/cwygoda/golfscrape/internal/domain"
)

// Checkpoints implements domain.CheckpointStore in memory.
type Checkpoints struct {
	mu       sync.Mutex
	progress map[string]domain.Progress
}

// NewCheckpoints creates an empty checkpoint store.
func NewCheckpoints() *Checkpoints {
	return &Checkpoints{progress: make(map[string]domain.Progress)}
}

func (c *Checkpoints) Load(_ context.Context, jobID string) (domain.Progress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyProgress(c.progress[jobID]), nil
}

func (c *Checkpoints) Save(_ context.Context, jobID string, p domain.Progress) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress[jobID] = copyProgress(p)
	return nil
}

func (c *Checkpoints) Delete(_ context.Context, jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.progress, jobID)
	return nil
}

func copyProgress(p domain.Progress) domain.Progress {
	if p.Finished != nil {
		p.Finished = append([]domain.Position(nil), p.Finished...)
	}
	return p
}

// Sink implements domain.ResultSink in memory.
type Sink struct {
	mu      sync.Mutex
	records map[string][]domain.Record
}

// NewSink creates an empty result sink.
func NewSink() *Sink {
	return &Sink{records: make(map[string][]domain.Record)}
}

func (s *Sink) LoadAll(_ context.Context, jobID string) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecords(s.records[jobID]), nil
}

func (s *Sink) Replace(_ context.Context, jobID string, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[jobID] = cloneRecords(records)
	return nil
}

func cloneRecords(in []domain.Record) []domain.Record {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Record, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
