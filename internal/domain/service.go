package domain

import (
	"context"
	"fmt"
)

// JobService exposes job status and persisted state to the dashboard.
type JobService struct {
	checkpoints CheckpointStore
	sink        ResultSink
	status      *StatusRegistry
}

// NewJobService creates a new JobService.
func NewJobService(checkpoints CheckpointStore, sink ResultSink, status *StatusRegistry) *JobService {
	return &JobService{checkpoints: checkpoints, sink: sink, status: status}
}

// Status returns the job's current status.
func (s *JobService) Status(jobID string) JobStatus {
	return s.status.Status(jobID)
}

// RequestStop asks a running job to stop after its in-flight units.
func (s *JobService) RequestStop(jobID string) error {
	if !s.status.RequestStop(jobID) {
		return ErrJobNotRunning
	}
	return nil
}

// Progress returns the job's checkpoint.
func (s *JobService) Progress(ctx context.Context, jobID string) (Progress, error) {
	p, err := s.checkpoints.Load(ctx, jobID)
	if err != nil {
		return Progress{}, fmt.Errorf("load progress: %w", err)
	}
	return p, nil
}

// ResetProgress discards the job's checkpoint so the next run starts over.
// The job is claimed for the duration, so no run can start mid-reset.
func (s *JobService) ResetProgress(ctx context.Context, jobID string) error {
	if !s.status.TryStart(jobID) {
		return ErrJobRunning
	}
	defer s.status.Reset(jobID)
	return s.checkpoints.Delete(ctx, jobID)
}

// Records returns the job's stored output.
func (s *JobService) Records(ctx context.Context, jobID string) ([]Record, error) {
	return s.sink.LoadAll(ctx, jobID)
}
