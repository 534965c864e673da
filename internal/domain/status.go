package domain

import "sync"

// StatusRegistry tracks the run status of every job. It is the cooperative
// cancellation signal polled by running jobs.
type StatusRegistry struct {
	mu       sync.RWMutex
	statuses map[string]JobStatus
}

// NewStatusRegistry creates an empty registry; every job starts idle.
func NewStatusRegistry() *StatusRegistry {
	return &StatusRegistry{statuses: make(map[string]JobStatus)}
}

// Status returns the job's status, idle if never set.
func (r *StatusRegistry) Status(jobID string) JobStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.statuses[jobID]; ok {
		return s
	}
	return StatusIdle
}

// SetStatus overwrites the job's status.
func (r *StatusRegistry) SetStatus(jobID string, s JobStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[jobID] = s
}

// Reset returns the job to idle.
func (r *StatusRegistry) Reset(jobID string) {
	r.SetStatus(jobID, StatusIdle)
}

// TryStart moves an idle job to running. A stopped job is still draining
// its in-flight units and cannot be started until it returns to idle.
func (r *StatusRegistry) TryStart(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.statuses[jobID]; ok && s != StatusIdle {
		return false
	}
	r.statuses[jobID] = StatusRunning
	return true
}

// RequestStop moves a running job to stopped. It returns false if the job
// was not running.
func (r *StatusRegistry) RequestStop(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statuses[jobID] != StatusRunning {
		return false
	}
	r.statuses[jobID] = StatusStopped
	return true
}
