package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cwygoda/golfscrape/internal/domain"
	"github.com/cwygoda/golfscrape/internal/logging"
	"github.com/cwygoda/golfscrape/internal/runner"
)

// JobControl is the driving port the dashboard calls into.
type JobControl interface {
	List() []runner.JobInfo
	Get(jobID string) (runner.JobInfo, error)
	Start(jobID string) (runner.Run, error)
	Stop(jobID string) error
	Progress(ctx context.Context, jobID string) (domain.Progress, error)
	ResetProgress(ctx context.Context, jobID string) error
	Records(ctx context.Context, jobID string) ([]domain.Record, error)
	Subscribe(jobID string) (<-chan runner.Event, func(), error)
	StartAndSubscribe(jobID string) (runner.Run, <-chan runner.Event, func(), error)
}

const heartbeatInterval = 15 * time.Second

// Server is the HTTP adapter for the scrape dashboard.
type Server struct {
	jobs   JobControl
	logger logging.Logger
	mux    *http.ServeMux
	server *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(jobs JobControl, addr string, logger logging.Logger) *Server {
	s := &Server{
		jobs:   jobs,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.routes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("POST /jobs/{id}/start", s.handleStartJob)
	s.mux.HandleFunc("POST /jobs/{id}/stop", s.handleStopJob)
	s.mux.HandleFunc("DELETE /jobs/{id}/progress", s.handleResetProgress)
	s.mux.HandleFunc("GET /jobs/{id}/records", s.handleRecords)
	s.mux.HandleFunc("GET /jobs/{id}/stream", s.handleStream)
}

// jobResponse is the JSON response for a single job.
type jobResponse struct {
	runner.JobInfo
	Progress domain.Progress `json:"progress"`
}

// startResponse is the JSON response for POST /jobs/{id}/start.
type startResponse struct {
	RunID string `json:"run_id"`
	JobID string `json:"job_id"`
}

// recordsResponse is the JSON response for GET /jobs/{id}/records.
type recordsResponse struct {
	Count   int             `json:"count"`
	Records []domain.Record `json:"records"`
}

// errorResponse is the JSON error response.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.jobs.List())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	info, err := s.jobs.Get(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	p, err := s.jobs.Progress(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, jobResponse{JobInfo: info, Progress: p})
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	run, err := s.jobs.Start(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, startResponse{RunID: run.ID, JobID: run.JobID})
}

func (s *Server) handleStopJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.jobs.Stop(id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id, "status": string(domain.StatusStopped)})
}

func (s *Server) handleResetProgress(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs.ResetProgress(r.Context(), r.PathValue("id")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.jobs.Records(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []domain.Record{}
	}
	s.writeJSON(w, http.StatusOK, recordsResponse{Count: len(records), Records: records})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	id := r.PathValue("id")
	events, cancel, err := s.subscribe(id, wantsStart(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	defer cancel()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, e); err != nil {
				s.logger.Debug("stream write failed", logging.String("job", id), logging.Error(err))
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// subscribe attaches to the job's latest run, starting a new one first
// when start is set. A start request for a running job attaches to it.
func (s *Server) subscribe(id string, start bool) (<-chan runner.Event, func(), error) {
	if start {
		run, events, cancel, err := s.jobs.StartAndSubscribe(id)
		if err == nil {
			s.logger.Info("job started from stream", logging.String("job", id), logging.String("run", run.ID))
			return events, cancel, nil
		}
		if !errors.Is(err, domain.ErrJobRunning) {
			return nil, nil, err
		}
	}
	return s.jobs.Subscribe(id)
}

func wantsStart(r *http.Request) bool {
	v := r.URL.Query().Get("start")
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// writeEvent writes e in text/event-stream framing. String payloads are
// sent as is, anything else as JSON.
func writeEvent(w http.ResponseWriter, e runner.Event) error {
	var data string
	switch v := e.Data.(type) {
	case string:
		data = v
	case nil:
		data = "{}"
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		data = string(b)
	}

	var sb strings.Builder
	sb.WriteString("event: ")
	sb.WriteString(e.Type)
	sb.WriteByte('\n')
	for _, line := range strings.Split(data, "\n") {
		sb.WriteString("data: ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	_, err := w.Write([]byte(sb.String()))
	return err
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownJob):
		s.writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, domain.ErrJobRunning):
		s.writeError(w, http.StatusConflict, "job already running")
	case errors.Is(err, domain.ErrJobNotRunning):
		s.writeError(w, http.StatusConflict, "job not running")
	default:
		s.logger.Error("request failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.server.Addr
}
