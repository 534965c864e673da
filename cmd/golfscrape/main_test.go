package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/cwygoda/golfscrape/internal/logging"
)

type stubServer struct {
	listenErr error
	closed    chan struct{}
	once      sync.Once
	shutdowns int
}

func newStubServer(listenErr error) *stubServer {
	return &stubServer{listenErr: listenErr, closed: make(chan struct{})}
}

func (s *stubServer) Addr() string { return ":0" }

func (s *stubServer) ListenAndServe() error {
	if s.listenErr != nil {
		return s.listenErr
	}
	<-s.closed
	return http.ErrServerClosed
}

func (s *stubServer) Shutdown(context.Context) error {
	s.shutdowns++
	s.once.Do(func() { close(s.closed) })
	return nil
}

type stubRuns struct{ shutdowns int }

func (r *stubRuns) Shutdown(context.Context) error {
	r.shutdowns++
	return nil
}

func TestServe_ListenFailureIsReturned(t *testing.T) {
	srv := newStubServer(errors.New("listen tcp :8080: bind: address already in use"))
	runs := &stubRuns{}

	err := serve(context.Background(), srv, runs, logging.NewNop(), time.Second)
	if err == nil {
		t.Fatal("serve() error = nil, want the listener error")
	}
	if !errors.Is(err, srv.listenErr) {
		t.Errorf("serve() error = %v, want it to wrap %v", err, srv.listenErr)
	}
	if runs.shutdowns != 1 || srv.shutdowns != 1 {
		t.Errorf("shutdowns = runs %d, server %d; want 1, 1", runs.shutdowns, srv.shutdowns)
	}
}

func TestServe_SignalShutsDownCleanly(t *testing.T) {
	srv := newStubServer(nil)
	runs := &stubRuns{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := serve(ctx, srv, runs, logging.NewNop(), time.Second); err != nil {
		t.Errorf("serve() error = %v, want nil", err)
	}
	if runs.shutdowns != 1 || srv.shutdowns != 1 {
		t.Errorf("shutdowns = runs %d, server %d; want 1, 1", runs.shutdowns, srv.shutdowns)
	}
}
