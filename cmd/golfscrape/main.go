package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/cwygoda/golfscrape/internal/adapter/http"
	"github.com/cwygoda/golfscrape/internal/adapter/memory"
	"github.com/cwygoda/golfscrape/internal/adapter/site"
	"github.com/cwygoda/golfscrape/internal/adapter/sqlite"
	"github.com/cwygoda/golfscrape/internal/config"
	"github.com/cwygoda/golfscrape/internal/domain"
	"github.com/cwygoda/golfscrape/internal/engine"
	"github.com/cwygoda/golfscrape/internal/logging"
	"github.com/cwygoda/golfscrape/internal/runner"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "golfscrape: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel})
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting golfscrape",
		logging.Int("port", cfg.Port),
		logging.String("store", cfg.Store),
		logging.String("jobs", cfg.JobsFile),
	)

	jobsFile, err := config.LoadJobs(cfg.JobsFile)
	if err != nil {
		return err
	}

	// Checkpoints and results share one backend.
	var (
		checkpoints domain.CheckpointStore
		sink        domain.ResultSink
	)
	switch cfg.Store {
	case config.StoreSQLite:
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		defer store.Close()
		checkpoints, sink = store, store
		logger.Info("using sqlite store", logging.String("path", cfg.DBPath))
	default:
		checkpoints, sink = memory.NewCheckpoints(), memory.NewSink()
		logger.Warn("using in-memory store, progress is lost on exit")
	}

	registry, err := site.LoadRegistry(jobsFile.Jobs, sink)
	if err != nil {
		return err
	}
	logger.Info("jobs loaded", logging.Int("count", len(registry.IDs())))

	status := domain.NewStatusRegistry()
	eng := engine.New(checkpoints, sink, status,
		engine.WithLogger(logger),
		engine.WithGlobalLimit(int64(cfg.MaxConcurrentUnits)),
	)
	svc := domain.NewJobService(checkpoints, sink, status)
	jobs := runner.New(eng, registry, svc, logger)

	srv := httpAdapter.NewServer(jobs, fmt.Sprintf(":%d", cfg.Port), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, srv, jobs, logger, 30*time.Second)
}

type httpServer interface {
	Addr() string
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type runStopper interface {
	Shutdown(ctx context.Context) error
}

// serve runs srv until ctx is done or the listener fails, then stops the
// runs and the server. A listener failure is returned after shutdown.
func serve(ctx context.Context, srv httpServer, jobs runStopper, logger logging.Logger, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", logging.String("addr", srv.Addr()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
		logger.Error("HTTP server error", logging.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	// Stop runs first so their final flush lands before the store closes.
	if err := jobs.Shutdown(shutdownCtx); err != nil {
		logger.Warn("runs did not stop in time", logging.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", logging.Error(err))
	}

	if serveErr != nil {
		return fmt.Errorf("serve http: %w", serveErr)
	}
	logger.Info("shutdown complete")
	return nil
}
