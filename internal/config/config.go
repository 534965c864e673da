package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Store backends for checkpoints and results.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config holds process configuration.
type Config struct {
	Port               int
	Store              string
	DBPath             string
	JobsFile           string
	LogLevel           string
	MaxConcurrentUnits int
}

// DefaultDBPath returns the default database path using XDG_CACHE_HOME.
func DefaultDBPath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "golfscrape", "state.db")
}

// DefaultJobsFile returns the default job definition path using XDG_CONFIG_HOME.
func DefaultJobsFile() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "golfscrape", "jobs.toml")
}

// Load parses command-line flags and environment to build Config.
func Load() (*Config, error) {
	return Parse(os.Args[1:])
}

// Parse builds Config from args, then applies environment overrides.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("golfscrape", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", 8080, "HTTP server port")
	fs.StringVar(&cfg.Store, "store", StoreSQLite, "Checkpoint and result store (memory or sqlite)")
	fs.StringVar(&cfg.DBPath, "db", DefaultDBPath(), "SQLite database path")
	fs.StringVar(&cfg.JobsFile, "jobs", DefaultJobsFile(), "Job definition file (TOML)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level")
	fs.IntVar(&cfg.MaxConcurrentUnits, "max-units", 0, "Units in flight across all jobs (0 = unlimited)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Env overrides
	if port := os.Getenv("GOLFSCRAPE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if store := os.Getenv("GOLFSCRAPE_STORE"); store != "" {
		cfg.Store = store
	}
	if db := os.Getenv("GOLFSCRAPE_DB"); db != "" {
		cfg.DBPath = db
	}
	if jobs := os.Getenv("GOLFSCRAPE_JOBS"); jobs != "" {
		cfg.JobsFile = jobs
	}
	if level := os.Getenv("GOLFSCRAPE_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if cfg.Store != StoreMemory && cfg.Store != StoreSQLite {
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
	return cfg, nil
}
