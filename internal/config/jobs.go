package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Enumeration strategies a job can use.
const (
	StrategyPages   = "pages"
	StrategyItems   = "items"
	StrategyRegions = "regions"
)

// JobsFile is the TOML job definition file.
type JobsFile struct {
	Defaults JobDefaults `toml:"defaults"`
	Jobs     []JobConfig `toml:"job"`
}

// JobDefaults apply to every job that leaves the field unset.
type JobDefaults struct {
	Concurrency int           `toml:"concurrency"`
	Delay       time.Duration `toml:"delay"`
	Attempts    int           `toml:"attempts"`
	Backoff     time.Duration `toml:"backoff"`
	FlushEvery  int           `toml:"flush_every"`
	MaxFailures int           `toml:"max_failures"`
	RateLimit   float64       `toml:"rate_limit"`
	Timeout     time.Duration `toml:"timeout"`
	UserAgent   string        `toml:"user_agent"`
}

// JobConfig defines one site scrape job.
type JobConfig struct {
	ID       string `toml:"id"`
	Strategy string `toml:"strategy"`
	// URL is a template; {page}, {region} and {<field>} of the input item
	// are substituted.
	URL string `toml:"url"`

	FirstPage int      `toml:"first_page"`
	LastPage  int      `toml:"last_page"`
	MaxPages  int      `toml:"max_pages"`
	Regions   []string `toml:"regions"`
	// Input names the job whose stored records drive an items job.
	Input string `toml:"input"`

	// ItemSelector selects one element per record; empty means the whole
	// page is one record.
	ItemSelector string `toml:"item_selector"`
	// NextSelector, when set, must match for more pages to follow.
	NextSelector string `toml:"next_selector"`
	// Fields maps record fields to "selector" or "selector@attr".
	Fields map[string]string `toml:"fields"`

	Key        []string `toml:"key"`
	Required   []string `toml:"required"`
	PhoneField string   `toml:"phone_field"`

	Concurrency int           `toml:"concurrency"`
	Delay       time.Duration `toml:"delay"`
	Attempts    int           `toml:"attempts"`
	Backoff     time.Duration `toml:"backoff"`
	FlushEvery  int           `toml:"flush_every"`
	MaxFailures int           `toml:"max_failures"`
	RateLimit   float64       `toml:"rate_limit"`
	Timeout     time.Duration `toml:"timeout"`
	UserAgent   string        `toml:"user_agent"`

	Headers map[string]string `toml:"headers"`
}

// LoadJobs reads and validates a job definition file.
func LoadJobs(path string) (*JobsFile, error) {
	var f JobsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := f.normalize(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

// ParseJobs decodes job definitions from TOML text.
func ParseJobs(data string) (*JobsFile, error) {
	var f JobsFile
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, err
	}
	if err := f.normalize(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *JobsFile) normalize() error {
	seen := make(map[string]bool)
	for i := range f.Jobs {
		j := &f.Jobs[i]
		if j.ID == "" {
			return fmt.Errorf("job %d: id is required", i)
		}
		if seen[j.ID] {
			return fmt.Errorf("job %s: duplicate id", j.ID)
		}
		seen[j.ID] = true

		if j.Strategy == "" {
			j.Strategy = StrategyPages
		}
		if err := j.check(); err != nil {
			return fmt.Errorf("job %s: %w", j.ID, err)
		}
		j.applyDefaults(f.Defaults)
	}
	for _, j := range f.Jobs {
		if j.Strategy == StrategyItems && !seen[j.Input] {
			return fmt.Errorf("job %s: input job %q is not defined", j.ID, j.Input)
		}
	}
	return nil
}

func (j *JobConfig) check() error {
	if j.URL == "" {
		return errors.New("url is required")
	}
	if len(j.Fields) == 0 {
		return errors.New("at least one field is required")
	}
	switch j.Strategy {
	case StrategyPages:
	case StrategyItems:
		if j.Input == "" {
			return errors.New("items strategy needs an input job")
		}
		if j.Input == j.ID {
			return errors.New("job cannot be its own input")
		}
	case StrategyRegions:
		if len(j.Regions) == 0 {
			return errors.New("regions strategy needs regions")
		}
	default:
		return fmt.Errorf("unknown strategy %q", j.Strategy)
	}
	return nil
}

func (j *JobConfig) applyDefaults(d JobDefaults) {
	if j.Concurrency == 0 {
		j.Concurrency = d.Concurrency
	}
	if j.Delay == 0 {
		j.Delay = d.Delay
	}
	if j.Attempts == 0 {
		j.Attempts = d.Attempts
	}
	if j.Backoff == 0 {
		j.Backoff = d.Backoff
	}
	if j.FlushEvery == 0 {
		j.FlushEvery = d.FlushEvery
	}
	if j.MaxFailures == 0 {
		j.MaxFailures = d.MaxFailures
	}
	if j.RateLimit == 0 {
		j.RateLimit = d.RateLimit
	}
	if j.Timeout == 0 {
		j.Timeout = d.Timeout
	}
	if j.UserAgent == "" {
		j.UserAgent = d.UserAgent
	}
}
