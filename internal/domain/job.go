package domain

import (
	"fmt"
	"sort"
	"strings"
)

// JobStatus represents the run state of a scrape job.
type JobStatus string

const (
	StatusIdle    JobStatus = "idle"
	StatusRunning JobStatus = "running"
	StatusStopped JobStatus = "stopped"
)

// Position locates a unit within a job's enumeration.
// Positions order by Major, then Minor.
type Position struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

// Less reports whether p comes before o in enumeration order.
func (p Position) Less(o Position) bool {
	if p.Major != o.Major {
		return p.Major < o.Major
	}
	return p.Minor < o.Minor
}

// Succ returns the position immediately after p within the same group.
func (p Position) Succ() Position {
	return Position{Major: p.Major, Minor: p.Minor + 1}
}

func (p Position) String() string {
	return fmt.Sprintf("%d/%d", p.Major, p.Minor)
}

// Unit is the smallest enumerable work item: a listing page, an input
// item from a prior stage, or a region page.
type Unit struct {
	Pos    Position
	Page   int
	Region string
	Item   Record
}

func (u Unit) String() string {
	switch {
	case u.Region != "":
		return fmt.Sprintf("region %s page %d", u.Region, u.Page)
	case u.Item != nil:
		return fmt.Sprintf("item %d", u.Pos.Minor)
	default:
		return fmt.Sprintf("page %d", u.Page)
	}
}

// Progress is the persisted resumption point of a job.
//
// Every unit before Next has been processed or given up on after retries.
// Units at or after Next that finished out of order are listed in Finished
// and are skipped on resume.
type Progress struct {
	Next     Position   `json:"next"`
	Finished []Position `json:"finished,omitempty"`
}

// IsFinished reports whether the unit at pos needs no further work.
func (p Progress) IsFinished(pos Position) bool {
	if pos.Less(p.Next) {
		return true
	}
	for _, f := range p.Finished {
		if f == pos {
			return true
		}
	}
	return false
}

// Record is one scraped entity, keyed by field name.
type Record map[string]string

// Key joins the values of fields into a dedup key. It returns "" when all
// key fields are empty.
func (r Record) Key(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, len(fields))
	empty := true
	for i, f := range fields {
		parts[i] = strings.TrimSpace(r[f])
		if parts[i] != "" {
			empty = false
		}
	}
	if empty {
		return ""
	}
	return strings.Join(parts, "\x1f")
}

// Clone returns a copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Fields returns the record's field names in sorted order.
func (r Record) Fields() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
