package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cwygoda/golfscrape/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS progress (
    job_id     TEXT PRIMARY KEY,
    next_major INTEGER NOT NULL DEFAULT 0,
    next_minor INTEGER NOT NULL DEFAULT 0,
    finished   TEXT NOT NULL DEFAULT '[]',
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS records (
    job_id TEXT NOT NULL,
    seq    INTEGER NOT NULL,
    data   TEXT NOT NULL,
    PRIMARY KEY (job_id, seq)
);
`

// Store implements domain.CheckpointStore and domain.ResultSink using SQLite.
type Store struct {
	db *sql.DB
}

// New opens the database at dbPath, initializing the schema if needed.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Writers serialize on one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored progress of jobID, or zero progress if none exists.
func (s *Store) Load(ctx context.Context, jobID string) (domain.Progress, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT next_major, next_minor, finished FROM progress WHERE job_id = ?`, jobID,
	)
	return scanProgress(row)
}

// Save upserts the progress of jobID.
func (s *Store) Save(ctx context.Context, jobID string, p domain.Progress) error {
	finished, err := json.Marshal(nonNil(p.Finished))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO progress (job_id, next_major, next_minor, finished, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET
		   next_major = excluded.next_major,
		   next_minor = excluded.next_minor,
		   finished   = excluded.finished,
		   updated_at = excluded.updated_at`,
		jobID, p.Next.Major, p.Next.Minor, string(finished), time.Now(),
	)
	return err
}

// Delete removes the progress of jobID.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM progress WHERE job_id = ?`, jobID)
	return err
}

// LoadAll returns the stored records of jobID in insertion order.
func (s *Store) LoadAll(ctx context.Context, jobID string) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM records WHERE job_id = ? ORDER BY seq ASC`, jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r domain.Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Replace atomically swaps the stored records of jobID for records.
func (s *Store) Replace(ctx context.Context, jobID string, records []domain.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE job_id = ?`, jobID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (job_id, seq, data) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, jobID, i, string(data)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProgress(row scanner) (domain.Progress, error) {
	var p domain.Progress
	var finished string
	err := row.Scan(&p.Next.Major, &p.Next.Minor, &finished)
	if err == sql.ErrNoRows {
		return domain.Progress{}, nil
	}
	if err != nil {
		return domain.Progress{}, err
	}
	if err := json.Unmarshal([]byte(finished), &p.Finished); err != nil {
		return domain.Progress{}, err
	}
	if len(p.Finished) == 0 {
		p.Finished = nil
	}
	return p, nil
}

func nonNil(ps []domain.Position) []domain.Position {
	if ps == nil {
		return []domain.Position{}
	}
	return ps
}
