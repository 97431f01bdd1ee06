// Package audit records job lifecycle events to a SQLite-backed
// append-only log.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hochfrequenz/taskcluster/internal/protocol"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS job_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id TEXT NOT NULL,
    state TEXT NOT NULL,
    detail TEXT,
    recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_job_events_job_id ON job_events(job_id);
`

// Store is a SQLite-backed append-only log of job state transitions.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the audit database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running audit migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends a job-state transition event.
func (s *Store) Record(jobID string, state protocol.State, detail string) error {
	_, err := s.db.Exec(
		`INSERT INTO job_events (job_id, state, detail) VALUES (?, ?, ?)`,
		jobID, state.String(), detail,
	)
	return err
}

// Event is a single recorded job-state transition.
type Event struct {
	JobID      string
	State      string
	Detail     string
	RecordedAt time.Time
}

// History returns every recorded event for a job, oldest first.
func (s *Store) History(jobID string) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT job_id, state, detail, recorded_at FROM job_events WHERE job_id = ? ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var detail sql.NullString
		if err := rows.Scan(&e.JobID, &e.State, &detail, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.Detail = detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}
