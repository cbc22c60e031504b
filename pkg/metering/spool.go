package metering

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const spoolSchema = `
CREATE TABLE IF NOT EXISTS metric_events (
	id TEXT PRIMARY KEY,
	seq INTEGER NOT NULL,
	tool TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	success INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metric_events_seq ON metric_events(seq);
`

// Spool is a small SQLite-backed holding area for metric events that could
// not be delivered before shutdown. Events saved in one run are drained back
// into the tracker buffer on the next.
type Spool struct {
	db *sql.DB
}

// OpenSpool opens (or creates) a spool database at the given path.
func OpenSpool(path string) (*Spool, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening spool database: %w", err)
	}
	if _, err := db.Exec(spoolSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing spool schema: %w", err)
	}
	return &Spool{db: db}, nil
}

// SaveEvents persists events in order, appended after anything already
// spooled.
func (s *Spool) SaveEvents(events []Event) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning spool transaction: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM metric_events`).Scan(&next); err != nil {
		return fmt.Errorf("reading spool sequence: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO metric_events (id, seq, tool, duration_ms, success, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing spool insert: %w", err)
	}
	defer stmt.Close()

	for i, ev := range events {
		success := 0
		if ev.Success {
			success = 1
		}
		if _, err := stmt.Exec(uuid.NewString(), next+int64(i), ev.Tool, ev.DurationMs, success, ev.Error, ev.Timestamp); err != nil {
			return fmt.Errorf("inserting spooled event: %w", err)
		}
	}

	return tx.Commit()
}

// LoadEvents drains all spooled events in original order.
func (s *Spool) LoadEvents() ([]Event, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning spool transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT tool, duration_ms, success, error, timestamp FROM metric_events ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying spooled events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var success int
		if err := rows.Scan(&ev.Tool, &ev.DurationMs, &success, &ev.Error, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning spooled event: %w", err)
		}
		ev.Success = success == 1
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating spooled events: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM metric_events`); err != nil {
		return nil, fmt.Errorf("draining spool: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return events, nil
}

// Close closes the underlying database.
func (s *Spool) Close() error {
	return s.db.Close()
}
