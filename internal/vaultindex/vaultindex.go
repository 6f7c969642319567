// Package vaultindex provides an optional SQLite-backed secondary index
// over a vault's event log, for lookups the NDJSON file itself is not
// efficient at (by event ID, by actor, by type). It is built entirely
// from replaying events.ndjson and can always be rebuilt from scratch,
// so it sits outside this project's single-threaded core guarantee:
// indexing is an accelerator, never a source of truth.
package vaultindex

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/provara-protocol/provara-core/internal/event"
	"github.com/provara-protocol/provara-core/internal/provaraerr"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	event_id TEXT PRIMARY KEY,
	actor TEXT NOT NULL,
	type TEXT NOT NULL,
	prev_event_hash TEXT,
	timestamp_utc TEXT,
	signature TEXT,
	seq_index INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_actor ON events(actor);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);

CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	state_hash TEXT NOT NULL,
	event_count INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
`

// Index wraps a SQLite connection holding the secondary index.
type Index struct {
	conn *sql.DB
}

// Open opens (creating if necessary) the SQLite index file at dbPath
// and ensures its schema exists.
func Open(dbPath string) (*Index, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, provaraerr.Wrap(provaraerr.Encoding, err, "creating index directory")
		}
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, provaraerr.Wrap(provaraerr.Encoding, err, "opening index database")
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, provaraerr.Wrap(provaraerr.Encoding, err, "enabling WAL mode")
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, provaraerr.Wrap(provaraerr.Encoding, err, "applying index schema")
	}
	return &Index{conn: conn}, nil
}

// Close closes the underlying database connection.
func (idx *Index) Close() error { return idx.conn.Close() }

// Rebuild truncates the index and repopulates it from events in order,
// the only way this index is ever built: it never tracks state the
// event log itself does not already contain.
func (idx *Index) Rebuild(events []*event.Event) error {
	tx, err := idx.conn.Begin()
	if err != nil {
		return provaraerr.Wrap(provaraerr.Encoding, err, "beginning index rebuild")
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM events"); err != nil {
		return provaraerr.Wrap(provaraerr.Encoding, err, "clearing index")
	}

	stmt, err := tx.Prepare(`
		INSERT INTO events (event_id, actor, type, prev_event_hash, timestamp_utc, signature, seq_index)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return provaraerr.Wrap(provaraerr.Encoding, err, "preparing index insert")
	}
	defer stmt.Close()

	for i, e := range events {
		if _, err := stmt.Exec(e.EventID, e.Actor, e.Type, e.PrevEventHash, e.TimestampUTC, e.Signature, i); err != nil {
			return provaraerr.Wrap(provaraerr.Encoding, err, "indexing event %s", e.EventID)
		}
	}

	if err := tx.Commit(); err != nil {
		return provaraerr.Wrap(provaraerr.Encoding, err, "committing index rebuild")
	}
	return nil
}

// RecordRun stamps a new run_id (UUIDv4) against the index's current
// state summary, the way the teacher's genesis block records a run
// identity alongside its first event. A vault run has no equivalent in
// the Event wire format; it exists only as a local bookkeeping marker
// for "which reindex produced this snapshot."
func (idx *Index) RecordRun(stateHash string, eventCount uint64, createdAt string) (string, error) {
	runID := uuid.NewString()
	_, err := idx.conn.Exec(
		`INSERT INTO runs (run_id, state_hash, event_count, created_at) VALUES (?, ?, ?, ?)`,
		runID, stateHash, eventCount, createdAt,
	)
	if err != nil {
		return "", provaraerr.Wrap(provaraerr.Encoding, err, "recording run")
	}
	return runID, nil
}

// LatestRun returns the most recently recorded run_id, or false if the
// index has never had a run recorded against it.
func (idx *Index) LatestRun() (string, bool, error) {
	var runID string
	err := idx.conn.QueryRow(`SELECT run_id FROM runs ORDER BY created_at DESC LIMIT 1`).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, provaraerr.Wrap(provaraerr.Encoding, err, "querying latest run")
	}
	return runID, true, nil
}

// EventRef is a lightweight index row, enough to locate an event's
// position in the log without loading its full payload.
type EventRef struct {
	EventID  string
	Actor    string
	Type     string
	SeqIndex int
}

// ByActor returns every indexed event for actor, in log order.
func (idx *Index) ByActor(actor string) ([]EventRef, error) {
	rows, err := idx.conn.Query(`SELECT event_id, actor, type, seq_index FROM events WHERE actor = ? ORDER BY seq_index ASC`, actor)
	if err != nil {
		return nil, provaraerr.Wrap(provaraerr.Encoding, err, "querying by actor")
	}
	defer rows.Close()
	return scanRefs(rows)
}

// ByType returns every indexed event of the given type, in log order.
func (idx *Index) ByType(eventType string) ([]EventRef, error) {
	rows, err := idx.conn.Query(`SELECT event_id, actor, type, seq_index FROM events WHERE type = ? ORDER BY seq_index ASC`, eventType)
	if err != nil {
		return nil, provaraerr.Wrap(provaraerr.Encoding, err, "querying by type")
	}
	defer rows.Close()
	return scanRefs(rows)
}

// SeqIndexOf returns the position of eventID in the log, or false if it
// is not indexed.
func (idx *Index) SeqIndexOf(eventID string) (int, bool, error) {
	var seq int
	err := idx.conn.QueryRow(`SELECT seq_index FROM events WHERE event_id = ?`, eventID).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, provaraerr.Wrap(provaraerr.Encoding, err, "querying event position")
	}
	return seq, true, nil
}

func scanRefs(rows *sql.Rows) ([]EventRef, error) {
	var refs []EventRef
	for rows.Next() {
		var r EventRef
		if err := rows.Scan(&r.EventID, &r.Actor, &r.Type, &r.SeqIndex); err != nil {
			return nil, provaraerr.Wrap(provaraerr.Encoding, err, "scanning index row")
		}
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, provaraerr.Wrap(provaraerr.Encoding, err, "iterating index rows")
	}
	return refs, nil
}
