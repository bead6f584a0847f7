// Package ledger records one run's cache decisions and shell invocations in
// a small SQLite database inside the build directory. It is an
// observability surface: cache correctness never depends on it.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// FileName is the ledger's name within the build directory.
const FileName = "mash-ledger.db"

// Event is one recorded action.
type Event struct {
	At       time.Time `json:"at"`
	Action   string    `json:"action"`
	Target   string    `json:"target"`
	Detail   string    `json:"detail,omitempty"`
	WallMS   int64     `json:"wall_ms,omitempty"`
	UserTime float64   `json:"user_time,omitempty"`
	SysTime  float64   `json:"sys_time,omitempty"`
}

// Ledger is an open, writable event log.
type Ledger struct {
	db     *sql.DB
	insert *sql.Stmt
}

// Open creates or opens the ledger at path and prepares the insert.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}

	// The ledger is disposable bookkeeping; favor speed over durability.
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at INTEGER NOT NULL,
		action TEXT NOT NULL,
		target TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		wall_ms INTEGER NOT NULL DEFAULT 0,
		user_time REAL NOT NULL DEFAULT 0,
		sys_time REAL NOT NULL DEFAULT 0
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}

	insert, err := db.Prepare(`INSERT INTO events
		(at, action, target, detail, wall_ms, user_time, sys_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare ledger insert: %w", err)
	}

	return &Ledger{db: db, insert: insert}, nil
}

// Record logs a cache decision. Satisfies workspace.EventSink.
func (l *Ledger) Record(action, target, detail string) {
	_, _ = l.insert.Exec(time.Now().Unix(), action, target, detail, 0, 0.0, 0.0)
}

// RecordShell logs a shell invocation with its resource usage.
func (l *Ledger) RecordShell(cmd string, returnCode int, wall time.Duration, userTime, sysTime float64) {
	detail := fmt.Sprintf("exit %d", returnCode)
	_, _ = l.insert.Exec(time.Now().Unix(), "shell", cmd, detail,
		wall.Milliseconds(), userTime, sysTime)
}

func (l *Ledger) Close() error {
	if l.insert != nil {
		_ = l.insert.Close()
	}
	return l.db.Close()
}

// Read loads every event from the ledger at path, oldest first.
func Read(path string) ([]Event, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.Query(`SELECT at, action, target, detail, wall_ms, user_time, sys_time
		FROM events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var e Event
		var at int64
		if err := rows.Scan(&at, &e.Action, &e.Target, &e.Detail,
			&e.WallMS, &e.UserTime, &e.SysTime); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		e.At = time.Unix(at, 0)
		events = append(events, e)
	}
	return events, rows.Err()
}
