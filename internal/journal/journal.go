package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/dellis86/sidekick/internal/infrastructure/database"
)

// Event kinds recorded in the journal.
const (
	KindSpawn         = "spawn"
	KindExit          = "exit"
	KindConnect       = "connect"
	KindDisconnect    = "disconnect"
	KindTaskCompleted = "task_completed"
	KindTaskFailed    = "task_failed"
)

// Recent query limits.
const (
	defaultLimit = 50
	maxLimit     = 500
)

// Entry is one recorded session event.
type Entry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	TaskID    string    `json:"task_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal persists session events (spawns, connects, task outcomes) so they
// survive the process and can be inspected after the fact.
type Journal struct {
	db        *database.DB
	sessionID string
}

// New creates a journal writing under the given session identifier.
func New(db *database.DB, sessionID string) *Journal {
	return &Journal{
		db:        db,
		sessionID: sessionID,
	}
}

// SessionID returns the identifier stamped on recorded entries.
func (j *Journal) SessionID() string {
	return j.sessionID
}

// Record persists one event. taskID and detail may be empty depending on
// the kind.
func (j *Journal) Record(ctx context.Context, kind, taskID, detail string) error {
	if kind == "" {
		return ErrEmptyKind
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (session_id, kind, task_id, detail, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		j.sessionID,
		kind,
		taskID,
		detail,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording %s event: %w", kind, err)
	}
	return nil
}

// Recent returns the most recent entries across all sessions, newest first.
// limit <= 0 selects the default; the query is capped regardless.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, session_id, kind, task_id, detail, created_at
		 FROM events
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.TaskID, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt) //nolint:errcheck // Format is controlled
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	return entries, nil
}

// CountByKind returns event totals per kind for the current session.
func (j *Journal) CountByKind(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM events WHERE session_id = ? GROUP BY kind`,
		j.sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}
