package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ashita-ai/jikan/internal/model"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	dir        TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	ended_at   TIMESTAMP
);

CREATE TABLE IF NOT EXISTS spans (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL REFERENCES sessions(id),
	name        TEXT NOT NULL,
	path        TEXT NOT NULL,
	begun_at    TIMESTAMP NOT NULL,
	ended_at    TIMESTAMP NOT NULL,
	personal_ns INTEGER NOT NULL,
	total_ns    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_spans_session_name ON spans(session_id, name);
`

// Archive is the per-session history of closed spans, kept in an embedded
// SQLite database so past sessions stay queryable after the report file has
// been overwritten.
type Archive struct {
	db        *sql.DB
	sessionID uuid.UUID
}

// NameStat is one row of the per-name aggregate query.
type NameStat struct {
	Name        string
	Count       int
	PersonalSum time.Duration
	TotalSum    time.Duration
}

// OpenArchive opens (creating if needed) the archive database, applies the
// schema, and registers a new session row.
func OpenArchive(ctx context.Context, path, dir string, startedAt time.Time) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open archive %s: %w", path, err)
	}
	// The archive has exactly one writer; a second connection would only
	// invite SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply archive schema: %w", err)
	}

	id := uuid.New()
	if _, err := db.ExecContext(ctx,
		`INSERT INTO sessions (id, dir, started_at) VALUES (?, ?, ?)`,
		id.String(), dir, startedAt.UTC(),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: register session: %w", err)
	}

	return &Archive{db: db, sessionID: id}, nil
}

// SessionID returns the identity of the current session row.
func (a *Archive) SessionID() uuid.UUID { return a.sessionID }

// RecordClosed inserts one closed span.
func (a *Archive) RecordClosed(ctx context.Context, c model.Closed) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO spans (session_id, name, path, begun_at, ended_at, personal_ns, total_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.sessionID.String(), c.Name, c.Path, c.BegunAt.UTC(), c.EndedAt.UTC(),
		int64(c.Personal), int64(c.Total),
	)
	if err != nil {
		return fmt.Errorf("storage: record span %q: %w", c.Name, err)
	}
	return nil
}

// NameSummary returns per-name occurrence counts and duration sums for the
// current session, sorted by name.
func (a *Archive) NameSummary(ctx context.Context) ([]NameStat, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT name, COUNT(*), SUM(personal_ns), SUM(total_ns)
		 FROM spans WHERE session_id = ? GROUP BY name ORDER BY name`,
		a.sessionID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: name summary: %w", err)
	}
	defer rows.Close()

	var stats []NameStat
	for rows.Next() {
		var st NameStat
		var personal, total int64
		if err := rows.Scan(&st.Name, &st.Count, &personal, &total); err != nil {
			return nil, fmt.Errorf("storage: scan name summary: %w", err)
		}
		st.PersonalSum = time.Duration(personal)
		st.TotalSum = time.Duration(total)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: name summary rows: %w", err)
	}
	return stats, nil
}

// CloseSession stamps the session row as ended.
func (a *Archive) CloseSession(ctx context.Context, endedAt time.Time) error {
	if _, err := a.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE id = ?`,
		endedAt.UTC(), a.sessionID.String(),
	); err != nil {
		return fmt.Errorf("storage: close session: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}
