package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/chanchat/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	transport   TEXT NOT NULL,
	remote_addr TEXT NOT NULL,
	nickname    TEXT NOT NULL,
	commands    INTEGER NOT NULL DEFAULT 0,
	reason      TEXT NOT NULL,
	started_at  DATETIME NOT NULL,
	ended_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_ended ON sessions(ended_at DESC);

CREATE TABLE IF NOT EXISTS rejections (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	transport   TEXT NOT NULL,
	remote_addr TEXT NOT NULL,
	at          DATETIME NOT NULL
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) the journal at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordSession stores a finished session.
func (s *SQLiteStore) RecordSession(ctx context.Context, rec store.SessionRecord) error {
	query := `
		INSERT INTO sessions (id, transport, remote_addr, nickname, commands, reason, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Transport,
		rec.RemoteAddr,
		rec.Nickname,
		rec.Commands,
		rec.Reason,
		rec.StartedAt.UTC(),
		rec.EndedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// RecordRejection stores an admission rejection.
func (s *SQLiteStore) RecordRejection(ctx context.Context, rej store.Rejection) error {
	query := `INSERT INTO rejections (transport, remote_addr, at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, rej.Transport, rej.RemoteAddr, rej.At.UTC()); err != nil {
		return fmt.Errorf("insert rejection: %w", err)
	}
	return nil
}

// RecentSessions returns up to limit sessions, most recently ended first.
func (s *SQLiteStore) RecentSessions(ctx context.Context, limit int) ([]store.SessionRecord, error) {
	query := `
		SELECT id, transport, remote_addr, nickname, commands, reason, started_at, ended_at
		FROM sessions
		ORDER BY ended_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	records := []store.SessionRecord{}
	for rows.Next() {
		var rec store.SessionRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Transport,
			&rec.RemoteAddr,
			&rec.Nickname,
			&rec.Commands,
			&rec.Reason,
			&rec.StartedAt,
			&rec.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return records, nil
}

// CountRejections returns how many connections were turned away.
func (s *SQLiteStore) CountRejections(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rejections`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rejections: %w", err)
	}
	return n, nil
}
