package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteLogger stores audit entries in a SQLite database.
type SQLiteLogger struct {
	db *sql.DB
}

// NewSQLiteLogger opens (and migrates) the database at dsn.
func NewSQLiteLogger(dsn string) (*SQLiteLogger, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	l := &SQLiteLogger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return l, nil
}

func (l *SQLiteLogger) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS audit_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			ts DATETIME NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_entries(session_id, id)`,
	}
	for _, m := range migrations {
		if _, err := l.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (l *SQLiteLogger) Close() error {
	return l.db.Close()
}

func (l *SQLiteLogger) LogRequest(ctx context.Context, rec RequestRecord) error {
	return l.insert(ctx, KindRequest, rec.SessionID, rec.Time, rec)
}

func (l *SQLiteLogger) LogResponse(ctx context.Context, rec ResponseRecord) error {
	return l.insert(ctx, KindResponse, rec.SessionID, rec.Time, rec)
}

func (l *SQLiteLogger) LogCommand(ctx context.Context, rec CommandRecord) error {
	return l.insert(ctx, KindCommand, rec.SessionID, rec.Time, rec)
}

func (l *SQLiteLogger) insert(ctx context.Context, kind EntryKind, sessionID string, ts time.Time, rec interface{}) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", kind, err)
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO audit_entries (session_id, kind, ts, payload) VALUES (?, ?, ?, ?)`,
		sessionID, string(kind), ts.UTC(), string(payload))
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Entries returns entries for sessionID in insertion order, or all entries
// when sessionID is empty.
func (l *SQLiteLogger) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	query := `SELECT kind, session_id, ts, payload FROM audit_entries`
	var args []interface{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY id`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind string
		if err := rows.Scan(&kind, &e.SessionID, &e.Time, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Kind = EntryKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
