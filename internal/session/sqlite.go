package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/datasage-io/datasage/pkg/protocol"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("session store: open: %w", err)
	}

	// Enable WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("session store: wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id          TEXT PRIMARY KEY,
			created_at  TEXT NOT NULL,
			last_active TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS exchanges (
			id         TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			question   TEXT NOT NULL,
			answer     TEXT NOT NULL,
			elapsed_ms INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS trace_entries (
			exchange_id TEXT NOT NULL REFERENCES exchanges(id),
			seq         INTEGER NOT NULL,
			tool        TEXT NOT NULL,
			params      TEXT NOT NULL DEFAULT '{}',
			result      TEXT NOT NULL,
			is_error    INTEGER NOT NULL DEFAULT 0,
			elapsed_ms  INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (exchange_id, seq)
		);

		CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id);
	`)
	if err != nil {
		return fmt.Errorf("session store: migrate: %w", err)
	}
	return nil
}

// SaveExchange records a completed exchange, creating or touching its
// session and appending the trace rows in one transaction.
func (s *SQLiteStore) SaveExchange(ex *Exchange) error {
	if ex.SessionID == "" || ex.ID == "" {
		return fmt.Errorf("session store: exchange needs session_id and id")
	}

	now := time.Now().Format(time.RFC3339)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("session store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sessions (id, created_at, last_active) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_active=excluded.last_active
	`, ex.SessionID, now, now)
	if err != nil {
		return fmt.Errorf("session store: upsert session: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO exchanges (id, session_id, question, answer, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ex.ID, ex.SessionID, ex.Question, ex.Answer, ex.Elapsed.Milliseconds(), now)
	if err != nil {
		return fmt.Errorf("session store: insert exchange: %w", err)
	}

	for _, e := range ex.Trace {
		params, _ := json.Marshal(e.Params)
		isErr := 0
		if e.IsError {
			isErr = 1
		}
		_, err = tx.Exec(`
			INSERT INTO trace_entries (exchange_id, seq, tool, params, result, is_error, elapsed_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, ex.ID, e.Seq, e.Tool, string(params), e.Result, isErr, e.Elapsed.Milliseconds())
		if err != nil {
			return fmt.Errorf("session store: insert trace entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("session store: commit: %w", err)
	}
	return nil
}

// GetSession loads a session with its exchanges and traces, oldest first.
func (s *SQLiteStore) GetSession(id string) (*Session, error) {
	var sess Session
	var createdAt, lastActive string
	err := s.db.QueryRow(`SELECT id, created_at, last_active FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &createdAt, &lastActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session %q not found", id)
		}
		return nil, fmt.Errorf("session store: get: %w", err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	sess.LastActive, _ = time.Parse(time.RFC3339, lastActive)

	rows, err := s.db.Query(`
		SELECT id, question, answer, elapsed_ms, created_at
		FROM exchanges WHERE session_id = ? ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("session store: load exchanges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		ex := &Exchange{SessionID: id}
		var elapsedMS int64
		var created string
		if err := rows.Scan(&ex.ID, &ex.Question, &ex.Answer, &elapsedMS, &created); err != nil {
			return nil, fmt.Errorf("session store: scan exchange: %w", err)
		}
		ex.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		ex.CreatedAt, _ = time.Parse(time.RFC3339, created)
		sess.Exchanges = append(sess.Exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session store: exchanges: %w", err)
	}

	for _, ex := range sess.Exchanges {
		trace, err := s.loadTrace(ex.ID)
		if err != nil {
			return nil, err
		}
		ex.Trace = trace
	}
	return &sess, nil
}

// ListSessions returns recent sessions without their exchanges, newest first.
func (s *SQLiteStore) ListSessions(limit int) ([]*Session, error) {
	query := `SELECT id, created_at, last_active FROM sessions ORDER BY last_active DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("session store: list: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		var createdAt, lastActive string
		if err := rows.Scan(&sess.ID, &createdAt, &lastActive); err != nil {
			return nil, fmt.Errorf("session store: list scan: %w", err)
		}
		sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		sess.LastActive, _ = time.Parse(time.RFC3339, lastActive)
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) loadTrace(exchangeID string) ([]protocol.TraceEntry, error) {
	rows, err := s.db.Query(`
		SELECT seq, tool, params, result, is_error, elapsed_ms
		FROM trace_entries WHERE exchange_id = ? ORDER BY seq
	`, exchangeID)
	if err != nil {
		return nil, fmt.Errorf("session store: load trace: %w", err)
	}
	defer rows.Close()

	var entries []protocol.TraceEntry
	for rows.Next() {
		var e protocol.TraceEntry
		var paramsJSON string
		var isErr int
		var elapsedMS int64
		if err := rows.Scan(&e.Seq, &e.Tool, &paramsJSON, &e.Result, &isErr, &elapsedMS); err != nil {
			return nil, fmt.Errorf("session store: scan trace entry: %w", err)
		}
		json.Unmarshal([]byte(paramsJSON), &e.Params)
		e.IsError = isErr != 0
		e.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
