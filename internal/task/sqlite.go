package task

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists task records to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) a SQLite task store at path.
// Use ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL improves concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			state TEXT NOT NULL,
			result TEXT NOT NULL DEFAULT '',
			errors TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tasks_expires_at
		ON tasks(expires_at)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Create implements Store.
func (s *SQLiteStore) Create(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	errsJSON, err := json.Marshal(rec.Errors)
	if err != nil {
		return fmt.Errorf("encode errors: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO tasks (id, kind, state, result, errors, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			state = excluded.state,
			result = excluded.result,
			errors = excluded.errors,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at
	`, rec.ID, string(rec.Kind), string(rec.State), rec.Result, string(errsJSON),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		rec.ExpiresAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Record{}, ErrStoreClosed
	}

	var rec Record
	var kind, state, errsJSON, createdAt, updatedAt, expiresAt string
	err := s.db.QueryRow(`
		SELECT id, kind, state, result, errors, created_at, updated_at, expires_at
		FROM tasks WHERE id = ?
	`, id).Scan(&rec.ID, &kind, &state, &rec.Result, &errsJSON, &createdAt, &updatedAt, &expiresAt)

	if err == sql.ErrNoRows {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load task: %w", err)
	}

	rec.Kind = Kind(kind)
	rec.State = State(state)
	if err := json.Unmarshal([]byte(errsJSON), &rec.Errors); err != nil {
		return Record{}, fmt.Errorf("decode errors: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	rec.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expiresAt)

	if rec.Expired(time.Now().UTC()) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Update implements Store.
func (s *SQLiteStore) Update(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	errsJSON, err := json.Marshal(rec.Errors)
	if err != nil {
		return fmt.Errorf("encode errors: %w", err)
	}

	res, err := s.db.Exec(`
		UPDATE tasks
		SET kind = ?, state = ?, result = ?, errors = ?, updated_at = ?, expires_at = ?
		WHERE id = ?
	`, string(rec.Kind), string(rec.State), rec.Result, string(errsJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
		rec.ExpiresAt.UTC().Format(time.RFC3339Nano),
		rec.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// PurgeExpired implements Store.
func (s *SQLiteStore) PurgeExpired() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	res, err := s.db.Exec(`DELETE FROM tasks WHERE expires_at < ?`,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("purge tasks: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge tasks: %w", err)
	}
	return int(affected), nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
