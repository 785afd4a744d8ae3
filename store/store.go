// Package store persists compiled programs, blackboards and a tick log in a
// SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/htn/vm"
)

var log = commonlog.GetLogger("htn.store")

// ErrProgramNotFound indicates the requested program doesn't exist
var ErrProgramNotFound = errors.New("program not found")

// ErrScopeNotFound indicates no blackboard was saved under the scope
var ErrScopeNotFound = errors.New("blackboard scope not found")

const schema = `
CREATE TABLE IF NOT EXISTS programs (
	name       TEXT PRIMARY KEY,
	rev        TEXT NOT NULL,
	hash       TEXT NOT NULL,
	ops        INTEGER NOT NULL,
	code       BLOB NOT NULL,
	source     TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS blackboards (
	scope    TEXT NOT NULL,
	key      TEXT NOT NULL,
	position INTEGER NOT NULL,
	value    TEXT NOT NULL,
	PRIMARY KEY (scope, key)
);
CREATE TABLE IF NOT EXISTS ticks (
	id      TEXT PRIMARY KEY,
	program TEXT NOT NULL,
	state   TEXT NOT NULL,
	error   TEXT NOT NULL DEFAULT '',
	at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS ticks_by_program ON ticks (program);
`

// Store handles SQLite storage for programs, blackboards and ticks.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// ProgramInfo describes a stored program. Source is only filled in by
// Program.
type ProgramInfo struct {
	Name      string
	Rev       string
	Hash      string
	Ops       int
	Source    string
	UpdatedAt time.Time
}

// TickRecord is one entry of the tick log. State is empty when the tick
// failed; Err holds the failure text.
type TickRecord struct {
	ID      string
	Program string
	State   string
	Err     string
	At      time.Time
}

// Open opens (creating if needed) the database at path. The parent directory
// is created as well.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and an in-memory
	// database exists per connection.
	db.SetMaxOpenConns(1)

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	log.Debugf("opened store %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ---------------------------------------------------------------------------
// Programs
// ---------------------------------------------------------------------------

// SaveProgram stores p under name and returns its revision id. Saving a
// program whose operations are unchanged keeps the current revision and only
// refreshes the source text.
func (s *Store) SaveProgram(name string, p *vm.Program, source string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := vm.MarshalProgram(p)
	if err != nil {
		return "", fmt.Errorf("saving program %s: %w", name, err)
	}
	hash := p.Hash()
	now := time.Now().UnixNano()

	var rev, oldHash string
	err = s.db.QueryRow("SELECT rev, hash FROM programs WHERE name = ?", name).Scan(&rev, &oldHash)
	switch {
	case err == nil && oldHash == hash:
		_, err = s.db.Exec("UPDATE programs SET source = ?, updated_at = ? WHERE name = ?", source, now, name)
		if err != nil {
			return "", fmt.Errorf("saving program %s: %w", name, err)
		}
		log.Debugf("program %s unchanged at rev %s", name, rev)
		return rev, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("querying program %s: %w", name, err)
	}

	rev = uuid.NewString()
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO programs (name, rev, hash, ops, code, source, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		name, rev, hash, p.Len(), code, source, now,
	)
	if err != nil {
		return "", fmt.Errorf("saving program %s: %w", name, err)
	}
	log.Infof("saved program %s rev %s (%d ops)", name, rev, p.Len())
	return rev, nil
}

// LoadProgram retrieves and validates a stored program.
func (s *Store) LoadProgram(name string) (*vm.Program, error) {
	var code []byte
	err := s.db.QueryRow("SELECT code FROM programs WHERE name = ?", name).Scan(&code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, name)
		}
		return nil, fmt.Errorf("querying program %s: %w", name, err)
	}
	p, err := vm.UnmarshalProgram(code)
	if err != nil {
		return nil, fmt.Errorf("decoding program %s: %w", name, err)
	}
	return p, nil
}

// Program returns the metadata and source text of a stored program.
func (s *Store) Program(name string) (ProgramInfo, error) {
	info := ProgramInfo{Name: name}
	var at int64
	err := s.db.QueryRow(
		"SELECT rev, hash, ops, source, updated_at FROM programs WHERE name = ?", name,
	).Scan(&info.Rev, &info.Hash, &info.Ops, &info.Source, &at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ProgramInfo{}, fmt.Errorf("%w: %s", ErrProgramNotFound, name)
		}
		return ProgramInfo{}, fmt.Errorf("querying program %s: %w", name, err)
	}
	info.UpdatedAt = time.Unix(0, at)
	return info, nil
}

// ListPrograms returns every stored program ordered by name.
func (s *Store) ListPrograms() ([]ProgramInfo, error) {
	rows, err := s.db.Query("SELECT name, rev, hash, ops, updated_at FROM programs ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing programs: %w", err)
	}
	defer rows.Close()

	var out []ProgramInfo
	for rows.Next() {
		var info ProgramInfo
		var at int64
		if err := rows.Scan(&info.Name, &info.Rev, &info.Hash, &info.Ops, &at); err != nil {
			return nil, fmt.Errorf("scanning program: %w", err)
		}
		info.UpdatedAt = time.Unix(0, at)
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteProgram removes a stored program. Its tick log is kept.
func (s *Store) DeleteProgram(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM programs WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting program %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, name)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Blackboards
// ---------------------------------------------------------------------------

// SaveBlackboard replaces the stored entries of scope with the contents of
// bb. Each value is stored as JSON text. Values JSON cannot represent
// (functions, channels, Go handles, infinite or NaN floats, such as the
// result of 1/0) are stored as null and logged as a warning.
func (s *Store) SaveBlackboard(scope string, bb *vm.Blackboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("saving blackboard %s: %w", scope, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM blackboards WHERE scope = ?", scope); err != nil {
		return fmt.Errorf("clearing blackboard %s: %w", scope, err)
	}
	stmt, err := tx.Prepare("INSERT INTO blackboards (scope, key, position, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("saving blackboard %s: %w", scope, err)
	}
	defer stmt.Close()

	for i, key := range bb.Keys() {
		val, _ := bb.Get(key)
		data, err := json.Marshal(val)
		if err != nil {
			log.Warningf("blackboard %s: %s will load as Null: %s", scope, key, err)
			data = []byte("null")
		}
		if _, err := stmt.Exec(scope, key, i, string(data)); err != nil {
			return fmt.Errorf("saving blackboard entry %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving blackboard %s: %w", scope, err)
	}
	return nil
}

// LoadBlackboard rebuilds the blackboard saved under scope, keeping the saved
// key order. JSON objects come back as *vm.Record, arrays as []vm.Object and
// whole numbers as int64.
func (s *Store) LoadBlackboard(scope string) (*vm.Blackboard, error) {
	rows, err := s.db.Query("SELECT key, value FROM blackboards WHERE scope = ? ORDER BY position", scope)
	if err != nil {
		return nil, fmt.Errorf("querying blackboard %s: %w", scope, err)
	}
	defer rows.Close()

	bb := vm.NewBlackboard()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning blackboard entry: %w", err)
		}
		obj, err := vm.DecodeJSON([]byte(value))
		if err != nil {
			return nil, fmt.Errorf("decoding blackboard entry %s: %w", key, err)
		}
		bb.Set(key, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bb, nil
}

// Scopes lists the scopes that have saved blackboard entries.
func (s *Store) Scopes() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT scope FROM blackboards ORDER BY scope")
	if err != nil {
		return nil, fmt.Errorf("listing scopes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, err
		}
		out = append(out, scope)
	}
	return out, rows.Err()
}

// DeleteBlackboard removes every entry saved under scope.
func (s *Store) DeleteBlackboard(scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM blackboards WHERE scope = ?", scope)
	if err != nil {
		return fmt.Errorf("deleting blackboard %s: %w", scope, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrScopeNotFound, scope)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Tick log
// ---------------------------------------------------------------------------

// RecordTick appends the outcome of one tick of program to the log and
// returns the entry id.
func (s *Store) RecordTick(program string, state vm.EndState, tickErr error) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := TickRecord{ID: uuid.NewString(), Program: program}
	if tickErr != nil {
		rec.Err = tickErr.Error()
	} else {
		rec.State = state.String()
	}

	_, err := s.db.Exec(
		"INSERT INTO ticks (id, program, state, error, at) VALUES (?, ?, ?, ?, ?)",
		rec.ID, rec.Program, rec.State, rec.Err, time.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("recording tick: %w", err)
	}
	return rec.ID, nil
}

// Ticks returns up to limit log entries for program, newest first. A limit of
// zero or less returns them all.
func (s *Store) Ticks(program string, limit int) ([]TickRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		"SELECT id, program, state, error, at FROM ticks WHERE program = ? ORDER BY rowid DESC LIMIT ?",
		program, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying ticks: %w", err)
	}
	defer rows.Close()

	var out []TickRecord
	for rows.Next() {
		var rec TickRecord
		var at int64
		if err := rows.Scan(&rec.ID, &rec.Program, &rec.State, &rec.Err, &at); err != nil {
			return nil, fmt.Errorf("scanning tick: %w", err)
		}
		rec.At = time.Unix(0, at)
		out = append(out, rec)
	}
	return out, rows.Err()
}
