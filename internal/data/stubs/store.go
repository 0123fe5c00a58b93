// Package stubs persists per-file identifier stubs in SQLite so that
// unchanged files can be indexed again without parsing.
package stubs

import (
	"awkref/internal/engine/index"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

const defaultBusyTimeout = 5 * time.Second

// Store is a SQLite-backed index.StubStore scoped to one project key.
type Store struct {
	db         *sql.DB
	projectKey string
	lookupStmt *sql.Stmt
	loadStmt   *sql.Stmt

	cacheMu     sync.RWMutex
	lookupCache map[string][]index.Stub
}

var _ index.StubStore = (*Store)(nil)

// Open opens or creates the store at path. An empty project key selects
// "default"; a non-positive busy timeout selects five seconds.
func Open(path, projectKey string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("stub store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("stub store path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create stub store directory %q: %w", dir, err)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite stub store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite stub store %q: %w", cleanPath, err)
	}
	if err := migrateStubSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	key := strings.TrimSpace(projectKey)
	if key == "" {
		key = "default"
	}

	lookupStmt, err := db.Prepare(`SELECT file_path, name, byte_offset, line, col, is_declaration
FROM stubs
WHERE project_key = ? AND name = ?
ORDER BY file_path, byte_offset`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare lookup stmt: %w", err)
	}
	loadStmt, err := db.Prepare(`SELECT file_path, name, byte_offset, line, col, is_declaration
FROM stubs
WHERE project_key = ? AND file_path = ?
ORDER BY byte_offset`)
	if err != nil {
		_ = lookupStmt.Close()
		_ = db.Close()
		return nil, fmt.Errorf("prepare load stmt: %w", err)
	}

	return &Store{
		db:          db,
		projectKey:  key,
		lookupStmt:  lookupStmt,
		loadStmt:    loadStmt,
		lookupCache: make(map[string][]index.Stub),
	}, nil
}

func (s *Store) ProjectKey() string {
	if s == nil {
		return ""
	}
	return s.projectKey
}

func (s *Store) clearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.lookupCache = make(map[string][]index.Stub)
}

// LoadFile returns the stored hash and stubs of path. A file that was never
// stored yields an empty hash and no error.
func (s *Store) LoadFile(path string) (string, []index.Stub, error) {
	if s == nil || s.db == nil {
		return "", nil, fmt.Errorf("store not initialized")
	}
	var hash string
	err := s.db.QueryRow(`SELECT content_hash FROM stub_files WHERE project_key = ? AND file_path = ?`, s.projectKey, path).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("load stub file %q: %w", path, err)
	}
	rows, err := s.loadStmt.Query(s.projectKey, path)
	if err != nil {
		return "", nil, fmt.Errorf("load stubs %q: %w", path, err)
	}
	stubs, err := scanStubs(rows)
	if err != nil {
		return "", nil, fmt.Errorf("load stubs %q: %w", path, err)
	}
	return hash, stubs, nil
}

// UpsertFile replaces the hash and stubs of path in one transaction.
func (s *Store) UpsertFile(path, hash string, stubs []index.Stub) error {
	if s == nil || s.db == nil {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin stub upsert tx: %w", err)
	}
	if err := upsertFileRows(tx, s.projectKey, path, hash, stubs); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stub upsert tx: %w", err)
	}
	s.clearCache()
	return nil
}

func (s *Store) DeleteFile(path string) error {
	if s == nil || s.db == nil {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin stub delete tx: %w", err)
	}
	if err := deletePath(tx, s.projectKey, path); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stub delete tx: %w", err)
	}
	s.clearCache()
	return nil
}

// PruneToPaths drops every stored file of the project not listed in paths.
func (s *Store) PruneToPaths(paths []string) error {
	if s == nil || s.db == nil {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin stub prune tx: %w", err)
	}
	if len(paths) == 0 {
		if _, err := tx.Exec(`DELETE FROM stubs WHERE project_key = ?`, s.projectKey); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clear stubs for empty path set: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM stub_files WHERE project_key = ?`, s.projectKey); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clear stub files for empty path set: %w", err)
		}
	} else {
		if err := loadTempPaths(tx, s.projectKey, paths); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := deleteMissingPathsWithTemp(tx, s.projectKey); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stub prune tx: %w", err)
	}
	s.clearCache()
	return nil
}

// Lookup returns the stored stubs named name ordered by file path then
// offset. Query failures yield no stubs.
func (s *Store) Lookup(name string, declarationsOnly bool) []index.Stub {
	if s == nil || s.db == nil || s.lookupStmt == nil || name == "" {
		return nil
	}
	s.cacheMu.RLock()
	res, ok := s.lookupCache[name]
	s.cacheMu.RUnlock()
	if !ok {
		rows, err := s.lookupStmt.Query(s.projectKey, name)
		if err != nil {
			return nil
		}
		res, err = scanStubs(rows)
		if err != nil {
			return nil
		}
		s.cacheMu.Lock()
		s.lookupCache[name] = res
		s.cacheMu.Unlock()
	}
	if !declarationsOnly {
		return append([]index.Stub(nil), res...)
	}
	var out []index.Stub
	for _, st := range res {
		if st.Declaration {
			out = append(out, st)
		}
	}
	return out
}

// Paths lists the stored files of the project in sorted order.
func (s *Store) Paths() ([]string, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	rows, err := s.db.Query(`SELECT file_path FROM stub_files WHERE project_key = ? ORDER BY file_path`, s.projectKey)
	if err != nil {
		return nil, fmt.Errorf("list stub files: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan stub file: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if s.lookupStmt != nil {
		_ = s.lookupStmt.Close()
	}
	if s.loadStmt != nil {
		_ = s.loadStmt.Close()
	}
	return s.db.Close()
}

func scanStubs(rows *sql.Rows) ([]index.Stub, error) {
	defer rows.Close()
	out := make([]index.Stub, 0)
	for rows.Next() {
		var st index.Stub
		if err := rows.Scan(&st.File, &st.Name, &st.Offset, &st.Line, &st.Column, &st.Declaration); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func upsertFileRows(tx *sql.Tx, projectKey, path, hash string, stubs []index.Stub) error {
	if err := deletePath(tx, projectKey, path); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.Exec(`INSERT INTO stub_files (project_key, file_path, content_hash, indexed_at_utc) VALUES (?, ?, ?, ?)`, projectKey, path, hash, now); err != nil {
		return fmt.Errorf("insert stub file %q: %w", path, err)
	}
	if len(stubs) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO stubs (project_key, file_path, name, byte_offset, line, col, is_declaration) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare stub insert: %w", err)
	}
	defer stmt.Close()
	for _, st := range stubs {
		if _, err := stmt.Exec(projectKey, path, st.Name, st.Offset, st.Line, st.Column, st.Declaration); err != nil {
			return fmt.Errorf("insert stub %s@%d: %w", st.Name, st.Offset, err)
		}
	}
	return nil
}

func deletePath(tx *sql.Tx, projectKey, path string) error {
	if _, err := tx.Exec(`DELETE FROM stubs WHERE project_key = ? AND file_path = ?`, projectKey, path); err != nil {
		return fmt.Errorf("delete stubs %q: %w", path, err)
	}
	if _, err := tx.Exec(`DELETE FROM stub_files WHERE project_key = ? AND file_path = ?`, projectKey, path); err != nil {
		return fmt.Errorf("delete stub file %q: %w", path, err)
	}
	return nil
}

func deleteMissingPathsWithTemp(tx *sql.Tx, projectKey string) error {
	if _, err := tx.Exec(`DELETE FROM stubs WHERE project_key = ? AND file_path NOT IN (SELECT file_path FROM current_paths WHERE project_key = ?)`, projectKey, projectKey); err != nil {
		return fmt.Errorf("delete stale stub rows: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM stub_files WHERE project_key = ? AND file_path NOT IN (SELECT file_path FROM current_paths WHERE project_key = ?)`, projectKey, projectKey); err != nil {
		return fmt.Errorf("delete stale stub files: %w", err)
	}
	return nil
}

func loadTempPaths(tx *sql.Tx, projectKey string, paths []string) error {
	if _, err := tx.Exec(`CREATE TEMP TABLE IF NOT EXISTS current_paths (
  project_key TEXT NOT NULL,
  file_path TEXT NOT NULL,
  PRIMARY KEY (project_key, file_path)
)`); err != nil {
		return fmt.Errorf("create temp paths table: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM current_paths WHERE project_key = ?`, projectKey); err != nil {
		return fmt.Errorf("clear temp paths table: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO current_paths (project_key, file_path) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare temp path insert: %w", err)
	}
	defer stmt.Close()
	for _, p := range paths {
		if _, err := stmt.Exec(projectKey, p); err != nil {
			return fmt.Errorf("insert temp path: %w", err)
		}
	}
	return nil
}
