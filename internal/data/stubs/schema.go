package stubs

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 1

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS stub_files (
  project_key TEXT NOT NULL,
  file_path TEXT NOT NULL,
  content_hash TEXT NOT NULL,
  indexed_at_utc TEXT NOT NULL,
  PRIMARY KEY (project_key, file_path)
);
CREATE TABLE IF NOT EXISTS stubs (
  project_key TEXT NOT NULL,
  file_path TEXT NOT NULL,
  name TEXT NOT NULL,
  byte_offset INTEGER NOT NULL,
  line INTEGER NOT NULL DEFAULT 0,
  col INTEGER NOT NULL DEFAULT 0,
  is_declaration INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (project_key, file_path, byte_offset),
  FOREIGN KEY (project_key, file_path) REFERENCES stub_files(project_key, file_path) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_stubs_project_name ON stubs(project_key, name);
`,
	},
}

// migrateStubSchema brings the database to schemaVersion, one migration
// per transaction, recording progress in PRAGMA user_version.
func migrateStubSchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("stub store schema v%d is newer than supported v%d", version, schemaVersion)
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin schema v%d migration: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("schema v%d migration: %w", m.version, err)
		}
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, m.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record schema v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit schema v%d migration: %w", m.version, err)
		}
		version = m.version
	}
	return nil
}
