package library

import (
	"database/sql"
	"fmt"
)

// migration is one schema step. Migrations run in order inside a
// transaction each; schema_version records the last applied step.
type migration struct {
	version     int
	description string
	up          string
}

var migrations = []migration{
	{
		version:     1,
		description: "documents and annotation layer",
		up: `
CREATE TABLE IF NOT EXISTS documents (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    path         TEXT NOT NULL,
    hash         TEXT NOT NULL UNIQUE,
    pages        INTEGER NOT NULL DEFAULT 0,
    last_opened  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS annotations (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id  INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    uuid         TEXT NOT NULL UNIQUE,
    page         INTEGER NOT NULL,
    kind         TEXT NOT NULL,
    z            INTEGER NOT NULL DEFAULT 0,
    seq          INTEGER NOT NULL,
    record       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_annotations_document_page
    ON annotations(document_id, page);
`,
	},
	{
		version:     2,
		description: "per-document view state",
		up: `
ALTER TABLE documents ADD COLUMN view_page INTEGER NOT NULL DEFAULT 0;
ALTER TABLE documents ADD COLUMN view_zoom REAL NOT NULL DEFAULT 1.0;
ALTER TABLE documents ADD COLUMN view_rotation INTEGER NOT NULL DEFAULT 0;
ALTER TABLE documents ADD COLUMN view_scroll_x REAL NOT NULL DEFAULT 0;
ALTER TABLE documents ADD COLUMN view_scroll_y REAL NOT NULL DEFAULT 0;
`,
	},
	{
		// An imported sidecar keeps its ids, so the same uuid may live
		// under several documents. Uniqueness holds per document only.
		version:     3,
		description: "scope annotation uuids per document",
		up: `
CREATE TABLE annotations_v3 (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id  INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    uuid         TEXT NOT NULL,
    page         INTEGER NOT NULL,
    kind         TEXT NOT NULL,
    z            INTEGER NOT NULL DEFAULT 0,
    seq          INTEGER NOT NULL,
    record       TEXT NOT NULL,
    UNIQUE(document_id, uuid)
);

INSERT INTO annotations_v3 (id, document_id, uuid, page, kind, z, seq, record)
    SELECT id, document_id, uuid, page, kind, z, seq, record FROM annotations;

DROP TABLE annotations;
ALTER TABLE annotations_v3 RENAME TO annotations;

CREATE INDEX IF NOT EXISTS idx_annotations_document_page
    ON annotations(document_id, page);
`,
	},
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`,
	); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	current := 0
	err := db.QueryRow(`SELECT version FROM schema_version`).Scan(&current)
	if err == sql.ErrNoRows {
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema_version: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.up); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version = ?`, m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}

	return nil
}
