// Package library is the durable side of the engine: a sqlite database
// holding known documents, their per-document view state, and the
// canonical annotation layer for each. Annotations live entirely in this
// sidecar; the source PDF is never rewritten by a save.
package library

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pdfmark/internal/annot"
	"pdfmark/internal/codec"
	"pdfmark/internal/store"
)

// Library wraps the sqlite database.
type Library struct {
	db *sql.DB
}

// Document is one known document row.
type Document struct {
	ID         int64
	Path       string
	Hash       string
	Pages      int
	LastOpened time.Time
}

// ViewState is the persisted per-document view, restored on reopen.
type ViewState struct {
	Page     int
	Zoom     float64
	Rotation int
	ScrollX  float64
	ScrollY  float64
}

// DefaultViewState is used for documents opened for the first time.
func DefaultViewState() ViewState {
	return ViewState{Zoom: 1.0}
}

// Open opens or creates the library database at path and applies
// migrations.
func Open(path string) (*Library, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create library directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Library{db: db}, nil
}

// Close closes the database.
func (l *Library) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// FindOrCreateDocument looks a document up by content hash, creating the
// row on first sight. A moved file (same hash, new path) has its path
// updated in place.
func (l *Library) FindOrCreateDocument(path, hash string, pages int) (*Document, error) {
	now := time.Now().UTC()

	var doc Document
	var lastOpened int64
	err := l.db.QueryRow(
		`SELECT id, path, hash, pages, last_opened FROM documents WHERE hash = ?`, hash,
	).Scan(&doc.ID, &doc.Path, &doc.Hash, &doc.Pages, &lastOpened)

	switch {
	case err == sql.ErrNoRows:
		res, err := l.db.Exec(
			`INSERT INTO documents (path, hash, pages, last_opened) VALUES (?, ?, ?, ?)`,
			path, hash, pages, now.Unix(),
		)
		if err != nil {
			return nil, fmt.Errorf("insert document: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("document id: %w", err)
		}
		return &Document{ID: id, Path: path, Hash: hash, Pages: pages, LastOpened: now}, nil

	case err != nil:
		return nil, fmt.Errorf("find document: %w", err)
	}

	doc.LastOpened = now
	if doc.Path != path {
		doc.Path = path
	}
	if _, err := l.db.Exec(
		`UPDATE documents SET path = ?, pages = ?, last_opened = ? WHERE id = ?`,
		doc.Path, pages, now.Unix(), doc.ID,
	); err != nil {
		return nil, fmt.Errorf("touch document: %w", err)
	}
	doc.Pages = pages
	return &doc, nil
}

// Recent returns the most recently opened documents.
func (l *Library) Recent(limit int) ([]Document, error) {
	rows, err := l.db.Query(
		`SELECT id, path, hash, pages, last_opened FROM documents
		 ORDER BY last_opened DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		var lastOpened int64
		if err := rows.Scan(&d.ID, &d.Path, &d.Hash, &d.Pages, &lastOpened); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.LastOpened = time.Unix(lastOpened, 0).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// LoadViewState returns the document's persisted view state, or the
// default when none was saved yet.
func (l *Library) LoadViewState(docID int64) (ViewState, error) {
	vs := DefaultViewState()
	err := l.db.QueryRow(
		`SELECT view_page, view_zoom, view_rotation, view_scroll_x, view_scroll_y
		 FROM documents WHERE id = ?`, docID,
	).Scan(&vs.Page, &vs.Zoom, &vs.Rotation, &vs.ScrollX, &vs.ScrollY)
	if err == sql.ErrNoRows {
		return DefaultViewState(), nil
	}
	if err != nil {
		return vs, fmt.Errorf("load view state: %w", err)
	}
	if vs.Zoom <= 0 {
		vs.Zoom = 1.0
	}
	return vs, nil
}

// SaveViewState persists the document's view state.
func (l *Library) SaveViewState(docID int64, vs ViewState) error {
	_, err := l.db.Exec(
		`UPDATE documents SET view_page = ?, view_zoom = ?, view_rotation = ?,
		 view_scroll_x = ?, view_scroll_y = ? WHERE id = ?`,
		vs.Page, vs.Zoom, vs.Rotation, vs.ScrollX, vs.ScrollY, docID,
	)
	if err != nil {
		return fmt.Errorf("save view state: %w", err)
	}
	return nil
}

// SaveLayer replaces the document's annotation rows with the given set in
// one transaction. Callers pass a compacted store's live annotations, so
// the replace is also the tombstone drop.
func (l *Library) SaveLayer(docID int64, annots []*annot.Annotation) error {
	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM annotations WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("clear layer: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO annotations (document_id, uuid, page, kind, z, seq, record)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range annots {
		rec, err := json.Marshal(codec.ToRecord(a))
		if err != nil {
			return fmt.Errorf("marshal annotation %s: %w", a.ID, err)
		}
		if _, err := stmt.Exec(docID, a.ID, a.Page, string(a.Kind), a.Z, a.Seq, rec); err != nil {
			return fmt.Errorf("insert annotation %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// LoadLayer reads the document's annotation layer into a fresh store.
// Records that no longer parse are skipped with a warning, matching the
// codec's per-record tolerance.
func (l *Library) LoadLayer(docID int64) (*store.Store, []codec.Warning, error) {
	rows, err := l.db.Query(
		`SELECT record FROM annotations WHERE document_id = ? ORDER BY page, z, seq`, docID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("load layer: %w", err)
	}
	defer rows.Close()

	st := store.New()
	var warnings []codec.Warning
	i := -1

	for rows.Next() {
		i++
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, nil, fmt.Errorf("scan annotation: %w", err)
		}

		var rec codec.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			warnings = append(warnings, codec.Warning{Index: i, Reason: err.Error()})
			continue
		}

		a, err := codec.FromRecord(rec)
		if err != nil {
			warnings = append(warnings, codec.Warning{
				Index: i, ID: rec.ID, Kind: rec.Kind, Reason: err.Error(),
			})
			continue
		}
		st.Insert(a)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read layer: %w", err)
	}

	return st, warnings, nil
}

// AnnotationCount returns the stored layer size for a document.
func (l *Library) AnnotationCount(docID int64) (int, error) {
	var n int
	err := l.db.QueryRow(
		`SELECT COUNT(*) FROM annotations WHERE document_id = ?`, docID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count annotations: %w", err)
	}
	return n, nil
}
