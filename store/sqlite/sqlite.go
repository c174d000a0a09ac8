/*
Package sqlite provides a SQLite-backed implementation of docstore.Store.

PURPOSE:
  Persists the hierarchical document tree in a single table keyed by full
  path. The hierarchy is recovered from path prefixes: a document's parent
  collection is its path minus the last segment, and implicit anchors fall
  out of a prefix scan.

SCHEMA:
  documents:
    path        full slash-separated path (PRIMARY KEY)
    parent      the containing collection path (indexed, hot path for reads)
    doc_id      last path segment
    fields_json document fields as JSON
    created_at / updated_at

JSON ROUND-TRIP:
  Numeric fields come back as float64 after the JSON round-trip. The domain
  layer's field decoding accepts that, so the store never needs type
  metadata.

CONCURRENCY:
  sync.RWMutex for thread-safety. WAL mode is enabled so readers don't
  block the single writer.

USAGE:
  store, err := sqlite.New("./data/rental.db")
  if err != nil { log.Fatal(err) }
  defer store.Close()

SEE ALSO:
  - docstore/docstore.go: interface definition and path algebra
  - docstore/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/rental-ledger/docstore"
)

// Store implements docstore.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		path        TEXT PRIMARY KEY,
		parent      TEXT NOT NULL,
		doc_id      TEXT NOT NULL,
		fields_json TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	-- Collection reads (hot path: every item fetch)
	CREATE INDEX IF NOT EXISTS idx_documents_parent ON documents(parent);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// READS
// =============================================================================

func (s *Store) DocIDs(ctx context.Context, col docstore.Path) ([]string, error) {
	if err := col.Validate(); err != nil {
		return nil, err
	}
	if !col.IsCollection() {
		return nil, docstore.ErrInvalidPath
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Prefix scan picks up both concrete children and anchors that exist
	// only because something deeper was written.
	prefix := col.String() + "/"
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM documents WHERE path LIKE ? ESCAPE '\'`,
		likePattern(prefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var ids []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		rest := path[len(prefix):]
		id := rest
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			id = rest[:i]
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

func (s *Store) Documents(ctx context.Context, col docstore.Path) ([]docstore.Document, error) {
	if err := col.Validate(); err != nil {
		return nil, err
	}
	if !col.IsCollection() {
		return nil, docstore.ErrInvalidPath
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, fields_json FROM documents WHERE parent = ?`,
		col.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		var id, fieldsJSON string
		if err := rows.Scan(&id, &fieldsJSON); err != nil {
			return nil, err
		}
		fields := make(map[string]any)
		if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
			return nil, fmt.Errorf("document %s/%s: corrupt fields: %w", col, id, err)
		}
		docs = append(docs, docstore.Document{ID: id, Fields: fields})
	}
	return docs, rows.Err()
}

func (s *Store) Get(ctx context.Context, doc docstore.Path) (*docstore.Document, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if !doc.IsDocument() {
		return nil, docstore.ErrInvalidPath
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var fieldsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT fields_json FROM documents WHERE path = ?`,
		doc.String()).Scan(&fieldsJSON)
	if err == sql.ErrNoRows {
		return nil, docstore.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return nil, fmt.Errorf("document %s: corrupt fields: %w", doc, err)
	}
	return &docstore.Document{ID: doc.ID(), Fields: fields}, nil
}

// =============================================================================
// WRITES
// =============================================================================

func (s *Store) Create(ctx context.Context, col docstore.Path, id string, fields map[string]any) error {
	if err := col.Validate(); err != nil {
		return err
	}
	if !col.IsCollection() || id == "" || strings.Contains(id, "/") {
		return docstore.ErrInvalidPath
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := col.Doc(id).String()

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE path = ?`, path).Scan(&exists)
	if err == nil {
		return docstore.ErrDocumentExists
	}
	if err != sql.ErrNoRows {
		return err
	}

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshaling fields for %s: %w", path, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (path, parent, doc_id, fields_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		path, col.String(), id, string(fieldsJSON), now, now)
	return err
}

func (s *Store) Update(ctx context.Context, doc docstore.Path, fields map[string]any) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if !doc.IsDocument() {
		return docstore.ErrInvalidPath
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var fieldsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT fields_json FROM documents WHERE path = ?`,
		doc.String()).Scan(&fieldsJSON)
	if err == sql.ErrNoRows {
		return docstore.ErrDocumentNotFound
	}
	if err != nil {
		return err
	}

	existing := make(map[string]any)
	if err := json.Unmarshal([]byte(fieldsJSON), &existing); err != nil {
		return fmt.Errorf("document %s: corrupt fields: %w", doc, err)
	}
	for k, v := range fields {
		existing[k] = v
	}

	merged, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("marshaling fields for %s: %w", doc, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx,
		`UPDATE documents SET fields_json = ?, updated_at = ? WHERE path = ?`,
		string(merged), now, doc.String())
	return err
}

func (s *Store) Delete(ctx context.Context, doc docstore.Path) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if !doc.IsDocument() {
		return docstore.ErrInvalidPath
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE path = ?`, doc.String())
	return err
}

// likePattern escapes LIKE wildcards in a literal prefix and appends %.
func likePattern(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
