/*
Package docstore defines the hierarchical document store used by the ledger.

PURPOSE:
  The rental ledger addresses everything through paths like
  properties/{id}/expenses/{period}/items/{item}. This package defines the
  path algebra and the minimal store contract the domain needs: list child
  documents, read a collection, create and update documents. Different
  implementations can use SQLite or in-memory storage.

PATH MODEL:
  Paths alternate collection and document segments, Firestore-style:

    properties                          collection
    properties/p1                       document
    properties/p1/expenses              collection
    properties/p1/expenses/2025-06      document (period anchor)
    properties/p1/expenses/2025-06/items collection

  A path with an odd number of segments is a collection; even is a document.
  Document anchors may exist implicitly: writing an item under a period
  creates the period anchor without a concrete document. DocIDs reports
  those anchors, which is what period enumeration relies on.

WRITE CONTRACT:
  Create rejects an existing document ID with ErrDocumentExists. The
  generation engine exploits this: generated items carry a deterministic ID,
  so a retried run that slips past the duplicate scan still cannot
  double-write.

FIELD VALUES:
  Document fields are plain JSON-safe values (string, float64/int, bool,
  nil). Domain packages own the mapping to and from typed records; stores
  never interpret fields.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production SQLite store
  - docstore/store/memory.go: in-memory store for testing

SEE ALSO:
  - rental/path.go: resolves entity kinds to paths
  - rental/engine.go: the main consumer of the write contract
*/
package docstore

import (
	"context"
	"errors"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrDocumentExists is returned by Create when the target ID is taken.
	// Expected behavior for idempotent retries.
	ErrDocumentExists = errors.New("document already exists")

	// ErrDocumentNotFound is returned when a referenced document is missing.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidPath is returned when a collection path is given where a
	// document path is required, or vice versa, or a segment is empty.
	ErrInvalidPath = errors.New("invalid path")
)

// =============================================================================
// PATH - Hierarchical address of a collection or document
// =============================================================================

// Path addresses a collection or document in the store.
// The zero value is the root and is not directly usable.
type Path struct {
	segments []string
}

// NewPath builds a path from raw segments. Segments must be non-empty and
// must not contain '/'.
func NewPath(segments ...string) Path {
	return Path{segments: segments}
}

// ParsePath splits a slash-separated path string.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, ErrInvalidPath
	}
	segments := strings.Split(s, "/")
	p := Path{segments: segments}
	if err := p.Validate(); err != nil {
		return Path{}, err
	}
	return p, nil
}

// Collection descends from a document (or root) into a child collection.
func (p Path) Collection(name string) Path {
	return Path{segments: append(append([]string{}, p.segments...), name)}
}

// Doc descends from a collection into a child document.
func (p Path) Doc(id string) Path {
	return Path{segments: append(append([]string{}, p.segments...), id)}
}

// Parent returns the path one level up. Parent of a top-level collection is
// the zero path.
func (p Path) Parent() Path {
	if len(p.segments) <= 1 {
		return Path{}
	}
	return Path{segments: append([]string{}, p.segments[:len(p.segments)-1]...)}
}

// ID returns the last segment (document ID or collection name).
func (p Path) ID() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// IsCollection reports whether the path addresses a collection.
// Collections sit at odd depth: properties (1), properties/p1/expenses (3).
func (p Path) IsCollection() bool {
	return len(p.segments)%2 == 1
}

// IsDocument reports whether the path addresses a document.
func (p Path) IsDocument() bool {
	return len(p.segments) > 0 && len(p.segments)%2 == 0
}

// IsZero reports whether the path is the unusable zero value.
func (p Path) IsZero() bool { return len(p.segments) == 0 }

// Depth returns the number of segments.
func (p Path) Depth() int { return len(p.segments) }

// Validate checks that every segment is usable.
func (p Path) Validate() error {
	if len(p.segments) == 0 {
		return ErrInvalidPath
	}
	for _, s := range p.segments {
		if s == "" || strings.Contains(s, "/") {
			return ErrInvalidPath
		}
	}
	return nil
}

func (p Path) String() string {
	return strings.Join(p.segments, "/")
}

// =============================================================================
// DOCUMENT
// =============================================================================

// Document is a stored record: an ID plus untyped fields.
type Document struct {
	ID     string
	Fields map[string]any
}

// =============================================================================
// STORE - Persistence contract
// =============================================================================

// Store is the document persistence contract. All methods take collection or
// document paths as noted; passing the wrong arity returns ErrInvalidPath.
//
// The ledger issues no transactions and no multi-document atomic writes;
// the only uniqueness guarantee is Create's ID collision check.
type Store interface {
	// DocIDs lists the IDs of child documents in a collection, including
	// implicit anchors (documents that exist only because something was
	// written beneath them). Order is unspecified.
	DocIDs(ctx context.Context, col Path) ([]string, error)

	// Documents reads every concrete document in a collection. No ordering.
	// Anchors without fields are not included.
	Documents(ctx context.Context, col Path) ([]Document, error)

	// Get reads a single document. Returns ErrDocumentNotFound when no
	// concrete document exists at the path (anchors don't count).
	Get(ctx context.Context, doc Path) (*Document, error)

	// Create writes a new document with the given ID into a collection.
	// Returns ErrDocumentExists if the ID is already taken.
	Create(ctx context.Context, col Path, id string, fields map[string]any) error

	// Update merges the named fields into an existing document.
	// Returns ErrDocumentNotFound for a missing document.
	Update(ctx context.Context, doc Path, fields map[string]any) error

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, doc Path) error
}
