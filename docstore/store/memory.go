// Package store provides docstore.Store implementations.
package store

import (
	"context"
	"strings"
	"sync"

	"github.com/warp/rental-ledger/docstore"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]any // full document path -> fields
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]any)}
}

func (m *Memory) DocIDs(_ context.Context, col docstore.Path) ([]string, error) {
	if err := col.Validate(); err != nil {
		return nil, err
	}
	if !col.IsCollection() {
		return nil, docstore.ErrInvalidPath
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := col.String() + "/"
	seen := make(map[string]bool)
	var ids []string
	for path := range m.docs {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		// First segment after the prefix is the child document ID,
		// whether the document is concrete or only an anchor.
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
	return ids, nil
}

func (m *Memory) Documents(_ context.Context, col docstore.Path) ([]docstore.Document, error) {
	if err := col.Validate(); err != nil {
		return nil, err
	}
	if !col.IsCollection() {
		return nil, docstore.ErrInvalidPath
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := col.String() + "/"
	var result []docstore.Document
	for path, fields := range m.docs {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := path[len(prefix):]
		if strings.IndexByte(rest, '/') >= 0 {
			continue // deeper than a direct child
		}
		result = append(result, docstore.Document{ID: rest, Fields: copyFields(fields)})
	}
	return result, nil
}

func (m *Memory) Get(_ context.Context, doc docstore.Path) (*docstore.Document, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if !doc.IsDocument() {
		return nil, docstore.ErrInvalidPath
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	fields, ok := m.docs[doc.String()]
	if !ok {
		return nil, docstore.ErrDocumentNotFound
	}
	return &docstore.Document{ID: doc.ID(), Fields: copyFields(fields)}, nil
}

func (m *Memory) Create(_ context.Context, col docstore.Path, id string, fields map[string]any) error {
	if err := col.Validate(); err != nil {
		return err
	}
	if !col.IsCollection() || id == "" || strings.Contains(id, "/") {
		return docstore.ErrInvalidPath
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path := col.Doc(id).String()
	if _, ok := m.docs[path]; ok {
		return docstore.ErrDocumentExists
	}
	m.docs[path] = copyFields(fields)
	return nil
}

func (m *Memory) Update(_ context.Context, doc docstore.Path, fields map[string]any) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if !doc.IsDocument() {
		return docstore.ErrInvalidPath
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.docs[doc.String()]
	if !ok {
		return docstore.ErrDocumentNotFound
	}
	for k, v := range fields {
		existing[k] = v
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, doc docstore.Path) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if !doc.IsDocument() {
		return docstore.ErrInvalidPath
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs, doc.String())
	return nil
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
