package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rental-ledger/docstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_CreateGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col := docstore.NewPath("properties")

	require.NoError(t, s.Create(ctx, col, "p1", map[string]any{"name": "Elm Street 12", "units": float64(3)}))

	doc, err := s.Get(ctx, col.Doc("p1"))
	require.NoError(t, err)
	assert.Equal(t, "p1", doc.ID)
	assert.Equal(t, "Elm Street 12", doc.Fields["name"])

	require.NoError(t, s.Update(ctx, col.Doc("p1"), map[string]any{"name": "Elm St 12"}))
	doc, err = s.Get(ctx, col.Doc("p1"))
	require.NoError(t, err)
	assert.Equal(t, "Elm St 12", doc.Fields["name"])
	assert.Equal(t, float64(3), doc.Fields["units"], "merge keeps untouched fields")

	require.NoError(t, s.Delete(ctx, col.Doc("p1")))
	_, err = s.Get(ctx, col.Doc("p1"))
	assert.ErrorIs(t, err, docstore.ErrDocumentNotFound)
}

func TestSQLite_CreateRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col := docstore.NewPath("properties")

	require.NoError(t, s.Create(ctx, col, "p1", map[string]any{"name": "a"}))
	err := s.Create(ctx, col, "p1", map[string]any{"name": "b"})
	assert.ErrorIs(t, err, docstore.ErrDocumentExists)
}

func TestSQLite_UpdateMissingDocument(t *testing.T) {
	s := newTestStore(t)
	err := s.Update(context.Background(), docstore.NewPath("properties").Doc("ghost"), map[string]any{"x": 1})
	assert.ErrorIs(t, err, docstore.ErrDocumentNotFound)
}

func TestSQLite_DocIDsIncludesAnchors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	items := docstore.NewPath("properties").Doc("p1").Collection("expenses").Doc("2025-06").Collection("items")
	require.NoError(t, s.Create(ctx, items, "a", map[string]any{"description": "Rent"}))

	expenses := docstore.NewPath("properties").Doc("p1").Collection("expenses")
	ids, err := s.DocIDs(ctx, expenses)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-06"}, ids)

	require.NoError(t, s.Create(ctx, expenses, "2025-07", map[string]any{}))
	ids, err = s.DocIDs(ctx, expenses)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2025-06", "2025-07"}, ids)
}

func TestSQLite_DocumentsReturnsOnlyDirectChildren(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	expenses := docstore.NewPath("properties").Doc("p1").Collection("expenses")
	require.NoError(t, s.Create(ctx, expenses, "2025-06", map[string]any{"note": "anchor"}))
	require.NoError(t, s.Create(ctx, expenses.Doc("2025-06").Collection("items"), "a", map[string]any{"description": "Rent"}))
	require.NoError(t, s.Create(ctx, docstore.NewPath("properties").Doc("p2").Collection("expenses"), "2025-06", map[string]any{}))

	docs, err := s.Documents(ctx, expenses)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "2025-06", docs[0].ID)
	assert.Equal(t, "anchor", docs[0].Fields["note"])
}

func TestSQLite_PrefixScanEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// A property whose ID contains LIKE wildcards must not match as a pattern.
	require.NoError(t, s.Create(ctx, docstore.NewPath("properties").Doc("p_1").Collection("expenses"), "2025-06", map[string]any{}))
	require.NoError(t, s.Create(ctx, docstore.NewPath("properties").Doc("px1").Collection("expenses"), "2025-07", map[string]any{}))

	ids, err := s.DocIDs(ctx, docstore.NewPath("properties").Doc("p_1").Collection("expenses"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-06"}, ids)
}

func TestSQLite_RejectsWrongPathArity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	doc := docstore.NewPath("properties").Doc("p1")

	_, err := s.Documents(ctx, doc)
	assert.ErrorIs(t, err, docstore.ErrInvalidPath)

	_, err = s.Get(ctx, docstore.NewPath("properties"))
	assert.ErrorIs(t, err, docstore.ErrInvalidPath)

	err = s.Create(ctx, doc, "x", nil)
	assert.ErrorIs(t, err, docstore.ErrInvalidPath)
}
