package rental

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rental-ledger/docstore"
	"github.com/warp/rental-ledger/docstore/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testNow = time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)

func testEngine(s docstore.Store) *Engine {
	e := NewEngine(s, nil)
	e.Clock = func() time.Time { return testNow }
	return e
}

func seedProperty(t *testing.T, s docstore.Store, id, name string) {
	t.Helper()
	col, err := Resolve(KindProperties, Address{})
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), col, id, map[string]any{"name": name}))
}

func seedItem(t *testing.T, s docstore.Store, propertyID PropertyID, p Period, it ExpenseItem) {
	t.Helper()
	it.Year, it.Month = p.Year, p.Month
	col, err := expenseItems(propertyID, p)
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), col, string(it.ID), it.Fields()))
}

func readItems(t *testing.T, s docstore.Store, propertyID PropertyID, p Period) []ExpenseItem {
	t.Helper()
	items, decodeErrs, err := Catalog{Store: s}.Items(context.Background(), propertyID, p)
	require.NoError(t, err)
	require.Empty(t, decodeErrs)
	return items
}

func amount(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func datePtr(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

var (
	june = Period{Year: 2025, Month: time.June}
	july = Period{Year: 2025, Month: time.July}
)

// =============================================================================
// GENERATION
// =============================================================================

func TestGenerate_CreatesOnlyRecurringItems(t *testing.T) {
	// GIVEN: a source period with one recurring and one one-off item
	// WHEN:  generating into an empty target period
	// THEN:  exactly the recurring item is created, payment-free, with lineage

	ctx := context.Background()
	s := store.NewMemory()
	seedProperty(t, s, "p1", "Elm Street 12")
	seedItem(t, s, "p1", june, ExpenseItem{
		ID: "rent-1", Description: "Rent", Amount: amount("500"),
		IsRecurring: true, IsActive: true,
		PaidDate: datePtr(2025, time.June, 5), Receipt: "rcpt-88", ReferenceNumber: "tx-1207",
	})
	seedItem(t, s, "p1", june, ExpenseItem{
		ID: "repair-1", Description: "Repair", Amount: amount("80"),
		IsRecurring: false, IsActive: true,
	})

	result, err := testEngine(s).Generate(ctx, GenerateOptions{
		SourceYear: 2025, SourceMonth: 6,
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.Skipped)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "2025-06", result.Summary.SourceKey)
	assert.Equal(t, "2025-07", result.Summary.TargetKey)
	assert.Equal(t, 1, result.Summary.PropertiesProcessed)

	items := readItems(t, s, "p1", july)
	require.Len(t, items, 1)
	created := items[0]
	assert.Equal(t, "Rent", created.Description)
	assert.True(t, created.Amount.Equal(amount("500")))
	assert.True(t, created.IsRecurring)
	assert.True(t, created.IsActive)
	assert.Equal(t, july, created.Period())

	// Payment state never carries over
	assert.Nil(t, created.PaidDate)
	assert.Empty(t, created.Receipt)
	assert.Empty(t, created.ReferenceNumber)

	// Lineage references the source item; stamped once at generation time
	require.NotNil(t, created.Lineage)
	assert.Equal(t, ItemID("rent-1"), created.Lineage.SourceDocID)
	assert.Equal(t, 2025, created.Lineage.SourceYear)
	assert.Equal(t, time.June, created.Lineage.SourceMonth)
	assert.Equal(t, PropertyID("p1"), created.Lineage.PropertyID)
	assert.True(t, created.Lineage.GeneratedAt.Equal(testNow), "lineage stamped at generation time")
}

func TestGenerate_SequentialRerunSkipsExisting(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seedProperty(t, s, "p1", "Elm Street 12")
	seedItem(t, s, "p1", june, ExpenseItem{
		ID: "rent-1", Description: "Rent", Amount: amount("500"),
		IsRecurring: true, IsActive: true,
	})

	engine := testEngine(s)
	opts := GenerateOptions{SourceYear: 2025, SourceMonth: 6}

	first, err := engine.Generate(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)
	assert.Equal(t, 0, first.Skipped)

	second, err := engine.Generate(ctx, opts)
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Skipped, "duplicate detected by description+amount")

	assert.Len(t, readItems(t, s, "p1", july), 1)
}

func TestGenerate_DryRunCountsWithoutPersisting(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seedProperty(t, s, "p1", "Elm Street 12")
	seedItem(t, s, "p1", june, ExpenseItem{
		ID: "rent-1", Description: "Rent", Amount: amount("500"), IsRecurring: true,
	})
	seedItem(t, s, "p1", june, ExpenseItem{
		ID: "hoa-1", Description: "HOA fee", Amount: amount("120.50"), IsRecurring: true,
	})

	engine := testEngine(s)

	dry, err := engine.Generate(ctx, GenerateOptions{SourceYear: 2025, SourceMonth: 6, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 2, dry.Created)
	assert.True(t, dry.Summary.DryRun)
	assert.Empty(t, readItems(t, s, "p1", july), "dry run must not persist")

	real, err := engine.Generate(ctx, GenerateOptions{SourceYear: 2025, SourceMonth: 6})
	require.NoError(t, err)
	assert.Equal(t, dry.Created, real.Created, "dry run reports the same created count")
	assert.Len(t, readItems(t, s, "p1", july), 2)
}

func TestGenerate_DueDateAdvancesOneMonth(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seedProperty(t, s, "p1", "Elm Street 12")
	seedItem(t, s, "p1", june, ExpenseItem{
		ID: "rent-1", Description: "Rent", Amount: amount("500"),
		IsRecurring: true, DueDate: datePtr(2025, time.June, 15),
	})
	seedItem(t, s, "p1", june, ExpenseItem{
		ID: "hoa-1", Description: "HOA fee", Amount: amount("120"), IsRecurring: true,
	})

	_, err := testEngine(s).Generate(ctx, GenerateOptions{SourceYear: 2025, SourceMonth: 6})
	require.NoError(t, err)

	byDesc := map[string]ExpenseItem{}
	for _, it := range readItems(t, s, "p1", july) {
		byDesc[it.Description] = it
	}

	require.NotNil(t, byDesc["Rent"].DueDate)
	assert.Equal(t, "2025-07-15", byDesc["Rent"].DueDate.Format("2006-01-02"))
	assert.Nil(t, byDesc["HOA fee"].DueDate, "no due date in, no due date out")
}

func TestGenerate_DueDateClampsToShorterMonth(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	jan := Period{Year: 2025, Month: time.January}
	seedProperty(t, s, "p1", "Elm Street 12")
	seedItem(t, s, "p1", jan, ExpenseItem{
		ID: "rent-1", Description: "Rent", Amount: amount("500"),
		IsRecurring: true, DueDate: datePtr(2025, time.January, 31),
	})

	_, err := testEngine(s).Generate(ctx, GenerateOptions{SourceYear: 2025, SourceMonth: 1})
	require.NoError(t, err)

	items := readItems(t, s, "p1", Period{Year: 2025, Month: time.February})
	require.Len(t, items, 1)
	require.NotNil(t, items[0].DueDate)
	assert.Equal(t, "2025-02-28", items[0].DueDate.Format("2006-01-02"))
}

func TestGenerate_DefaultsPeriodsFromInjectedClock(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seedProperty(t, s, "p1", "Elm Street 12")

	result, err := testEngine(s).Generate(ctx, GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "2025-06", result.Summary.SourceKey)
	assert.Equal(t, "2025-07", result.Summary.TargetKey)
}

func TestGenerate_TargetDefaultRollsYear(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seedProperty(t, s, "p1", "Elm Street 12")

	result, err := testEngine(s).Generate(ctx, GenerateOptions{SourceYear: 2025, SourceMonth: 12})
	require.NoError(t, err)
	assert.Equal(t, "2025-12", result.Summary.SourceKey)
	assert.Equal(t, "2026-01", result.Summary.TargetKey)
}

func TestGenerate_PartialPeriodPairIsRejected(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seedProperty(t, s, "p1", "Elm Street 12")

	_, err := testEngine(s).Generate(ctx, GenerateOptions{SourceYear: 2025})
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = testEngine(s).Generate(ctx, GenerateOptions{TargetMonth: 7})
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestGenerate_NoPropertiesIsTheOneRunFailure(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	result, err := testEngine(s).Generate(ctx, GenerateOptions{SourceYear: 2025, SourceMonth: 6})
	assert.ErrorIs(t, err, ErrNoProperties)
	require.NotNil(t, result)
	assert.False(t, result.Success)
}

func TestGenerate_NoRecurringItemsIsNotAnError(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seedProperty(t, s, "p1", "Elm Street 12")
	seedItem(t, s, "p1", june, ExpenseItem{
		ID: "repair-1", Description: "Repair", Amount: amount("80"), IsRecurring: false,
	})

	result, err := testEngine(s).Generate(ctx, GenerateOptions{SourceYear: 2025, SourceMonth: 6})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 0, result.Skipped)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, result.Summary.PropertiesProcessed)
}

func TestGenerate_MalformedSourceItemIsIsolated(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seedProperty(t, s, "p1", "Elm Street 12")
	seedItem(t, s, "p1", june, ExpenseItem{
		ID: "rent-1", Description: "Rent", Amount: amount("500"), IsRecurring: true,
	})

	// A historical record with a broken amount field
	col, err := expenseItems("p1", june)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, col, "broken-1", map[string]any{
		"description": "Mystery", "amount": 12.5, "isRecurring": true,
		"year": 2025, "month": 6,
	}))

	result, err := testEngine(s).Generate(ctx, GenerateOptions{SourceYear: 2025, SourceMonth: 6})
	require.NoError(t, err)

	assert.True(t, result.Success, "partial failures never fail the run")
	assert.Equal(t, 1, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrorItemDecode, result.Errors[0].Kind)
	assert.Equal(t, ItemID("broken-1"), result.Errors[0].ItemID)
	assert.Equal(t, PropertyID("p1"), result.Errors[0].PropertyID)
}

func TestGenerate_PropertyFailureDoesNotAbortRun(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedProperty(t, mem, "p1", "Elm Street 12")
	seedProperty(t, mem, "p2", "Oak Avenue 3")
	seedItem(t, mem, "p1", june, ExpenseItem{
		ID: "rent-1", Description: "Rent", Amount: amount("500"), IsRecurring: true,
	})
	seedItem(t, mem, "p2", june, ExpenseItem{
		ID: "rent-2", Description: "Rent", Amount: amount("700"), IsRecurring: true,
	})

	s := &failingStore{Store: mem, failPrefix: "properties/p2/expenses"}

	result, err := testEngine(s).Generate(ctx, GenerateOptions{SourceYear: 2025, SourceMonth: 6})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Created, "the healthy property still generates")
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrorPropertyProcessing, result.Errors[0].Kind)
	assert.Equal(t, PropertyID("p2"), result.Errors[0].PropertyID)
	assert.Equal(t, 2, result.Summary.PropertiesProcessed)
}

func TestGenerate_WriteFailureRecordedPerItem(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedProperty(t, mem, "p1", "Elm Street 12")
	seedItem(t, mem, "p1", june, ExpenseItem{
		ID: "rent-1", Description: "Rent", Amount: amount("500"), IsRecurring: true,
	})

	s := &failingStore{Store: mem, failCreates: true}

	result, err := testEngine(s).Generate(ctx, GenerateOptions{SourceYear: 2025, SourceMonth: 6})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrorItemWrite, result.Errors[0].Kind)
	assert.Equal(t, ItemID("rent-1"), result.Errors[0].ItemID)
	assert.Equal(t, "Rent", result.Errors[0].Description)
}

func TestGenerate_DeterministicIDBlocksRetriedWrite(t *testing.T) {
	// The (description, amount) scan misses an item whose description was
	// edited after generation; the deterministic document ID still blocks
	// the second write, counted as a skip.

	ctx := context.Background()
	s := store.NewMemory()
	seedProperty(t, s, "p1", "Elm Street 12")
	seedItem(t, s, "p1", june, ExpenseItem{
		ID: "rent-1", Description: "Rent", Amount: amount("500"), IsRecurring: true,
	})

	engine := testEngine(s)
	opts := GenerateOptions{SourceYear: 2025, SourceMonth: 6}

	_, err := engine.Generate(ctx, opts)
	require.NoError(t, err)

	// Rename the generated item so the scan no longer matches
	col, err := expenseItems("p1", july)
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, col.Doc("gen-rent-1-2025-07"), map[string]any{
		"description": "Rent (adjusted)",
	}))

	second, err := engine.Generate(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, readItems(t, s, "p1", july), 1)
}

func TestGenerate_MultiplePropertiesAggregate(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seedProperty(t, s, "p1", "Elm Street 12")
	seedProperty(t, s, "p2", "Oak Avenue 3")
	seedItem(t, s, "p1", june, ExpenseItem{
		ID: "rent-1", Description: "Rent", Amount: amount("500"), IsRecurring: true,
	})
	seedItem(t, s, "p2", june, ExpenseItem{
		ID: "rent-2", Description: "Rent", Amount: amount("700"), IsRecurring: true,
	})
	seedItem(t, s, "p2", july, ExpenseItem{
		ID: "pre-existing", Description: "Rent", Amount: amount("700"), IsRecurring: true,
	})

	result, err := testEngine(s).Generate(ctx, GenerateOptions{SourceYear: 2025, SourceMonth: 6})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created, "p2's rent already exists in the target")
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.PerProperty, 2)

	perProp := map[PropertyID]PropertyGeneration{}
	for _, pg := range result.PerProperty {
		perProp[pg.PropertyID] = pg
	}
	assert.Equal(t, 1, perProp["p1"].Created)
	assert.Equal(t, 1, perProp["p2"].Skipped)
}

// =============================================================================
// FAILURE-INJECTING STORE
// =============================================================================

type failingStore struct {
	docstore.Store
	failPrefix     string // Documents calls under this prefix fail
	failListPrefix string // DocIDs calls under this prefix fail
	failCreates    bool   // all Create calls fail
}

func (f *failingStore) Documents(ctx context.Context, col docstore.Path) ([]docstore.Document, error) {
	if f.failPrefix != "" && strings.HasPrefix(col.String(), f.failPrefix) {
		return nil, errors.New("store offline")
	}
	return f.Store.Documents(ctx, col)
}

func (f *failingStore) DocIDs(ctx context.Context, col docstore.Path) ([]string, error) {
	if f.failListPrefix != "" && strings.HasPrefix(col.String(), f.failListPrefix) {
		return nil, errors.New("store offline")
	}
	return f.Store.DocIDs(ctx, col)
}

func (f *failingStore) Create(ctx context.Context, col docstore.Path, id string, fields map[string]any) error {
	if f.failCreates {
		return errors.New("write rejected")
	}
	return f.Store.Create(ctx, col, id, fields)
}
