/*
enumerate.go - Which periods exist for a property or unit

PURPOSE:
  Lists the periods that actually hold data, by reading child container
  names under a property's expenses root or a unit's incomes root.

NON-EMPTY CHECK:
  Expense periods are verified to contain at least one item before being
  reported. An empty period container can be left behind by a failed prior
  run and must not be reported as a usable period. Income periods are single
  documents, so document existence is sufficient.

FAILURES:
  Enumeration failures are returned as errors, never collapsed into an
  empty sequence. "Definitely no periods" and "could not determine" are
  different answers, and callers get to tell them apart.
*/
package rental

import (
	"context"
	"fmt"

	"github.com/warp/rental-ledger/docstore"
)

// Catalog enumerates existing periods from store content.
type Catalog struct {
	Store docstore.Store
}

// ExpensePeriods returns the periods with at least one expense item for a
// property, sorted ascending. Container names that don't parse as period
// keys are ignored.
func (c Catalog) ExpensePeriods(ctx context.Context, propertyID PropertyID) ([]Period, error) {
	root, err := Resolve(KindExpenses, Address{PropertyID: propertyID})
	if err != nil {
		return nil, err
	}

	ids, err := c.Store.DocIDs(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("listing expense periods for property %s: %w", propertyID, err)
	}

	var periods []Period
	for _, id := range ids {
		p, err := ParsePeriod(id)
		if err != nil {
			continue
		}
		items, err := expenseItems(propertyID, p)
		if err != nil {
			return nil, err
		}
		itemIDs, err := c.Store.DocIDs(ctx, items)
		if err != nil {
			return nil, fmt.Errorf("checking items for property %s period %s: %w", propertyID, p, err)
		}
		if len(itemIDs) == 0 {
			continue
		}
		periods = append(periods, p)
	}
	SortPeriods(periods)
	return periods, nil
}

// Properties reads all properties from the top-level container.
func (c Catalog) Properties(ctx context.Context) ([]Property, error) {
	col, err := Resolve(KindProperties, Address{})
	if err != nil {
		return nil, err
	}
	docs, err := c.Store.Documents(ctx, col)
	if err != nil {
		return nil, err
	}
	properties := make([]Property, 0, len(docs))
	for _, d := range docs {
		properties = append(properties, PropertyFromFields(d.ID, d.Fields))
	}
	return properties, nil
}

// Items reads and decodes all expense items for one property and period.
// Malformed documents become per-item error records; they never fail the
// fetch, because one bad historical record must not block its whole period.
func (c Catalog) Items(ctx context.Context, propertyID PropertyID, p Period) ([]ExpenseItem, []GenerationError, error) {
	col, err := expenseItems(propertyID, p)
	if err != nil {
		return nil, nil, err
	}
	docs, err := c.Store.Documents(ctx, col)
	if err != nil {
		return nil, nil, err
	}

	var items []ExpenseItem
	var decodeErrs []GenerationError
	for _, d := range docs {
		it, err := ItemFromFields(d.ID, d.Fields)
		if err != nil {
			decodeErrs = append(decodeErrs, GenerationError{
				Kind:       ErrorItemDecode,
				PropertyID: propertyID,
				ItemID:     ItemID(d.ID),
				Message:    err.Error(),
			})
			continue
		}
		items = append(items, it)
	}
	return items, decodeErrs, nil
}

// IncomePeriods returns the periods with an income document for a unit,
// sorted ascending. Existence of the document is sufficient.
func (c Catalog) IncomePeriods(ctx context.Context, propertyID PropertyID, unitID UnitID) ([]Period, error) {
	root, err := Resolve(KindIncomes, Address{PropertyID: propertyID, UnitID: unitID})
	if err != nil {
		return nil, err
	}

	ids, err := c.Store.DocIDs(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("listing income periods for unit %s: %w", unitID, err)
	}

	var periods []Period
	for _, id := range ids {
		p, err := ParsePeriod(id)
		if err != nil {
			continue
		}
		periods = append(periods, p)
	}
	SortPeriods(periods)
	return periods, nil
}
