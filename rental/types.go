/*
Package rental manages period-addressed expense records for rental
properties and propagates recurring records from one calendar period to the
next.

KEY CONCEPTS IN THIS FILE (types.go):
  - Property/Unit: read-only store entities this core addresses into
  - ExpenseItem: one expense line-item inside a period-scoped container
  - GenerationLineage: provenance stamped onto generated items, write-once
  - field mapping between typed records and untyped store documents

DESIGN PRINCIPLES:
  1. Precision: amounts are decimal.Decimal, never floats
  2. Type safety: distinct ID types for properties, units, and items
  3. JSON-safe fields: documents carry only strings, numbers, bools; the
     store never needs to understand domain types

SEE ALSO:
  - engine.go: creates items and lineage
  - summary.go: aggregates items per period
*/
package rental

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PropertyID string
type UnitID string
type ItemID string

// =============================================================================
// STORE ENTITIES (read-only from this core's perspective)
// =============================================================================

// Property is a rental property. Owned by the store; this core only reads it.
type Property struct {
	ID       PropertyID
	Name     string
	Metadata map[string]any
}

// Unit is a rentable unit inside a property. Relevant here only as an
// enumeration target for income data, which generation never touches.
type Unit struct {
	ID         UnitID
	PropertyID PropertyID
	Metadata   map[string]any
}

// =============================================================================
// EXPENSE ITEM
// =============================================================================

// ExpenseItem is one expense line-item in a period-scoped container.
// PaidDate, Receipt and ReferenceNumber are execution-time state, not
// template state: they never carry over across periods.
type ExpenseItem struct {
	ID          ItemID
	Description string
	Amount      decimal.Decimal
	IsRecurring bool
	IsActive    bool
	Year        int
	Month       time.Month

	DueDate *time.Time

	// Payment status
	PaidDate        *time.Time
	Receipt         string
	ReferenceNumber string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Lineage is present only on items the generation engine created.
	// Once attached it is never recomputed or deleted.
	Lineage *GenerationLineage
}

// Period returns the period the item is filed under.
func (it ExpenseItem) Period() Period {
	return Period{Year: it.Year, Month: it.Month}
}

// dedupeKey is the heuristic identity used for duplicate detection within a
// single property and target period. Deliberately weak: see Validate's
// warnings and the engine docs.
func (it ExpenseItem) dedupeKey() string {
	return it.Description + "|" + it.Amount.String()
}

// GenerationLineage records where a generated item came from.
// Created once, at generation time, never mutated.
type GenerationLineage struct {
	SourceDocID ItemID
	SourceYear  int
	SourceMonth time.Month
	PropertyID  PropertyID
	GeneratedAt time.Time
}

// =============================================================================
// FIELD MAPPING - typed records <-> untyped documents
// =============================================================================

// Date-only values (due dates, paid dates) use this layout; timestamps use
// RFC 3339.
const dateLayout = "2006-01-02"

// Fields flattens the item into JSON-safe document fields. Optional fields
// are omitted entirely when absent, mirroring how the records are stored.
func (it ExpenseItem) Fields() map[string]any {
	f := map[string]any{
		"description": it.Description,
		"amount":      it.Amount.String(),
		"isRecurring": it.IsRecurring,
		"isActive":    it.IsActive,
		"year":        it.Year,
		"month":       int(it.Month),
		"createdAt":   it.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":   it.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if it.DueDate != nil {
		f["dueDate"] = it.DueDate.Format(dateLayout)
	}
	if it.PaidDate != nil {
		f["paidDate"] = it.PaidDate.Format(dateLayout)
	}
	if it.Receipt != "" {
		f["receipt"] = it.Receipt
	}
	if it.ReferenceNumber != "" {
		f["referenceNumber"] = it.ReferenceNumber
	}
	if it.Lineage != nil {
		f["generatedFrom"] = map[string]any{
			"sourceDocId": string(it.Lineage.SourceDocID),
			"sourceYear":  it.Lineage.SourceYear,
			"sourceMonth": int(it.Lineage.SourceMonth),
			"propertyId":  string(it.Lineage.PropertyID),
			"generatedAt": it.Lineage.GeneratedAt.UTC().Format(time.RFC3339),
		}
	}
	return f
}

// ItemFromFields rebuilds a typed item from document fields. Malformed
// records yield an error the engine records per item instead of aborting
// the batch.
func ItemFromFields(id string, fields map[string]any) (ExpenseItem, error) {
	it := ExpenseItem{ID: ItemID(id)}

	it.Description, _ = fields["description"].(string)

	amountStr, ok := fields["amount"].(string)
	if !ok {
		return it, fmt.Errorf("item %s: missing or non-string amount", id)
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return it, fmt.Errorf("item %s: bad amount %q: %w", id, amountStr, err)
	}
	it.Amount = amount

	it.IsRecurring, _ = fields["isRecurring"].(bool)
	it.IsActive, _ = fields["isActive"].(bool)

	year, ok := intField(fields["year"])
	if !ok {
		return it, fmt.Errorf("item %s: missing or non-numeric year", id)
	}
	month, ok := intField(fields["month"])
	if !ok || month < 1 || month > 12 {
		return it, fmt.Errorf("item %s: missing or invalid month", id)
	}
	it.Year, it.Month = year, time.Month(month)

	if it.DueDate, err = dateField(fields, "dueDate"); err != nil {
		return it, fmt.Errorf("item %s: %w", id, err)
	}
	if it.PaidDate, err = dateField(fields, "paidDate"); err != nil {
		return it, fmt.Errorf("item %s: %w", id, err)
	}
	it.Receipt, _ = fields["receipt"].(string)
	it.ReferenceNumber, _ = fields["referenceNumber"].(string)

	if s, ok := fields["createdAt"].(string); ok {
		it.CreatedAt, _ = time.Parse(time.RFC3339, s)
	}
	if s, ok := fields["updatedAt"].(string); ok {
		it.UpdatedAt, _ = time.Parse(time.RFC3339, s)
	}

	if raw, ok := fields["generatedFrom"].(map[string]any); ok {
		lineage := &GenerationLineage{}
		if s, ok := raw["sourceDocId"].(string); ok {
			lineage.SourceDocID = ItemID(s)
		}
		if y, ok := intField(raw["sourceYear"]); ok {
			lineage.SourceYear = y
		}
		if m, ok := intField(raw["sourceMonth"]); ok {
			lineage.SourceMonth = time.Month(m)
		}
		if s, ok := raw["propertyId"].(string); ok {
			lineage.PropertyID = PropertyID(s)
		}
		if s, ok := raw["generatedAt"].(string); ok {
			lineage.GeneratedAt, _ = time.Parse(time.RFC3339, s)
		}
		it.Lineage = lineage
	}

	return it, nil
}

// PropertyFromFields rebuilds a property record.
func PropertyFromFields(id string, fields map[string]any) Property {
	p := Property{ID: PropertyID(id), Metadata: map[string]any{}}
	for k, v := range fields {
		if k == "name" {
			p.Name, _ = v.(string)
			continue
		}
		p.Metadata[k] = v
	}
	return p
}

// intField accepts the numeric representations that survive a JSON
// round-trip through the store.
func intField(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func dateField(fields map[string]any, key string) (*time.Time, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("non-string %s", key)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("bad %s %q: %w", key, s, err)
	}
	return &t, nil
}
