/*
path.go - Hierarchical path resolution for store entities

PURPOSE:
  Maps an entity kind plus addressing parameters to a concrete location in
  the document store. Side-effect free: resolution returns an address
  descriptor, it never performs I/O.

HIERARCHY:
  properties                                        top-level collection
  properties/{p}/expenses                           per-property period index
  properties/{p}/expenses/{YYYY-MM}/items           expense items, one period
  properties/{p}/units/{u}/incomes                  per-unit period index
  properties/{p}/units/{u}/incomes/{YYYY-MM}        income document (not a
                                                    sub-collection: incomes
                                                    are single documents per
                                                    period, not item lists)
  units                                             top-level collection

SEE ALSO:
  - period.go: the key codec used for period segments
  - enumerate.go: lists children under resolved paths
*/
package rental

import (
	"fmt"

	"github.com/warp/rental-ledger/docstore"
)

// =============================================================================
// ENTITY KINDS
// =============================================================================

type Kind string

const (
	KindProperties Kind = "properties"
	KindUnits      Kind = "units"
	KindExpenses   Kind = "expenses"
	KindIncomes    Kind = "incomes"
)

// Address carries the parameters path resolution may need. Period is
// optional; without it, expense/income kinds resolve to the unscoped
// container used for period enumeration.
type Address struct {
	PropertyID PropertyID
	UnitID     UnitID
	Period     *Period
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolve maps a kind and address to its store location.
//
// For KindExpenses with a period the result is the item collection; for
// KindIncomes with a period the result is the period document itself.
// KindProperties and KindUnits resolve to the top-level containers and
// ignore all other parameters.
func Resolve(kind Kind, addr Address) (docstore.Path, error) {
	switch kind {
	case KindProperties:
		return docstore.NewPath("properties"), nil

	case KindUnits:
		return docstore.NewPath("units"), nil

	case KindExpenses:
		if addr.PropertyID == "" {
			return docstore.Path{}, fmt.Errorf("%w: expenses require a property id", ErrMissingAddressParameter)
		}
		root := docstore.NewPath("properties").Doc(string(addr.PropertyID)).Collection("expenses")
		if addr.Period == nil {
			return root, nil
		}
		key, err := EncodePeriod(addr.Period.Year, int(addr.Period.Month))
		if err != nil {
			return docstore.Path{}, err
		}
		return root.Doc(key).Collection("items"), nil

	case KindIncomes:
		if addr.PropertyID == "" {
			return docstore.Path{}, fmt.Errorf("%w: incomes require a property id", ErrMissingAddressParameter)
		}
		if addr.UnitID == "" {
			return docstore.Path{}, fmt.Errorf("%w: incomes require a unit id", ErrMissingAddressParameter)
		}
		root := docstore.NewPath("properties").
			Doc(string(addr.PropertyID)).
			Collection("units").
			Doc(string(addr.UnitID)).
			Collection("incomes")
		if addr.Period == nil {
			return root, nil
		}
		key, err := EncodePeriod(addr.Period.Year, int(addr.Period.Month))
		if err != nil {
			return docstore.Path{}, err
		}
		return root.Doc(key), nil

	default:
		return docstore.Path{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
}

// expenseItems resolves the item collection for one property and period.
func expenseItems(propertyID PropertyID, p Period) (docstore.Path, error) {
	return Resolve(KindExpenses, Address{PropertyID: propertyID, Period: &p})
}
