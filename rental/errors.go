/*
errors.go - Centralized error types for the rental ledger core

PURPOSE:
  All error types in one place for consistency and discoverability.

ERROR CATEGORIES:
  1. Structural errors - Malformed periods, bad addressing. These indicate a
     programming or configuration defect and fail the calling operation
     immediately.
  2. Generation errors - Per-item and per-property failures during a
     generation run. These are recovered locally and collected into the run
     result; a single malformed historical record must not block recurring
     generation for every other property.

USAGE:
  if errors.Is(err, rental.ErrInvalidPeriod) { ... }

SEE ALSO:
  - engine.go: collects GenerationError records into results
  - path.go: returns addressing errors
*/
package rental

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriod is returned for a malformed year/month pair or an
	// unparsable period key.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrMissingAddressParameter is returned when path resolution is called
	// without an ID the requested kind requires.
	ErrMissingAddressParameter = errors.New("missing address parameter")

	// ErrUnsupportedKind is returned for an unrecognized entity kind.
	ErrUnsupportedKind = errors.New("unsupported entity kind")

	// ErrNoProperties is returned when a generation run finds no properties
	// at all. This is the only whole-run failure; everything else degrades
	// to entries in the result's error list.
	ErrNoProperties = errors.New("no properties found")

	// ErrItemWrite is the base error for store-rejected item writes.
	ErrItemWrite = errors.New("item write failed")

	// ErrPropertyProcessing is the base error for a property whose
	// enumeration or fetch failed during generation.
	ErrPropertyProcessing = errors.New("property processing failed")
)

// =============================================================================
// GENERATION ERROR - Per-item/per-property failure record
// =============================================================================

// ErrorKind classifies an entry in a generation result's error list.
type ErrorKind string

const (
	ErrorItemWrite          ErrorKind = "item_write_failure"
	ErrorItemDecode         ErrorKind = "item_decode_failure"
	ErrorPropertyProcessing ErrorKind = "property_processing_failure"
)

// GenerationError records one recovered failure with its context.
// ItemID and Description are empty for property-scoped failures.
type GenerationError struct {
	Kind        ErrorKind  `json:"kind"`
	PropertyID  PropertyID `json:"property_id"`
	ItemID      ItemID     `json:"item_id,omitempty"`
	Description string     `json:"description,omitempty"`
	Message     string     `json:"message"`
}

func (e *GenerationError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("%s: property %s item %s (%q): %s",
			e.Kind, e.PropertyID, e.ItemID, e.Description, e.Message)
	}
	return fmt.Sprintf("%s: property %s: %s", e.Kind, e.PropertyID, e.Message)
}

func (e *GenerationError) Unwrap() error {
	switch e.Kind {
	case ErrorPropertyProcessing:
		return ErrPropertyProcessing
	default:
		return ErrItemWrite
	}
}

// IsStructural returns true if the error indicates a programming or
// configuration defect rather than a data issue.
func IsStructural(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrMissingAddressParameter) ||
		errors.Is(err, ErrUnsupportedKind)
}
