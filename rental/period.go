/*
period.go - Canonical period keys for time-partitioned records

PURPOSE:
  Every expense container is keyed by a calendar period. The codec here is
  the foundation for all path construction: two call sites that encode the
  same (year, month) must always produce the same key, so comparison of
  periods never depends on who built them.

KEY FORMAT:
  "YYYY-MM" with the month zero-padded to two digits, e.g. "2025-06".
  Months outside 1-12 are rejected with ErrInvalidPeriod.

PURITY:
  No I/O, deterministic, referentially transparent.

SEE ALSO:
  - path.go: uses keys as path segments
  - enumerate.go: parses container names back to periods
*/
package rental

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// PERIOD - A logical (year, month) pair
// =============================================================================

// Period identifies one calendar month. Not a stored entity; derived from
// container names.
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod validates and builds a period.
func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d out of range 1-12", ErrInvalidPeriod, month)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// PeriodOf returns the period containing the given instant.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// EncodePeriod produces the canonical "YYYY-MM" key for a (year, month) pair.
func EncodePeriod(year, month int) (string, error) {
	p, err := NewPeriod(year, month)
	if err != nil {
		return "", err
	}
	return p.Key(), nil
}

// ParsePeriod decodes a canonical key back to a period.
func ParsePeriod(key string) (Period, error) {
	parts := strings.Split(key, "-")
	if len(parts) != 2 {
		return Period{}, fmt.Errorf("%w: key %q", ErrInvalidPeriod, key)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Period{}, fmt.Errorf("%w: key %q", ErrInvalidPeriod, key)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return Period{}, fmt.Errorf("%w: key %q", ErrInvalidPeriod, key)
	}
	return NewPeriod(year, month)
}

// Key returns the canonical period key. Assumes a valid period; values built
// through NewPeriod/ParsePeriod are always valid.
func (p Period) Key() string {
	return fmt.Sprintf("%d-%02d", p.Year, int(p.Month))
}

func (p Period) String() string { return p.Key() }

// Next returns the immediately following month, rolling the year on overflow.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Compare returns -1, 0, or 1 ordering periods chronologically.
func (p Period) Compare(o Period) int {
	switch {
	case p.Year != o.Year:
		if p.Year < o.Year {
			return -1
		}
		return 1
	case p.Month != o.Month:
		if p.Month < o.Month {
			return -1
		}
		return 1
	default:
		return 0
	}
}

func (p Period) Before(o Period) bool { return p.Compare(o) < 0 }
func (p Period) Equal(o Period) bool  { return p == o }

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

// SortPeriods orders periods ascending by (year, month).
func SortPeriods(periods []Period) {
	sort.Slice(periods, func(i, j int) bool {
		return periods[i].Before(periods[j])
	})
}
