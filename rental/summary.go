/*
summary.go - Period summaries and the pre-generation validation check

PURPOSE:
  Summarize aggregates per-property and global counts plus recurring-item
  listings for one period. Validate derives the same source/target
  defaulting as Generate and reports whether a run makes sense.

ADVISORY ONLY:
  Validate does not lock or reserve the target period. A generation run
  executed immediately after validation can still race with another run;
  serializing runs is the caller's job.
*/
package rental

import (
	"context"
	"fmt"
)

// =============================================================================
// SUMMARY
// =============================================================================

// RecurringListing is one recurring-flagged item in a summary.
type RecurringListing struct {
	ID          ItemID `json:"id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	DueDate     string `json:"due_date,omitempty"`
}

// PropertySummary is the per-property slice of a period summary. A property
// whose fetch failed degrades to a zero-count entry with Error set.
type PropertySummary struct {
	PropertyID PropertyID         `json:"property_id"`
	Name       string             `json:"name,omitempty"`
	TotalItems int                `json:"total_items"`
	Recurring  int                `json:"recurring_items"`
	Listings   []RecurringListing `json:"recurring,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// PeriodSummary aggregates one period across all properties.
type PeriodSummary struct {
	Period         Period            `json:"-"`
	PeriodKey      string            `json:"period"`
	Properties     int               `json:"properties"`
	TotalItems     int               `json:"total_items"`
	TotalRecurring int               `json:"total_recurring"`
	PerProperty    []PropertySummary `json:"per_property"`
}

// Summarize builds the summary for one period. Read-only; never mutates
// data. Zero properties yields an empty summary, not an error. Per-property
// failures degrade to annotated zero-count entries.
func (e *Engine) Summarize(ctx context.Context, year, month int) (*PeriodSummary, error) {
	period, err := NewPeriod(year, month)
	if err != nil {
		return nil, err
	}

	properties, err := e.listProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing properties: %w", err)
	}

	summary := &PeriodSummary{
		Period:      period,
		PeriodKey:   period.Key(),
		Properties:  len(properties),
		PerProperty: []PropertySummary{},
	}

	for _, prop := range properties {
		ps := PropertySummary{PropertyID: prop.ID, Name: prop.Name}

		items, decodeErrs, err := e.fetchItems(ctx, prop.ID, period)
		if err != nil {
			ps.Error = err.Error()
			summary.PerProperty = append(summary.PerProperty, ps)
			continue
		}
		if len(decodeErrs) > 0 {
			ps.Error = fmt.Sprintf("%d items failed to decode", len(decodeErrs))
		}

		ps.TotalItems = len(items)
		for _, it := range items {
			if !it.IsRecurring {
				continue
			}
			ps.Recurring++
			listing := RecurringListing{
				ID:          it.ID,
				Description: it.Description,
				Amount:      it.Amount.String(),
			}
			if it.DueDate != nil {
				listing.DueDate = it.DueDate.Format(dateLayout)
			}
			ps.Listings = append(ps.Listings, listing)
		}

		summary.TotalItems += ps.TotalItems
		summary.TotalRecurring += ps.Recurring
		summary.PerProperty = append(summary.PerProperty, ps)
	}

	return summary, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationResult reports whether a generation run can proceed. Warnings
// never block; Blockers do.
type ValidationResult struct {
	CanGenerate bool           `json:"can_generate"`
	SourceKey   string         `json:"source_period"`
	TargetKey   string         `json:"target_period"`
	Blockers    []string       `json:"blockers,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
	Source      *PeriodSummary `json:"source_summary,omitempty"`
	Target      *PeriodSummary `json:"target_summary,omitempty"`
}

// Validate checks the preconditions for a generation run with the same
// period defaulting Generate uses.
//
// Hard blockers: source summary unavailable, or target == source.
// Warnings: no recurring items in source, target already has items, target
// chronologically before source.
func (e *Engine) Validate(ctx context.Context, opts GenerateOptions) (*ValidationResult, error) {
	source, target, err := e.resolvePeriods(opts)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{
		SourceKey: source.Key(),
		TargetKey: target.Key(),
	}

	if target.Equal(source) {
		result.Blockers = append(result.Blockers,
			fmt.Sprintf("target period %s equals source period; generation would duplicate in place", target))
	}

	sourceSummary, err := e.Summarize(ctx, source.Year, int(source.Month))
	if err != nil {
		result.Blockers = append(result.Blockers,
			fmt.Sprintf("source period %s could not be summarized: %v", source, err))
	} else {
		result.Source = sourceSummary
		if sourceSummary.TotalRecurring == 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("source period %s has no recurring items; generation would be a no-op", source))
		}
	}

	targetSummary, err := e.Summarize(ctx, target.Year, int(target.Month))
	if err != nil {
		// Target state is advisory; an unreadable target only warns.
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("target period %s could not be summarized: %v", target, err))
	} else {
		result.Target = targetSummary
		if targetSummary.TotalItems > 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("target period %s already has %d items; duplicates will be skipped by description+amount",
					target, targetSummary.TotalItems))
		}
	}

	if target.Before(source) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("target period %s precedes source period %s", target, source))
	}

	result.CanGenerate = len(result.Blockers) == 0
	return result, nil
}
