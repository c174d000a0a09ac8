/*
engine.go - Recurring expense generation

PURPOSE:
  Reads a source period's recurring-flagged expense items across all
  properties, deduplicates against the target period, rewrites item state
  for the new period, and persists (or simulates) the result.

ALGORITHM (per run):
  1. Resolve source period (default: the injected clock's current month)
     and target period (default: the month after source).
  2. Enumerate all properties.
  3. Per property, sequentially: fetch source items, keep the recurring
     ones, fetch target items for duplicate detection, and create one new
     item per non-duplicate recurring source item.
  4. Aggregate per-property counts into the run result. Partial failures
     live in the result's error list; only "no properties at all" fails the
     run itself.

DUPLICATE DETECTION:
  An item's identity for deduplication is (description, amount) within one
  property and target period. This is a heuristic, not a unique key. As a
  second line of defense, generated documents carry the deterministic ID
  gen-{sourceItemID}-{targetKey}; the store rejects ID collisions, so a
  retried run that slips past the scan still cannot double-write.

CONCURRENCY:
  Properties are processed sequentially on purpose: it bounds store load
  and keeps a property's duplicate-detection reads from interleaving with
  its writes. There is NO mutual exclusion between two concurrent runs for
  the same target period; callers are expected to serialize runs externally
  (single scheduled invocation). The deterministic document ID narrows the
  window but the (description, amount) scan itself is not atomic.

WHAT IS NEVER GENERATED:
  Income records. Tenancy terms vary run-to-run and require manual
  reconciliation, so the engine intentionally never auto-generates them.

SEE ALSO:
  - summary.go: Summarize and the advisory Validate precondition check
  - path.go: location resolution
*/
package rental

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/rental-ledger/docstore"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine generates recurring expense items period over period.
//
// Clock supplies "now" for period defaulting and timestamps. Inject a fixed
// clock in tests; NewEngine defaults it to time.Now.
type Engine struct {
	Store docstore.Store
	Clock func() time.Time
	Log   logrus.FieldLogger
}

// NewEngine builds an engine with the default wall clock. A nil log is
// replaced with a silent logger so the zero-config path stays usable.
func NewEngine(store docstore.Store, log logrus.FieldLogger) *Engine {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Engine{Store: store, Clock: time.Now, Log: log}
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

// =============================================================================
// OPTIONS AND RESULT
// =============================================================================

// GenerateOptions selects the periods for a run. Year/month pairs must be
// given together; zero values mean "use the default".
type GenerateOptions struct {
	SourceYear  int
	SourceMonth int
	TargetYear  int
	TargetMonth int
	DryRun      bool
}

// resolvePeriods applies the defaulting rule: source defaults to the
// current calendar month, target to the month immediately following source.
// Note there is no check that target != source; that is the caller-level
// precondition Validate covers, not an engine invariant.
func (e *Engine) resolvePeriods(opts GenerateOptions) (source, target Period, err error) {
	switch {
	case opts.SourceYear == 0 && opts.SourceMonth == 0:
		source = PeriodOf(e.now())
	case opts.SourceYear != 0 && opts.SourceMonth != 0:
		if source, err = NewPeriod(opts.SourceYear, opts.SourceMonth); err != nil {
			return
		}
	default:
		err = fmt.Errorf("%w: source year and month must be given together", ErrInvalidPeriod)
		return
	}

	switch {
	case opts.TargetYear == 0 && opts.TargetMonth == 0:
		target = source.Next()
	case opts.TargetYear != 0 && opts.TargetMonth != 0:
		if target, err = NewPeriod(opts.TargetYear, opts.TargetMonth); err != nil {
			return
		}
	default:
		err = fmt.Errorf("%w: target year and month must be given together", ErrInvalidPeriod)
	}
	return
}

// PropertyGeneration is the per-property slice of a run result.
type PropertyGeneration struct {
	PropertyID PropertyID `json:"property_id"`
	Name       string     `json:"name,omitempty"`
	Created    int        `json:"created"`
	Skipped    int        `json:"skipped"`
}

// GenerationSummary describes one run.
type GenerationSummary struct {
	Source              Period    `json:"-"`
	Target              Period    `json:"-"`
	SourceKey           string    `json:"source_period"`
	TargetKey           string    `json:"target_period"`
	DryRun              bool      `json:"dry_run"`
	GeneratedAt         time.Time `json:"generated_at"`
	PropertiesProcessed int       `json:"properties_processed"`
}

// GenerationResult is the run-level aggregate. Success stays true as long
// as the run completed end-to-end, even when individual items failed;
// failures are visible only in Errors.
type GenerationResult struct {
	Success     bool                 `json:"success"`
	Created     int                  `json:"created"`
	Skipped     int                  `json:"skipped"`
	PerProperty []PropertyGeneration `json:"per_property"`
	Errors      []GenerationError    `json:"errors"`
	Summary     GenerationSummary    `json:"summary"`
}

// =============================================================================
// GENERATE
// =============================================================================

// Generate runs recurring generation for one source/target period pair.
//
// The returned error is non-nil only for structural failures (bad periods)
// and for the one whole-run failure: no properties could be enumerated.
// Everything else is recorded in the result.
func (e *Engine) Generate(ctx context.Context, opts GenerateOptions) (*GenerationResult, error) {
	source, target, err := e.resolvePeriods(opts)
	if err != nil {
		return nil, err
	}

	result := &GenerationResult{
		PerProperty: []PropertyGeneration{},
		Errors:      []GenerationError{},
		Summary: GenerationSummary{
			Source:      source,
			Target:      target,
			SourceKey:   source.Key(),
			TargetKey:   target.Key(),
			DryRun:      opts.DryRun,
			GeneratedAt: e.now(),
		},
	}

	log := e.Log.WithFields(logrus.Fields{
		"source":  source.Key(),
		"target":  target.Key(),
		"dry_run": opts.DryRun,
	})
	log.Info("starting recurring generation")

	properties, err := e.listProperties(ctx)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, GenerationError{
			Kind:    ErrorPropertyProcessing,
			Message: fmt.Sprintf("listing properties: %v", err),
		})
		return result, fmt.Errorf("%w: %v", ErrNoProperties, err)
	}
	if len(properties) == 0 {
		result.Success = false
		result.Errors = append(result.Errors, GenerationError{
			Kind:    ErrorPropertyProcessing,
			Message: ErrNoProperties.Error(),
		})
		return result, ErrNoProperties
	}

	for _, prop := range properties {
		pg := e.generateForProperty(ctx, prop, source, target, opts.DryRun, result)
		result.PerProperty = append(result.PerProperty, pg)
		result.Created += pg.Created
		result.Skipped += pg.Skipped
		result.Summary.PropertiesProcessed++
	}

	result.Success = true
	log.WithFields(logrus.Fields{
		"created": result.Created,
		"skipped": result.Skipped,
		"errors":  len(result.Errors),
	}).Info("recurring generation finished")
	return result, nil
}

// generateForProperty processes one property. Failures are appended to the
// run result; one bad item never aborts the property's batch, and one bad
// property never aborts the run.
func (e *Engine) generateForProperty(ctx context.Context, prop Property, source, target Period, dryRun bool, result *GenerationResult) PropertyGeneration {
	pg := PropertyGeneration{PropertyID: prop.ID, Name: prop.Name}

	sourceItems, decodeErrs, err := e.fetchItems(ctx, prop.ID, source)
	if err != nil {
		result.Errors = append(result.Errors, GenerationError{
			Kind:       ErrorPropertyProcessing,
			PropertyID: prop.ID,
			Message:    fmt.Sprintf("fetching %s items: %v", source, err),
		})
		return pg
	}
	result.Errors = append(result.Errors, decodeErrs...)

	var recurring []ExpenseItem
	for _, it := range sourceItems {
		if it.IsRecurring {
			recurring = append(recurring, it)
		}
	}
	if len(recurring) == 0 {
		// Nothing flagged for this property. Not an error.
		return pg
	}

	targetItems, targetDecodeErrs, err := e.fetchItems(ctx, prop.ID, target)
	if err != nil {
		result.Errors = append(result.Errors, GenerationError{
			Kind:       ErrorPropertyProcessing,
			PropertyID: prop.ID,
			Message:    fmt.Sprintf("fetching %s items for duplicate detection: %v", target, err),
		})
		return pg
	}
	result.Errors = append(result.Errors, targetDecodeErrs...)

	existing := make(map[string]bool, len(targetItems))
	for _, it := range targetItems {
		existing[it.dedupeKey()] = true
	}

	targetCol, err := expenseItems(prop.ID, target)
	if err != nil {
		result.Errors = append(result.Errors, GenerationError{
			Kind:       ErrorPropertyProcessing,
			PropertyID: prop.ID,
			Message:    err.Error(),
		})
		return pg
	}

	for _, src := range recurring {
		if existing[src.dedupeKey()] {
			pg.Skipped++
			continue
		}

		generated := e.buildGenerated(src, prop.ID, source, target)
		id := generatedID(src.ID, target)

		if !dryRun {
			err := e.Store.Create(ctx, targetCol, id, generated.Fields())
			if errors.Is(err, docstore.ErrDocumentExists) {
				// Another run already wrote this exact generated item.
				pg.Skipped++
				continue
			}
			if err != nil {
				result.Errors = append(result.Errors, GenerationError{
					Kind:        ErrorItemWrite,
					PropertyID:  prop.ID,
					ItemID:      src.ID,
					Description: src.Description,
					Message:     err.Error(),
				})
				continue
			}
		}
		pg.Created++
	}

	return pg
}

// buildGenerated copies a source item into its target-period form: payment
// state cleared, period rewritten, due date advanced one month, lineage
// attached.
func (e *Engine) buildGenerated(src ExpenseItem, propertyID PropertyID, source, target Period) ExpenseItem {
	now := e.now()

	out := src
	out.ID = ItemID(generatedID(src.ID, target))
	out.Year = target.Year
	out.Month = target.Month
	out.IsActive = true
	out.PaidDate = nil
	out.Receipt = ""
	out.ReferenceNumber = ""
	out.CreatedAt = now
	out.UpdatedAt = now
	if src.DueDate != nil {
		due := addOneMonth(*src.DueDate)
		out.DueDate = &due
	}
	out.Lineage = &GenerationLineage{
		SourceDocID: src.ID,
		SourceYear:  source.Year,
		SourceMonth: source.Month,
		PropertyID:  propertyID,
		GeneratedAt: now,
	}
	return out
}

// generatedID is the deterministic idempotency token for a generated item.
func generatedID(sourceID ItemID, target Period) string {
	return fmt.Sprintf("gen-%s-%s", sourceID, target.Key())
}

// addOneMonth advances a date by exactly one calendar month, preserving the
// day-of-month where valid and clamping to the last day otherwise
// (Jan 31 -> Feb 28). time.AddDate would normalize past the month instead.
func addOneMonth(t time.Time) time.Time {
	year, month, day := t.Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// =============================================================================
// STORE ACCESS (shared with summary.go)
// =============================================================================

func (e *Engine) catalog() Catalog { return Catalog{Store: e.Store} }

func (e *Engine) listProperties(ctx context.Context) ([]Property, error) {
	return e.catalog().Properties(ctx)
}

func (e *Engine) fetchItems(ctx context.Context, propertyID PropertyID, p Period) ([]ExpenseItem, []GenerationError, error) {
	return e.catalog().Items(ctx, propertyID, p)
}
