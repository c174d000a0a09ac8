/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  internal domain model from the external contract.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: uses these types
*/
package api

import (
	"time"

	"github.com/warp/rental-ledger/rental"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// PropertyDTO represents a property in API responses.
type PropertyDTO struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CreatePropertyRequest is the request to create a property.
type CreatePropertyRequest struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ExpenseItemDTO represents one expense line-item.
type ExpenseItemDTO struct {
	ID              string      `json:"id"`
	Description     string      `json:"description"`
	Amount          string      `json:"amount"`
	IsRecurring     bool        `json:"is_recurring"`
	IsActive        bool        `json:"is_active"`
	Period          string      `json:"period"`
	DueDate         string      `json:"due_date,omitempty"`
	PaidDate        string      `json:"paid_date,omitempty"`
	Receipt         string      `json:"receipt,omitempty"`
	ReferenceNumber string      `json:"reference_number,omitempty"`
	CreatedAt       string      `json:"created_at,omitempty"`
	UpdatedAt       string      `json:"updated_at,omitempty"`
	GeneratedFrom   *LineageDTO `json:"generated_from,omitempty"`
}

// LineageDTO describes where a generated item came from.
type LineageDTO struct {
	SourceDocID  string `json:"source_doc_id"`
	SourcePeriod string `json:"source_period"`
	PropertyID   string `json:"property_id"`
	GeneratedAt  string `json:"generated_at"`
}

// CreateExpenseRequest is the request to file a new expense item.
type CreateExpenseRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	IsRecurring bool   `json:"is_recurring"`
	DueDate     string `json:"due_date,omitempty"` // YYYY-MM-DD
}

// ToggleRecurringRequest flips the recurring flag on an item.
type ToggleRecurringRequest struct {
	IsRecurring bool `json:"is_recurring"`
}

// GenerateRequest selects periods for a generation or validation run.
// Omitted periods use the engine defaults (current month -> next month).
type GenerateRequest struct {
	SourceYear  int  `json:"source_year,omitempty"`
	SourceMonth int  `json:"source_month,omitempty"`
	TargetYear  int  `json:"target_year,omitempty"`
	TargetMonth int  `json:"target_month,omitempty"`
	DryRun      bool `json:"dry_run,omitempty"`
}

func (r GenerateRequest) options() rental.GenerateOptions {
	return rental.GenerateOptions{
		SourceYear:  r.SourceYear,
		SourceMonth: r.SourceMonth,
		TargetYear:  r.TargetYear,
		TargetMonth: r.TargetMonth,
		DryRun:      r.DryRun,
	}
}

// PeriodListDTO is the response for period enumeration.
type PeriodListDTO struct {
	PropertyID string   `json:"property_id"`
	Periods    []string `json:"periods"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toExpenseItemDTO(it rental.ExpenseItem) ExpenseItemDTO {
	dto := ExpenseItemDTO{
		ID:              string(it.ID),
		Description:     it.Description,
		Amount:          it.Amount.String(),
		IsRecurring:     it.IsRecurring,
		IsActive:        it.IsActive,
		Period:          it.Period().Key(),
		Receipt:         it.Receipt,
		ReferenceNumber: it.ReferenceNumber,
	}
	if it.DueDate != nil {
		dto.DueDate = it.DueDate.Format("2006-01-02")
	}
	if it.PaidDate != nil {
		dto.PaidDate = it.PaidDate.Format("2006-01-02")
	}
	if !it.CreatedAt.IsZero() {
		dto.CreatedAt = it.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !it.UpdatedAt.IsZero() {
		dto.UpdatedAt = it.UpdatedAt.UTC().Format(time.RFC3339)
	}
	if it.Lineage != nil {
		sourcePeriod := rental.Period{Year: it.Lineage.SourceYear, Month: it.Lineage.SourceMonth}
		dto.GeneratedFrom = &LineageDTO{
			SourceDocID:  string(it.Lineage.SourceDocID),
			SourcePeriod: sourcePeriod.Key(),
			PropertyID:   string(it.Lineage.PropertyID),
			GeneratedAt:  it.Lineage.GeneratedAt.UTC().Format(time.RFC3339),
		}
	}
	return dto
}

func toExpenseItemDTOs(items []rental.ExpenseItem) []ExpenseItemDTO {
	dtos := make([]ExpenseItemDTO, len(items))
	for i, it := range items {
		dtos[i] = toExpenseItemDTO(it)
	}
	return dtos
}
