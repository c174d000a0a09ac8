/*
handlers.go - HTTP API handlers for the rental ledger

PURPOSE:
  Exposes the ledger via REST. Handles HTTP request/response, JSON
  serialization, and delegates to the rental domain logic.

ENDPOINTS:
  Properties:
    GET  /api/properties                            List properties
    POST /api/properties                            Create property
    GET  /api/properties/{id}/expenses/periods      Enumerate periods
    GET  /api/properties/{id}/expenses/{period}     Items for a period
    POST /api/properties/{id}/expenses/{period}     File an expense item
    POST /api/properties/{id}/expenses/{period}/{item}/recurring
                                                    Toggle recurring flag
  Generation:
    GET  /api/summary/{period}                      Period summary
    POST /api/generation/validate                   Pre-run validation
    POST /api/generation/run                        Run generation

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: malformed periods, bad addressing, invalid input
  - 404: missing documents
  - 409: ID collisions
  - 500: store failures

SEE ALSO:
  - dto.go: request/response structures
  - server.go: router setup and middleware
  - scheduler.go: the cron-driven generation trigger
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/rental-ledger/docstore"
	"github.com/warp/rental-ledger/rental"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   docstore.Store
	Engine  *rental.Engine
	Catalog rental.Catalog
	Log     logrus.FieldLogger
}

// NewHandler creates a handler backed by the given store.
func NewHandler(store docstore.Store, log logrus.FieldLogger) *Handler {
	return &Handler{
		Store:   store,
		Engine:  rental.NewEngine(store, log),
		Catalog: rental.Catalog{Store: store},
		Log:     log,
	}
}

// =============================================================================
// PROPERTY HANDLERS
// =============================================================================

// ListProperties returns all properties.
func (h *Handler) ListProperties(w http.ResponseWriter, r *http.Request) {
	properties, err := h.Catalog.Properties(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list properties", err)
		return
	}

	dtos := make([]PropertyDTO, len(properties))
	for i, p := range properties {
		dtos[i] = PropertyDTO{ID: string(p.ID), Name: p.Name, Metadata: p.Metadata}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProperty creates a new property.
func (h *Handler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	var req CreatePropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	col, err := rental.Resolve(rental.KindProperties, rental.Address{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve properties", err)
		return
	}

	id := uuid.NewString()
	fields := map[string]any{"name": req.Name}
	for k, v := range req.Metadata {
		fields[k] = v
	}
	if err := h.Store.Create(r.Context(), col, id, fields); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create property", err)
		return
	}

	writeJSON(w, http.StatusCreated, PropertyDTO{ID: id, Name: req.Name, Metadata: req.Metadata})
}

// =============================================================================
// EXPENSE HANDLERS
// =============================================================================

// ListExpensePeriods enumerates the periods that hold data for a property.
func (h *Handler) ListExpensePeriods(w http.ResponseWriter, r *http.Request) {
	propertyID := rental.PropertyID(chi.URLParam(r, "id"))

	periods, err := h.Catalog.ExpensePeriods(r.Context(), propertyID)
	if err != nil {
		writeError(w, statusFor(err), "Failed to enumerate periods", err)
		return
	}

	keys := make([]string, len(periods))
	for i, p := range periods {
		keys[i] = p.Key()
	}
	writeJSON(w, http.StatusOK, PeriodListDTO{PropertyID: string(propertyID), Periods: keys})
}

// ListExpenses returns the items for one property and period.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	propertyID := rental.PropertyID(chi.URLParam(r, "id"))
	period, err := rental.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period key (use YYYY-MM)", err)
		return
	}

	items, decodeErrs, err := h.Catalog.Items(r.Context(), propertyID, period)
	if err != nil {
		writeError(w, statusFor(err), "Failed to list items", err)
		return
	}
	for _, de := range decodeErrs {
		h.Log.WithField("item", de.ItemID).Warn(de.Message)
	}

	writeJSON(w, http.StatusOK, toExpenseItemDTOs(items))
}

// CreateExpense files a new expense item under a property and period.
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	propertyID := rental.PropertyID(chi.URLParam(r, "id"))
	period, err := rental.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period key (use YYYY-MM)", err)
		return
	}

	var req CreateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Description == "" {
		writeError(w, http.StatusBadRequest, "description is required", nil)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	now := time.Now()
	item := rental.ExpenseItem{
		ID:          rental.ItemID(uuid.NewString()),
		Description: req.Description,
		Amount:      amount,
		IsRecurring: req.IsRecurring,
		IsActive:    true,
		Year:        period.Year,
		Month:       period.Month,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.DueDate != "" {
		due, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid due_date (use YYYY-MM-DD)", err)
			return
		}
		item.DueDate = &due
	}

	col, err := rental.Resolve(rental.KindExpenses,
		rental.Address{PropertyID: propertyID, Period: &period})
	if err != nil {
		writeError(w, statusFor(err), "Failed to resolve expense location", err)
		return
	}
	if err := h.Store.Create(r.Context(), col, string(item.ID), item.Fields()); err != nil {
		writeError(w, statusFor(err), "Failed to create item", err)
		return
	}

	writeJSON(w, http.StatusCreated, toExpenseItemDTO(item))
}

// ToggleRecurring flips the recurring flag on an existing item. This is the
// one item mutation the ledger core owns; payment-status updates live
// elsewhere.
func (h *Handler) ToggleRecurring(w http.ResponseWriter, r *http.Request) {
	propertyID := rental.PropertyID(chi.URLParam(r, "id"))
	itemID := chi.URLParam(r, "item")
	period, err := rental.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period key (use YYYY-MM)", err)
		return
	}

	var req ToggleRecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	col, err := rental.Resolve(rental.KindExpenses,
		rental.Address{PropertyID: propertyID, Period: &period})
	if err != nil {
		writeError(w, statusFor(err), "Failed to resolve expense location", err)
		return
	}

	doc := col.Doc(itemID)
	update := map[string]any{
		"isRecurring": req.IsRecurring,
		"updatedAt":   time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.Store.Update(r.Context(), doc, update); err != nil {
		writeError(w, statusFor(err), "Failed to update item", err)
		return
	}

	result, err := h.Store.Get(r.Context(), doc)
	if err != nil {
		writeError(w, statusFor(err), "Failed to read back item", err)
		return
	}
	item, err := rental.ItemFromFields(result.ID, result.Fields)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Stored item is malformed", err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseItemDTO(item))
}

// =============================================================================
// GENERATION HANDLERS
// =============================================================================

// GetSummary returns the per-property and global totals for one period.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	period, err := rental.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period key (use YYYY-MM)", err)
		return
	}

	summary, err := h.Engine.Summarize(r.Context(), period.Year, int(period.Month))
	if err != nil {
		writeError(w, statusFor(err), "Failed to summarize period", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ValidateGeneration reports whether a generation run can proceed.
func (h *Handler) ValidateGeneration(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Engine.Validate(r.Context(), req.options())
	if err != nil {
		writeError(w, statusFor(err), "Validation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RunGeneration executes recurring generation.
func (h *Handler) RunGeneration(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Engine.Generate(r.Context(), req.options())
	if err != nil {
		if errors.Is(err, rental.ErrNoProperties) {
			// Distinct whole-run failure; result carries the context.
			writeJSON(w, http.StatusConflict, result)
			return
		}
		writeError(w, statusFor(err), "Generation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// HELPERS
// =============================================================================

func statusFor(err error) int {
	switch {
	case rental.IsStructural(err):
		return http.StatusBadRequest
	case errors.Is(err, docstore.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, docstore.ErrDocumentExists):
		return http.StatusConflict
	case errors.Is(err, docstore.ErrInvalidPath):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
