/*
handlers.go - HTTP API handlers for the library portal

PURPOSE:
  Exposes the engine's derived views and the two desk writes via REST.
  Handles HTTP request/response and JSON serialization, and delegates to
  the engine, the query layer and the writer.

ENDPOINTS:
  Occupancy:
    GET    /api/occupancy                          Present count, roster, today's tallies
    GET    /api/analytics                          Top-5 rankings, 7-day series, totals

  Catalog:
    GET    /api/catalog?q=                         Full catalog, or up to 5 suggestions
    POST   /api/catalog                            Add a catalog item
    GET    /api/catalog/{serial}/records           Circulation of one item, newest first

  Students:
    GET    /api/students?q=                        Directory, or up to 5 suggestions
    GET    /api/students/{roll}/records            One student's records and fines
    POST   /api/students/{roll}/records/{serial}/accept-fine

  Logs:
    GET    /api/logs?event=&date=&source=          Gate log, newest first

  Admin:
    GET    /api/diagnostics                        Skipped entries per collection

REQUEST FLOW:
  Reads never touch the store: they narrow the engine's latest view.
  Writes go to the store and return once it acknowledges; the engine sees
  the change through its subscriptions before the response is written.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unreadable issue date
  - 404: Student, item or record not found
  - 409: Record already returned
  - 502: The document store failed the write
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/rfidlib/circulation-engine/docstore"
	"github.com/rfidlib/circulation-engine/engine"
	"github.com/rfidlib/circulation-engine/library"
	"github.com/rfidlib/circulation-engine/query"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  docstore.Store
	Engine *engine.Engine
	Writer *engine.Writer

	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires handlers to a running engine and the store it reads.
func NewHandler(store docstore.Store, eng *engine.Engine) *Handler {
	return &Handler{
		Store:  store,
		Engine: eng,
		Writer: engine.NewWriter(store, eng.Calculator(), eng.Now),
	}
}

// =============================================================================
// OCCUPANCY AND ANALYTICS
// =============================================================================

// GetOccupancy returns the live occupancy panel.
func (h *Handler) GetOccupancy(w http.ResponseWriter, r *http.Request) {
	view := h.Engine.View()
	occ := view.Occupancy

	roster := make([]PresentStudentDTO, 0, len(occ.PresentRoster))
	for _, p := range occ.Roster() {
		roster = append(roster, PresentStudentDTO{Roll: p.Roll, Name: p.Name, Branch: p.Branch})
	}

	writeJSON(w, http.StatusOK, OccupancyDTO{
		AsOf:             view.AsOf.String(),
		PresentCount:     occ.PresentCount,
		PresentRoster:    roster,
		DailyLoginCount:  occ.DailyLoginCount,
		DailyLogoutCount: occ.DailyLogoutCount,
	})
}

// GetAnalytics returns rankings, the daily series and loan totals.
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	view := h.Engine.View()

	series := make([]DailyTallyDTO, len(view.Occupancy.Last7Days))
	for i, d := range view.Occupancy.Last7Days {
		series[i] = DailyTallyDTO{Date: d.Date, Logins: d.Logins, Logouts: d.Logouts}
	}

	dto := AnalyticsDTO{
		AsOf:        view.AsOf.String(),
		TopIssued:   toRankDTOs(view.TopIssued),
		TopReturned: toRankDTOs(view.TopReturned),
		Last7Days:   series,
	}
	for _, e := range engine.Assess(view.Records.All(), h.Engine.Calculator(), view.AsOf) {
		dto.TotalRecords++
		if e.Record.IsOpen() {
			dto.OpenRecords++
		}
		if e.IsOverdueUnreturned {
			dto.OverdueRecords++
		}
	}

	writeJSON(w, http.StatusOK, dto)
}

func toRankDTOs(entries []engine.RankEntry) []RankDTO {
	out := make([]RankDTO, len(entries))
	for i, e := range entries {
		out[i] = RankDTO{Name: e.Name, Count: e.Count}
	}
	return out
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListCatalog returns the merged catalog, or search suggestions when q is
// given.
func (h *Handler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	items := h.Engine.View().Catalog
	if r.URL.Query().Has("q") {
		items = query.SearchItems(items, r.URL.Query().Get("q"))
	}

	dtos := make([]ItemDTO, len(items))
	for i, it := range items {
		dtos[i] = toItemDTO(it)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCatalogItem adds an item under its category.
func (h *Handler) CreateCatalogItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	category := library.CategoryBook
	if req.Category != "" {
		c, ok := library.ParseCategory(req.Category)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid category (use Book, Journal or Article)", nil)
			return
		}
		category = c
	}

	item := library.LibraryItem{Serial: req.Serial, Name: req.Name, Category: category}
	if err := h.Writer.AddCatalogItem(r.Context(), item); err != nil {
		writeDomainError(w, "Failed to add catalog item", err)
		return
	}

	writeJSON(w, http.StatusCreated, ItemDTO{
		Serial:   strings.TrimSpace(req.Serial),
		Name:     strings.TrimSpace(req.Name),
		Category: string(category),
	})
}

// GetItemRecords returns every student's record for one serial.
func (h *Handler) GetItemRecords(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")
	view := h.Engine.View()

	entries := query.CirculationByItem(view.Records, serial, h.Engine.Calculator(), view.AsOf)
	if len(entries) == 0 && !catalogHas(view.Catalog, serial) {
		writeError(w, http.StatusNotFound, "Item not found", nil)
		return
	}

	dtos := make([]CirculationDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toCirculationDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func catalogHas(items []library.LibraryItem, serial string) bool {
	for _, it := range items {
		if it.Serial == serial {
			return true
		}
	}
	return false
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

// ListStudents returns the directory, or suggestions when q is given.
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students := h.Engine.View().Students
	if r.URL.Query().Has("q") {
		students = query.SearchStudents(students, r.URL.Query().Get("q"))
	}

	dtos := make([]StudentDTO, len(students))
	for i, st := range students {
		dtos[i] = toStudentDTO(st)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStudentRecords resolves {roll} (a roll number or part of a name) and
// returns that student's records.
func (h *Handler) GetStudentRecords(w http.ResponseWriter, r *http.Request) {
	view := h.Engine.View()
	q := chi.URLParam(r, "roll")

	student, err := query.ResolveStudent(view.Students, q)
	if err != nil {
		// A record holder missing from the directory is still a student.
		if _, ok := view.Records.ForStudent(q); !ok {
			writeDomainError(w, "Student not found", err)
			return
		}
		student = library.Student{Roll: q}
	}

	entries := query.CirculationByStudent(view.Records, student.Roll, h.Engine.Calculator(), view.AsOf)
	dto := StudentRecordsDTO{
		Student: toStudentDTO(student),
		Records: make([]CirculationDTO, len(entries)),
	}
	outstanding := decimal.Zero
	for i, e := range entries {
		dto.Records[i] = toCirculationDTO(e)
		if !e.Settled && e.Fine.Known {
			outstanding = outstanding.Add(e.Fine.Amount)
		}
	}
	dto.OutstandingFine = outstanding.String()

	writeJSON(w, http.StatusOK, dto)
}

// AcceptFine settles an open record: it is marked Returned with today's
// date and the fine (computed, or overridden by the body) is recorded.
func (h *Handler) AcceptFine(w http.ResponseWriter, r *http.Request) {
	roll := chi.URLParam(r, "roll")
	serial := chi.URLParam(r, "serial")

	var req AcceptFineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var override *decimal.Decimal
	if req.Fine != nil {
		amount, err := decimal.NewFromString(strings.TrimSpace(*req.Fine))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid fine amount", err)
			return
		}
		override = &amount
	}

	s, err := h.Writer.AcceptFine(r.Context(), roll, serial, override)
	if err != nil {
		writeDomainError(w, "Failed to accept fine", err)
		return
	}

	writeJSON(w, http.StatusOK, SettlementDTO{
		Roll:       s.Roll,
		Serial:     s.Serial,
		ItemName:   s.ItemName,
		ReturnedOn: s.ReturnedOn.DateKey(),
		DueDate:    s.DueDate.String(),
		FinePaid:   s.FinePaid.String(),
	})
}

// =============================================================================
// LOG HANDLERS
// =============================================================================

// ListLogs filters the gate log. source=daily reads the per-day analytics
// log; the default is the per-student swipe logs.
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	var kind library.EventKind
	if ev := params.Get("event"); ev != "" {
		k, ok := library.ParseEventKind(ev)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid event (use Login or Logout)", nil)
			return
		}
		kind = k
	}

	view := h.Engine.View()
	events := view.Activity
	if params.Get("source") == "daily" {
		events = h.Engine.Snapshots().DailyLog
	}

	filtered := query.FilterEvents(events, kind, params.Get("date"))
	dtos := make([]EventDTO, len(filtered))
	for i, ev := range filtered {
		dtos[i] = toEventDTO(ev)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDiagnostics reports entries the engine could not accept.
func (h *Handler) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	view := h.Engine.View()
	writeJSON(w, http.StatusOK, DiagnosticsDTO{
		AsOf:      view.AsOf.String(),
		Skipped:   view.Report.Skipped(),
		Catalog:   toCollectionDiagnostics(view.Report.Catalog),
		Records:   toCollectionDiagnostics(view.Report.Records),
		Analytics: toCollectionDiagnostics(view.Report.Analytics),
		Students:  toCollectionDiagnostics(view.Report.Students),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

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

// writeDomainError picks the status from the error's category.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case library.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, library.ErrAlreadyReturned):
		return http.StatusConflict
	case library.IsClientError(err), errors.Is(err, docstore.ErrInvalidPath):
		return http.StatusBadRequest
	case library.IsWriteFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
