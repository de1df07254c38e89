/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's views from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATES AND MONEY:
  Dates are rendered as "YYYY-MM-DD". Timestamps are returned exactly as
  the desk or gate wrote them. Amounts are decimal strings; a fine or due
  date that cannot be computed is the string "unknown", never zero.

VALIDATION:
  Validation is done in handlers and domain constructors, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/rfidlib/circulation-engine/engine"
	"github.com/rfidlib/circulation-engine/library"
)

// =============================================================================
// OCCUPANCY AND ANALYTICS
// =============================================================================

type PresentStudentDTO struct {
	Roll   string `json:"roll"`
	Name   string `json:"name"`
	Branch string `json:"branch"`
}

type DailyTallyDTO struct {
	Date    string `json:"date"`
	Logins  int    `json:"logins"`
	Logouts int    `json:"logouts"`
}

// OccupancyDTO is the live "who is inside" panel.
type OccupancyDTO struct {
	AsOf             string              `json:"as_of"`
	PresentCount     int                 `json:"present_count"`
	PresentRoster    []PresentStudentDTO `json:"present_roster"`
	DailyLoginCount  int                 `json:"daily_login_count"`
	DailyLogoutCount int                 `json:"daily_logout_count"`
}

type RankDTO struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// AnalyticsDTO backs the dashboard charts.
type AnalyticsDTO struct {
	AsOf           string          `json:"as_of"`
	TopIssued      []RankDTO       `json:"top_issued"`
	TopReturned    []RankDTO       `json:"top_returned"`
	Last7Days      []DailyTallyDTO `json:"last_7_days"`
	TotalRecords   int             `json:"total_records"`
	OpenRecords    int             `json:"open_records"`
	OverdueRecords int             `json:"overdue_records"`
}

// =============================================================================
// CATALOG AND STUDENTS
// =============================================================================

type ItemDTO struct {
	Serial   string `json:"serial"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// CreateItemRequest adds a catalog entry.
type CreateItemRequest struct {
	Serial   string `json:"serial"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type StudentDTO struct {
	Roll   string `json:"roll"`
	Name   string `json:"name"`
	Branch string `json:"branch"`
}

// =============================================================================
// CIRCULATION
// =============================================================================

// CirculationDTO is one record with its derived due date and fine.
type CirculationDTO struct {
	Roll         string `json:"roll"`
	StudentName  string `json:"student_name,omitempty"`
	Serial       string `json:"serial"`
	ItemName     string `json:"item_name"`
	IssuedAt     string `json:"issued_at"`
	ReturnedAt   string `json:"returned_at,omitempty"`
	Status       string `json:"status"` // issued, returned
	DueDate      string `json:"due_date"`
	Fine         string `json:"fine"`
	OverdueDays  int    `json:"overdue_days"`
	Overdue      bool   `json:"overdue"`
	FineSettled  bool   `json:"fine_settled"`
	MalformedRow bool   `json:"malformed,omitempty"`
}

// StudentRecordsDTO is one student's circulation history.
type StudentRecordsDTO struct {
	Student         StudentDTO       `json:"student"`
	Records         []CirculationDTO `json:"records"`
	OutstandingFine string           `json:"outstanding_fine"`
}

// AcceptFineRequest optionally overrides the computed fine.
type AcceptFineRequest struct {
	Fine *string `json:"fine,omitempty"`
}

// SettlementDTO confirms an accepted fine.
type SettlementDTO struct {
	Roll       string `json:"roll"`
	Serial     string `json:"serial"`
	ItemName   string `json:"item_name"`
	ReturnedOn string `json:"returned_on"`
	DueDate    string `json:"due_date"`
	FinePaid   string `json:"fine_paid"`
}

// =============================================================================
// EVENT LOG AND DIAGNOSTICS
// =============================================================================

type EventDTO struct {
	Roll      string `json:"roll"`
	Name      string `json:"name"`
	Branch    string `json:"branch"`
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Date      string `json:"date"`
}

type CollectionDiagnosticsDTO struct {
	Skipped        int      `json:"skipped"`
	MalformedDates int      `json:"malformed_dates"`
	Problems       []string `json:"problems,omitempty"`
}

// DiagnosticsDTO reports what the decode boundary dropped per collection.
type DiagnosticsDTO struct {
	AsOf      string                   `json:"as_of"`
	Skipped   int                      `json:"skipped"`
	Catalog   CollectionDiagnosticsDTO `json:"catalog"`
	Records   CollectionDiagnosticsDTO `json:"records"`
	Analytics CollectionDiagnosticsDTO `json:"analytics"`
	Students  CollectionDiagnosticsDTO `json:"students"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toItemDTO(it library.LibraryItem) ItemDTO {
	return ItemDTO{Serial: it.Serial, Name: it.Name, Category: string(it.Category)}
}

func toStudentDTO(st library.Student) StudentDTO {
	return StudentDTO{Roll: st.Roll, Name: st.Name, Branch: st.Branch}
}

func toCirculationDTO(e engine.CirculationEntry) CirculationDTO {
	r := e.Record
	status := "issued"
	if !r.IsOpen() {
		status = "returned"
	}
	return CirculationDTO{
		Roll:         r.StudentRoll,
		StudentName:  r.StudentName,
		Serial:       r.ID,
		ItemName:     r.ItemName,
		IssuedAt:     r.IssuedAt.Raw,
		ReturnedAt:   r.ReturnedAt.Raw,
		Status:       status,
		DueDate:      e.DueDate.String(),
		Fine:         e.Fine.String(),
		OverdueDays:  e.Fine.Days,
		Overdue:      e.IsOverdueUnreturned,
		FineSettled:  e.Settled,
		MalformedRow: !r.IssuedAt.Known(),
	}
}

func toEventDTO(ev library.OccupancyEvent) EventDTO {
	return EventDTO{
		Roll:      ev.Roll,
		Name:      ev.Name,
		Branch:    ev.Branch,
		Event:     string(ev.Kind),
		Timestamp: ev.Timestamp.Raw,
		Date:      ev.Day,
	}
}

func toCollectionDiagnostics(d engine.Diagnostics) CollectionDiagnosticsDTO {
	return CollectionDiagnosticsDTO{Skipped: d.Skipped, MalformedDates: d.MalformedDates, Problems: d.Problems}
}
