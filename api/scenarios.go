/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the document store with
	the shapes the issue desk and the gates write, so the portal can be
	shown without hardware. Dates are relative to the engine's "today".

AVAILABLE SCENARIOS:

	desk-day:        A normal day: loans within term, one overdue, one settled
	overdue-loans:   Several overdue loans, one with an unreadable issue date
	busy-week:       Gate traffic over nine days (the chart keeps seven)
	empty:           Nothing at all

HOW SCENARIOS WORK:
 1. Build the whole tree in memory with scenarioBuilder
 2. Replace the store root in one Set
 3. The engine receives one snapshot per collection and recomputes

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "desk-day"}

NOTE:

	Loading a scenario replaces everything in the store. Only use in
	development/demo environments.

SEE ALSO:
  - handlers.go: Handler
  - engine/layout.go: Document layout
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rfidlib/circulation-engine/docstore"
	"github.com/rfidlib/circulation-engine/engine"
	"github.com/rfidlib/circulation-engine/library"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "desk-day",
		Name:        "Desk Day",
		Description: "Loans within term, one overdue loan, one settled fine, students inside",
	},
	{
		ID:          "overdue-loans",
		Name:        "Overdue Loans",
		Description: "Several overdue loans accruing fines, one with an unreadable issue date",
	},
	{
		ID:          "busy-week",
		Name:        "Busy Week",
		Description: "Gate traffic over nine days; the daily series keeps the last seven",
	},
	{
		ID:          "empty",
		Name:        "Empty Library",
		Description: "No catalog, records or gate activity",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario replaces the store contents with a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tree, err := buildScenario(req.ScenarioID, h.Engine.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown scenario", err)
		return
	}

	if err := h.Store.Set(r.Context(), docstore.Root, tree); err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// LoadScenarioByID loads a scenario without going through HTTP.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	tree, err := buildScenario(id, h.Engine.Now())
	if err != nil {
		return err
	}
	if err := h.Store.Set(ctx, docstore.Root, tree); err != nil {
		return err
	}
	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
	return nil
}

func buildScenario(id string, now library.TimePoint) (map[string]any, error) {
	b := newScenarioBuilder(now)
	switch id {
	case "desk-day":
		loadDeskDay(b)
	case "overdue-loans":
		loadOverdueLoans(b)
	case "busy-week":
		loadBusyWeek(b)
	case "empty":
	default:
		return nil, fmt.Errorf("unknown scenario %q", id)
	}
	return b.tree, nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadDeskDay(b *scenarioBuilder) {
	b.catalog()
	b.directory()

	// Due in 10 days
	b.issue("24L31A0412", "001", -4)
	// Due today: not yet overdue
	b.issue("24L31A0417", "002", -14)
	// 3 days overdue
	b.issue("24L31A0425", "003", -17)
	// Settled last week with a 2-day fine
	b.settled("24L31A0412", "002", -23, -7, 2)
	// Returned on time, no fine taken
	b.settled("24L31A0430", "J01", -10, -2, 0)

	// Three in, two out today
	b.swipe("24L31A0412", library.EventLogin, 0, 9)
	b.swipe("24L31A0417", library.EventLogin, 0, 10)
	b.swipe("24L31A0412", library.EventLogout, 0, 12)
	b.swipe("24L31A0425", library.EventLogin, 0, 13)
	b.swipe("24L31A0417", library.EventLogout, 0, 15)
	b.swipe("24L31A0430", library.EventLogin, -1, 11)
	b.swipe("24L31A0430", library.EventLogout, -1, 16)
}

func loadOverdueLoans(b *scenarioBuilder) {
	b.catalog()
	b.directory()

	b.issue("24L31A0412", "001", -30)
	b.issue("24L31A0412", "A01", -45)
	b.issue("24L31A0417", "002", -20)
	b.issue("24L31A0425", "003", -15)
	b.issueRaw("24L31A0430", "J01", "Digital Electronics Journal", "last Tuesday")
}

func loadBusyWeek(b *scenarioBuilder) {
	b.catalog()
	b.directory()

	rolls := []string{"24L31A0412", "24L31A0417", "24L31A0425", "24L31A0430"}
	for day := -8; day <= 0; day++ {
		visitors := 1 + (day+8)%len(rolls)
		for i := 0; i < visitors; i++ {
			b.swipe(rolls[i], library.EventLogin, day, 9+i)
			if day < 0 || i%2 == 0 {
				b.swipe(rolls[i], library.EventLogout, day, 14+i)
			}
		}
	}
}

// =============================================================================
// SCENARIO BUILDER
// =============================================================================

// scenarioBuilder assembles a document tree in the layout the desk and
// gates write, keeping the presence projection consistent with swipes.
type scenarioBuilder struct {
	now      library.TimePoint
	tree     map[string]any
	items    map[string]string
	students map[string]library.Student
}

func newScenarioBuilder(now library.TimePoint) *scenarioBuilder {
	return &scenarioBuilder{
		now:      now,
		tree:     map[string]any{},
		items:    map[string]string{},
		students: map[string]library.Student{},
	}
}

func (b *scenarioBuilder) catalog() {
	for _, it := range []library.LibraryItem{
		{Serial: "001", Name: "Embedded Systems", Category: library.CategoryBook},
		{Serial: "002", Name: "C Programming", Category: library.CategoryBook},
		{Serial: "003", Name: "Signals and Systems", Category: library.CategoryBook},
		{Serial: "J01", Name: "Digital Electronics Journal", Category: library.CategoryJournal},
		{Serial: "A01", Name: "RFID in Libraries", Category: library.CategoryArticle},
	} {
		b.items[it.Serial] = it.Name
		b.put(map[string]any{
			engine.FieldItemName:  it.Name,
			engine.FieldAddedDate: b.now.AddDays(-90).Time.Format("2006-01-02T15:04:05"),
		}, string(engine.PathCatalog), it.Category.Collection(), it.Serial)
	}
}

func (b *scenarioBuilder) directory() {
	for _, st := range []library.Student{
		{Roll: "24L31A0412", Name: "A. Sai Ganesh", Branch: "ECE"},
		{Roll: "24L31A0417", Name: "B. Sandeep", Branch: "ECE"},
		{Roll: "24L31A0425", Name: "C. Keerthana", Branch: "CSE"},
		{Roll: "24L31A0430", Name: "D. Pranav", Branch: "EEE"},
	} {
		b.students[st.Roll] = st
		b.put(st.Name, string(engine.PathStudents), st.Roll, engine.FieldName)
		b.put(st.Branch, string(engine.PathStudents), st.Roll, engine.FieldBranch)
	}
}

// issue opens a loan issuedOffset days from today; past days are negative.
func (b *scenarioBuilder) issue(roll, serial string, issuedOffset int) {
	b.issueRaw(roll, serial, b.items[serial], b.stamp(issuedOffset, 11))
}

func (b *scenarioBuilder) issueRaw(roll, serial, book, issued string) {
	b.put(map[string]any{
		engine.FieldBook:     book,
		engine.FieldName:     b.students[roll].Name,
		engine.FieldIssued:   issued,
		engine.FieldReturned: engine.PendingReturn,
	}, string(engine.PathRecords), roll, serial)
}

func (b *scenarioBuilder) settled(roll, serial string, issuedOffset, returnedOffset int, fine float64) {
	b.put(map[string]any{
		engine.FieldBook:         b.items[serial],
		engine.FieldName:         b.students[roll].Name,
		engine.FieldIssued:       b.stamp(issuedOffset, 11),
		engine.FieldReturned:     b.now.AddDays(returnedOffset).DateKey(),
		engine.FieldFinePaid:     fine,
		engine.FieldReturnStatus: engine.StatusReturned,
	}, string(engine.PathRecords), roll, serial)
}

// swipe files a gate event in the daily log and the student's own log,
// and updates the presence projection the way the gate controller does.
func (b *scenarioBuilder) swipe(roll string, kind library.EventKind, dayOffset, hour int) {
	st := b.students[roll]
	key := uuid.Must(uuid.NewV7()).String()
	ts := b.stamp(dayOffset, hour)
	day := b.now.AddDays(dayOffset).DateKey()

	b.put(map[string]any{
		engine.FieldEvent:    string(kind),
		engine.FieldRoll:     roll,
		engine.FieldName:     st.Name,
		engine.FieldBranch:   st.Branch,
		engine.FieldDateTime: ts,
	}, string(engine.PathAnalytics), engine.KeyDailyLog, day, key)
	b.put(map[string]any{
		engine.FieldEvent:    string(kind),
		engine.FieldDateTime: ts,
	}, string(engine.PathStudents), roll, engine.KeyLogs, key)

	if dayOffset != 0 {
		return
	}
	present := b.node(string(engine.PathAnalytics), engine.KeyPresentList)
	if kind == library.EventLogin {
		present[roll] = map[string]any{engine.FieldName: st.Name, engine.FieldBranch: st.Branch}
	} else {
		delete(present, roll)
	}
	b.node(string(engine.PathAnalytics))[engine.KeyPresentCount] = float64(len(present))
}

func (b *scenarioBuilder) stamp(dayOffset, hour int) string {
	d := b.now.Date().AddDays(dayOffset)
	return d.Time.Add(time.Duration(hour) * time.Hour).Format("2006-01-02 15:04:05")
}

// node returns the object at keys, creating it if needed.
func (b *scenarioBuilder) node(keys ...string) map[string]any {
	cur := b.tree
	for _, k := range keys {
		next, ok := cur[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[k] = next
		}
		cur = next
	}
	return cur
}

func (b *scenarioBuilder) put(value any, keys ...string) {
	b.node(keys[:len(keys)-1]...)[keys[len(keys)-1]] = value
}
