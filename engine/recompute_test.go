package engine_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/rfidlib/circulation-engine/docstore"
	"github.com/rfidlib/circulation-engine/engine"
	"github.com/rfidlib/circulation-engine/library"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func event(t *testing.T, kind, day string) library.OccupancyEvent {
	t.Helper()
	ev, err := library.NewOccupancyEvent("k", "24L31A0412", "A. Sai Ganesh", "ECE", kind,
		library.ParseTimestamp(day+" 10:00:00"), day)
	require.NoError(t, err)
	return ev
}

func record(t *testing.T, roll, serial, book, issued, returned string) library.CirculationRecord {
	t.Helper()
	rec, err := library.NewCirculationRecord(library.CirculationInput{
		ID:          serial,
		StudentRoll: roll,
		ItemName:    book,
		IssuedAt:    library.ParseTimestamp(issued),
		ReturnedAt:  library.ParseTimestamp(returned),
	})
	require.NoError(t, err)
	return rec
}

func item(serial, name string) library.LibraryItem {
	return library.LibraryItem{Serial: serial, Name: name, Category: library.CategoryBook}
}

// =============================================================================
// OCCUPANCY
// =============================================================================

func TestRecompute_TodaysLoginsAndLogouts(t *testing.T) {
	// GIVEN: today's log has 3 logins and 2 logouts, yesterday has more
	today := "2024-03-10"
	log := []library.OccupancyEvent{
		event(t, "Login", today), event(t, "Login", today), event(t, "Logout", today),
		event(t, "Login", today), event(t, "Logout", today),
		event(t, "Login", "2024-03-09"), event(t, "Logout", "2024-03-09"),
	}
	s := engine.Snapshots{DailyLog: log, Records: engine.NewRecordSet()}

	// WHEN
	view := engine.Recompute(s, engine.Options{AsOf: library.NewDateTime(2024, time.March, 10, 18, 0, 0)})

	// THEN
	assert.Equal(t, 3, view.Occupancy.DailyLoginCount)
	assert.Equal(t, 2, view.Occupancy.DailyLogoutCount)
}

func TestRecompute_PresenceComesFromProjection(t *testing.T) {
	s := engine.Snapshots{
		Records: engine.NewRecordSet(),
		Presence: engine.Presence{Count: 2, Roster: map[string]engine.PresentStudent{
			"24L31A0417": {Roll: "24L31A0417", Name: "B. Sandeep", Branch: "ECE"},
			"24L31A0412": {Roll: "24L31A0412", Name: "A. Sai Ganesh", Branch: "ECE"},
		}},
	}

	view := engine.Recompute(s, engine.Options{AsOf: library.NewDate(2024, time.March, 10)})

	assert.Equal(t, 2, view.Occupancy.PresentCount)
	roster := view.Occupancy.Roster()
	require.Len(t, roster, 2)
	assert.Equal(t, "24L31A0412", roster[0].Roll)
	assert.Equal(t, "24L31A0417", roster[1].Roll)
}

func TestSeries_LastSevenObservedDaysWithoutPadding(t *testing.T) {
	// GIVEN: events on 9 distinct dates with gaps between them
	var log []library.OccupancyEvent
	for _, d := range []int{1, 2, 4, 5, 8, 9, 12, 14, 15} {
		log = append(log, event(t, "Login", fmt.Sprintf("2024-03-%02d", d)))
	}
	log = append(log, event(t, "Logout", "2024-03-15"))

	// WHEN
	series := engine.Series(log, 7)

	// THEN: only observed dates, ascending, most recent 7
	require.Len(t, series, 7)
	dates := make([]string, len(series))
	for i, d := range series {
		dates[i] = d.Date
	}
	assert.Equal(t, []string{"2024-03-04", "2024-03-05", "2024-03-08", "2024-03-09", "2024-03-12", "2024-03-14", "2024-03-15"}, dates)
	assert.Equal(t, engine.DailyTally{Date: "2024-03-15", Logins: 1, Logouts: 1}, series[6])
}

func TestSeries_FewerDaysThanWindow(t *testing.T) {
	series := engine.Series([]library.OccupancyEvent{event(t, "Login", "2024-03-01")}, 7)
	assert.Len(t, series, 1)
	assert.Empty(t, engine.Series(nil, 7))
}

// =============================================================================
// TOP-N
// =============================================================================

func TestTopItems_StableTieBreakByFirstSeen(t *testing.T) {
	// GIVEN: B and A both issued twice, B seen first
	records := []library.CirculationRecord{
		record(t, "r1", "002", "B", "2024-01-01", ""),
		record(t, "r1", "001", "A", "2024-01-01", ""),
		record(t, "r2", "003", "A", "2024-01-01", ""),
		record(t, "r2", "004", "B", "2024-01-01", ""),
		record(t, "r3", "005", "C", "2024-01-01", ""),
	}

	top := engine.TopItems(records, 5, func(library.CirculationRecord) bool { return true })

	assert.Equal(t, []engine.RankEntry{{"B", 2}, {"A", 2}, {"C", 1}}, top)
}

func TestTopItems_CapsAtN(t *testing.T) {
	var records []library.CirculationRecord
	for i := 0; i < 8; i++ {
		records = append(records, record(t, "r", fmt.Sprintf("%03d", i), fmt.Sprintf("Book %d", i), "2024-01-01", ""))
	}
	top := engine.TopItems(records, 5, func(library.CirculationRecord) bool { return true })
	require.Len(t, top, 5)
	assert.Equal(t, "Book 0", top[0].Name)
}

func TestRecompute_TopReturnedCountsOnlyReturned(t *testing.T) {
	rs := engine.NewRecordSet(
		record(t, "r1", "001", "Embedded Systems", "2024-01-01", "2024-01-10"),
		record(t, "r2", "001", "Embedded Systems", "2024-01-01", ""),
		record(t, "r2", "002", "C Programming", "2024-01-02", "2024-01-05"),
	)

	view := engine.Recompute(engine.Snapshots{Records: rs}, engine.Options{AsOf: library.NewDate(2024, time.February, 1)})

	assert.Equal(t, []engine.RankEntry{{"Embedded Systems", 2}, {"C Programming", 1}}, view.TopIssued)
	assert.Equal(t, []engine.RankEntry{{"Embedded Systems", 1}, {"C Programming", 1}}, view.TopReturned)
}

// =============================================================================
// CATALOG AND DIRECTORY MERGE
// =============================================================================

func TestMergeCatalog_LiveWinsOverSeed(t *testing.T) {
	// GIVEN: seed has 001 Embedded Systems, live redefines 001 as Circuits
	seed := []library.LibraryItem{item("001", "Embedded Systems"), item("002", "C Programming")}
	live := []library.LibraryItem{item("001", "Circuits"), item("003", "Signals")}

	// WHEN
	merged := engine.MergeCatalog(seed, live)

	// THEN
	require.Len(t, merged, 3)
	assert.Equal(t, "Circuits", merged[0].Name)
	assert.Equal(t, "C Programming", merged[1].Name)
	assert.Equal(t, "Signals", merged[2].Name)
}

func TestMergeStudents_LiveKeepsSeedNameWhenBlank(t *testing.T) {
	seed := []library.Student{{Roll: "24L31A0412", Name: "A. Sai Ganesh", Branch: "ECE"}}
	live := []library.Student{{Roll: "24L31A0412"}, {Roll: "24L31A0499", Name: "New Student"}}

	merged := engine.MergeStudents(seed, live)

	require.Len(t, merged, 2)
	assert.Equal(t, "A. Sai Ganesh", merged[0].Name)
	assert.Equal(t, "ECE", merged[0].Branch)
	assert.Equal(t, "New Student", merged[1].Name)
}

// =============================================================================
// DECODE BOUNDARY
// =============================================================================

func TestDecodeRecords_SkipsInvalidAndCountsMalformedDates(t *testing.T) {
	snap := docstore.NewSnapshot(engine.PathRecords, map[string]any{
		"24L31A0412": map[string]any{
			"001": map[string]any{"Book": "Embedded Systems", "Issued DateTime": "2024-01-01 10:00:00", "Returned DateTime": "Pending"},
			"002": map[string]any{"Book": "C Programming", "Issued DateTime": "yesterday", "Returned DateTime": "Pending"},
			"003": map[string]any{"Book": "Bad", "Issued DateTime": "2024-02-10", "Returned DateTime": "2024-02-01"},
		},
		"junk": "not an object",
	})

	rs, diag := engine.DecodeRecords(snap)

	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, 2, diag.Skipped)
	assert.Equal(t, 1, diag.MalformedDates)

	recs, ok := rs.ForStudent("24L31A0412")
	require.True(t, ok)
	assert.True(t, recs[0].IsOpen())
	assert.False(t, recs[1].IssuedAt.Known())
}

func TestDecodeRecords_UnreadableReturnDateIsCounted(t *testing.T) {
	snap := docstore.NewSnapshot(engine.PathRecords, map[string]any{
		"24L31A0412": map[string]any{
			"001": map[string]any{"Book": "Embedded Systems", "Issued DateTime": "2024-01-01 10:00:00", "Returned DateTime": "-", "finePaid": 2},
			"002": map[string]any{"Book": "C Programming", "Issued DateTime": "2024-01-02", "Returned DateTime": "2024-01-10", "finePaid": 0},
		},
	})

	rs, diag := engine.DecodeRecords(snap)

	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, 0, diag.Skipped)
	assert.Equal(t, 1, diag.MalformedDates)
	require.Len(t, diag.Problems, 1)
	assert.Contains(t, diag.Problems[0], "return date")

	recs, _ := rs.ForStudent("24L31A0412")
	assert.False(t, recs[0].IsOpen(), "an unreadable return date still means returned")
	assert.Equal(t, "2", recs[0].FinePaid.String())
}

func TestDecodeCatalog_UnknownNameAndCategoryOrder(t *testing.T) {
	snap := docstore.NewSnapshot(engine.PathCatalog, map[string]any{
		"Journals": map[string]any{"J1": map[string]any{"name": "IEEE Letters"}},
		"Books":    map[string]any{"001": map[string]any{"addedDate": "2024-01-01"}},
	})

	items, diag := engine.DecodeCatalog(snap)

	assert.Zero(t, diag.Skipped)
	require.Len(t, items, 2)
	assert.Equal(t, library.LibraryItem{Serial: "001", Name: "Unknown", Category: library.CategoryBook}, items[0])
	assert.Equal(t, library.CategoryJournal, items[1].Category)
}

func TestDecodeStudents_ActivityNewestFirst(t *testing.T) {
	snap := docstore.NewSnapshot(engine.PathStudents, map[string]any{
		"24L31A0412": map[string]any{
			"Name": "A. Sai Ganesh", "Branch": "ECE",
			"Logs": map[string]any{
				"a": map[string]any{"Event": "Login", "DateTime": "2024-03-10 09:00:00"},
				"b": map[string]any{"Event": "Logout", "DateTime": "2024-03-10 11:00:00"},
				"c": map[string]any{"Event": "Login", "DateTime": "garbled"},
				"d": map[string]any{"Event": "Wave", "DateTime": "2024-03-10 12:00:00"},
			},
		},
	})

	students, activity, diag := engine.DecodeStudents(snap)

	require.Len(t, students, 1)
	assert.Equal(t, 1, diag.Skipped)
	require.Len(t, activity, 3)
	assert.Equal(t, "b", activity[0].Key)
	assert.Equal(t, "a", activity[1].Key)
	assert.Equal(t, "c", activity[2].Key)
	assert.Equal(t, "A. Sai Ganesh", activity[0].Name)
	assert.Equal(t, "2024-03-10", activity[0].Day)
}

func TestDecodePresence(t *testing.T) {
	snap := docstore.NewSnapshot(engine.PathAnalytics, map[string]any{
		"StudentsPresentCount": float64(1),
		"StudentsPresentList": map[string]any{
			"24L31A0412": map[string]any{"Name": "A. Sai Ganesh", "Branch": "ECE"},
		},
	})

	p, diag := engine.DecodePresence(snap)

	assert.Zero(t, diag.Skipped)
	assert.Equal(t, 1, p.Count)
	assert.Equal(t, "ECE", p.Roster["24L31A0412"].Branch)
}
