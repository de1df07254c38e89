/*
recompute.go - Pure aggregation from snapshots to derived views

PURPOSE:
  Folds the latest decoded snapshot of every collection into the views the
  portal shows. Recompute is a total function of its inputs: no state is
  carried between calls, so a view always matches a single read of each
  collection.

ALGORITHMS:
  Occupancy:
    presentCount and the roster come straight from the upstream presence
    projection. Today's logins/logouts are tallied from the daily gate log
    by matching the bucket date against today's date key.

  Daily series:
    Distinct dates present in the log, ascending, last 7. A date appears
    only if at least one event was observed on it; missing days are not
    padded with zeros.

  Top-N:
    Records are tallied by item name in snapshot order (roll, then
    serial). Sorting is stable and descending by count, so equal counts
    keep first-seen order. Returns count only records with a return date.

  Catalog:
    Seed entries first, then live entries, keyed by serial. A live entry
    replaces a seed entry with the same serial in place.

CONSISTENCY:
  Snapshots arrive independently. A record may be seen before its catalog
  entry; the view shows what each snapshot says and converges on the next
  delivery.

SEE ALSO:
  - decode.go: snapshot boundary
  - engine.go: live holder that calls Recompute
*/
package engine

import (
	"sort"

	"github.com/rfidlib/circulation-engine/library"
)

const (
	DefaultTopN       = 5
	DefaultSeriesDays = 7
)

// =============================================================================
// INPUTS
// =============================================================================

// Snapshots is the latest decoded value of every upstream collection.
type Snapshots struct {
	Catalog  []library.LibraryItem
	Records  RecordSet
	Presence Presence
	DailyLog []library.OccupancyEvent
	Students []library.Student
	Activity []library.OccupancyEvent

	CatalogIssues   Diagnostics
	RecordIssues    Diagnostics
	AnalyticsIssues Diagnostics
	StudentIssues   Diagnostics
}

// Options are the parameters of a recompute that do not come from the store.
type Options struct {
	AsOf         library.TimePoint
	SeedCatalog  []library.LibraryItem
	SeedStudents []library.Student
	TopN         int
	SeriesDays   int
}

// =============================================================================
// OUTPUTS
// =============================================================================

type DailyTally struct {
	Date    string
	Logins  int
	Logouts int
}

type OccupancyView struct {
	PresentCount     int
	PresentRoster    map[string]PresentStudent
	DailyLoginCount  int
	DailyLogoutCount int
	Last7Days        []DailyTally
}

// Roster lists present students ordered by roll.
func (o OccupancyView) Roster() []PresentStudent {
	out := make([]PresentStudent, 0, len(o.PresentRoster))
	for _, p := range o.PresentRoster {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Roll < out[j].Roll })
	return out
}

type RankEntry struct {
	Name  string
	Count int
}

// Report gathers per-collection diagnostics.
type Report struct {
	Catalog   Diagnostics
	Records   Diagnostics
	Analytics Diagnostics
	Students  Diagnostics
}

// Skipped is the total number of dropped entries across collections.
func (r Report) Skipped() int {
	return r.Catalog.Skipped + r.Records.Skipped + r.Analytics.Skipped + r.Students.Skipped
}

type View struct {
	AsOf        library.TimePoint
	Occupancy   OccupancyView
	TopIssued   []RankEntry
	TopReturned []RankEntry
	Catalog     []library.LibraryItem
	Students    []library.Student
	Records     RecordSet
	Activity    []library.OccupancyEvent
	Report      Report
}

// =============================================================================
// RECOMPUTE
// =============================================================================

// Recompute derives every view from s. It never mutates s.
func Recompute(s Snapshots, opts Options) View {
	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	seriesDays := opts.SeriesDays
	if seriesDays <= 0 {
		seriesDays = DefaultSeriesDays
	}

	records := s.Records.All()
	logins, logouts := CountDay(s.DailyLog, opts.AsOf.DateKey())

	return View{
		AsOf: opts.AsOf,
		Occupancy: OccupancyView{
			PresentCount:     s.Presence.Count,
			PresentRoster:    s.Presence.Roster,
			DailyLoginCount:  logins,
			DailyLogoutCount: logouts,
			Last7Days:        Series(s.DailyLog, seriesDays),
		},
		TopIssued:   TopItems(records, topN, func(library.CirculationRecord) bool { return true }),
		TopReturned: TopItems(records, topN, func(r library.CirculationRecord) bool { return !r.IsOpen() }),
		Catalog:     MergeCatalog(opts.SeedCatalog, s.Catalog),
		Students:    MergeStudents(opts.SeedStudents, s.Students),
		Records:     s.Records,
		Activity:    s.Activity,
		Report: Report{
			Catalog:   s.CatalogIssues,
			Records:   s.RecordIssues,
			Analytics: s.AnalyticsIssues,
			Students:  s.StudentIssues,
		},
	}
}

// CountDay tallies Login and Logout events filed under day.
func CountDay(events []library.OccupancyEvent, day string) (logins, logouts int) {
	for _, ev := range events {
		if ev.Day != day {
			continue
		}
		switch ev.Kind {
		case library.EventLogin:
			logins++
		case library.EventLogout:
			logouts++
		}
	}
	return logins, logouts
}

// Series returns per-day tallies for the last n distinct dates observed,
// oldest first.
func Series(events []library.OccupancyEvent, n int) []DailyTally {
	byDay := make(map[string]*DailyTally)
	for _, ev := range events {
		if ev.Day == "" {
			continue
		}
		t, ok := byDay[ev.Day]
		if !ok {
			t = &DailyTally{Date: ev.Day}
			byDay[ev.Day] = t
		}
		if ev.Kind == library.EventLogin {
			t.Logins++
		} else {
			t.Logouts++
		}
	}

	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)
	if len(days) > n {
		days = days[len(days)-n:]
	}

	out := make([]DailyTally, len(days))
	for i, d := range days {
		out[i] = *byDay[d]
	}
	return out
}

// TopItems ranks item names by how many records match include. Ties keep
// the order in which names were first seen.
func TopItems(records []library.CirculationRecord, n int, include func(library.CirculationRecord) bool) []RankEntry {
	index := make(map[string]int)
	var tally []RankEntry
	for _, r := range records {
		if !include(r) {
			continue
		}
		i, ok := index[r.ItemName]
		if !ok {
			i = len(tally)
			index[r.ItemName] = i
			tally = append(tally, RankEntry{Name: r.ItemName})
		}
		tally[i].Count++
	}

	sort.SliceStable(tally, func(i, j int) bool { return tally[i].Count > tally[j].Count })
	if len(tally) > n {
		tally = tally[:n]
	}
	return tally
}

// MergeCatalog combines the bootstrap seed with the live catalog. Live
// entries win on serial; the seed only fills gaps.
func MergeCatalog(seed, live []library.LibraryItem) []library.LibraryItem {
	index := make(map[string]int, len(seed)+len(live))
	out := make([]library.LibraryItem, 0, len(seed)+len(live))
	put := func(item library.LibraryItem) {
		if i, ok := index[item.Serial]; ok {
			out[i] = item
			return
		}
		index[item.Serial] = len(out)
		out = append(out, item)
	}
	for _, item := range seed {
		put(item)
	}
	for _, item := range live {
		put(item)
	}
	return out
}

// MergeStudents combines the seed directory with the Students collection.
// A live entry replaces a seed entry with the same roll, but a live entry
// that carries no name keeps the seed's name and branch.
func MergeStudents(seed, live []library.Student) []library.Student {
	index := make(map[string]int, len(seed)+len(live))
	out := make([]library.Student, 0, len(seed)+len(live))
	for _, st := range seed {
		index[st.Roll] = len(out)
		out = append(out, st)
	}
	for _, st := range live {
		i, ok := index[st.Roll]
		if !ok {
			index[st.Roll] = len(out)
			out = append(out, st)
			continue
		}
		if st.Name != "" {
			out[i].Name = st.Name
		}
		if st.Branch != "" {
			out[i].Branch = st.Branch
		}
	}
	return out
}
