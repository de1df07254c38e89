/*
Package query narrows derived views to what one screen asks for.

PURPOSE:
  Pure functions over the domain model and the engine's derived views.
  Nothing here reads the store or holds state; every call gets the
  snapshot it should look at.

MATCHING:
  Text matching is case-insensitive by Unicode case folding, so "ECE" and
  "ece" match, and so do names with non-ASCII letters. Results keep the
  order of the input; nothing is relevance-ranked.

COST:
  CirculationByItem scans every student's records. CirculationByStudent is
  a direct lookup by roll and never touches other students.

SEE ALSO:
  - engine/recompute.go: produces the views these functions narrow
  - fines/calculator.go: due dates and fines attached to each entry
*/
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rfidlib/circulation-engine/engine"
	"github.com/rfidlib/circulation-engine/fines"
	"github.com/rfidlib/circulation-engine/library"
	"golang.org/x/text/cases"
)

// MaxSuggestions caps text-search results.
const MaxSuggestions = 5

// fold is not shared: a Caser keeps state between calls.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// =============================================================================
// CATALOG SEARCH
// =============================================================================

// SearchItems returns up to MaxSuggestions items whose name or serial
// contains q. An empty query suggests nothing.
func SearchItems(items []library.LibraryItem, q string) []library.LibraryItem {
	needle := fold(q)
	if needle == "" {
		return nil
	}
	var out []library.LibraryItem
	for _, it := range items {
		if strings.Contains(fold(it.Name), needle) || strings.Contains(fold(it.Serial), needle) {
			out = append(out, it)
			if len(out) == MaxSuggestions {
				break
			}
		}
	}
	return out
}

// =============================================================================
// CIRCULATION
// =============================================================================

// CirculationByItem collects every student's record for serial, most
// recently issued first. Records with unreadable issue dates go last.
func CirculationByItem(records engine.RecordSet, serial string, calc fines.Calculator, asOf library.TimePoint) []engine.CirculationEntry {
	var matched []library.CirculationRecord
	for _, r := range records.All() {
		if r.ID == serial {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i].IssuedAt, matched[j].IssuedAt
		if a.Known() != b.Known() {
			return a.Known()
		}
		return a.At.After(b.At)
	})
	return engine.Assess(matched, calc, asOf)
}

// CirculationByStudent returns one student's records in snapshot order. A
// student with no records gets an empty list, not an error.
func CirculationByStudent(records engine.RecordSet, roll string, calc fines.Calculator, asOf library.TimePoint) []engine.CirculationEntry {
	recs, _ := records.ForStudent(roll)
	return engine.Assess(recs, calc, asOf)
}

// =============================================================================
// EVENT LOG
// =============================================================================

// FilterEvents keeps events of kind, and when datePrefix is not empty only
// those whose timestamp starts with it. An empty kind keeps both. The
// result is newest first whatever the input order.
func FilterEvents(events []library.OccupancyEvent, kind library.EventKind, datePrefix string) []library.OccupancyEvent {
	datePrefix = strings.TrimSpace(datePrefix)
	var out []library.OccupancyEvent
	for _, ev := range events {
		if kind != "" && ev.Kind != kind {
			continue
		}
		if datePrefix != "" && !strings.HasPrefix(ev.Timestamp.Raw, datePrefix) && !strings.HasPrefix(ev.Day, datePrefix) {
			continue
		}
		out = append(out, ev)
	}
	engine.SortNewestFirst(out)
	return out
}

// =============================================================================
// STUDENTS
// =============================================================================

// ResolveStudent picks the student a search box means. A roll that matches
// exactly wins; otherwise the first student whose name contains q, in
// directory order. Anything else is library.ErrNotFound.
func ResolveStudent(students []library.Student, q string) (library.Student, error) {
	needle := fold(q)
	if needle == "" {
		return library.Student{}, fmt.Errorf("student %q: %w", q, library.ErrNotFound)
	}
	for _, st := range students {
		if fold(st.Roll) == needle {
			return st, nil
		}
	}
	for _, st := range students {
		if strings.Contains(fold(st.Name), needle) {
			return st, nil
		}
	}
	return library.Student{}, fmt.Errorf("student %q: %w", q, library.ErrNotFound)
}

// SearchStudents returns up to MaxSuggestions students whose roll or name
// contains q, exact roll matches first.
func SearchStudents(students []library.Student, q string) []library.Student {
	needle := fold(q)
	if needle == "" {
		return nil
	}
	var exact, partial []library.Student
	for _, st := range students {
		switch {
		case fold(st.Roll) == needle:
			exact = append(exact, st)
		case strings.Contains(fold(st.Roll), needle), strings.Contains(fold(st.Name), needle):
			partial = append(partial, st)
		}
	}
	out := append(exact, partial...)
	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	return out
}
