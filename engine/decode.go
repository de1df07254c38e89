package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rfidlib/circulation-engine/docstore"
	"github.com/rfidlib/circulation-engine/library"
	"github.com/shopspring/decimal"
)

// =============================================================================
// DIAGNOSTICS - What the decode boundary could not accept
// =============================================================================

const maxProblems = 20

// Diagnostics counts entries dropped while decoding one collection, and
// records whose dates could not be read. Nothing is dropped without being
// counted here.
type Diagnostics struct {
	Skipped        int
	MalformedDates int
	Problems       []string // first few reasons, for operators
}

func (d *Diagnostics) skip(path docstore.Path, err error) {
	d.Skipped++
	d.note(path, err)
}

func (d *Diagnostics) note(path docstore.Path, err error) {
	if len(d.Problems) < maxProblems {
		d.Problems = append(d.Problems, fmt.Sprintf("%s: %v", path, err))
	}
}

// =============================================================================
// CATALOG
// =============================================================================

// DecodeCatalog reads LibraryItems in category order, each category in key
// order. Entries without a name are listed as "Unknown".
func DecodeCatalog(snap docstore.Snapshot) ([]library.LibraryItem, Diagnostics) {
	var (
		items []library.LibraryItem
		diag  Diagnostics
	)
	for _, cat := range library.Categories {
		for _, child := range snap.Child(cat.Collection()).Children() {
			name := child.ChildString(FieldItemName)
			if name == "" {
				name = UnknownName
			}
			item, err := library.NewLibraryItem(child.Key(), name, cat)
			if err != nil {
				diag.skip(child.Path(), err)
				continue
			}
			items = append(items, item)
		}
	}
	return items, diag
}

// =============================================================================
// CIRCULATION RECORDS
// =============================================================================

// RecordSet holds every student's records, keyed by roll for direct lookup
// and ordered by roll then serial for scans.
type RecordSet struct {
	rolls  []string
	byRoll map[string][]library.CirculationRecord
}

func NewRecordSet(records ...library.CirculationRecord) RecordSet {
	rs := RecordSet{byRoll: make(map[string][]library.CirculationRecord)}
	for _, r := range records {
		rs.add(r)
	}
	return rs
}

func (rs *RecordSet) add(r library.CirculationRecord) {
	if rs.byRoll == nil {
		rs.byRoll = make(map[string][]library.CirculationRecord)
	}
	if _, ok := rs.byRoll[r.StudentRoll]; !ok {
		rs.rolls = append(rs.rolls, r.StudentRoll)
	}
	rs.byRoll[r.StudentRoll] = append(rs.byRoll[r.StudentRoll], r)
}

// Rolls lists students with at least one record, in snapshot order.
func (rs RecordSet) Rolls() []string { return rs.rolls }

// ForStudent returns one student's records without scanning the others.
func (rs RecordSet) ForStudent(roll string) ([]library.CirculationRecord, bool) {
	recs, ok := rs.byRoll[roll]
	return recs, ok
}

// All returns every record in snapshot order.
func (rs RecordSet) All() []library.CirculationRecord {
	var out []library.CirculationRecord
	for _, roll := range rs.rolls {
		out = append(out, rs.byRoll[roll]...)
	}
	return out
}

func (rs RecordSet) Len() int {
	n := 0
	for _, recs := range rs.byRoll {
		n += len(recs)
	}
	return n
}

// DecodeRecords reads LibraryRecords/{roll}/{serial}. Invalid records are
// skipped and counted; records with an unreadable issue or return date are
// kept and counted as malformed.
func DecodeRecords(snap docstore.Snapshot) (RecordSet, Diagnostics) {
	rs := NewRecordSet()
	var diag Diagnostics
	for _, student := range snap.Children() {
		if !student.HasChildren() {
			diag.skip(student.Path(), fmt.Errorf("%w: expected an object of records", library.ErrValidation))
			continue
		}
		for _, child := range student.Children() {
			rec, err := DecodeRecord(student.Key(), child)
			if err != nil {
				diag.skip(child.Path(), err)
				continue
			}
			if !rec.IssuedAt.Known() {
				diag.MalformedDates++
				diag.note(child.Path(), fmt.Errorf("%w: issue date %q", library.ErrMalformedRecord, rec.IssuedAt.Raw))
			}
			// Still returned: the fine was frozen when it was settled.
			if rec.ReturnedAt.IsSet() && !rec.ReturnedAt.Known() {
				diag.MalformedDates++
				diag.note(child.Path(), fmt.Errorf("%w: return date %q", library.ErrMalformedRecord, rec.ReturnedAt.Raw))
			}
			rs.add(rec)
		}
	}
	return rs, diag
}

// DecodeRecord converts one stored record. The record id is its key.
func DecodeRecord(roll string, snap docstore.Snapshot) (library.CirculationRecord, error) {
	if !snap.HasChildren() {
		return library.CirculationRecord{}, fmt.Errorf("%w: expected a record object", library.ErrValidation)
	}

	returned := snap.ChildString(FieldReturned)
	if strings.EqualFold(strings.TrimSpace(returned), PendingReturn) {
		returned = ""
	}

	var finePaid *decimal.Decimal
	if fp := snap.Child(FieldFinePaid); fp.Exists() {
		n, ok := fp.Number()
		if !ok {
			return library.CirculationRecord{}, &library.ValidationError{
				Entity: "circulation record", Field: "finePaid", Reason: "is not a number",
			}
		}
		d := decimal.NewFromFloat(n)
		finePaid = &d
	}

	itemName := snap.ChildString(FieldBook)
	if itemName == "" {
		itemName = UnknownName
	}

	return library.NewCirculationRecord(library.CirculationInput{
		ID:          snap.Key(),
		StudentRoll: roll,
		StudentName: snap.ChildString(FieldName),
		ItemName:    itemName,
		IssuedAt:    library.ParseTimestamp(snap.ChildString(FieldIssued)),
		ReturnedAt:  library.ParseTimestamp(returned),
		FinePaid:    finePaid,
	})
}

// =============================================================================
// ANALYTICS - Presence projection and daily gate log
// =============================================================================

type PresentStudent struct {
	Roll   string
	Name   string
	Branch string
}

// Presence is the upstream "who is inside" projection. The gate
// controller pairs entries with exits; the engine only reads the result.
type Presence struct {
	Count  int
	Roster map[string]PresentStudent
}

// DecodePresence reads the present count and roster from Analytics.
func DecodePresence(snap docstore.Snapshot) (Presence, Diagnostics) {
	var diag Diagnostics
	p := Presence{Roster: make(map[string]PresentStudent)}

	if c := snap.Child(KeyPresentCount); c.Exists() {
		n, ok := c.Number()
		if ok && n >= 0 {
			p.Count = int(n)
		} else {
			diag.skip(c.Path(), fmt.Errorf("%w: present count is not a non-negative number", library.ErrValidation))
		}
	}

	for _, child := range snap.Child(KeyPresentList).Children() {
		p.Roster[child.Key()] = PresentStudent{
			Roll:   child.Key(),
			Name:   child.ChildString(FieldName),
			Branch: child.ChildString(FieldBranch),
		}
	}
	return p, diag
}

// DecodeDailyLog reads Analytics/DailyEntryLog. Each event's Day is the
// bucket key it was filed under.
func DecodeDailyLog(snap docstore.Snapshot) ([]library.OccupancyEvent, Diagnostics) {
	var (
		events []library.OccupancyEvent
		diag   Diagnostics
	)
	for _, day := range snap.Child(KeyDailyLog).Children() {
		for _, entry := range day.Children() {
			ev, err := decodeEvent(entry, "", "", "", day.Key())
			if err != nil {
				diag.skip(entry.Path(), err)
				continue
			}
			events = append(events, ev)
		}
	}
	return events, diag
}

func decodeEvent(snap docstore.Snapshot, roll, name, branch, day string) (library.OccupancyEvent, error) {
	if !snap.HasChildren() {
		return library.OccupancyEvent{}, fmt.Errorf("%w: expected an event object", library.ErrValidation)
	}
	if v := snap.ChildString(FieldRoll); v != "" {
		roll = v
	}
	if v := snap.ChildString(FieldName); v != "" {
		name = v
	}
	if v := snap.ChildString(FieldBranch); v != "" {
		branch = v
	}
	ts := library.ParseTimestamp(snap.ChildString(FieldDateTime))
	return library.NewOccupancyEvent(snap.Key(), roll, name, branch, snap.ChildString(FieldEvent), ts, day)
}

// =============================================================================
// STUDENTS - Directory and per-student activity logs
// =============================================================================

// DecodeStudents reads Students/{roll}: the directory entry and its swipe
// log. Activity is returned newest first.
func DecodeStudents(snap docstore.Snapshot) ([]library.Student, []library.OccupancyEvent, Diagnostics) {
	var (
		students []library.Student
		activity []library.OccupancyEvent
		diag     Diagnostics
	)
	for _, child := range snap.Children() {
		st, err := library.NewStudent(child.Key(), child.ChildString(FieldName), child.ChildString(FieldBranch))
		if err != nil {
			diag.skip(child.Path(), err)
			continue
		}
		students = append(students, st)

		for _, entry := range child.Child(KeyLogs).Children() {
			ev, err := decodeEvent(entry, st.Roll, st.Name, st.Branch, "")
			if err != nil {
				diag.skip(entry.Path(), err)
				continue
			}
			activity = append(activity, ev)
		}
	}
	SortNewestFirst(activity)
	return students, activity, diag
}

// SortNewestFirst orders events by timestamp descending. Events whose
// timestamp cannot be read go last, keeping their relative order.
func SortNewestFirst(events []library.OccupancyEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].Timestamp, events[j].Timestamp
		if a.Known() != b.Known() {
			return a.Known()
		}
		return a.At.After(b.At)
	})
}
