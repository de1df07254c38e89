/*
Package library holds the domain model of the RFID library: students,
catalog items, circulation records and gate swipes.

PURPOSE:
  Typed, validated representations of what the issue desk and the entry
  gates write into the document store. Constructors are the only way raw
  input enters the model; they reject what cannot be represented instead
  of coercing it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Student:            reference data keyed by roll number
  - LibraryItem:        catalog entry keyed by serial within a category
  - CirculationRecord:  one issue of one item to one student
  - OccupancyEvent:     one Login or Logout swipe at the gate

CIRCULATION LIFECYCLE:
  Issued ──(settlement)──> Returned

  Issued is the only initial state. Returned is terminal: ReturnedAt and
  FinePaid are written together by settlement and never cleared. There is
  no cancellation or reversal.

SEE ALSO:
  - time.go: TimePoint and Timestamp
  - errors.go: error taxonomy
  - fines/calculator.go: due dates and fines
*/
package library

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STUDENT
// =============================================================================

type Student struct {
	Roll   string
	Name   string
	Branch string
}

func NewStudent(roll, name, branch string) (Student, error) {
	roll = strings.TrimSpace(roll)
	if roll == "" {
		return Student{}, invalid("student", "roll", "is empty")
	}
	return Student{Roll: roll, Name: strings.TrimSpace(name), Branch: strings.TrimSpace(branch)}, nil
}

// =============================================================================
// LIBRARY ITEM
// =============================================================================

type Category string

const (
	CategoryBook    Category = "Book"
	CategoryJournal Category = "Journal"
	CategoryArticle Category = "Article"
)

// Categories in catalog order.
var Categories = []Category{CategoryBook, CategoryJournal, CategoryArticle}

// Collection is the store key holding items of this category.
func (c Category) Collection() string {
	switch c {
	case CategoryBook:
		return "Books"
	case CategoryJournal:
		return "Journals"
	case CategoryArticle:
		return "Articles"
	}
	return ""
}

// ParseCategory accepts the singular or plural form, case-insensitively.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) || strings.EqualFold(s, c.Collection()) {
			return c, true
		}
	}
	return "", false
}

type LibraryItem struct {
	Serial   string
	Name     string
	Category Category
}

func NewLibraryItem(serial, name string, category Category) (LibraryItem, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return LibraryItem{}, invalid("library item", "serial", "is empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return LibraryItem{}, invalid("library item", "name", "is empty")
	}
	if category.Collection() == "" {
		return LibraryItem{}, invalid("library item", "category", "is not Book, Journal or Article")
	}
	return LibraryItem{Serial: serial, Name: name, Category: category}, nil
}

// =============================================================================
// CIRCULATION RECORD
// =============================================================================

// CirculationRecord is one issue of an item to a student. ID equals the
// item serial and is unique per student.
type CirculationRecord struct {
	ID          string
	StudentRoll string
	StudentName string
	ItemName    string
	IssuedAt    Timestamp
	ReturnedAt  Timestamp        // unset while the item is out
	FinePaid    *decimal.Decimal // set only by settlement
}

// CirculationInput carries the raw fields of a record.
type CirculationInput struct {
	ID          string
	StudentRoll string
	StudentName string
	ItemName    string
	IssuedAt    Timestamp
	ReturnedAt  Timestamp
	FinePaid    *decimal.Decimal
}

// NewCirculationRecord validates the record invariants. An unparseable
// IssuedAt is accepted (the row is malformed, not invalid) and surfaces
// later as an unknown due date.
func NewCirculationRecord(in CirculationInput) (CirculationRecord, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.StudentRoll = strings.TrimSpace(in.StudentRoll)
	if in.ID == "" {
		return CirculationRecord{}, invalid("circulation record", "id", "is empty")
	}
	if in.StudentRoll == "" {
		return CirculationRecord{}, invalid("circulation record", "student roll", "is empty")
	}
	if in.IssuedAt.Known() && in.ReturnedAt.Known() && in.ReturnedAt.At.Before(in.IssuedAt.At.Date()) {
		return CirculationRecord{}, invalid("circulation record", "returnedAt", "is before issuedAt")
	}
	if in.FinePaid != nil {
		if !in.ReturnedAt.IsSet() {
			return CirculationRecord{}, invalid("circulation record", "finePaid", "is set on an open record")
		}
		if in.FinePaid.IsNegative() {
			return CirculationRecord{}, invalid("circulation record", "finePaid", "is negative")
		}
	}
	return CirculationRecord(in), nil
}

// IsOpen reports whether the item is still out.
func (r CirculationRecord) IsOpen() bool { return !r.ReturnedAt.IsSet() }

// =============================================================================
// OCCUPANCY EVENT
// =============================================================================

type EventKind string

const (
	EventLogin  EventKind = "Login"
	EventLogout EventKind = "Logout"
)

// ParseEventKind recognizes exactly the two gate tags.
func ParseEventKind(s string) (EventKind, bool) {
	switch EventKind(strings.TrimSpace(s)) {
	case EventLogin:
		return EventLogin, true
	case EventLogout:
		return EventLogout, true
	}
	return "", false
}

// OccupancyEvent is one swipe at the gate. Day is the calendar bucket the
// gate filed it under, which is what daily tallies count by.
type OccupancyEvent struct {
	Key       string
	Roll      string
	Name      string
	Branch    string
	Kind      EventKind
	Timestamp Timestamp
	Day       string
}

// NewOccupancyEvent validates the tag. When day is empty it is taken from
// the timestamp's date.
func NewOccupancyEvent(key, roll, name, branch, event string, ts Timestamp, day string) (OccupancyEvent, error) {
	kind, ok := ParseEventKind(event)
	if !ok {
		return OccupancyEvent{}, invalid("occupancy event", "event", "is not Login or Logout: "+event)
	}
	if day == "" && ts.Known() {
		day = ts.At.DateKey()
	}
	return OccupancyEvent{
		Key:       key,
		Roll:      strings.TrimSpace(roll),
		Name:      strings.TrimSpace(name),
		Branch:    strings.TrimSpace(branch),
		Kind:      kind,
		Timestamp: ts,
		Day:       day,
	}, nil
}
