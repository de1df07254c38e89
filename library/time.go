package library

import (
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - Naive calendar time (no timezone conversion)
// =============================================================================

// TimePoint is a wall-clock reading as written by the desk or the gate.
// The location is always UTC and carries no meaning: "2024-01-01 23:30"
// stays on January 1st regardless of where the server runs.
type TimePoint struct {
	Time        time.Time
	Granularity Granularity
}

type Granularity int

const (
	GranularityDay Granularity = iota
	GranularityMinute
	GranularitySecond
)

// Constructors
func NewDate(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Granularity: GranularityDay}
}

func NewDateTime(year int, month time.Month, day, hour, min, sec int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, hour, min, sec, 0, time.UTC), Granularity: GranularitySecond}
}

// WallClock keeps the calendar reading of t in its own location and drops
// the zone.
func WallClock(t time.Time) TimePoint {
	return NewDateTime(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool { return tp.Time.Before(other.Time) }
func (tp TimePoint) After(other TimePoint) bool  { return tp.Time.After(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool  { return tp.Time.Equal(other.Time) }
func (tp TimePoint) IsZero() bool                { return tp.Time.IsZero() }

// Date truncates to the calendar day.
func (tp TimePoint) Date() TimePoint {
	return NewDate(tp.Time.Year(), tp.Time.Month(), tp.Time.Day())
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint {
	return TimePoint{Time: tp.Time.AddDate(0, 0, n), Granularity: tp.Granularity}
}

// DaysBetween counts calendar days from one date to another, ignoring the
// time of day. Negative when to is before from.
func DaysBetween(from, to TimePoint) int {
	return int(to.Date().Time.Sub(from.Date().Time).Hours() / 24)
}

// DateKey is the "2006-01-02" form used to bucket gate events.
func (tp TimePoint) DateKey() string { return tp.Time.Format(DateLayout) }

func (tp TimePoint) String() string {
	switch tp.Granularity {
	case GranularityDay:
		return tp.Time.Format(DateLayout)
	case GranularityMinute:
		return tp.Time.Format("2006-01-02 15:04")
	default:
		return tp.Time.Format("2006-01-02 15:04:05")
	}
}

// =============================================================================
// PARSING
// =============================================================================

const DateLayout = "2006-01-02"

var layouts = []struct {
	layout      string
	granularity Granularity
}{
	{"2006-01-02 15:04:05", GranularitySecond},
	{"2006-01-02T15:04:05", GranularitySecond},
	{time.RFC3339Nano, GranularitySecond},
	{"2006-01-02 15:04", GranularityMinute},
	{"2006-01-02T15:04", GranularityMinute},
	{DateLayout, GranularityDay},
	{"02/01/2006 15:04:05", GranularitySecond},
	{"02/01/2006", GranularityDay},
}

// ParseTimePoint accepts the formats the desk software and the gate
// firmware have been seen to write. Zoned inputs keep their wall-clock
// reading.
func ParseTimePoint(s string) (TimePoint, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TimePoint{}, false
	}
	for _, l := range layouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		tp := WallClock(t)
		tp.Granularity = l.granularity
		return tp, true
	}
	return TimePoint{}, false
}

// =============================================================================
// TIMESTAMP - Raw text plus its parsed reading
// =============================================================================

// Timestamp keeps what was stored next to what could be understood of it.
// Raw is shown to operators untouched; At is zero when Raw is empty or
// unparseable.
type Timestamp struct {
	Raw string
	At  TimePoint
}

// ParseTimestamp never fails; check Known.
func ParseTimestamp(raw string) Timestamp {
	ts := Timestamp{Raw: strings.TrimSpace(raw)}
	ts.At, _ = ParseTimePoint(ts.Raw)
	return ts
}

// IsSet reports whether anything was recorded.
func (t Timestamp) IsSet() bool { return t.Raw != "" }

// Known reports whether the value parsed.
func (t Timestamp) Known() bool { return !t.At.IsZero() }

func (t Timestamp) String() string { return t.Raw }
