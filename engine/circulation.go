package engine

import (
	"github.com/rfidlib/circulation-engine/fines"
	"github.com/rfidlib/circulation-engine/library"
)

// CirculationEntry is a record with its derived due date and fine. It is
// computed on demand and never stored.
type CirculationEntry struct {
	Record library.CirculationRecord
	fines.Assessment
}

// Assess derives one entry per record, preserving order.
func Assess(records []library.CirculationRecord, calc fines.Calculator, asOf library.TimePoint) []CirculationEntry {
	out := make([]CirculationEntry, len(records))
	for i, r := range records {
		out[i] = CirculationEntry{Record: r, Assessment: calc.Assess(r, asOf)}
	}
	return out
}
