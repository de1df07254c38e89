/*
Package fines computes due dates and overdue fines for circulation records.

PURPOSE:
  Deterministic date arithmetic shared by every view that shows a loan.

RULES:
  dueDate(issuedAt)     = issuedAt's calendar date + LoanDays (14)
  overdue(due, asOf)    = max(0, calendar days from due to asOf)
  fine                  = overdue days x DailyRate

  Dates are naive calendar days: no timezone conversion is applied to what
  the desk wrote. A loan issued 2024-02-20 is due 2024-03-05.

SETTLED RECORDS:
  Once a record is returned its fine is whatever settlement recorded in
  finePaid. It is never recomputed, so advancing "now" cannot change it.
  A returned record without finePaid (returned at the desk, no fine taken)
  reports zero.

UNKNOWN DATES:
  A missing or unparseable issuedAt makes both the due date and the live
  fine unknown. Unknown is reported as such, never as zero.

EXAMPLE:
  calc := fines.Default()
  a := calc.Assess(record, library.NewDate(2024, time.January, 20))
  // issued 2024-01-01 -> a.DueDate = 2024-01-15, a.Fine.Days = 5
*/
package fines

import (
	"github.com/rfidlib/circulation-engine/library"
	"github.com/shopspring/decimal"
)

// Unknown is how unknown dates and amounts are rendered.
const Unknown = "unknown"

const DefaultLoanDays = 14

// =============================================================================
// CALCULATOR
// =============================================================================

type Calculator struct {
	LoanDays  int
	DailyRate decimal.Decimal
}

// Default returns the standard 14-day loan at one currency unit per day.
func Default() Calculator {
	return Calculator{LoanDays: DefaultLoanDays, DailyRate: decimal.NewFromInt(1)}
}

// DueDate is a computed due date that may be unknown.
type DueDate struct {
	Date  library.TimePoint
	Known bool
}

func (d DueDate) String() string {
	if !d.Known {
		return Unknown
	}
	return d.Date.DateKey()
}

// Fine is an overdue fine that may be unknown.
type Fine struct {
	Known  bool
	Days   int
	Amount decimal.Decimal
}

func (f Fine) String() string {
	if !f.Known {
		return Unknown
	}
	return f.Amount.String()
}

// DueDate adds the loan period to the issue date.
func (c Calculator) DueDate(issued library.Timestamp) DueDate {
	if !issued.Known() {
		return DueDate{}
	}
	return DueDate{Date: issued.At.Date().AddDays(c.LoanDays), Known: true}
}

// OverdueDays counts whole days asOf is past due. Zero on or before due.
func OverdueDays(due, asOf library.TimePoint) int {
	if d := library.DaysBetween(due, asOf); d > 0 {
		return d
	}
	return 0
}

// LiveFine prices the overdue days as of asOf.
func (c Calculator) LiveFine(due DueDate, asOf library.TimePoint) Fine {
	if !due.Known {
		return Fine{}
	}
	days := OverdueDays(due.Date, asOf)
	return Fine{Known: true, Days: days, Amount: c.DailyRate.Mul(decimal.NewFromInt(int64(days)))}
}

// =============================================================================
// ASSESSMENT
// =============================================================================

// Assessment is the derived state of one record at one instant.
type Assessment struct {
	DueDate             DueDate
	Fine                Fine
	Settled             bool
	IsOverdueUnreturned bool
}

// Assess derives due date and effective fine. Returned records report the
// frozen settlement amount; open records accrue live against asOf.
func (c Calculator) Assess(r library.CirculationRecord, asOf library.TimePoint) Assessment {
	due := c.DueDate(r.IssuedAt)
	if !r.IsOpen() {
		paid := decimal.Zero
		if r.FinePaid != nil {
			paid = *r.FinePaid
		}
		return Assessment{
			DueDate: due,
			Fine:    Fine{Known: true, Days: c.daysFor(paid), Amount: paid},
			Settled: true,
		}
	}

	fine := c.LiveFine(due, asOf)
	return Assessment{
		DueDate:             due,
		Fine:                fine,
		IsOverdueUnreturned: fine.Known && fine.Days > 0,
	}
}

// daysFor converts a paid amount back to days at the current rate, for
// display only.
func (c Calculator) daysFor(amount decimal.Decimal) int {
	if c.DailyRate.IsZero() {
		return 0
	}
	return int(amount.Div(c.DailyRate).IntPart())
}
