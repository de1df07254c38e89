package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rfidlib/circulation-engine/docstore"
	"github.com/rfidlib/circulation-engine/fines"
	"github.com/rfidlib/circulation-engine/library"
	"github.com/shopspring/decimal"
)

// =============================================================================
// WRITER - Settlement and catalog entry
// =============================================================================

// Writer issues single-shot writes and waits for the store's answer. It
// never applies a change locally: the acknowledged write comes back as a
// new snapshot through the engine's subscriptions. No retries.
type Writer struct {
	store docstore.Store
	calc  fines.Calculator
	now   func() library.TimePoint
}

func NewWriter(store docstore.Store, calc fines.Calculator, now func() library.TimePoint) *Writer {
	return &Writer{store: store, calc: calc, now: now}
}

// Settlement is the outcome of accepting a fine.
type Settlement struct {
	Roll       string
	Serial     string
	ItemName   string
	ReturnedOn library.TimePoint
	FinePaid   decimal.Decimal
	DueDate    fines.DueDate
}

// AcceptFine moves an open record to Returned, writing the return date and
// the fine together. The transition is conditional: a record that is
// already returned is left alone and ErrAlreadyReturned is reported.
//
// When override is nil the fine is computed as of today; a record whose
// issue date cannot be read then fails with ErrMalformedRecord.
func (w *Writer) AcceptFine(ctx context.Context, roll, serial string, override *decimal.Decimal) (Settlement, error) {
	if err := docstore.ValidateKey(roll); err != nil {
		return Settlement{}, &library.ValidationError{Entity: "settlement", Field: "roll", Reason: err.Error()}
	}
	if err := docstore.ValidateKey(serial); err != nil {
		return Settlement{}, &library.ValidationError{Entity: "settlement", Field: "serial", Reason: err.Error()}
	}
	if override != nil && override.IsNegative() {
		return Settlement{}, &library.ValidationError{Entity: "settlement", Field: "fine", Reason: "is negative"}
	}

	path := PathRecords.Join(roll, serial)
	var (
		out       Settlement
		domainErr error
	)
	err := w.store.Transact(ctx, path, func(cur docstore.Snapshot) (map[string]any, error) {
		fields, err := w.settle(roll, serial, cur, override, &out)
		domainErr = err
		return fields, err
	})
	if domainErr != nil {
		return Settlement{}, domainErr
	}
	if err != nil {
		return Settlement{}, &library.WriteError{Path: path.String(), Err: err}
	}
	return out, nil
}

func (w *Writer) settle(roll, serial string, cur docstore.Snapshot, override *decimal.Decimal, out *Settlement) (map[string]any, error) {
	if !cur.Exists() {
		return nil, fmt.Errorf("record %s/%s: %w", roll, serial, library.ErrNotFound)
	}
	rec, err := DecodeRecord(roll, cur)
	if err != nil {
		return nil, err
	}
	if !rec.IsOpen() {
		return nil, fmt.Errorf("record %s/%s returned on %s: %w", roll, serial, rec.ReturnedAt.Raw, library.ErrAlreadyReturned)
	}

	today := w.now().Date()
	if rec.IssuedAt.Known() && today.Before(rec.IssuedAt.At.Date()) {
		return nil, &library.ValidationError{Entity: "settlement", Field: "returnedAt", Reason: "would precede issuedAt " + rec.IssuedAt.Raw}
	}

	assessment := w.calc.Assess(rec, today)
	amount := assessment.Fine.Amount
	if override != nil {
		amount = *override
	} else if !assessment.Fine.Known {
		return nil, fmt.Errorf("record %s/%s issue date %q: %w", roll, serial, rec.IssuedAt.Raw, library.ErrMalformedRecord)
	}

	*out = Settlement{
		Roll:       roll,
		Serial:     serial,
		ItemName:   rec.ItemName,
		ReturnedOn: today,
		FinePaid:   amount,
		DueDate:    assessment.DueDate,
	}
	return map[string]any{
		FieldReturned:     today.DateKey(),
		FieldFinePaid:     amount.InexactFloat64(),
		FieldReturnStatus: StatusReturned,
	}, nil
}

// AddCatalogItem stores item under its category, replacing any entry with
// the same serial there.
func (w *Writer) AddCatalogItem(ctx context.Context, item library.LibraryItem) error {
	item, err := library.NewLibraryItem(item.Serial, item.Name, item.Category)
	if err != nil {
		return err
	}
	if err := docstore.ValidateKey(item.Serial); err != nil {
		return &library.ValidationError{Entity: "library item", Field: "serial", Reason: err.Error()}
	}

	path := PathCatalog.Join(item.Category.Collection(), item.Serial)
	err = w.store.Set(ctx, path, map[string]any{
		FieldItemName:  item.Name,
		FieldAddedDate: w.now().Time.Format("2006-01-02T15:04:05"),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &library.WriteError{Path: path.String(), Err: err}
	}
	return nil
}
