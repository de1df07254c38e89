package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rfidlib/circulation-engine/docstore"
	"github.com/rfidlib/circulation-engine/docstore/store"
	"github.com/rfidlib/circulation-engine/engine"
	"github.com/rfidlib/circulation-engine/library"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestEngine(t *testing.T, now time.Time, opts ...engine.Option) (*engine.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	t.Cleanup(func() { mem.Close() })

	opts = append([]engine.Option{engine.WithClock(fixedClock(now)), engine.WithLocation(time.UTC)}, opts...)
	eng := engine.New(mem, opts...)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(eng.Stop)
	return eng, mem
}

func issue(t *testing.T, s docstore.Store, roll, serial, book, issued string) {
	t.Helper()
	err := s.Set(context.Background(), engine.PathRecords.Join(roll, serial), map[string]any{
		engine.FieldBook:     book,
		engine.FieldName:     "A. Sai Ganesh",
		engine.FieldIssued:   issued,
		engine.FieldReturned: engine.PendingReturn,
	})
	require.NoError(t, err)
}

// =============================================================================
// LIVE UPDATES
// =============================================================================

func TestEngine_EmptyStoreYieldsEmptyView(t *testing.T) {
	eng, _ := newTestEngine(t, time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC))

	view := eng.View()

	assert.Zero(t, view.Occupancy.PresentCount)
	assert.Empty(t, view.TopIssued)
	assert.Zero(t, view.Records.Len())
	assert.Zero(t, view.Report.Skipped())
}

func TestEngine_RecomputesOnEveryDelivery(t *testing.T) {
	// GIVEN: a running engine
	eng, mem := newTestEngine(t, time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC))

	var views []engine.View
	eng.OnChange(func(v engine.View) { views = append(views, v) })

	// WHEN: the desk issues a book
	issue(t, mem, "24L31A0412", "001", "Embedded Systems", "2024-01-01 10:00:00")

	// THEN: the view reflects it without polling
	require.Len(t, views, 1)
	assert.Equal(t, 1, eng.View().Records.Len())
	assert.Equal(t, []engine.RankEntry{{Name: "Embedded Systems", Count: 1}}, eng.View().TopIssued)
}

func TestEngine_OpenRecordAccruesLiveFine(t *testing.T) {
	// GIVEN: issued 2024-01-01, now 2024-01-20
	eng, mem := newTestEngine(t, time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC))
	issue(t, mem, "24L31A0412", "001", "Embedded Systems", "2024-01-01")

	// WHEN
	recs, ok := eng.View().Records.ForStudent("24L31A0412")
	require.True(t, ok)
	entries := engine.Assess(recs, eng.Calculator(), eng.Now())

	// THEN
	require.Len(t, entries, 1)
	assert.Equal(t, "2024-01-15", entries[0].DueDate.String())
	assert.Equal(t, "5", entries[0].Fine.String())
	assert.True(t, entries[0].IsOverdueUnreturned)
}

func TestEngine_TodayTalliesFromGateLog(t *testing.T) {
	eng, mem := newTestEngine(t, time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC))
	ctx := context.Background()
	day := engine.PathAnalytics.Join(engine.KeyDailyLog, "2024-03-10")
	for _, kind := range []string{"Login", "Login", "Logout", "Login", "Logout"} {
		_, err := mem.Push(ctx, day, map[string]any{engine.FieldEvent: kind, engine.FieldRoll: "24L31A0412", engine.FieldDateTime: "2024-03-10 10:00:00"})
		require.NoError(t, err)
	}

	occ := eng.View().Occupancy
	assert.Equal(t, 3, occ.DailyLoginCount)
	assert.Equal(t, 2, occ.DailyLogoutCount)
	require.Len(t, occ.Last7Days, 1)
}

func TestEngine_SeedCatalogMergedWithLive(t *testing.T) {
	seed := []library.LibraryItem{{Serial: "001", Name: "Embedded Systems", Category: library.CategoryBook}}
	eng, mem := newTestEngine(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), engine.WithSeedCatalog(seed))
	require.Equal(t, "Embedded Systems", eng.View().Catalog[0].Name)

	err := mem.Set(context.Background(), engine.PathCatalog.Join("Books", "001"), map[string]any{"name": "Circuits"})
	require.NoError(t, err)

	catalog := eng.View().Catalog
	require.Len(t, catalog, 1)
	assert.Equal(t, "Circuits", catalog[0].Name)
}

func TestEngine_RefreshMovesToday(t *testing.T) {
	// GIVEN: a clock the test controls
	now := time.Date(2024, 1, 20, 23, 59, 0, 0, time.UTC)
	mem := store.NewMemory()
	eng := engine.New(mem, engine.WithClock(func() time.Time { return now }), engine.WithLocation(time.UTC))
	require.NoError(t, eng.Start(context.Background()))
	defer eng.Stop()

	// WHEN: the date rolls over
	now = now.Add(2 * time.Minute)
	view := eng.Refresh()

	// THEN
	assert.Equal(t, "2024-01-21", view.AsOf.DateKey())
}

func TestEngine_LocationDefinesToday(t *testing.T) {
	// 20:00 UTC is already the next day in Kolkata
	loc := time.FixedZone("IST", 5*3600+1800)
	eng, _ := newTestEngine(t, time.Date(2024, 1, 20, 20, 0, 0, 0, time.UTC), engine.WithLocation(loc))

	assert.Equal(t, "2024-01-21", eng.Now().DateKey())
}

func TestEngine_StopEndsDeliveries(t *testing.T) {
	eng, mem := newTestEngine(t, time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC))
	require.Equal(t, 4, mem.Subscribers())

	eng.Stop()
	issue(t, mem, "24L31A0412", "001", "Embedded Systems", "2024-01-01")

	assert.Zero(t, mem.Subscribers())
	assert.Zero(t, eng.View().Records.Len())
}

func TestEngine_StartFailsOnClosedStore(t *testing.T) {
	mem := store.NewMemory()
	require.NoError(t, mem.Close())

	err := engine.New(mem).Start(context.Background())

	assert.True(t, errors.Is(err, docstore.ErrClosed))
}

// =============================================================================
// END TO END - settlement freezes the fine
// =============================================================================

func TestEngine_SettledFineIgnoresLaterDates(t *testing.T) {
	// GIVEN: an overdue record settled on 2024-01-20
	now := time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC)
	mem := store.NewMemory()
	eng := engine.New(mem, engine.WithClock(func() time.Time { return now }), engine.WithLocation(time.UTC))
	require.NoError(t, eng.Start(context.Background()))
	defer eng.Stop()
	issue(t, mem, "24L31A0412", "001", "Embedded Systems", "2024-01-01")

	w := engine.NewWriter(mem, eng.Calculator(), eng.Now)
	settlement, err := w.AcceptFine(context.Background(), "24L31A0412", "001", nil)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(settlement.FinePaid))

	// WHEN: months pass
	now = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	eng.Refresh()

	// THEN: the fine stays at 5
	recs, _ := eng.View().Records.ForStudent("24L31A0412")
	entry := engine.Assess(recs, eng.Calculator(), eng.Now())[0]
	assert.True(t, entry.Settled)
	assert.Equal(t, "5", entry.Fine.String())
	assert.Equal(t, []engine.RankEntry{{Name: "Embedded Systems", Count: 1}}, eng.View().TopReturned)
}
