package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rfidlib/circulation-engine/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SetAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, docstore.Path("LibraryItems/Books/001"), map[string]any{
		"name":      "Embedded Systems",
		"addedDate": "2024-01-01T10:00:00",
	}))

	snap, err := s.Get(ctx, docstore.Path("LibraryItems"))
	require.NoError(t, err)
	book := snap.Child("Books").Child("001")
	assert.Equal(t, "Embedded Systems", book.ChildString("name"))
	assert.Equal(t, "2024-01-01T10:00:00", book.ChildString("addedDate"))

	missing, err := s.Get(ctx, docstore.Path("LibraryRecords"))
	require.NoError(t, err)
	assert.False(t, missing.Exists())
}

func TestStore_SubtreesDoNotBleed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, docstore.Path("LibraryRecords/a/001/Book"), "A"))
	require.NoError(t, s.Set(ctx, docstore.Path("LibraryRecords/ab/001/Book"), "AB"))

	snap, err := s.Get(ctx, docstore.Path("LibraryRecords/a"))
	require.NoError(t, err)
	require.Len(t, snap.Children(), 1)
	assert.Equal(t, "A", snap.Child("001").ChildString("Book"))

	// Replacing "a" leaves "ab" alone
	require.NoError(t, s.Set(ctx, docstore.Path("LibraryRecords/a"), nil))
	all, _ := s.Get(ctx, docstore.Path("LibraryRecords"))
	require.Len(t, all.Children(), 1)
	assert.Equal(t, "ab", all.Children()[0].Key())
}

func TestStore_UpdateMergesAndPreservesTypes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	rec := docstore.Path("LibraryRecords/24L31A0412/001")

	require.NoError(t, s.Set(ctx, rec, map[string]any{
		"Book":              "Embedded Systems",
		"Issued DateTime":   "2024-01-01 10:00:00",
		"Returned DateTime": "Pending",
	}))
	require.NoError(t, s.Update(ctx, rec, map[string]any{
		"Returned DateTime": "2024-01-20",
		"finePaid":          5,
		"ReturnStatus":      "Returned",
	}))

	snap, err := s.Get(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "Embedded Systems", snap.ChildString("Book"))
	assert.Equal(t, "2024-01-20", snap.ChildString("Returned DateTime"))
	n, ok := snap.Child("finePaid").Number()
	assert.True(t, ok)
	assert.Equal(t, float64(5), n)
	_, isNumber := snap.Child("finePaid").Value().(float64)
	assert.True(t, isNumber, "numbers come back as float64")
}

func TestStore_SetOverLeafReplacesIt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, docstore.Path("Analytics/StudentsPresentList"), "none"))
	require.NoError(t, s.Set(ctx, docstore.Path("Analytics/StudentsPresentList/a/Name"), "A"))

	snap, _ := s.Get(ctx, docstore.Path("Analytics/StudentsPresentList"))
	assert.True(t, snap.HasChildren())
	assert.Equal(t, "A", snap.Child("a").ChildString("Name"))
}

func TestStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var got []docstore.Snapshot
	unsub, err := s.Subscribe(ctx, docstore.Path("Analytics"), func(snap docstore.Snapshot) {
		got = append(got, snap)
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Exists())

	require.NoError(t, s.Update(ctx, docstore.Path("Analytics"), map[string]any{
		"StudentsPresentCount":           1,
		"StudentsPresentList/a/Name":     "A",
		"DailyEntryLog/2024-01-20/k1/Ev": "Login",
	}))
	require.Len(t, got, 2)
	n, _ := got[1].Child("StudentsPresentCount").Number()
	assert.Equal(t, float64(1), n)

	// Unrelated writes are not delivered
	require.NoError(t, s.Set(ctx, docstore.Path("Students/a/Name"), "A"))
	assert.Len(t, got, 2)

	unsub()
	require.NoError(t, s.Set(ctx, docstore.Path("Analytics/StudentsPresentCount"), 0))
	assert.Len(t, got, 2)
}

func TestStore_PushAndTransact(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	logs := docstore.Path("Students/a/Logs")

	key, err := s.Push(ctx, logs, map[string]any{"Event": "Login"})
	require.NoError(t, err)
	snap, _ := s.Get(ctx, logs.Join(key))
	assert.Equal(t, "Login", snap.ChildString("Event"))

	rec := docstore.Path("LibraryRecords/a/001")
	require.NoError(t, s.Set(ctx, rec, map[string]any{"Returned DateTime": "Pending"}))

	errReturned := errors.New("already returned")
	settle := func(cur docstore.Snapshot) (map[string]any, error) {
		if cur.ChildString("Returned DateTime") != "Pending" {
			return nil, errReturned
		}
		return map[string]any{"Returned DateTime": "2024-01-20", "finePaid": 0}, nil
	}
	require.NoError(t, s.Transact(ctx, rec, settle))
	assert.ErrorIs(t, s.Transact(ctx, rec, settle), errReturned)

	snap, _ = s.Get(ctx, rec)
	assert.Equal(t, "2024-01-20", snap.ChildString("Returned DateTime"))
	assert.Equal(t, "0", snap.ChildString("finePaid"))
}

func TestStore_CancelAfterCommitStillDelivers(t *testing.T) {
	// GIVEN: an open record watched by a subscriber
	s := newTestStore(t)
	rec := docstore.Path("LibraryRecords/r/001")
	require.NoError(t, s.Set(context.Background(), rec, map[string]any{"Returned DateTime": "Pending"}))

	var got []docstore.Snapshot
	_, err := s.Subscribe(context.Background(), docstore.Path("LibraryRecords"), func(snap docstore.Snapshot) {
		got = append(got, snap)
	})
	require.NoError(t, err)

	// WHEN: the caller goes away right after the transaction commits
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.afterCommit = cancel

	err = s.Transact(ctx, rec, func(docstore.Snapshot) (map[string]any, error) {
		return map[string]any{"Returned DateTime": "2024-01-20", "finePaid": 3}, nil
	})

	// THEN: the write is acknowledged and subscribers see it
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-20", got[1].Child("r").Child("001").ChildString("Returned DateTime"))

	s.afterCommit = nil
	snap, err := s.Get(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "3", snap.ChildString("finePaid"))
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Set(ctx, docstore.Path("LibraryRecords/a/001/Book"), "A"))
	require.NoError(t, s.Set(ctx, docstore.Path("Analytics/StudentsPresentCount"), 2))

	var last docstore.Snapshot
	_, err := s.Subscribe(ctx, docstore.Path("Analytics"), func(snap docstore.Snapshot) { last = snap })
	require.NoError(t, err)
	require.True(t, last.Exists())

	require.NoError(t, s.Reset(ctx))
	assert.False(t, last.Exists(), "subscriber sees the cleared path")

	root, err := s.Get(ctx, docstore.Root)
	require.NoError(t, err)
	assert.False(t, root.Exists())
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "library.db")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, docstore.Path("Students/24L31A0412"), map[string]any{"Name": "A. Sai Ganesh"}))
	require.NoError(t, s.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	snap, err := reopened.Get(ctx, docstore.Path("Students/24L31A0412/Name"))
	require.NoError(t, err)
	v, _ := snap.String()
	assert.Equal(t, "A. Sai Ganesh", v)
}

func TestStore_Closed(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Get(context.Background(), docstore.Root)
	assert.ErrorIs(t, err, docstore.ErrClosed)
	assert.ErrorIs(t, s.Set(context.Background(), docstore.Root, "x"), docstore.ErrClosed)
}
