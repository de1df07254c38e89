package docstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// PATH
// =============================================================================

func TestParsePath(t *testing.T) {
	p, err := ParsePath("/LibraryRecords/24L31A0412/001/")
	require.NoError(t, err)
	assert.Equal(t, Path("LibraryRecords/24L31A0412/001"), p)
	assert.Equal(t, []string{"LibraryRecords", "24L31A0412", "001"}, p.Segments())
	assert.Equal(t, "001", p.Key())
	assert.Equal(t, Path("LibraryRecords/24L31A0412"), p.Parent())

	root, err := ParsePath("/")
	require.NoError(t, err)
	assert.Equal(t, Root, root)
	assert.Equal(t, "/", root.String())

	for _, bad := range []string{"a//b", "a/b.c", "a/$x", "a/[0]", "a#b"} {
		_, err := ParsePath(bad)
		assert.True(t, errors.Is(err, ErrInvalidPath), "expected %q to be rejected", bad)
	}
}

func TestPath_JoinAndContains(t *testing.T) {
	records := Root.Join("LibraryRecords")
	assert.Equal(t, Path("LibraryRecords"), records)
	assert.Equal(t, Path("LibraryRecords/a/001"), records.Join("a", "001"))

	assert.True(t, Root.Contains(records))
	assert.True(t, records.Contains(records.Join("a")))
	assert.False(t, records.Join("a").Contains(records.Join("ab")))
	assert.True(t, Related(records.Join("a", "001"), records))
	assert.False(t, Related(Path("Analytics"), records))
}

// =============================================================================
// TREE
// =============================================================================

func TestNormalize(t *testing.T) {
	v, err := Normalize(map[string]any{
		"Name":  "A. Sai Ganesh",
		"count": 3,
		"empty": map[string]any{},
		"gone":  nil,
		"list":  []any{"x", int64(2)},
		"flags": map[string]string{"ok": "yes"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"Name":  "A. Sai Ganesh",
		"count": float64(3),
		"list":  map[string]any{"0": "x", "1": float64(2)},
		"flags": map[string]any{"ok": "yes"},
	}, v)

	_, err = Normalize(map[string]any{"a.b": "x"})
	assert.True(t, errors.Is(err, ErrInvalidPath))

	_, err = Normalize(struct{}{})
	assert.True(t, errors.Is(err, ErrInvalidValue))
}

func TestSetAt_CreatesAndPrunes(t *testing.T) {
	var root any
	root = SetAt(root, []string{"a", "b", "c"}, "leaf")
	root = SetAt(root, []string{"a", "d"}, float64(1))
	assert.Equal(t, "leaf", ValueAt(root, []string{"a", "b", "c"}))

	root = SetAt(root, []string{"a", "b", "c"}, nil)
	assert.Nil(t, ValueAt(root, []string{"a", "b"}), "empty parent should be pruned")
	assert.Equal(t, float64(1), ValueAt(root, []string{"a", "d"}))

	root = SetAt(root, []string{"a", "d"}, nil)
	assert.Nil(t, root)
}

func TestFlattenAssemble_RoundTrip(t *testing.T) {
	value := map[string]any{
		"001": map[string]any{"Book": "Embedded Systems", "finePaid": float64(2)},
		"002": map[string]any{"Book": "C Programming"},
	}
	base := Path("LibraryRecords/24L31A0412")

	leaves := Flatten(base, value)
	assert.Len(t, leaves, 3)
	assert.Equal(t, "Embedded Systems", leaves[base.Join("001", "Book")])

	// Leaves outside the base are ignored
	leaves[Path("LibraryRecords/24L31A0412x/001")] = "other"
	assert.Equal(t, value, Assemble(base, leaves))
}

func TestClone_IsDeep(t *testing.T) {
	orig := map[string]any{"a": map[string]any{"b": "c"}}
	cp := Clone(orig).(map[string]any)
	cp["a"].(map[string]any)["b"] = "changed"
	assert.Equal(t, "c", orig["a"].(map[string]any)["b"])
}

func TestNormalizeFields(t *testing.T) {
	fields, err := NormalizeFields(map[string]any{
		"Returned DateTime": "2024-01-20",
		"Logs/abc":          map[string]any{"Event": "Login"},
		"finePaid":          nil,
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-20", fields[Path("Returned DateTime")])
	assert.Contains(t, fields, Path("Logs/abc"))
	assert.Nil(t, fields[Path("finePaid")])

	_, err = NormalizeFields(map[string]any{"": "x"})
	assert.True(t, errors.Is(err, ErrInvalidPath))
}

// =============================================================================
// SNAPSHOT
// =============================================================================

func TestSnapshot_Accessors(t *testing.T) {
	snap := NewSnapshot(Path("Analytics"), map[string]any{
		"StudentsPresentCount": "3",
		"StudentsPresentList": map[string]any{
			"b": map[string]any{"Name": "B"},
			"a": map[string]any{"Name": "A"},
		},
		"open": true,
	})

	n, ok := snap.Child("StudentsPresentCount").Number()
	assert.True(t, ok)
	assert.Equal(t, float64(3), n)

	children := snap.Child("StudentsPresentList").Children()
	require.Len(t, children, 2)
	assert.Equal(t, "a", children[0].Key())
	assert.Equal(t, Path("Analytics/StudentsPresentList/a"), children[0].Path())
	assert.Equal(t, "A", children[0].ChildString("Name"))

	assert.Equal(t, "true", snap.ChildString("open"))
	assert.Equal(t, "", snap.ChildString("StudentsPresentList"))
	assert.False(t, snap.Child("missing").Exists())
	assert.False(t, snap.Child("open").Child("x").Exists())

	var empty Snapshot
	assert.False(t, empty.Exists())
	assert.Nil(t, empty.Children())
}
