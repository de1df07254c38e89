package docstore

import (
	"sort"
	"strconv"
)

// =============================================================================
// SNAPSHOT - Immutable view of a node at one point in time
// =============================================================================

// Snapshot is the complete value at a path as of one read. A path holding
// nothing yields a snapshot whose Exists is false; this is a valid empty
// value, not an error.
//
// Values are the normalized tree types: map[string]any for objects,
// string, float64 and bool for leaves.
type Snapshot struct {
	path  Path
	value any
}

// NewSnapshot wraps a normalized value. Callers must not mutate value
// afterwards.
func NewSnapshot(path Path, value any) Snapshot {
	return Snapshot{path: path, value: value}
}

func (s Snapshot) Path() Path   { return s.path }
func (s Snapshot) Key() string  { return s.path.Key() }
func (s Snapshot) Exists() bool { return s.value != nil }
func (s Snapshot) Value() any   { return s.value }

// Child returns the snapshot of a direct child. Children of leaves never exist.
func (s Snapshot) Child(key string) Snapshot {
	child := Snapshot{path: s.path.Join(key)}
	if m, ok := s.value.(map[string]any); ok {
		child.value = m[key]
	}
	return child
}

// Children returns the direct children in ascending key order.
func (s Snapshot) Children() []Snapshot {
	m, ok := s.value.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Snapshot, len(keys))
	for i, k := range keys {
		out[i] = Snapshot{path: s.path.Join(k), value: m[k]}
	}
	return out
}

// HasChildren reports whether the node is an object.
func (s Snapshot) HasChildren() bool {
	_, ok := s.value.(map[string]any)
	return ok
}

// String returns a leaf as text. Numbers and booleans are formatted.
func (s Snapshot) String() (string, bool) {
	switch v := s.value.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}

// Number returns a numeric leaf. Numeric strings are accepted since device
// firmware writes counters either way.
func (s Snapshot) Number() (float64, bool) {
	switch v := s.value.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// ChildString is Child(key).String() with "" for missing or non-leaf values.
func (s Snapshot) ChildString(key string) string {
	v, _ := s.Child(key).String()
	return v
}
