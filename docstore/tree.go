package docstore

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// =============================================================================
// TREE HELPERS - Shared by Memory and the SQLite store
// =============================================================================

// Normalize converts a caller value into the tree representation: nested
// map[string]any with string, float64 and bool leaves. Slices become maps
// keyed by index, integers become float64, nil children are dropped and an
// object left empty collapses to nil.
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string, bool, float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint:
		return float64(t), nil
	case uint32:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return f, nil
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			if err := ValidateKey(k); err != nil {
				return nil, err
			}
			out[k] = s
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if err := ValidateKey(k); err != nil {
				return nil, err
			}
			n, err := Normalize(child)
			if err != nil {
				return nil, err
			}
			if n != nil {
				out[k] = n
			}
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out, nil
	case []any:
		m := make(map[string]any, len(t))
		for i, child := range t {
			m[strconv.Itoa(i)] = child
		}
		return Normalize(m)
	}
	return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
}

// Clone deep-copies a normalized value.
func Clone(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for k, child := range m {
		out[k] = Clone(child)
	}
	return out
}

// ValueAt returns the node below root at the relative segments.
func ValueAt(root any, segs []string) any {
	cur := root
	for _, seg := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[seg]
	}
	return cur
}

// SetAt stores value below root and returns the new root. Parent objects are
// created as needed; a nil value deletes the node and prunes empty parents.
func SetAt(root any, segs []string, value any) any {
	if len(segs) == 0 {
		return value
	}
	m, ok := root.(map[string]any)
	if !ok {
		if value == nil {
			return root
		}
		m = make(map[string]any)
	}
	child := SetAt(m[segs[0]], segs[1:], value)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// Flatten lists the leaves of a normalized value by absolute path.
func Flatten(base Path, v any) map[Path]any {
	leaves := make(map[Path]any)
	flattenInto(leaves, base, v)
	return leaves
}

func flattenInto(leaves map[Path]any, at Path, v any) {
	switch t := v.(type) {
	case nil:
	case map[string]any:
		for k, child := range t {
			flattenInto(leaves, at.Join(k), child)
		}
	default:
		leaves[at] = t
	}
}

// Assemble rebuilds the value at base from leaves at or below it.
func Assemble(base Path, leaves map[Path]any) any {
	var root any
	baseLen := len(base.Segments())
	for p, v := range leaves {
		if !base.Contains(p) {
			continue
		}
		root = SetAt(root, p.Segments()[baseLen:], v)
	}
	return root
}

// NormalizeFields validates merge fields. Keys may be nested paths
// ("Logs/abc"); a nil value removes the field.
func NormalizeFields(fields map[string]any) (map[Path]any, error) {
	out := make(map[Path]any, len(fields))
	for k, v := range fields {
		rel, err := ParsePath(k)
		if err != nil {
			return nil, err
		}
		if rel == Root {
			return nil, fmt.Errorf("%w: empty field name", ErrInvalidPath)
		}
		n, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[rel] = n
	}
	return out, nil
}
