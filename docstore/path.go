package docstore

import (
	"fmt"
	"strings"
)

// =============================================================================
// PATH - Slash-separated address of a node in the document tree
// =============================================================================

// Path addresses a node, e.g. "LibraryRecords/24L31A0412/001".
// The empty path is the root of the tree.
type Path string

// Root is the path of the whole tree.
const Root Path = ""

const forbiddenKeyChars = "/.#$[]"

// ParsePath normalizes s (surrounding slashes are trimmed) and validates
// every segment.
func ParsePath(s string) (Path, error) {
	s = strings.Trim(s, "/")
	if s == "" {
		return Root, nil
	}
	for _, seg := range strings.Split(s, "/") {
		if err := ValidateKey(seg); err != nil {
			return "", err
		}
	}
	return Path(s), nil
}

// ValidateKey checks a single path segment.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty segment", ErrInvalidPath)
	}
	if strings.ContainsAny(key, forbiddenKeyChars) {
		return fmt.Errorf("%w: segment %q contains one of %q", ErrInvalidPath, key, forbiddenKeyChars)
	}
	return nil
}

func (p Path) Segments() []string {
	if p == Root {
		return nil
	}
	return strings.Split(string(p), "/")
}

// Join appends keys to p. Keys are not validated; use ParsePath on
// untrusted input.
func (p Path) Join(keys ...string) Path {
	parts := make([]string, 0, len(keys)+1)
	if p != Root {
		parts = append(parts, string(p))
	}
	parts = append(parts, keys...)
	return Path(strings.Join(parts, "/"))
}

func (p Path) Parent() Path {
	i := strings.LastIndex(string(p), "/")
	if i < 0 {
		return Root
	}
	return p[:i]
}

// Key returns the last segment.
func (p Path) Key() string {
	i := strings.LastIndex(string(p), "/")
	return string(p[i+1:])
}

// Contains reports whether p is other or one of its ancestors.
func (p Path) Contains(other Path) bool {
	if p == Root || p == other {
		return true
	}
	return strings.HasPrefix(string(other), string(p)+"/")
}

// Related reports whether a change at one path is visible from the other.
func Related(a, b Path) bool {
	return a.Contains(b) || b.Contains(a)
}

func (p Path) String() string {
	if p == Root {
		return "/"
	}
	return string(p)
}
