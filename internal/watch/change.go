package watch

import (
	"fmt"
	"sort"
)

// Kind classifies a filesystem mutation.
type Kind int

// The closed set of change kinds. The integer values are part of the
// wire encoding (see run.EncodeChanges) and must stay stable.
const (
	Added Kind = iota + 1
	Modified
	Deleted
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a kind name back to its Kind value.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "added":
		return Added, nil
	case "modified":
		return Modified, nil
	case "deleted":
		return Deleted, nil
	default:
		return 0, fmt.Errorf("unknown change kind %q", s)
	}
}

// Change is a single filesystem change: what happened and where.
// Path is always absolute.
type Change struct {
	Kind Kind
	Path string
}

// String returns "kind path" for log and status output.
func (c Change) String() string {
	return c.Kind.String() + " " + c.Path
}

// ChangeSet is a deduplicated set of changes accumulated over one
// debounce window. Repeated identical (kind, path) pairs collapse to
// one entry; the same path with distinct kinds keeps all of them.
type ChangeSet map[Change]struct{}

// Add inserts c into the set.
func (s ChangeSet) Add(c Change) {
	s[c] = struct{}{}
}

// Has reports whether c is in the set.
func (s ChangeSet) Has(c Change) bool {
	_, ok := s[c]
	return ok
}

// Len returns the number of distinct changes in the set.
func (s ChangeSet) Len() int {
	return len(s)
}

// Sorted returns the changes ordered by path, then kind. The set itself
// carries no ordering; this is for stable display and encoding only.
func (s ChangeSet) Sorted() []Change {
	out := make([]Change, 0, len(s))
	for c := range s {
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}

		return out[i].Kind < out[j].Kind
	})

	return out
}
