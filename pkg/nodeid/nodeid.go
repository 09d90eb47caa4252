// Package nodeid encodes tree positions as dotted index paths.
//
// A node id is the sequence of child indices from the top level down to the
// node, joined by dots: "0" is the first top-level node, "0.3.1" is the second
// child of the fourth child of the first top-level node.
package nodeid

import (
	"fmt"
	"strconv"
	"strings"
)

// Separator joins path segments.
const Separator = "."

// MalformedIDError reports an id that cannot be parsed as a dotted index path.
// It is always a programming error: ids are assigned by the tree initializer.
type MalformedIDError struct {
	ID      string
	Segment string
}

func (e *MalformedIDError) Error() string {
	if e.Segment == "" {
		return fmt.Sprintf("nodeid: malformed id %q", e.ID)
	}
	return fmt.Sprintf("nodeid: malformed id %q: bad segment %q", e.ID, e.Segment)
}

// Split parses a dotted path into its index sequence.
func Split(id string) ([]int, error) {
	if id == "" {
		return nil, &MalformedIDError{ID: id}
	}
	parts := strings.Split(id, Separator)
	path := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || p[0] < '0' || p[0] > '9' {
			return nil, &MalformedIDError{ID: id, Segment: p}
		}
		path[i] = n
	}
	return path, nil
}

// MustSplit is Split for ids that are known to come from the initializer.
// It panics with *MalformedIDError otherwise.
func MustSplit(id string) []int {
	path, err := Split(id)
	if err != nil {
		panic(err)
	}
	return path
}

// Join is the inverse of Split.
func Join(path []int) string {
	var sb strings.Builder
	for i, n := range path {
		if i > 0 {
			sb.WriteString(Separator)
		}
		sb.WriteString(strconv.Itoa(n))
	}
	return sb.String()
}

// Child returns the id of the i-th child of parent. An empty parent addresses
// the top level.
func Child(parent string, i int) string {
	if parent == "" {
		return strconv.Itoa(i)
	}
	return parent + Separator + strconv.Itoa(i)
}

// Parent returns the id of the parent node, or "" for a top-level id.
func Parent(id string) string {
	if i := strings.LastIndex(id, Separator); i >= 0 {
		return id[:i]
	}
	return ""
}

// Depth returns the nesting level of id (0 for top-level nodes).
func Depth(id string) int {
	return strings.Count(id, Separator)
}

// IsTopLevel reports whether id addresses a top-level node.
func IsTopLevel(id string) bool {
	return !strings.Contains(id, Separator)
}

// Last returns the index of the node within its sibling list.
func Last(id string) int {
	path := MustSplit(id)
	return path[len(path)-1]
}

// IsAncestor reports whether anc is a strict ancestor of id.
func IsAncestor(anc, id string) bool {
	return anc != "" && strings.HasPrefix(id, anc+Separator)
}
