// Package fieldpath implements dot-separated field access over nested
// map documents. Paths address fields the same way the store's update
// and query languages do: "account.billing.plan" walks three levels of
// nested maps.
//
// This layer never creates intermediate maps. A Set on "a.b.c" requires
// "a" and "a.b" to already exist and be maps; materializing missing
// parents is a server-side concern and deliberately not mirrored here.
package fieldpath

import (
	"errors"
	"fmt"
	"strings"
)

// Separator delimits path segments.
const Separator = "."

// ErrNotFound is returned when a path segment is absent or a non-final
// segment resolves to something other than a nested map.
var ErrNotFound = errors.New("fieldpath: field not found")

// Get walks path through doc and returns the value at the final segment.
func Get(doc map[string]interface{}, path string) (interface{}, error) {
	parent, last, err := walk(doc, path)
	if err != nil {
		return nil, err
	}
	val, ok := parent[last]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	return val, nil
}

// Set assigns value at the final segment of path. All intermediate
// segments must already exist and be maps.
func Set(doc map[string]interface{}, path string, value interface{}) error {
	parent, last, err := walk(doc, path)
	if err != nil {
		return err
	}
	parent[last] = value
	return nil
}

// Contains reports whether path resolves to a value in doc. Unlike Get
// it never returns an error: missing segments and type mismatches both
// report false.
func Contains(doc map[string]interface{}, path string) bool {
	if doc == nil {
		return false
	}
	cur := doc
	segments := strings.Split(path, Separator)
	for i, seg := range segments {
		val, ok := cur[seg]
		if !ok {
			return false
		}
		if i == len(segments)-1 {
			return true
		}
		next, ok := val.(map[string]interface{})
		if !ok {
			return false
		}
		cur = next
	}
	return false
}

// walk resolves every segment but the last, returning the map that owns
// the final segment along with the segment name itself.
func walk(doc map[string]interface{}, path string) (map[string]interface{}, string, error) {
	if doc == nil {
		return nil, "", fmt.Errorf("%w: %q (nil document)", ErrNotFound, path)
	}
	segments := strings.Split(path, Separator)
	cur := doc
	for _, seg := range segments[:len(segments)-1] {
		val, ok := cur[seg]
		if !ok {
			return nil, "", fmt.Errorf("%w: %q (missing segment %q)", ErrNotFound, path, seg)
		}
		next, ok := val.(map[string]interface{})
		if !ok {
			return nil, "", fmt.Errorf("%w: %q (segment %q is not a nested document)", ErrNotFound, path, seg)
		}
		cur = next
	}
	return cur, segments[len(segments)-1], nil
}
