// Package query turns keyword predicate sets into the store's native
// query trees and composes those trees with boolean AND/OR roots.
//
// A predicate term is either a bare field path ("name"), a path with
// "__" segment separators ("account__billing__plan"), or a path with a
// trailing comparison-operator suffix ("age__gte"). Keys with a leading
// "__" are query options (sort, limit, cursor timeout), not predicates,
// and are split off before translation.
package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dongo-odm/dongo/dongo/driver"
)

// Predicates is a keyword-to-value filter or update description, e.g.
//
//	query.Predicates{"age__gte": 25, "account__plan": "free"}
type Predicates map[string]interface{}

// Node is a query tree in the store's native shape: either a flat
// conjunction of field conditions, or a single boolean root ("$and" /
// "$or") over an ordered list of child nodes.
type Node map[string]interface{}

// ErrComposition is returned when composing onto a node whose root is
// not a boolean composition root.
var ErrComposition = errors.New("query: top level must be $and or $or")

const (
	andRoot = "$and"
	orRoot  = "$or"

	optionPrefix = "__"
	pathJoiner   = "__"
)

// comparisonOps is the closed operator vocabulary. Suffix recognition
// checks anchored membership here, so arbitrary nested field names can
// never be mistaken for operators.
var comparisonOps = map[string]bool{
	"gte":    true,
	"lte":    true,
	"gt":     true,
	"lt":     true,
	"eq":     true,
	"ne":     true,
	"nin":    true,
	"in":     true,
	"regex":  true,
	"exists": true,
}

// optionAliases maps legacy option spellings to their canonical names.
var optionAliases = map[string]string{
	"no_timeout": "no_cursor_timeout",
}

// TranslateTerm converts one keyword term and its value into a dotted
// field path and condition. Terms without "__" pass through as exact
// equality. A recognized operator suffix after the final "__" becomes a
// {"$op": value} condition; anything else is a literal nested path with
// implicit equality.
func TranslateTerm(term string, value interface{}) (string, interface{}) {
	if !strings.Contains(term, pathJoiner) {
		return term, value
	}
	if idx := strings.LastIndex(term, pathJoiner); idx > 0 {
		if op := term[idx+len(pathJoiner):]; comparisonOps[op] {
			path := strings.ReplaceAll(term[:idx], pathJoiner, fieldSep)
			return path, map[string]interface{}{"$" + op: value}
		}
	}
	return strings.ReplaceAll(term, pathJoiner, fieldSep), value
}

const fieldSep = "."

// Build partitions a predicate set into a flat conjunction node and the
// query options carried by "__"-prefixed keys.
func Build(preds Predicates) (Node, driver.FindOptions) {
	node := Node{}
	var opts driver.FindOptions
	for key, val := range preds {
		if strings.HasPrefix(key, optionPrefix) {
			applyOption(&opts, key[len(optionPrefix):], val)
			continue
		}
		path, cond := TranslateTerm(key, val)
		node[path] = cond
	}
	return node, opts
}

// applyOption translates one option key onto opts. Unrecognized keys
// pass through in Extra for the driver to interpret.
func applyOption(opts *driver.FindOptions, key string, val interface{}) {
	if alias, ok := optionAliases[key]; ok {
		key = alias
	}
	switch key {
	case "sort":
		opts.Sort = NormalizeSort(val)
	case "limit":
		if n, ok := toInt64(val); ok {
			opts.Limit = &n
		}
	case "skip":
		if n, ok := toInt64(val); ok {
			opts.Skip = &n
		}
	case "timeout":
		if b, ok := val.(bool); ok {
			opts.NoCursorTimeout = !b
		}
	case "no_cursor_timeout":
		if b, ok := val.(bool); ok {
			opts.NoCursorTimeout = b
		}
	default:
		if opts.Extra == nil {
			opts.Extra = make(map[string]interface{})
		}
		opts.Extra[key] = val
	}
}

// NormalizeSort promotes a bare field name to a one-element ascending
// sort spec. SortField values and slices pass through.
func NormalizeSort(val interface{}) []driver.SortField {
	switch v := val.(type) {
	case string:
		return []driver.SortField{driver.Asc(v)}
	case driver.SortField:
		return []driver.SortField{v}
	case []driver.SortField:
		return v
	case []string:
		fields := make([]driver.SortField, 0, len(v))
		for _, key := range v {
			fields = append(fields, driver.Asc(key))
		}
		return fields
	}
	return nil
}

// NewAnd returns an empty node pre-typed to an AND root.
func NewAnd() Node {
	return Node{andRoot: []interface{}{}}
}

// NewOr returns an empty node pre-typed to an OR root.
func NewOr() Node {
	return Node{orRoot: []interface{}{}}
}

// Root returns the boolean composition root of n, if it has one.
func (n Node) Root() (string, bool) {
	if _, ok := n[andRoot]; ok {
		return andRoot, true
	}
	if _, ok := n[orRoot]; ok {
		return orRoot, true
	}
	return "", false
}

// Compose appends other as a new child of n's composition root,
// mutating n in place. The receiver must already be typed as $and or
// $or; composing onto an untyped root is an error.
func (n Node) Compose(other Node) error {
	root, ok := n.Root()
	if !ok {
		return ErrComposition
	}
	children, ok := n[root].([]interface{})
	if !ok {
		return fmt.Errorf("%w: malformed %s children", ErrComposition, root)
	}
	n[root] = append(children, map[string]interface{}(other))
	return nil
}

// And returns a new node {"$and": [a, b]} without mutating either input.
func And(a, b Node) Node {
	return Node{andRoot: []interface{}{
		map[string]interface{}(a),
		map[string]interface{}(b),
	}}
}

// Or returns a new node {"$or": [a, b]} without mutating either input.
func Or(a, b Node) Node {
	return Node{orRoot: []interface{}{
		map[string]interface{}(a),
		map[string]interface{}(b),
	}}
}

func toInt64(val interface{}) (int64, bool) {
	switch v := val.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}
